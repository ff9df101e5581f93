// Package metrics exposes the protocol engine's per-process counters and
// gauges through github.com/prometheus/client_golang. It plays the role
// runZeroInc-sockstats' ReportStatsFn callback plays for TCP connections
// (open/close event reporting) but renders the numbers as Prometheus
// collectors instead of a per-connection JSON blob, matching SPEC_FULL.md's
// domain-stack wiring.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every metric the engine updates. Callers register it
// once against a prometheus.Registerer (typically prometheus.DefaultRegisterer)
// at startup.
type Collectors struct {
	ReliableSent          prometheus.Counter
	ReliableRetransmitted prometheus.Counter
	ReliableAcked         prometheus.Counter
	UnreliableSent        prometheus.Counter
	MalformedDropped      prometheus.Counter
	PeersLive             prometheus.Gauge
	SRTTMillis            prometheus.Histogram
	RTOMillis             prometheus.Histogram
}

// New builds a Collectors with the rudp_ namespace.
func New() *Collectors {
	return &Collectors{
		ReliableSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rudp", Name: "reliable_sent_total",
			Help: "Reliable datagrams handed to the transport for the first time; resends are counted by reliable_retransmitted_total.",
		}),
		ReliableRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rudp", Name: "reliable_retransmitted_total",
			Help: "Reliable datagrams re-sent by a service pass while still unacknowledged.",
		}),
		ReliableAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rudp", Name: "reliable_acked_total",
			Help: "Reliable datagrams removed from a send queue on acknowledgement.",
		}),
		UnreliableSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rudp", Name: "unreliable_sent_total",
			Help: "Unreliable datagrams handed to the transport.",
		}),
		MalformedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rudp", Name: "malformed_datagrams_dropped_total",
			Help: "Inbound datagrams rejected by wire.Decode before reaching any peer.",
		}),
		PeersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rudp", Name: "peers_live",
			Help: "Peers currently tracked outside StateDead.",
		}),
		SRTTMillis: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rudp", Name: "srtt_milliseconds",
			Help:    "Smoothed round-trip time samples across all peers.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}),
		RTOMillis: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rudp", Name: "rto_milliseconds",
			Help:    "Retransmission timeout samples across all peers.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}),
	}
}

// MustRegister registers every collector against reg, panicking on
// duplicate registration — the standard client_golang startup idiom.
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.ReliableSent,
		c.ReliableRetransmitted,
		c.ReliableAcked,
		c.UnreliableSent,
		c.MalformedDropped,
		c.PeersLive,
		c.SRTTMillis,
		c.RTOMillis,
	)
}
