package rudp

import (
	"time"

	"github.com/rs/zerolog"

	"go-rudp/internal/metrics"
)

// Tunable default constants from SPEC_FULL.md §4.2.
const (
	DefaultActionTimeout = 5000 * time.Millisecond
	DefaultDropTimeout   = 2 * DefaultActionTimeout
	DefaultMaxRTO        = 3000 * time.Millisecond
	DefaultInitialSRTT   = 100 * time.Millisecond
	DefaultInitialRTTVar = 50 * time.Millisecond

	// DefaultReceiveBufferSize is the datagram read-buffer size; it equals
	// the bucket size internal/bufpool.NewDefault pools.
	DefaultReceiveBufferSize = 4096

	// DefaultFreeListCap is the default for Config.FreeListCap; it equals
	// internal/bufpool.DefaultCap.
	DefaultFreeListCap = 10

	// maxSendQueueDrainPerPass caps how many entries one ack-processing walk
	// (sendQueue.removeAckedPrefix) removes; the reference has no such cap
	// because C send queues are typically tiny, but an unbounded walk is
	// worth bounding defensively in a long-lived Go process. Set far above
	// any realistic control-traffic queue depth so it never triggers in
	// practice.
	maxSendQueueDrainPerPass = 1 << 16
)

// Config gathers every tunable the Runtime surface (SPEC_FULL.md §6)
// exposes, plus the collaborator interfaces a Peer is built against. It
// plays the role of the reference's master context: one value, supplied at
// construction, with no package-level mutable state anywhere in the engine.
type Config struct {
	// ActionTimeout is the idle interval after which a RUN peer with an
	// empty send queue enqueues a keepalive PING.
	ActionTimeout time.Duration
	// DropTimeout is the absolute liveness deadline refreshed on every
	// accepted inbound datagram.
	DropTimeout time.Duration
	// MaxRTO caps the retransmission timeout after exponential backoff.
	MaxRTO time.Duration
	// InitialSRTT seeds a fresh peer's smoothed RTT estimate.
	InitialSRTT time.Duration
	// InitialRTTVar seeds a fresh peer's RTT variance estimate.
	InitialRTTVar time.Duration

	// ReceiveBufferSize is the datagram read-buffer size used by Serve, and
	// the buffer size the Peer asks Allocator for when encoding a datagram.
	ReceiveBufferSize int
	// FreeListCap is not read by the engine; the pool's cap is whatever the
	// supplied Allocator was built with (bufpool.NewDefault uses
	// bufpool.DefaultCap).
	FreeListCap int

	Clock     Clock
	Allocator Allocator
	PRNG      PRNG
	Logger    zerolog.Logger

	// Metrics receives counter/histogram updates from every Peer sharing
	// this Config. Left nil, NewConfig/WithDefaults fill in an unregistered
	// Collectors instance so Peer never needs a nil check on the hot path;
	// callers who want the numbers exported call Metrics.MustRegister
	// against their own prometheus.Registerer.
	Metrics *metrics.Collectors
}

// WithDefaults returns a copy of c with every zero-valued tunable replaced
// by its protocol default. Clock, Allocator, and PRNG are left for the
// caller to supply — NewClient/NewServer reject a Config missing any of
// them.
func (c Config) WithDefaults() Config {
	if c.ActionTimeout == 0 {
		c.ActionTimeout = DefaultActionTimeout
	}
	if c.DropTimeout == 0 {
		c.DropTimeout = DefaultDropTimeout
	}
	if c.MaxRTO == 0 {
		c.MaxRTO = DefaultMaxRTO
	}
	if c.InitialSRTT == 0 {
		c.InitialSRTT = DefaultInitialSRTT
	}
	if c.InitialRTTVar == 0 {
		c.InitialRTTVar = DefaultInitialRTTVar
	}
	if c.ReceiveBufferSize == 0 {
		c.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if c.FreeListCap == 0 {
		c.FreeListCap = DefaultFreeListCap
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New()
	}
	return c
}

// NewConfig returns a Config with every tunable at its protocol default and
// a no-op Logger, ready for the caller to fill in Clock/Allocator/PRNG (and
// optionally override Logger) before passing it to NewClient/NewServer.
func NewConfig() Config {
	c := Config{Logger: zerolog.Nop()}
	return c.WithDefaults()
}

func (c Config) validate() error {
	if c.Clock == nil || c.Allocator == nil || c.PRNG == nil {
		return ErrInvalidArgument
	}
	return nil
}
