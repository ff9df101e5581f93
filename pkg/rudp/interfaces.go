package rudp

import "net"

// Clock yields the current time as milliseconds on a monotonic scale; see
// internal/clock for the concrete implementations wired in by cmd/ and by
// NewClient/NewServer callers. Declared again here (structurally identical
// to internal/clock.Clock) so the Peer's collaborators are interfaces owned
// by this package — the narrow-interface boundary from SPEC_FULL.md §2. The
// exported API does still name some internal types (transport.AddressFamily,
// scheduler.Loop, metrics.Collectors).
type Clock interface {
	NowMs() int64
}

// Transport is the narrow send capability the engine requires of the
// datagram layer. See internal/transport.UDPTransport for the default
// implementation.
type Transport interface {
	SendTo(addr net.Addr, data []byte) error
}

// Allocator is the packet-buffer pool capability described in
// SPEC_FULL.md §4.5. Implementations must not panic on Put with a foreign
// buffer; Get is expected to panic (matching Go's own make()/append()
// failure mode) rather than return an error on true allocation failure —
// there is no recoverable out-of-memory path in idiomatic Go.
type Allocator interface {
	Get(size int) []byte
	Put(buf []byte)
}

// PRNG yields the initial out_seq_reliable value for a freshly created or
// reset peer.
type PRNG interface {
	Uint16() uint16
}

// Handler receives application payloads and the terminal drop notification
// for a single peer. HandlePacket is invoked once per accepted, in-order
// payload (retransmits are suppressed upstream); Dropped is invoked exactly
// once, from either a received CLOSE or a liveness timeout.
//
// Per SPEC_FULL.md §5, a Handler must not call Peer.Send, Peer.Close, or
// any other state-mutating method on the same Peer from within its own
// callback frame — doing so would reenter the single-threaded engine loop.
// Handlers may enqueue work (e.g. via a channel) to run after the callback
// returns.
type Handler interface {
	HandlePacket(p *Peer, userCommand uint8, payload []byte)
	Dropped(p *Peer)
}

// HandlerFuncs is a Handler built from two function values, for callers who
// would rather not declare a named type — mirroring the teacher's
// SetPacketHandler(func) style (source/server/server.go) generalised to
// both required callbacks.
type HandlerFuncs struct {
	OnPacket  func(p *Peer, userCommand uint8, payload []byte)
	OnDropped func(p *Peer)
}

func (h HandlerFuncs) HandlePacket(p *Peer, userCommand uint8, payload []byte) {
	if h.OnPacket != nil {
		h.OnPacket(p, userCommand, payload)
	}
}

func (h HandlerFuncs) Dropped(p *Peer) {
	if h.OnDropped != nil {
		h.OnDropped(p)
	}
}
