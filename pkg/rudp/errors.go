package rudp

import "errors"

// Sentinel errors returned at API boundaries. Wrap with fmt.Errorf("...: %w")
// and unwrap with errors.Is, matching the teacher's fmt.Errorf("...: %w", err)
// style (source/server/server.go's "failed to bind UDP socket: %w").
//
// "out-of-memory" has no sentinel here: Go's allocator panics rather than
// returning a recoverable allocation failure, so Allocator implementations
// are documented to do the same — see the Allocator doc comment in
// interfaces.go.
var (
	// ErrInvalidArgument covers a user command out of range, an attempt to
	// send on an unconnected client, or a malformed inbound datagram.
	ErrInvalidArgument = errors.New("rudp: invalid argument")

	// ErrNotConnected is returned when an operation needs a resolved peer
	// address and none exists yet.
	ErrNotConnected = errors.New("rudp: not connected")

	// ErrAddressFamilyUnsupported is returned when a requested address
	// family cannot be satisfied by resolution or by the local stack.
	ErrAddressFamilyUnsupported = errors.New("rudp: address family unsupported")

	// ErrResolveFailed wraps a failed hostname/service resolution.
	ErrResolveFailed = errors.New("rudp: address resolution failed")

	// ErrAddressExhausted is returned when no candidate address from
	// resolution could be used to bind or connect.
	ErrAddressExhausted = errors.New("rudp: address candidates exhausted")

	// ErrTransport wraps a send/receive failure surfaced from the
	// underlying datagram transport. It never tears the peer down by
	// itself; Peer.Send returns it wrapped when the transport failed during
	// the service pass that Send triggered or an earlier one.
	ErrTransport = errors.New("rudp: transport error")

	// ErrPeerDead is returned by any operation attempted against a peer
	// that has already transitioned to StateDead.
	ErrPeerDead = errors.New("rudp: peer is dead")

	// ErrAckUnsent is the internal classification for a reliable_ack that
	// acknowledges a sequence the local side never sent (signed delta > 0
	// versus out_seq_reliable). The whole datagram is rejected when this
	// occurs, per SPEC_FULL.md §4.2 step 1.
	ErrAckUnsent = errors.New("rudp: ack acknowledges unsent sequence")
)
