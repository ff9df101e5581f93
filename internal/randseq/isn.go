// Package randseq generates initial reliable sequence numbers. The corpus
// carries no dedicated PRNG dependency for 16-bit sequence seeding (rs/xid
// and google/uuid solve a different, wider-identifier problem); math/rand/v2
// is the idiomatic stdlib choice here and is documented as such in
// DESIGN.md.
package randseq

import "math/rand/v2"

// PRNG yields the initial out_seq_reliable value for a freshly created or
// reset peer.
type PRNG interface {
	Uint16() uint16
}

// System is a PRNG backed by math/rand/v2's global, auto-seeded source.
type System struct{}

// Uint16 implements PRNG.
func (System) Uint16() uint16 {
	return uint16(rand.Uint32())
}
