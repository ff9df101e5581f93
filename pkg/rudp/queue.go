package rudp

import "go-rudp/internal/wire"

// chainEntry is one packet-chain entry (SPEC_FULL.md §3): a queued outbound
// packet tagged with its reliability and retransmission status. Once
// enqueued it is owned by the peer until it is either transmitted
// unreliably and dropped, or transmitted reliably, marked retransmitted,
// and removed on acknowledgement.
type chainEntry struct {
	command       wire.Command
	reliable      bool
	reliableSeq   uint16
	unreliableSeq uint16
	body          []byte
	// retransmitted means "has been handed to the transport at least once".
	// The reference reuses the wire RETRANSMITTED bit for this same meaning
	// (it is set after the *first* transmission, not only on genuine
	// resends) — see the service pass in SPEC_FULL.md §4.2.
	retransmitted bool
}

// sendQueue is the ordered sequence of chainEntry the state machine
// operates on. The reference links entries with an intrusive doubly linked
// list purely to get O(1) head removal in C; a plain slice gives the same
// result here without a container dependency (see DESIGN.md), since the
// expected queue depth is small per SPEC_FULL.md §9.
type sendQueue struct {
	items []chainEntry
}

func (q *sendQueue) pushBack(e chainEntry) { q.items = append(q.items, e) }

func (q *sendQueue) len() int { return len(q.items) }

func (q *sendQueue) empty() bool { return len(q.items) == 0 }

func (q *sendQueue) at(i int) chainEntry { return q.items[i] }

func (q *sendQueue) snapshot() []chainEntry {
	out := make([]chainEntry, len(q.items))
	copy(out, q.items)
	return out
}

// drain discards every entry (used by reset / close / deinit).
func (q *sendQueue) drain() { q.items = nil }

// removeAckedPrefix drops entries from the head while pred holds for each,
// stopping at the first entry pred rejects. The send queue is ordered by
// enqueue time, so an acknowledged run is always a contiguous prefix from
// the head (SPEC_FULL.md §4.2's ack-processing walk).
func (q *sendQueue) removeAckedPrefix(pred func(chainEntry) bool) {
	i := 0
	for i < len(q.items) && i < maxSendQueueDrainPerPass && pred(q.items[i]) {
		i++
	}
	if i == 0 {
		return
	}
	remaining := len(q.items) - i
	copy(q.items, q.items[i:])
	q.items = q.items[:remaining]
}

// rewrite replaces the queue contents wholesale. The service pass may drop
// unreliable entries from anywhere in the queue while a reliable entry
// ahead of them stays queued for retransmission, so it builds the next
// queue contents explicitly rather than removing in place.
func (q *sendQueue) rewrite(items []chainEntry) { q.items = items }
