package rudp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go-rudp/internal/wire"
)

func TestSendQueuePushAndPrefixRemoval(t *testing.T) {
	var q sendQueue
	q.pushBack(chainEntry{command: wire.CmdPing, reliable: true, reliableSeq: 1, retransmitted: true})
	q.pushBack(chainEntry{command: wire.CmdPing, reliable: true, reliableSeq: 2, retransmitted: true})
	q.pushBack(chainEntry{command: wire.CmdPing, reliable: true, reliableSeq: 3, retransmitted: false})
	require.Equal(t, 3, q.len())

	q.removeAckedPrefix(func(e chainEntry) bool {
		return e.reliable && e.retransmitted && wire.SeqDelta(2, e.reliableSeq) <= 0
	})
	require.Equal(t, 1, q.len())
	require.Equal(t, uint16(3), q.at(0).reliableSeq)
}

func TestSendQueueRemoveAckedPrefixStopsAtFirstRejection(t *testing.T) {
	var q sendQueue
	q.pushBack(chainEntry{reliable: true, reliableSeq: 1, retransmitted: true})
	q.pushBack(chainEntry{reliable: true, reliableSeq: 2, retransmitted: false})
	q.pushBack(chainEntry{reliable: true, reliableSeq: 3, retransmitted: true})

	q.removeAckedPrefix(func(e chainEntry) bool {
		return e.retransmitted
	})
	require.Equal(t, 2, q.len())
	require.Equal(t, uint16(2), q.at(0).reliableSeq)
	require.Equal(t, uint16(3), q.at(1).reliableSeq)
}

func TestSendQueueDrain(t *testing.T) {
	var q sendQueue
	q.pushBack(chainEntry{})
	q.pushBack(chainEntry{})
	q.drain()
	require.True(t, q.empty())
}

func TestSendQueueRewrite(t *testing.T) {
	var q sendQueue
	q.pushBack(chainEntry{reliableSeq: 1})
	q.rewrite([]chainEntry{{reliableSeq: 9}})
	require.Equal(t, 1, q.len())
	require.Equal(t, uint16(9), q.at(0).reliableSeq)
}
