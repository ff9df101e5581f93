package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolReusesMatchingSize(t *testing.T) {
	p := New(64, 2)
	buf := p.Get(64)
	buf = append(buf, 1, 2, 3)
	p.Put(buf)
	require.Equal(t, 1, p.Len())

	reused := p.Get(64)
	require.Equal(t, 0, len(reused))
	require.GreaterOrEqual(t, cap(reused), 64)
	require.Equal(t, 0, p.Len())
}

func TestPoolNeverPoolsMismatchedSize(t *testing.T) {
	p := New(64, 2)
	buf := make([]byte, 0, 128)
	p.Put(buf)
	require.Equal(t, 0, p.Len())

	got := p.Get(128)
	require.Equal(t, 0, len(got))
	require.GreaterOrEqual(t, cap(got), 128)
}

func TestPoolCapsFreeList(t *testing.T) {
	p := New(32, 1)
	p.Put(make([]byte, 0, 32))
	p.Put(make([]byte, 0, 32))
	require.Equal(t, 1, p.Len())
}
