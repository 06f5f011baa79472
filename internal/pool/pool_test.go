package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type item struct {
	Value int
}

func TestPoolExhaustionAndReuse(t *testing.T) {
	p := New[item](2)
	require.Equal(t, 2, p.Cap())

	a, ok := p.Get()
	require.True(t, ok)
	b, ok := p.Get()
	require.True(t, ok)

	_, ok = p.Get()
	require.False(t, ok, "pool must report exhaustion rather than allocate")

	a.Value = 1
	b.Value = 2
	p.Put(a)

	c, ok := p.Get()
	require.True(t, ok)
	require.Equal(t, 1, c.Value, "freed slot must be reused")
}
