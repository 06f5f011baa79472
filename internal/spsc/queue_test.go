package spsc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvalidCapacityPanics(t *testing.T) {
	require.Panics(t, func() { New[int](3) })
	require.Panics(t, func() { New[int](1) })
}

func TestEnqueueDequeueFIFONoLossNoDuplication(t *testing.T) {
	const n = 100_000
	q := New[int](1024)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.Enqueue(i) {
			}
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for len(got) < n {
			if v, ok := q.Dequeue(); ok {
				got = append(got, v)
			}
		}
	}()

	wg.Wait()

	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, i, v, "FIFO order must be preserved")
	}
}

func TestEmptyFullNeverBothTrue(t *testing.T) {
	q := New[int](4)
	require.True(t, q.Empty())
	require.False(t, q.Full())

	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(i))
		require.False(t, q.Empty() && q.Full())
	}
	require.True(t, q.Full())
	require.False(t, q.Enqueue(99), "enqueue on full queue must fail, not block")

	for i := 0; i < 4; i++ {
		_, ok := q.Dequeue()
		require.True(t, ok)
		require.False(t, q.Empty() && q.Full())
	}
	require.True(t, q.Empty())
}
