package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProducerLogDoesNotBlockOnFullQueue(t *testing.T) {
	l, err := New("test", "info")
	require.NoError(t, err)

	p := l.MakeProducer("unit-test")
	for i := 0; i < defaultQueueCapacity*2; i++ {
		p.Info("hot path event")
	}

	require.NoError(t, l.Close())
}
