package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFIFO(t *testing.T) {
	rb := New(256)

	require.True(t, rb.WriteVar(1, 1, []byte("hello")))
	require.True(t, rb.WriteVar(2, 3, []byte("world!!")))

	var got []string
	var types []uint16
	n := rb.Read(func(msgType uint16, count uint16, body []byte) {
		types = append(types, msgType)
		got = append(got, string(body))
	})

	require.Equal(t, 2, n)
	require.Equal(t, []string{"hello", "world!!"}, got)
	require.Equal(t, []uint16{1, 2}, types)
	require.True(t, rb.Empty())
}

func TestOverflowReturnsFalse(t *testing.T) {
	rb := New(64)
	ok := true
	count := 0
	for ok {
		ok = rb.WriteVar(1, 1, []byte("0123456789abcdef"))
		if ok {
			count++
		}
	}
	require.Greater(t, count, 0)

	// Draining frees space for another write.
	rb.Read(func(uint16, uint16, []byte) {})
	require.True(t, rb.WriteVar(1, 1, []byte("0123456789abcdef")))
}

func TestWraparoundTransparentToReader(t *testing.T) {
	rb := New(128)

	for i := 0; i < 6; i++ {
		require.True(t, rb.WriteVar(uint16(i), 1, []byte("abcdefgh")))
	}
	rb.Read(func(uint16, uint16, []byte) {})

	// This write should straddle the physical end of the buffer and force a
	// wrap record; the reader must still see it as one contiguous frame.
	payload := []byte("0123456789012345678901234567890123456789")
	require.True(t, rb.WriteVar(42, 1, payload))

	var got []byte
	var sawType uint16
	n := rb.Read(func(msgType uint16, count uint16, body []byte) {
		sawType = msgType
		got = append([]byte{}, body...)
	})
	require.Equal(t, 1, n)
	require.Equal(t, uint16(42), sawType)
	require.Equal(t, payload, got)
}
