// Package ringbuffer implements the variable-length framed byte ring used
// for multi-entry market-data records: a single power-of-two byte buffer
// addressed by monotonic producer/consumer indices, with each frame carrying
// a (type, count, length) header. Grounded on
// common/var_length_ring_buffer.hpp and common/market_data_ring_buffer.hpp.
package ringbuffer

import (
	"encoding/binary"
	"sync/atomic"
)

const (
	headerSize = 8 // u16 type, u16 count, u32 length
	alignment  = 8

	// wrapSentinel marks a header written at the tail of the buffer when a
	// frame doesn't fit before the physical end; the reader skips to offset
	// 0 on seeing it. Encoded as a length field value that can't occur for a
	// real frame (length is always < buffer size).
	wrapSentinel = 0xFFFFFFFF
)

// RingBuffer is a single-producer/single-consumer variable-length framed
// byte ring. Capacity must be a power of two.
type RingBuffer struct {
	buf  []byte
	mask uint64

	producerIdx atomic.Uint64 // published after each full frame write
	consumerIdx atomic.Uint64
}

// New constructs a RingBuffer with the given power-of-two byte capacity.
func New(capacity int) *RingBuffer {
	if capacity < 64 || capacity&(capacity-1) != 0 {
		panic("ringbuffer: capacity must be a power of two >= 64")
	}
	return &RingBuffer{
		buf:  make([]byte, capacity),
		mask: uint64(capacity - 1),
	}
}

func align8(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

// WriteVar writes one framed record atomically: either the whole frame is
// written and published via a release store of the producer index, or
// nothing is written and false is returned. body is the raw body to store
// after the header.
func (r *RingBuffer) WriteVar(msgType uint16, count uint16, body []byte) bool {
	bodyLen := align8(len(body))
	frameLen := headerSize + bodyLen

	producer := r.producerIdx.Load()
	consumer := r.consumerIdx.Load()
	used := producer - consumer
	capacity := uint64(len(r.buf))

	// Account for a possible wrap-sentinel header before the real frame.
	producerOff := int(producer & r.mask)
	spaceToEnd := len(r.buf) - producerOff
	needsWrap := spaceToEnd < frameLen
	totalNeeded := uint64(frameLen)
	if needsWrap {
		totalNeeded += uint64(spaceToEnd)
	}

	if used+totalNeeded > capacity {
		return false
	}

	if needsWrap {
		r.writeWrapSentinel(producerOff)
		producer += uint64(spaceToEnd)
		producerOff = 0
	}

	r.writeHeader(producerOff, msgType, count, uint32(len(body)))
	copy(r.buf[producerOff+headerSize:], body)

	r.producerIdx.Store(producer + uint64(frameLen))
	return true
}

func (r *RingBuffer) writeWrapSentinel(off int) {
	binary.LittleEndian.PutUint16(r.buf[off:], 0)
	binary.LittleEndian.PutUint16(r.buf[off+2:], 0)
	binary.LittleEndian.PutUint32(r.buf[off+4:], wrapSentinel)
}

func (r *RingBuffer) writeHeader(off int, msgType, count uint16, length uint32) {
	binary.LittleEndian.PutUint16(r.buf[off:], msgType)
	binary.LittleEndian.PutUint16(r.buf[off+2:], count)
	binary.LittleEndian.PutUint32(r.buf[off+4:], length)
}

// Handler receives one decoded frame: its type tag, entry count, and body.
type Handler func(msgType uint16, count uint16, body []byte)

// Read drains every fully-published frame currently available, delivering
// them to handler in FIFO order, and returns the number of frames read.
// Torn frames are impossible by construction: there is one producer and the
// producer index is only advanced after the full frame (header + body) has
// been written.
func (r *RingBuffer) Read(handler Handler) int {
	consumer := r.consumerIdx.Load()
	producer := r.producerIdx.Load()

	n := 0
	for consumer != producer {
		off := int(consumer & r.mask)
		length := binary.LittleEndian.Uint32(r.buf[off+4:])
		if length == wrapSentinel {
			spaceToEnd := len(r.buf) - off
			consumer += uint64(spaceToEnd)
			continue
		}
		msgType := binary.LittleEndian.Uint16(r.buf[off:])
		count := binary.LittleEndian.Uint16(r.buf[off+2:])
		body := r.buf[off+headerSize : off+headerSize+int(length)]
		handler(msgType, count, body)

		frameLen := headerSize + align8(int(length))
		consumer += uint64(frameLen)
		n++
	}
	r.consumerIdx.Store(consumer)
	return n
}

// Empty reports whether the buffer currently has no published frames.
func (r *RingBuffer) Empty() bool {
	return r.producerIdx.Load() == r.consumerIdx.Load()
}
