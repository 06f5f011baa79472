// Package book implements the dense, bitmap-indexed limit order book: two
// parallel price grids (bid/ask), subdivided into fixed-size buckets each
// carrying a 64-bit-word bitmap over active offsets, plus a per-side summary
// bitmap over buckets. Grounded on original_source/hft/src/order_book.h for
// the bucket/summary/bitmap layout (the .cpp's get_bbo, which rescans on
// every call, is NOT followed — this implementation maintains BBO
// incrementally per spec.md's O(1) requirement).
package book

import "github.com/richtraders/hft-core/internal/fixedpoint"

const (
	// BucketSize is the number of price levels per bucket.
	BucketSize = 4096
	bitsPerWord = 64
	wordShift   = 6
	wordMask    = bitsPerWord - 1
	bucketWords = (BucketSize + bitsPerWord - 1) / bitsPerWord
)

// UpdateType distinguishes the entry kinds on_market_data_update dispatches
// on.
type UpdateType uint8

const (
	Add UpdateType = iota
	Modify
	Cancel
	Trade
	SnapshotClear
)

// Side is Bid or Ask.
type Side uint8

const (
	Bid Side = iota
	Ask
)

// Update is a single book-side event applied to the book.
type Update struct {
	Type UpdateType
	Side Side
	// PriceRaw is the scaled price used to compute the level index; present
	// on Add/Modify/Cancel/Trade and ignored by SnapshotClear.
	PriceRaw int64
	Qty      fixedpoint.Qty
}

// BBO is a by-value copy of the current best bid/offer returned by
// Book.BBO(). Only the book consumer goroutine mutates the book; the copy is
// not synchronised against those writes.
type BBO struct {
	BidPrice fixedpoint.Price
	AskPrice fixedpoint.Price
	BidQty   fixedpoint.Qty
	AskQty   fixedpoint.Qty
}

// Level is one active price level surfaced by PeekQty.
type Level struct {
	Idx      int
	Price    fixedpoint.Price
	Qty      fixedpoint.Qty
}

type bucket struct {
	qty    [BucketSize]int64 // raw qty; 0 means inactive regardless of bitmap
	bitmap [bucketWords]uint64
}

func (b *bucket) empty() bool {
	for _, w := range b.bitmap {
		if w != 0 {
			return false
		}
	}
	return true
}
