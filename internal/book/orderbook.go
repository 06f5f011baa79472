package book

import (
	"fmt"
	"math/bits"

	"github.com/richtraders/hft-core/internal/common"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/pool"
)

// Config maps scaled-int prices to dense grid indices. Tick is the number of
// grid slots per unit of raw price (e.g. a raw price in hundredths of a cent
// with a 1-tick grid uses Tick=1).
type Config struct {
	MinPriceRaw int64
	MaxPriceRaw int64
	Tick        int64
}

func (c Config) numLevels() int {
	return int(c.MaxPriceRaw-c.MinPriceRaw) + 1
}

func (c Config) bucketCount() int {
	n := c.numLevels()
	return (n + BucketSize - 1) / BucketSize
}

func (c Config) summaryWords() int {
	n := c.bucketCount()
	return (n + bitsPerWord - 1) / bitsPerWord
}

// PriceToIdx returns the grid index for priceRaw, and false if out of range.
func (c Config) PriceToIdx(priceRaw int64) (int, bool) {
	if priceRaw < c.MinPriceRaw || priceRaw > c.MaxPriceRaw {
		return 0, false
	}
	return int(priceRaw - c.MinPriceRaw), true
}

// IdxToPrice returns the scaled price at idx.
func (c Config) IdxToPrice(idx int) fixedpoint.Price {
	return fixedpoint.PriceFromRaw(c.MinPriceRaw + int64(idx))
}

func bucketOf(idx int) int { return idx / BucketSize }
func offsetOf(idx int) int { return idx & (BucketSize - 1) }

// Book is a dense, bitmap-indexed limit order book for one symbol. Only the
// book consumer goroutine may call ApplyUpdate. ApplyUpdate writes the BBO
// price and qty fields one at a time with no lock or atomic, so BBO() gives
// a consistent copy only on that same goroutine; a read from another
// goroutine is unsynchronised and may see a partially updated BBO.
type Book struct {
	cfg Config

	bidBuckets []*bucket
	askBuckets []*bucket
	bidPool    *pool.Pool[bucket]
	askPool    *pool.Pool[bucket]

	bidSummary []uint64
	askSummary []uint64

	bbo BBO
	log logging.Producer
}

// New constructs a Book for the given price range.
func New(cfg Config, log logging.Producer) *Book {
	bc := cfg.bucketCount()
	return &Book{
		cfg:        cfg,
		bidBuckets: make([]*bucket, bc),
		askBuckets: make([]*bucket, bc),
		bidPool:    pool.New[bucket](bc),
		askPool:    pool.New[bucket](bc),
		bidSummary: make([]uint64, cfg.summaryWords()),
		askSummary: make([]uint64, cfg.summaryWords()),
		bbo: BBO{
			BidPrice: fixedpoint.InvalidPrice,
			AskPrice: fixedpoint.InvalidPrice,
			BidQty:   fixedpoint.InvalidQty,
			AskQty:   fixedpoint.InvalidQty,
		},
		log: log,
	}
}

// BBO returns the current best bid/offer.
func (b *Book) BBO() BBO { return b.bbo }

func (b *Book) bucketsFor(side Side) []*bucket {
	if side == Bid {
		return b.bidBuckets
	}
	return b.askBuckets
}

func (b *Book) poolFor(side Side) *pool.Pool[bucket] {
	if side == Bid {
		return b.bidPool
	}
	return b.askPool
}

func (b *Book) summaryFor(side Side) []uint64 {
	if side == Bid {
		return b.bidSummary
	}
	return b.askSummary
}

func (b *Book) bucketAt(side Side, bidx int, create bool) *bucket {
	buckets := b.bucketsFor(side)
	if buckets[bidx] != nil {
		return buckets[bidx]
	}
	if !create {
		return nil
	}
	bk, ok := b.poolFor(side).Get()
	if !ok {
		b.log.Error("book: bucket pool exhausted")
		return nil
	}
	buckets[bidx] = bk
	return bk
}

func (b *Book) setSummaryBit(side Side, bidx int) {
	summary := b.summaryFor(side)
	summary[bidx>>wordShift] |= 1 << uint(bidx&wordMask)
}

func (b *Book) clearSummaryBit(side Side, bidx int) {
	summary := b.summaryFor(side)
	summary[bidx>>wordShift] &^= 1 << uint(bidx&wordMask)
}

// ApplyUpdate dispatches u to the book. See spec §4.4 for the exact
// per-type contract.
func (b *Book) ApplyUpdate(u Update) error {
	switch u.Type {
	case Add, Modify:
		return b.applySet(u.Side, u.PriceRaw, u.Qty)
	case Cancel:
		return b.applyCancel(u.Side, u.PriceRaw)
	case Trade:
		return b.applyTrade(u.Side, u.PriceRaw, u.Qty)
	case SnapshotClear:
		b.clearSide(Bid)
		b.clearSide(Ask)
		return nil
	default:
		return common.Wrap("book", "ApplyUpdate", fmt.Errorf("unknown update type %d", u.Type))
	}
}

func (b *Book) applySet(side Side, priceRaw int64, qty fixedpoint.Qty) error {
	idx, ok := b.cfg.PriceToIdx(priceRaw)
	if !ok {
		return common.Wrap("book", "applySet", fmt.Errorf("price %d out of range [%d,%d]", priceRaw, b.cfg.MinPriceRaw, b.cfg.MaxPriceRaw))
	}
	bidx := bucketOf(idx)
	off := offsetOf(idx)

	bk := b.bucketAt(side, bidx, true)
	if bk == nil {
		return common.Wrap("book", "applySet", fmt.Errorf("bucket pool exhausted for side %d bucket %d", side, bidx))
	}

	bk.qty[off] = qty.Raw
	bk.bitmap[off>>wordShift] |= 1 << uint(off&wordMask)
	b.setSummaryBit(side, bidx)

	b.maybeUpdateBBOOnSet(side, idx, qty)
	return nil
}

func (b *Book) applyCancel(side Side, priceRaw int64) error {
	idx, ok := b.cfg.PriceToIdx(priceRaw)
	if !ok {
		return common.Wrap("book", "applyCancel", fmt.Errorf("price %d out of range", priceRaw))
	}
	bidx := bucketOf(idx)
	off := offsetOf(idx)

	bk := b.bucketAt(side, bidx, false)
	if bk == nil || bk.qty[off] == 0 {
		b.log.Warn("book: cancel on inactive level")
		return nil
	}

	wasBest := b.isBestIdx(side, idx)
	bk.qty[off] = 0
	bk.bitmap[off>>wordShift] &^= 1 << uint(off&wordMask)
	if bk.empty() {
		b.clearSummaryBit(side, bidx)
	}

	if wasBest {
		b.rescanBest(side)
	}
	return nil
}

func (b *Book) applyTrade(side Side, priceRaw int64, filled fixedpoint.Qty) error {
	idx, ok := b.cfg.PriceToIdx(priceRaw)
	if !ok {
		return common.Wrap("book", "applyTrade", fmt.Errorf("price %d out of range", priceRaw))
	}
	bidx := bucketOf(idx)
	off := offsetOf(idx)

	bk := b.bucketAt(side, bidx, false)
	if bk == nil {
		return nil
	}

	remaining := fixedpoint.QtyFromRaw(bk.qty[off]).Sub(filled)
	bk.qty[off] = remaining.Raw

	wasBest := b.isBestIdx(side, idx)
	if remaining.Raw <= 0 {
		bk.bitmap[off>>wordShift] &^= 1 << uint(off&wordMask)
		if bk.empty() {
			b.clearSummaryBit(side, bidx)
		}
	}
	if wasBest {
		b.rescanBest(side)
	} else if b.isBestIdx(side, idx) {
		b.setBBOFromIdx(side, idx)
	}
	return nil
}

func (b *Book) clearSide(side Side) {
	buckets := b.bucketsFor(side)
	for i := range buckets {
		if buckets[i] != nil {
			*buckets[i] = bucket{}
		}
	}
	summary := b.summaryFor(side)
	for i := range summary {
		summary[i] = 0
	}
	if side == Bid {
		b.bbo.BidPrice = fixedpoint.InvalidPrice
		b.bbo.BidQty = fixedpoint.InvalidQty
	} else {
		b.bbo.AskPrice = fixedpoint.InvalidPrice
		b.bbo.AskQty = fixedpoint.InvalidQty
	}
}

func (b *Book) isBestIdx(side Side, idx int) bool {
	price := b.cfg.IdxToPrice(idx)
	if side == Bid {
		return b.bbo.BidPrice.IsValid() && b.bbo.BidPrice.Raw == price.Raw
	}
	return b.bbo.AskPrice.IsValid() && b.bbo.AskPrice.Raw == price.Raw
}

func (b *Book) setBBOFromIdx(side Side, idx int) {
	bidx := bucketOf(idx)
	off := offsetOf(idx)
	bk := b.bucketAt(side, bidx, false)
	qty := fixedpoint.InvalidQty
	if bk != nil {
		qty = fixedpoint.QtyFromRaw(bk.qty[off])
	}
	price := b.cfg.IdxToPrice(idx)
	if side == Bid {
		b.bbo.BidPrice, b.bbo.BidQty = price, qty
	} else {
		b.bbo.AskPrice, b.bbo.AskQty = price, qty
	}
}

// maybeUpdateBBOOnSet updates BBO if idx equals-or-improves the current best
// for side, per spec §4.4.
func (b *Book) maybeUpdateBBOOnSet(side Side, idx int, qty fixedpoint.Qty) {
	price := b.cfg.IdxToPrice(idx)
	if side == Bid {
		if !b.bbo.BidPrice.IsValid() || price.Raw >= b.bbo.BidPrice.Raw {
			b.bbo.BidPrice, b.bbo.BidQty = price, qty
		}
		return
	}
	if !b.bbo.AskPrice.IsValid() || price.Raw <= b.bbo.AskPrice.Raw {
		b.bbo.AskPrice, b.bbo.AskQty = price, qty
	}
}

// rescanBest walks summary→bucket→word to find the new best active index
// for side after the previous best was cleared.
func (b *Book) rescanBest(side Side) {
	summary := b.summaryFor(side)
	buckets := b.bucketsFor(side)

	var bidx int
	found := false
	if side == Bid {
		for i := len(summary) - 1; i >= 0 && !found; i-- {
			if summary[i] == 0 {
				continue
			}
			bit := bitsPerWord - 1 - bits.LeadingZeros64(summary[i])
			bidx = i<<wordShift + bit
			found = true
		}
	} else {
		for i := 0; i < len(summary) && !found; i++ {
			if summary[i] == 0 {
				continue
			}
			bit := bits.TrailingZeros64(summary[i])
			bidx = i<<wordShift + bit
			found = true
		}
	}

	if !found {
		if side == Bid {
			b.bbo.BidPrice, b.bbo.BidQty = fixedpoint.InvalidPrice, fixedpoint.InvalidQty
		} else {
			b.bbo.AskPrice, b.bbo.AskQty = fixedpoint.InvalidPrice, fixedpoint.InvalidQty
		}
		return
	}

	bk := buckets[bidx]
	off := findInBucket(bk, side == Bid)
	idx := bidx*BucketSize + off
	b.setBBOFromIdx(side, idx)
}

func findInBucket(bk *bucket, highest bool) int {
	if highest {
		for i := bucketWords - 1; i >= 0; i-- {
			if bk.bitmap[i] == 0 {
				continue
			}
			bit := bitsPerWord - 1 - bits.LeadingZeros64(bk.bitmap[i])
			return i<<wordShift + bit
		}
		return -1
	}
	for i := 0; i < bucketWords; i++ {
		if bk.bitmap[i] == 0 {
			continue
		}
		bit := bits.TrailingZeros64(bk.bitmap[i])
		return i<<wordShift + bit
	}
	return -1
}

// PeekQty walks the bitmap tree in the direction of improving prices
// (bids: high→low, asks: low→high), emitting up to N active levels.
func (b *Book) PeekQty(side Side, n int) []Level {
	out := make([]Level, 0, n)
	summary := b.summaryFor(side)
	buckets := b.bucketsFor(side)

	visit := func(bidx int) bool {
		bk := buckets[bidx]
		if bk == nil {
			return false
		}
		return b.drainBucket(bk, bidx, side == Bid, &out, n)
	}

	if side == Bid {
		for i := len(summary) - 1; i >= 0 && len(out) < n; i-- {
			word := summary[i]
			for word != 0 {
				bit := bitsPerWord - 1 - bits.LeadingZeros64(word)
				bidx := i<<wordShift + bit
				if visit(bidx) {
					return out
				}
				word &^= 1 << uint(bit)
			}
		}
		return out
	}

	for i := 0; i < len(summary) && len(out) < n; i++ {
		word := summary[i]
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			bidx := i<<wordShift + bit
			if visit(bidx) {
				return out
			}
			word &^= 1 << uint(bit)
		}
	}
	return out
}

func (b *Book) drainBucket(bk *bucket, bidx int, highest bool, out *[]Level, want int) bool {
	appendIdx := func(off int) {
		idx := bidx*BucketSize + off
		*out = append(*out, Level{
			Idx:   idx,
			Price: b.cfg.IdxToPrice(idx),
			Qty:   fixedpoint.QtyFromRaw(bk.qty[off]),
		})
	}

	if highest {
		for i := bucketWords - 1; i >= 0 && len(*out) < want; i-- {
			word := bk.bitmap[i]
			for word != 0 {
				bit := bitsPerWord - 1 - bits.LeadingZeros64(word)
				appendIdx(i<<wordShift + bit)
				word &^= 1 << uint(bit)
				if len(*out) >= want {
					return true
				}
			}
		}
		return len(*out) >= want
	}

	for i := 0; i < bucketWords && len(*out) < want; i++ {
		word := bk.bitmap[i]
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			appendIdx(i<<wordShift + bit)
			word &^= 1 << uint(bit)
			if len(*out) >= want {
				return true
			}
		}
	}
	return len(*out) >= want
}
