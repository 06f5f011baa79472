package orders

import "github.com/richtraders/hft-core/internal/fixedpoint"

// ReservedTracker is a dedicated per-side signed accumulator the risk gate
// reads, distinct from SideBook.ReservedQty (which is derived on demand by
// walking slots — ReservedTracker is updated incrementally on the hot path
// instead, per spec.md's supplemented reserved-position-tracker feature).
// Grounded on original_source/hft/src/reserved_position_tracker.h.
type ReservedTracker struct {
	reservedBuy  int64
	reservedSell int64
}

// NewReservedTracker constructs a zeroed tracker.
func NewReservedTracker() *ReservedTracker { return &ReservedTracker{} }

// AddReserved increments the reserved accumulator for side by qty.
func (t *ReservedTracker) AddReserved(side Side, qty fixedpoint.Qty) {
	t.adjust(side, qty.Raw)
}

// RemoveReserved decrements the reserved accumulator for side by qty.
func (t *ReservedTracker) RemoveReserved(side Side, qty fixedpoint.Qty) {
	t.adjust(side, -qty.Raw)
}

// RemovePartialFill is RemoveReserved under a distinct name, matching the
// source's separate call site for partial fills (same accounting effect).
func (t *ReservedTracker) RemovePartialFill(side Side, filledQty fixedpoint.Qty) {
	t.RemoveReserved(side, filledQty)
}

func (t *ReservedTracker) adjust(side Side, signedQty int64) {
	if side == Buy {
		t.reservedBuy += signedQty
	} else {
		t.reservedSell += signedQty
	}
}

// Reserved returns the current reserved quantity for side.
func (t *ReservedTracker) Reserved(side Side) int64 {
	if side == Buy {
		return t.reservedBuy
	}
	return t.reservedSell
}

// Reset zeroes both sides. No code in this module calls it; the
// reconnect handlers in cmd/engine leave the tracker as it is.
func (t *ReservedTracker) Reset() {
	t.reservedBuy = 0
	t.reservedSell = 0
}
