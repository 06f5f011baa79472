// Package orders implements the layer book and order-state manager: the
// 8-slot-per-side quote-ownership table and the execution-report state
// machine that reconciles it with asynchronous exchange acknowledgements.
// Grounded on original_source/hft/src/layer_book.h and
// order_state_manager.{h,cpp}.
package orders

import "github.com/richtraders/hft-core/internal/fixedpoint"

// Side is the side a layer book slot belongs to.
type Side uint8

const (
	Buy Side = iota
	Sell
)

// SlotsPerSide is the fixed number of quote-ownership slots per side,
// matching the source's kSlotsPerSide.
const SlotsPerSide = 8

// TickInvalid marks a slot as not currently mapped to any price tick.
const TickInvalid = ^uint64(0)

// SlotState is the lifecycle state of one layer-book slot, per spec.md §3.5.
type SlotState uint8

const (
	StateInvalid SlotState = iota
	StatePendingNew
	StateLive
	StatePendingCancel
	StateReserved
	StateDead
)

func (s SlotState) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StatePendingNew:
		return "pending_new"
	case StateLive:
		return "live"
	case StatePendingCancel:
		return "pending_cancel"
	case StateReserved:
		return "reserved"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Slot owns at most one live exchange order. LayerTick is the price tick
// this slot is currently mapped to, or TickInvalid when unmapped.
type Slot struct {
	State      SlotState
	Price      fixedpoint.Price
	Qty        fixedpoint.Qty
	ClOrderID  uint64
	LastUsedNs int64
	LayerTick  uint64
}

// PendingReplace holds the rollback state for an in-flight cancel-replace,
// keyed by layer. Present only while the new-leg order hasn't yet been
// acknowledged (New) or rejected (Rejected/Expired).
type PendingReplace struct {
	OriginalPrice     fixedpoint.Price
	OriginalQty       fixedpoint.Qty
	OriginalTick      uint64
	OriginalClOrderID uint64
	NewQty            fixedpoint.Qty
}

// SideBook is the 8-slot table for one (ticker, side).
type SideBook struct {
	Slots          [SlotsPerSide]Slot
	NewIDToLayer   map[uint64]int
	OrigIDToLayer  map[uint64]int
	PendingReplace [SlotsPerSide]*PendingReplace
}

// NewSideBook constructs an empty SideBook with every slot unmapped.
func NewSideBook() *SideBook {
	sb := &SideBook{
		NewIDToLayer:  make(map[uint64]int),
		OrigIDToLayer: make(map[uint64]int),
	}
	for i := range sb.Slots {
		sb.Slots[i].LayerTick = TickInvalid
	}
	return sb
}

// ReservedQty sums the effective qty of every non-Dead slot plus any
// pending-replace delta, the invariant spec.md §8 property 3 checks.
func (sb *SideBook) ReservedQty() int64 {
	var total int64
	for i := range sb.Slots {
		slot := &sb.Slots[i]
		switch slot.State {
		case StatePendingNew, StateLive, StatePendingCancel, StateReserved:
			total += slot.Qty.Raw
		}
		if pend := sb.PendingReplace[i]; pend != nil {
			total += pend.NewQty.Raw - pend.OriginalQty.Raw
		}
	}
	return total
}

// LayerBook holds one SideBook per (ticker, side), created lazily.
type LayerBook struct {
	books map[string][2]*SideBook
}

// New constructs an empty LayerBook.
func New() *LayerBook {
	return &LayerBook{books: make(map[string][2]*SideBook)}
}

// SideBookFor returns (creating if necessary) the SideBook for (ticker, side).
func (lb *LayerBook) SideBookFor(ticker string, side Side) *SideBook {
	pair, ok := lb.books[ticker]
	if !ok {
		pair = [2]*SideBook{NewSideBook(), NewSideBook()}
		lb.books[ticker] = pair
	}
	return pair[side]
}
