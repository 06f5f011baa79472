package orders

import (
	"go.uber.org/zap"

	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
)

// OrdStatus mirrors the exchange execution-report status the state manager
// dispatches on, per spec.md §4.6's table.
type OrdStatus uint8

const (
	OrdPendingNew OrdStatus = iota
	OrdNew
	OrdPartiallyFilled
	OrdFilled
	OrdPendingCancel
	OrdCanceled
	OrdRejected
	OrdExpired
)

func (s OrdStatus) String() string {
	switch s {
	case OrdPendingNew:
		return "pending_new"
	case OrdNew:
		return "new"
	case OrdPartiallyFilled:
		return "partially_filled"
	case OrdFilled:
		return "filled"
	case OrdPendingCancel:
		return "pending_cancel"
	case OrdCanceled:
		return "canceled"
	case OrdRejected:
		return "rejected"
	case OrdExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ExecutionReport is the domain-normalised execution report the order-entry
// response mapper (internal/encoding) produces from the wire response, and
// the StateManager consumes.
type ExecutionReport struct {
	OrdStatus OrdStatus
	ClOrderID uint64
	Side      Side
	Price     fixedpoint.Price
	LeavesQty fixedpoint.Qty
}

// StateManager consumes exchange execution reports and reconciles them
// against a SideBook and ReservedTracker, per spec.md §4.6.
type StateManager struct {
	log logging.Producer
}

// NewStateManager constructs a StateManager logging through log.
func NewStateManager(log logging.Producer) *StateManager {
	return &StateManager{log: log}
}

// HandleExecutionReport dispatches report to the handler matching its
// OrdStatus. now is a monotonic nanosecond clock reading used to refresh
// LRU timestamps on state transitions that keep a slot live.
func (m *StateManager) HandleExecutionReport(report ExecutionReport, sb *SideBook, tracker *ReservedTracker, now int64) {
	switch report.OrdStatus {
	case OrdPendingNew:
		m.handlePendingNew(report, sb)
	case OrdNew:
		m.handleNew(report, sb)
	case OrdPartiallyFilled:
		m.handlePartiallyFilled(report, sb, tracker, now)
	case OrdFilled:
		m.handleFilled(report, sb, tracker)
	case OrdPendingCancel:
		m.handlePendingCancel(report, sb)
	case OrdCanceled:
		m.handleCanceled(report, sb, tracker)
	case OrdRejected, OrdExpired:
		m.handleRejectedOrExpired(report, sb, tracker)
	default:
		m.log.Error("orders: unknown ord status", zap.Uint8("ord_status", uint8(report.OrdStatus)))
	}
}

// findLayer locates a slot by ClOrderID first, falling back to the tick
// implied by report.Price — matching order_state_manager.cpp's find_layer.
func (m *StateManager) findLayer(sb *SideBook, clOrderID uint64, price fixedpoint.Price) int {
	if layer := FindLayerByID(sb, clOrderID); layer >= 0 {
		return layer
	}
	return FindLayerByTick(sb, uint64(price.Raw))
}

func (m *StateManager) stateInconsistency(op string, report ExecutionReport) {
	m.log.Error("orders: state inconsistency, layer not found",
		zap.String("op", op), zap.Uint64("cl_order_id", report.ClOrderID))
}

func (m *StateManager) handlePendingNew(report ExecutionReport, sb *SideBook) {
	layer := m.findLayer(sb, report.ClOrderID, report.Price)
	if layer < 0 {
		m.stateInconsistency("pending_new", report)
		return
	}
	sb.Slots[layer].State = StatePendingNew
}

func (m *StateManager) handleNew(report ExecutionReport, sb *SideBook) {
	layer, isReplaceLeg := sb.NewIDToLayer[report.ClOrderID]
	if !isReplaceLeg {
		layer = m.findLayer(sb, report.ClOrderID, report.Price)
	}
	if layer < 0 {
		m.stateInconsistency("new", report)
		return
	}

	slot := &sb.Slots[layer]
	if pend := sb.PendingReplace[layer]; pend != nil {
		slot.LayerTick = uint64(report.Price.Raw)
		slot.Price = report.Price
		slot.Qty = report.LeavesQty
		slot.ClOrderID = report.ClOrderID
		slot.State = StateLive
		sb.PendingReplace[layer] = nil
		delete(sb.NewIDToLayer, report.ClOrderID)
		return
	}

	slot.LayerTick = uint64(report.Price.Raw)
	slot.Price = report.Price
	slot.Qty = report.LeavesQty
	slot.ClOrderID = report.ClOrderID
	slot.State = StateLive
}

func (m *StateManager) handlePartiallyFilled(report ExecutionReport, sb *SideBook, tracker *ReservedTracker, now int64) {
	layer := m.findLayer(sb, report.ClOrderID, report.Price)
	if layer < 0 {
		m.stateInconsistency("partially_filled", report)
		return
	}
	slot := &sb.Slots[layer]
	filled := slot.Qty.Sub(report.LeavesQty)
	tracker.RemovePartialFill(report.Side, filled)
	slot.Qty = report.LeavesQty
	if report.LeavesQty.Raw <= 0 {
		slot.State = StateDead
		unmapLayer(sb, layer)
		return
	}
	slot.State = StateLive
	slot.LastUsedNs = now
}

func (m *StateManager) handleFilled(report ExecutionReport, sb *SideBook, tracker *ReservedTracker) {
	layer := m.findLayer(sb, report.ClOrderID, report.Price)
	if layer < 0 {
		m.stateInconsistency("filled", report)
		return
	}
	slot := &sb.Slots[layer]
	tracker.RemoveReserved(report.Side, slot.Qty)
	slot.Qty = report.LeavesQty
	slot.State = StateDead
	unmapLayer(sb, layer)
}

func (m *StateManager) handlePendingCancel(report ExecutionReport, sb *SideBook) {
	layer := m.findLayer(sb, report.ClOrderID, report.Price)
	if layer < 0 {
		m.stateInconsistency("pending_cancel", report)
		return
	}
	sb.Slots[layer].State = StatePendingCancel
}

func (m *StateManager) handleCanceled(report ExecutionReport, sb *SideBook, tracker *ReservedTracker) {
	if layer, ok := sb.OrigIDToLayer[report.ClOrderID]; ok {
		delete(sb.OrigIDToLayer, report.ClOrderID)
		sb.Slots[layer].State = StateReserved
		return
	}

	layer := m.findLayer(sb, report.ClOrderID, report.Price)
	if layer < 0 {
		m.stateInconsistency("canceled", report)
		return
	}
	slot := &sb.Slots[layer]
	tracker.RemoveReserved(report.Side, slot.Qty)
	slot.State = StateDead
	unmapLayer(sb, layer)
}

// handleRejectedOrExpired is the single most subtle transition: a rejected
// or expired new-leg of a pending replace must restore the slot to its
// saved original state exactly and roll back the reserved-qty delta the
// replace had optimistically applied (spec.md §4.6, S5).
func (m *StateManager) handleRejectedOrExpired(report ExecutionReport, sb *SideBook, tracker *ReservedTracker) {
	layer, isReplaceLeg := sb.NewIDToLayer[report.ClOrderID]
	var pend *PendingReplace
	if isReplaceLeg {
		pend = sb.PendingReplace[layer]
	}

	if pend == nil {
		layer = m.findLayer(sb, report.ClOrderID, report.Price)
		if layer < 0 {
			m.stateInconsistency(report.OrdStatus.String(), report)
			return
		}
		slot := &sb.Slots[layer]
		tracker.RemoveReserved(report.Side, slot.Qty)
		slot.State = StateDead
		unmapLayer(sb, layer)
		return
	}

	delta := pend.NewQty.Raw - pend.OriginalQty.Raw
	tracker.RemoveReserved(report.Side, fixedpoint.QtyFromRaw(delta))

	sb.PendingReplace[layer] = nil
	delete(sb.NewIDToLayer, report.ClOrderID)
	delete(sb.OrigIDToLayer, pend.OriginalClOrderID)

	slot := &sb.Slots[layer]
	slot.State = StateLive
	slot.Price = pend.OriginalPrice
	slot.ClOrderID = pend.OriginalClOrderID
	slot.Qty = pend.OriginalQty
	slot.LayerTick = pend.OriginalTick
}

// RequestReplace initiates a cancel-replace for the live order occupying
// origClOrderID's slot: it stashes the slot's current state as the
// rollback target, maps both the orig- and new- client order ids for the
// state manager to recognise the in-flight legs, and optimistically
// applies the reserved-qty delta between newQty and the slot's current qty
// (rolled back on Rejected/Expired, confirmed implicitly on New). Returns
// the layer index, or -1 if no slot holds origClOrderID (the slot's state
// is not checked).
func RequestReplace(sb *SideBook, tracker *ReservedTracker, side Side, origClOrderID, newClOrderID uint64, newQty fixedpoint.Qty) int {
	layer := FindLayerByID(sb, origClOrderID)
	if layer < 0 {
		return -1
	}
	slot := &sb.Slots[layer]

	sb.PendingReplace[layer] = &PendingReplace{
		OriginalPrice:     slot.Price,
		OriginalQty:       slot.Qty,
		OriginalTick:      slot.LayerTick,
		OriginalClOrderID: slot.ClOrderID,
		NewQty:            newQty,
	}
	sb.OrigIDToLayer[origClOrderID] = layer
	sb.NewIDToLayer[newClOrderID] = layer

	delta := newQty.Raw - slot.Qty.Raw
	tracker.AddReserved(side, fixedpoint.QtyFromRaw(delta))
	slot.State = StatePendingCancel
	return layer
}
