package orders

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
)

func testStateManager(t *testing.T) *StateManager {
	t.Helper()
	l, err := logging.New("orders-test", "error")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return NewStateManager(l.MakeProducer("test"))
}

const (
	clOrderA uint64 = 100
	clOrderB uint64 = 101
)

// S4 — Cancel-replace happy path.
func TestScenarioS4CancelReplaceHappyPath(t *testing.T) {
	sb := NewSideBook()
	tracker := NewReservedTracker()
	mgr := testStateManager(t)

	p1 := fixedpoint.PriceFromRaw(100000)
	p2 := fixedpoint.PriceFromRaw(101000)
	qty := fixedpoint.QtyFromRaw(50)

	plan := AssignLayer(sb, uint64(p1.Raw), clOrderA, 1)
	layer := plan.Layer
	require.Equal(t, -1, plan.VictimLiveLayer)

	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdPendingNew, ClOrderID: clOrderA, Price: p1}, sb, tracker, 2)
	require.Equal(t, StatePendingNew, sb.Slots[layer].State)

	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdNew, ClOrderID: clOrderA, Side: Buy, Price: p1, LeavesQty: qty}, sb, tracker, 3)
	require.Equal(t, StateLive, sb.Slots[layer].State)
	require.Equal(t, uint64(p1.Raw), sb.Slots[layer].LayerTick)

	replaceLayer := RequestReplace(sb, tracker, Buy, clOrderA, clOrderB, qty)
	require.Equal(t, layer, replaceLayer)
	require.NotNil(t, sb.PendingReplace[layer])
	require.Equal(t, StatePendingCancel, sb.Slots[layer].State)

	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdCanceled, ClOrderID: clOrderA, Side: Buy}, sb, tracker, 4)
	require.Equal(t, StateReserved, sb.Slots[layer].State)
	require.Equal(t, uint64(p1.Raw), sb.Slots[layer].LayerTick, "tick T1 still mapped per spec S4")

	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdNew, ClOrderID: clOrderB, Side: Buy, Price: p2, LeavesQty: qty}, sb, tracker, 5)
	require.Equal(t, StateLive, sb.Slots[layer].State)
	require.Equal(t, uint64(p2.Raw), sb.Slots[layer].LayerTick)
	require.Equal(t, clOrderB, sb.Slots[layer].ClOrderID)
	require.Nil(t, sb.PendingReplace[layer])
	_, stillMapped := sb.NewIDToLayer[clOrderB]
	require.False(t, stillMapped)
}

// S5 — Cancel-replace rejection rollback.
func TestScenarioS5CancelReplaceRejectionRollback(t *testing.T) {
	sb := NewSideBook()
	tracker := NewReservedTracker()
	mgr := testStateManager(t)

	p1 := fixedpoint.PriceFromRaw(100000)
	qty := fixedpoint.QtyFromRaw(50)

	plan := AssignLayer(sb, uint64(p1.Raw), clOrderA, 1)
	layer := plan.Layer
	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdNew, ClOrderID: clOrderA, Side: Buy, Price: p1, LeavesQty: qty}, sb, tracker, 2)

	RequestReplace(sb, tracker, Buy, clOrderA, clOrderB, qty)
	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdCanceled, ClOrderID: clOrderA, Side: Buy}, sb, tracker, 3)
	require.Equal(t, StateReserved, sb.Slots[layer].State)

	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdRejected, ClOrderID: clOrderB, Side: Buy, Price: p1}, sb, tracker, 4)

	slot := sb.Slots[layer]
	require.Equal(t, StateLive, slot.State)
	require.Equal(t, clOrderA, slot.ClOrderID)
	require.Equal(t, p1.Raw, slot.Price.Raw)
	require.Equal(t, qty.Raw, slot.Qty.Raw)
	require.Equal(t, uint64(p1.Raw), slot.LayerTick)
	require.Nil(t, sb.PendingReplace[layer])
}

func TestFilledUnmapsLayerAndReducesReserved(t *testing.T) {
	sb := NewSideBook()
	tracker := NewReservedTracker()
	mgr := testStateManager(t)

	p1 := fixedpoint.PriceFromRaw(5000)
	qty := fixedpoint.QtyFromRaw(10)
	AssignLayer(sb, uint64(p1.Raw), clOrderA, 1)
	tracker.AddReserved(Buy, qty)
	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdNew, ClOrderID: clOrderA, Side: Buy, Price: p1, LeavesQty: qty}, sb, tracker, 2)

	mgr.HandleExecutionReport(ExecutionReport{OrdStatus: OrdFilled, ClOrderID: clOrderA, Side: Buy, Price: p1, LeavesQty: fixedpoint.QtyFromRaw(0)}, sb, tracker, 3)

	layer := FindLayerByID(sb, clOrderA)
	require.Equal(t, StateDead, sb.Slots[layer].State)
	require.Equal(t, TickInvalid, sb.Slots[layer].LayerTick)
	require.Equal(t, int64(0), tracker.Reserved(Buy))
}

// Property test 3 on a hand-built book: with every slot assigned and set
// Live directly (no execution reports), ReservedQty equals the sum over
// non-Dead slots.
func TestPropertyReservedQtyMatchesSlotSum(t *testing.T) {
	sb := NewSideBook()
	qty := fixedpoint.QtyFromRaw(25)
	for i := 0; i < SlotsPerSide; i++ {
		price := fixedpoint.PriceFromRaw(int64(1000 + i))
		AssignLayer(sb, uint64(price.Raw), uint64(200+i), int64(i))
		sb.Slots[i].State = StateLive
		sb.Slots[i].Qty = qty
	}
	require.Equal(t, int64(SlotsPerSide)*qty.Raw, sb.ReservedQty())
}
