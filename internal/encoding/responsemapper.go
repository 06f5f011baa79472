package encoding

import (
	"fmt"

	"github.com/richtraders/hft-core/internal/common"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/orders"
)

// ResponseMapper normalises a WireExecutionReport into the domain
// orders.ExecutionReport orders.StateManager consumes, parsing decimal
// wire fields at the symbol's fixed-point scale.
type ResponseMapper struct {
	priceScale int64
	qtyScale   int64
}

// NewResponseMapper constructs a ResponseMapper at the given fixed-point
// scales.
func NewResponseMapper(priceScale, qtyScale int64) *ResponseMapper {
	return &ResponseMapper{priceScale: priceScale, qtyScale: qtyScale}
}

// Map converts wire into a domain ExecutionReport, or an error if its
// OrdStatus or Side strings aren't recognised.
func (m *ResponseMapper) Map(wire WireExecutionReport) (orders.ExecutionReport, error) {
	status, err := mapOrdStatus(wire.OrdStatus)
	if err != nil {
		return orders.ExecutionReport{}, common.Wrap("encoding", "Map", err)
	}
	side, err := mapSide(wire.Side)
	if err != nil {
		return orders.ExecutionReport{}, common.Wrap("encoding", "Map", err)
	}

	return orders.ExecutionReport{
		OrdStatus: status,
		ClOrderID: wire.ClOrderID,
		Side:      side,
		Price:     fixedpoint.PriceFromRaw(fixedpoint.ParseRaw(wire.Price, m.priceScale)),
		LeavesQty: fixedpoint.QtyFromRaw(fixedpoint.ParseRaw(wire.LeavesQty, m.qtyScale)),
	}, nil
}

func mapOrdStatus(s string) (orders.OrdStatus, error) {
	switch s {
	case "PENDING_NEW":
		return orders.OrdPendingNew, nil
	case "NEW":
		return orders.OrdNew, nil
	case "PARTIALLY_FILLED":
		return orders.OrdPartiallyFilled, nil
	case "FILLED":
		return orders.OrdFilled, nil
	case "PENDING_CANCEL":
		return orders.OrdPendingCancel, nil
	case "CANCELED":
		return orders.OrdCanceled, nil
	case "REJECTED":
		return orders.OrdRejected, nil
	case "EXPIRED":
		return orders.OrdExpired, nil
	default:
		return 0, fmt.Errorf("unrecognised ord status %q", s)
	}
}

func mapSide(s string) (orders.Side, error) {
	switch s {
	case "BUY":
		return orders.Buy, nil
	case "SELL":
		return orders.Sell, nil
	default:
		return 0, fmt.Errorf("unrecognised side %q", s)
	}
}
