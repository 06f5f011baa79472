// Package encoding implements the order-entry request encoder and execution
// report response mapper: the boundary between the domain's fixed-point
// Price/Qty and the exchange-visible wire representation. Grounded on
// original_source/hft/src/order_gateway.{h,cpp} for the encode/decode
// contract and NewOroFix44/order_id.h for the client-order-id shape.
package encoding

import (
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/orders"
)

// OrdType mirrors the exchange-visible order type a NewOrderRequest carries.
type OrdType uint8

const (
	OrdTypeLimit OrdType = iota
	OrdTypeMarketIOC
)

// TimeInForce mirrors the exchange-visible time-in-force.
type TimeInForce uint8

const (
	TIFGTC TimeInForce = iota
	TIFIOC
)

// NewOrderRequest is the domain-side request the encoder truncates to
// exchange precision and serialises onto the wire.
type NewOrderRequest struct {
	ClOrderID uint64
	Ticker    string
	Side      orders.Side
	OrdType   OrdType
	TIF       TimeInForce
	Price     fixedpoint.Price
	Qty       fixedpoint.Qty
}

// CancelRequest asks the exchange to cancel a resting order.
type CancelRequest struct {
	ClOrderID uint64
	Ticker    string
	Side      orders.Side
}

// CancelReplaceRequest asks the exchange to atomically cancel origClOrderID
// and replace it with a new order at newQty (price unchanged — the slot the
// layer book already owns defines the price).
type CancelReplaceRequest struct {
	OrigClOrderID uint64
	NewClOrderID  uint64
	Ticker        string
	Side          orders.Side
	Price         fixedpoint.Price
	NewQty        fixedpoint.Qty
}

// WireExecutionReport is the raw exchange execution report before domain
// normalisation: price/qty are still decimal ASCII at the exchange's
// precision, not yet parsed into fixedpoint.
type WireExecutionReport struct {
	OrdStatus string
	ClOrderID uint64
	Side      string
	Price     string
	LeavesQty string
}
