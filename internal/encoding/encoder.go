package encoding

import (
	"github.com/google/uuid"

	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/orders"
)

// NextClOrderID mints a client order id by folding a fresh UUID's low 8
// bytes into a uint64, matching spec.md §3.1's treatment of OrderId as an
// opaque 64-bit integer while still drawing from a globally-unique source
// the way the teacher's order-id generation does across its trading
// services.
func NextClOrderID() uint64 {
	id := uuid.New()
	b := id[8:16]
	var v uint64
	for _, by := range b {
		v = v<<8 | uint64(by)
	}
	return v
}

// Encoder serialises domain order requests at a symbol's exchange-visible
// precision, truncating toward zero per spec.md §4.11 (never rounds, since
// rounding up could breach a resting limit price or overstate quantity).
type Encoder struct {
	priceScale     int64
	qtyScale       int64
	pricePrecision int
	qtyPrecision   int
}

// NewEncoder constructs an Encoder for one symbol's fixed-point scale and
// exchange-visible decimal precision.
func NewEncoder(priceScale, qtyScale int64, pricePrecision, qtyPrecision int) *Encoder {
	return &Encoder{
		priceScale:     priceScale,
		qtyScale:       qtyScale,
		pricePrecision: pricePrecision,
		qtyPrecision:   qtyPrecision,
	}
}

// EncodeNew builds a NewOrderRequest, truncating price/qty to the exchange's
// visible precision and minting a fresh client order id.
func (e *Encoder) EncodeNew(ticker string, side orders.Side, price fixedpoint.Price, qty fixedpoint.Qty, ordType OrdType, tif TimeInForce) NewOrderRequest {
	return NewOrderRequest{
		ClOrderID: NextClOrderID(),
		Ticker:    ticker,
		Side:      side,
		OrdType:   ordType,
		TIF:       tif,
		Price:     fixedpoint.PriceFromRaw(fixedpoint.TruncateToPrecision(price.Raw, e.priceScale, e.pricePrecision)),
		Qty:       fixedpoint.QtyFromRaw(fixedpoint.TruncateToPrecision(qty.Raw, e.qtyScale, e.qtyPrecision)),
	}
}

// EncodeCancel builds a CancelRequest for a resting order.
func (e *Encoder) EncodeCancel(ticker string, side orders.Side, clOrderID uint64) CancelRequest {
	return CancelRequest{ClOrderID: clOrderID, Ticker: ticker, Side: side}
}

// EncodeCancelReplace builds a CancelReplaceRequest, minting a fresh
// client order id for the replacement leg and truncating newQty to the
// exchange's visible precision.
func (e *Encoder) EncodeCancelReplace(ticker string, side orders.Side, origClOrderID uint64, price fixedpoint.Price, newQty fixedpoint.Qty) CancelReplaceRequest {
	return CancelReplaceRequest{
		OrigClOrderID: origClOrderID,
		NewClOrderID:  NextClOrderID(),
		Ticker:        ticker,
		Side:          side,
		Price:         fixedpoint.PriceFromRaw(fixedpoint.TruncateToPrecision(price.Raw, e.priceScale, e.pricePrecision)),
		NewQty:        fixedpoint.QtyFromRaw(fixedpoint.TruncateToPrecision(newQty.Raw, e.qtyScale, e.qtyPrecision)),
	}
}
