// Package feature computes stateless indicators over the order book and
// incoming trades: a liquidity-weighted mid-price and the ratio of an
// aggressive trade's quantity to the BBO quantity it traded against.
// Grounded on original_source/hft/src/feature_engine.{h,cpp}.
package feature

import (
	"go.uber.org/zap"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
)

// Engine holds the last computed mid-price and aggressive-trade ratio for
// one symbol. Not safe for concurrent use; the market-data thread owns it.
type Engine struct {
	log logging.Producer

	midPrice         fixedpoint.Price
	aggTradeQtyRatio float64
	hasAggRatio      bool
}

// New constructs an Engine that logs through log.
func New(log logging.Producer) *Engine {
	return &Engine{log: log, midPrice: fixedpoint.InvalidPrice}
}

// MidPrice returns the last liquidity-weighted mid-price, or InvalidPrice if
// the book has never had both sides populated.
func (e *Engine) MidPrice() fixedpoint.Price { return e.midPrice }

// AggTradeQtyRatio returns the last aggressive-trade/BBO-qty ratio and
// whether one has been computed yet.
func (e *Engine) AggTradeQtyRatio() (float64, bool) { return e.aggTradeQtyRatio, e.hasAggRatio }

// OnTradeUpdated recomputes the aggressive-trade ratio for a trade on side
// (the side of the resting order that was hit; an incoming buy aggresses
// against the ask, so it ratios against AskQty).
func (e *Engine) OnTradeUpdated(tradeSide book.Side, tradeQty fixedpoint.Qty, bbo book.BBO) {
	if !bbo.BidPrice.IsValid() || !bbo.AskPrice.IsValid() {
		return
	}
	var against fixedpoint.Qty
	if tradeSide == book.Ask {
		against = bbo.AskQty
	} else {
		against = bbo.BidQty
	}
	if against.Raw <= 0 {
		return
	}
	e.aggTradeQtyRatio = float64(tradeQty.Raw) / float64(against.Raw)
	e.hasAggRatio = true
	e.log.Debug("feature: trade update", zap.Float64("agg_trade_qty_ratio", e.aggTradeQtyRatio))
}

// OnOrderBookUpdated recomputes the liquidity-weighted mid-price:
// (bid_price*ask_qty + ask_price*bid_qty) / (bid_qty + ask_qty).
func (e *Engine) OnOrderBookUpdated(bbo book.BBO) {
	if !bbo.BidPrice.IsValid() || !bbo.AskPrice.IsValid() {
		return
	}
	denom := bbo.BidQty.Raw + bbo.AskQty.Raw
	if denom <= 0 {
		return
	}
	numerator := fixedpoint.MulDiv(bbo.BidPrice.Raw, bbo.AskQty.Raw, 1) +
		fixedpoint.MulDiv(bbo.AskPrice.Raw, bbo.BidQty.Raw, 1)
	e.midPrice = fixedpoint.PriceFromRaw(numerator / denom)
}
