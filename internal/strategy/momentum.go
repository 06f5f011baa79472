package strategy

import (
	"math"

	"go.uber.org/zap"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/feature"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/orders"
)

const momentumSafetyMarginRaw = 20 // kSafetyMargin in momentum_strategy.cpp

func init() {
	Register("obi_vwap_momentum", VTable{
		OnOrderBookUpdated: momentumOnOrderBookUpdated,
		OnTradeUpdated:     func(*Context, *MarketTrade, *book.Book) {},
		OnOrderUpdated:     func(*Context, *orders.ExecutionReport) {},
		Create:             momentumCreate,
		Destroy:            func(any) {},
	})
}

// momentumData holds the opaque state for one OBI-VWAP momentum instance,
// grounded on original_source/hft/src/strategy/momentum_strategy.cpp.
type momentumData struct {
	cfg Config
}

func momentumCreate(_ OrderManager, _ *feature.Engine, _ logging.Producer, cfg Config) any {
	if cfg.OBILevels <= 0 {
		cfg.OBILevels = 10 // obi_level_ default in momentum_strategy.cpp
	}
	return &momentumData{cfg: cfg}
}

// levelsVWAP computes the liquidity-weighted average price over levels,
// used as the momentum strategy's reference "vwap" — the book-implied fair
// value over the same depth window the OBI is computed from.
func levelsVWAP(levels []book.Level) (fixedpoint.Price, bool) {
	var notional, qty int64
	for _, l := range levels {
		notional += l.Price.Raw * l.Qty.Raw
		qty += l.Qty.Raw
	}
	if qty == 0 {
		return fixedpoint.InvalidPrice, false
	}
	return fixedpoint.PriceFromRaw(notional / qty), true
}

func round5(qty fixedpoint.Qty) fixedpoint.Qty {
	const step = 5
	n := (qty.Raw / step) * step
	return fixedpoint.QtyFromRaw(n)
}

// momentumOnOrderBookUpdated implements momentum_strategy.cpp's core signal:
// delta = (mid - vwap) / max(spread, 0.01); signal = abs(delta * obi). When
// signal crosses enter_threshold_ it buys at best_bid-margin (delta*obi > 0)
// or sells at best_ask+margin (delta*obi < 0), sized round5(signal *
// position_variance_). Below exit_threshold_ it does nothing.
func momentumOnOrderBookUpdated(ctx *Context, ticker string, _ fixedpoint.Price, _ book.Side, ob *book.Book) {
	data, ok := ctx.Data.(*momentumData)
	if !ok {
		return
	}
	bbo := ob.BBO()
	if !bbo.BidPrice.IsValid() || !bbo.AskPrice.IsValid() {
		return
	}

	bidLevels := ob.PeekQty(book.Bid, data.cfg.OBILevels)
	askLevels := ob.PeekQty(book.Ask, data.cfg.OBILevels)
	obi := orderBookImbalance(bidLevels, askLevels)

	allLevels := append(append([]book.Level{}, bidLevels...), askLevels...)
	vwap, ok2 := levelsVWAP(allLevels)
	if !ok2 {
		return
	}

	mid := ctx.Features.MidPrice()
	if !mid.IsValid() {
		return
	}

	spreadRaw := bbo.AskPrice.Raw - bbo.BidPrice.Raw
	spread := float64(spreadRaw)
	if spread < 0.01 {
		spread = 0.01
	}

	delta := float64(mid.Raw-vwap.Raw) / spread
	signed := delta * obi
	signal := math.Abs(signed)

	if signal < data.cfg.ExitThreshold {
		return
	}
	if signal < data.cfg.EnterThreshold {
		return
	}

	qty := round5(fixedpoint.QtyFromRaw(int64(signal * float64(data.cfg.ClipQty.Raw))))
	if qty.Raw <= 0 {
		return
	}

	var intent QuoteIntent
	if signed > 0 {
		intent = QuoteIntent{
			Ticker: ticker,
			Side:   orders.Buy,
			Price:  fixedpoint.PriceFromRaw(bbo.BidPrice.Raw - momentumSafetyMarginRaw),
			Qty:    qty,
		}
	} else {
		intent = QuoteIntent{
			Ticker: ticker,
			Side:   orders.Sell,
			Price:  fixedpoint.PriceFromRaw(bbo.AskPrice.Raw + momentumSafetyMarginRaw),
			Qty:    qty,
		}
	}

	ctx.OrderManager.Apply([]QuoteIntent{intent})
	ctx.Log.Debug("obi_vwap_momentum: signal fired",
		zap.Float64("obi", obi), zap.Float64("delta", delta), zap.Float64("signal", signal))
}

// orderBookImbalance computes (bidQty-askQty)/(bidQty+askQty) over the given
// levels, matching momentum_strategy.cpp's peek_qty-driven obi computation.
func orderBookImbalance(bidLevels, askLevels []book.Level) float64 {
	var bidQty, askQty int64
	for _, l := range bidLevels {
		bidQty += l.Qty.Raw
	}
	for _, l := range askLevels {
		askQty += l.Qty.Raw
	}
	denom := bidQty + askQty
	if denom == 0 {
		return 0
	}
	return float64(bidQty-askQty) / float64(denom)
}
