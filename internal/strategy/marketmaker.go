package strategy

import (
	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/feature"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/orders"
)

func init() {
	Register("market_maker", VTable{
		OnOrderBookUpdated: marketMakerOnOrderBookUpdated,
		OnTradeUpdated:     func(*Context, *MarketTrade, *book.Book) {},
		OnOrderUpdated:     func(*Context, *orders.ExecutionReport) {},
		Create:             marketMakerCreate,
		Destroy:            func(any) {},
	})
}

// marketMakerData is the opaque per-symbol state a market-maker instance
// carries: the ticks it last quoted on each side, so it only re-quotes when
// the BBO actually moves. Grounded on market_maker.h's shape (the .cpp body
// is an empty stub in the retrieved source; the quoting behaviour itself
// follows spec.md §4.7's textual description: quote both sides of BBO with a
// configured clip size and fixed safety margin, move quotes when BBO moves).
type marketMakerData struct {
	cfg         Config
	lastBidRaw  int64
	lastAskRaw  int64
	haveQuotes  bool
}

func marketMakerCreate(_ OrderManager, _ *feature.Engine, _ logging.Producer, cfg Config) any {
	return &marketMakerData{cfg: cfg}
}

// marketMakerOnOrderBookUpdated quotes both sides of the BBO with cfg's clip
// size, offset by a fixed safety margin, re-quoting only the side whose
// target price changed since the last update.
func marketMakerOnOrderBookUpdated(ctx *Context, ticker string, _ fixedpoint.Price, _ book.Side, ob *book.Book) {
	data, ok := ctx.Data.(*marketMakerData)
	if !ok {
		return
	}
	bbo := ob.BBO()
	if !bbo.BidPrice.IsValid() || !bbo.AskPrice.IsValid() {
		return
	}

	targetBidRaw := bbo.BidPrice.Raw - data.cfg.SafetyMarginRaw
	targetAskRaw := bbo.AskPrice.Raw + data.cfg.SafetyMarginRaw

	var intents []QuoteIntent
	if !data.haveQuotes || targetBidRaw != data.lastBidRaw {
		intents = append(intents, QuoteIntent{
			Ticker: ticker,
			Side:   orders.Buy,
			Price:  fixedpoint.PriceFromRaw(targetBidRaw),
			Qty:    data.cfg.ClipQty,
		})
		data.lastBidRaw = targetBidRaw
	}
	if !data.haveQuotes || targetAskRaw != data.lastAskRaw {
		intents = append(intents, QuoteIntent{
			Ticker: ticker,
			Side:   orders.Sell,
			Price:  fixedpoint.PriceFromRaw(targetAskRaw),
			Qty:    data.cfg.ClipQty,
		})
		data.lastAskRaw = targetAskRaw
	}
	data.haveQuotes = true

	if len(intents) > 0 {
		ctx.OrderManager.Apply(intents)
	}
}
