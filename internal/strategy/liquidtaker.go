package strategy

import (
	"go.uber.org/zap"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/feature"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/orders"
)

func init() {
	Register("liquid_taker", VTable{
		OnOrderBookUpdated: func(*Context, string, fixedpoint.Price, book.Side, *book.Book) {},
		OnTradeUpdated:     liquidTakerOnTradeUpdated,
		OnOrderUpdated:     func(*Context, *orders.ExecutionReport) {},
		Create:             liquidTakerCreate,
		Destroy:            func(any) {},
	})
}

// liquidTakerData tracks whether the taker currently has an order resting so
// it never double-fires on consecutive trade prints past the same threshold
// crossing. Grounded on liquid_taker.h's shape (the .cpp body is an empty
// stub in the retrieved source); the band-cross behaviour places an
// aggressive order at the opposite best price when the ratio crosses a band.
type liquidTakerData struct {
	cfg     Config
	armed   bool
}

func liquidTakerCreate(_ OrderManager, _ *feature.Engine, _ logging.Producer, cfg Config) any {
	return &liquidTakerData{cfg: cfg, armed: true}
}

// liquidTakerOnTradeUpdated reads the feature engine's aggressive-trade/BBO
// ratio; once it crosses EnterThreshold it fires one order in the
// aggressing trade's direction at the opposite best price, sized at
// cfg.ClipQty, then disarms until the ratio falls back under ExitThreshold.
// QuoteIntent carries no time-in-force, so the order is not sent as IOC: it
// goes out with the sender's own time-in-force (GTC in cmd/engine's
// exchangeSender).
func liquidTakerOnTradeUpdated(ctx *Context, trade *MarketTrade, ob *book.Book) {
	data, ok := ctx.Data.(*liquidTakerData)
	if !ok {
		return
	}
	ratio, has := ctx.Features.AggTradeQtyRatio()
	if !has {
		return
	}

	if !data.armed {
		if ratio < data.cfg.ExitThreshold {
			data.armed = true
		}
		return
	}
	if ratio < data.cfg.EnterThreshold {
		return
	}

	bbo := ob.BBO()
	var side orders.Side
	var price fixedpoint.Price
	if trade.Side == book.Ask {
		side = orders.Buy
		price = bbo.AskPrice
	} else {
		side = orders.Sell
		price = bbo.BidPrice
	}
	if !price.IsValid() {
		return
	}

	ctx.OrderManager.Apply([]QuoteIntent{{
		Ticker: trade.Ticker,
		Side:   side,
		Price:  price,
		Qty:    data.cfg.ClipQty,
	}})
	data.armed = false
	ctx.Log.Debug("liquid_taker: fired order", zap.Float64("ratio", ratio), zap.Int64("price_raw", price.Raw))
}
