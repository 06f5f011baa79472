// Package strategy implements the hot-path strategy dispatch and the base
// strategies the spec names: market-maker, liquid-taker, OBI-VWAP momentum,
// and a mean-reversion maker. Grounded on
// original_source/hft/src/strategy/strategy_dispatch.hpp's v-table (a
// struct of function pointers plus an opaque data pointer, not dynamic
// dispatch via an interface's vtable indirection) and strategy.hpp's
// BaseStrategy callback set.
package strategy

import (
	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/feature"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/orders"
)

// QuoteIntent is a strategy's request to place, move, or cancel a quote at
// one layer. The order manager resolves it against the layer book and
// risk gate before sending anything to the exchange.
type QuoteIntent struct {
	Ticker string
	Side   orders.Side
	Price  fixedpoint.Price
	Qty    fixedpoint.Qty
	Cancel bool // true requests the layer currently holding this side/price be canceled instead of quoted
}

// OrderManager is the hot-path surface strategies call into. Concrete
// implementation lives in internal/engine, which wires a LayerBook,
// StateManager, ReservedTracker, and risk.Manager behind it; the strategy
// package only depends on this narrow interface to avoid an import cycle.
type OrderManager interface {
	Apply(intents []QuoteIntent)
}

// Context bundles the collaborators every strategy callback needs, mirroring
// StrategyContext: an order manager handle, a read-only feature engine, a
// logger producer, and the strategy's own opaque state.
type Context struct {
	OrderManager OrderManager
	Features     *feature.Engine
	Log          logging.Producer
	Data         any
}

// VTable is the dispatch table a strategy registers at startup: three hot
// callbacks plus create/destroy for its opaque per-engine state. Adding a
// strategy means registering one of these; the trade engine never knows the
// concrete strategy type.
type VTable struct {
	OnOrderBookUpdated func(ctx *Context, ticker string, price fixedpoint.Price, side book.Side, ob *book.Book)
	OnTradeUpdated     func(ctx *Context, md *MarketTrade, ob *book.Book)
	OnOrderUpdated     func(ctx *Context, report *orders.ExecutionReport)
	Create             func(om OrderManager, fe *feature.Engine, log logging.Producer, cfg Config) any
	Destroy            func(data any)
}

// MarketTrade is the subset of marketdata.MarketData a strategy's
// on_trade_updated callback needs, decoupled from the marketdata package's
// pooled representation so strategies never touch pool-owned memory after
// the trade engine has freed it back.
type MarketTrade struct {
	Ticker string
	Side   book.Side
	Price  fixedpoint.Price
	Qty    fixedpoint.Qty
}

// Config is the per-symbol strategy configuration block. cmd/engine fills
// it with fixed values for every symbol; config.SymbolConfig supplies only
// the strategy name.
type Config struct {
	ClipQty         fixedpoint.Qty
	SafetyMarginRaw int64
	EnterThreshold  float64
	ExitThreshold   float64
	OBILevels       int
	ZScoreWindow    int
	EMADAlpha       float64
	WallEMAAlpha    float64
	WallPercentile  float64
}
