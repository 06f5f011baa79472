// Package engine implements the per-symbol trade engine: two goroutines
// (market-data consumer, response consumer) each fed by an spsc.Queue ring
// and backed off with waitstrategy.Tiered, wiring together the book,
// feature engine, risk gate, layer book/order-state manager, and a
// strategy's VTable for one traded symbol. Grounded on
// original_source/hft/src/trade_engine.{h,cpp} (the two-thread-per-symbol
// architecture) and market_consumer.cpp/response_consumer.cpp for the
// per-ring consumer loop shape.
package engine

import (
	"sync/atomic"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/feature"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/marketdata"
	"github.com/richtraders/hft-core/internal/metrics"
	"github.com/richtraders/hft-core/internal/orders"
	"github.com/richtraders/hft-core/internal/risk"
	"github.com/richtraders/hft-core/internal/spsc"
	"github.com/richtraders/hft-core/internal/strategy"
)

// OrderSender is the transport-facing surface a TradeEngine submits accepted
// quote intents through, implemented by cmd/engine's exchangeSender on top
// of internal/encoding's request encoder.
type OrderSender interface {
	SendNew(ticker string, side orders.Side, price fixedpoint.Price, qty fixedpoint.Qty) (clOrderID uint64, err error)
	SendCancel(ticker string, side orders.Side, clOrderID uint64) error
	SendCancelReplace(ticker string, side orders.Side, origClOrderID uint64, newQty fixedpoint.Qty) (newClOrderID uint64, err error)
}

// Config bundles one symbol's static wiring: which strategy drives it, its
// risk limits, and its ring capacities.
type Config struct {
	Ticker         string
	StrategyName   string
	StrategyConfig strategy.Config
	RiskLimits     risk.Limits
	BookConfig     book.Config
	MarketDataRing int
	ExecReportRing int
}

// TradeEngine owns one symbol's book, feature engine, risk gate, layer
// book, order-state manager, and strategy instance, plus the two SPSC rings
// and goroutines that drive them. Exactly one engine per traded symbol.
type TradeEngine struct {
	cfg Config
	log logging.Producer

	book     *book.Book
	features *feature.Engine
	keeper   *risk.Keeper
	riskMgr  *risk.Manager
	layers   *orders.LayerBook
	reserved *orders.ReservedTracker
	stateMgr *orders.StateManager

	vtable   strategy.VTable
	strategy *strategy.Context

	sender  OrderSender
	metrics *metrics.Registry

	mdRing   *spsc.Queue[marketdata.MarketUpdateData]
	respRing *spsc.Queue[orders.ExecutionReport]

	stopped atomic.Bool
	done    chan struct{}
}

// orderManagerAdapter lets the strategy package's narrow OrderManager
// interface reach this engine's risk gate, layer book, and sender without
// the strategy package importing engine (which would cycle back through
// strategy itself).
type orderManagerAdapter struct {
	eng *TradeEngine
}

func (a *orderManagerAdapter) Apply(intents []strategy.QuoteIntent) {
	a.eng.applyIntents(intents)
}
