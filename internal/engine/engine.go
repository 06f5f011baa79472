package engine

import (
	"time"

	"go.uber.org/zap"

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
	"github.com/richtraders/hft-core/internal/waitstrategy"
)

// New constructs a TradeEngine for one symbol. cfg.StrategyName
// must already be registered (see strategy.Lookup); New returns false as its
// second value if it isn't.
func New(cfg Config, sender OrderSender, reg *metrics.Registry, log logging.Producer) (*TradeEngine, bool) {
	vtable, ok := strategy.Lookup(cfg.StrategyName)
	if !ok {
		return nil, false
	}

	eng := &TradeEngine{
		cfg:      cfg,
		log:      log,
		book:     book.New(cfg.BookConfig, log),
		features: feature.New(log),
		keeper:   risk.NewKeeper(log),
		layers:   orders.New(),
		reserved: orders.NewReservedTracker(),
		stateMgr: orders.NewStateManager(log),
		vtable:   vtable,
		sender:   sender,
		metrics:  reg,
		mdRing:   spsc.New[marketdata.MarketUpdateData](cfg.MarketDataRing),
		respRing: spsc.New[orders.ExecutionReport](cfg.ExecReportRing),
		done:     make(chan struct{}, 2),
	}
	eng.riskMgr = risk.NewManager(cfg.RiskLimits, eng.keeper, log)

	om := &orderManagerAdapter{eng: eng}
	data := vtable.Create(om, eng.features, log, cfg.StrategyConfig)
	eng.strategy = &strategy.Context{OrderManager: om, Features: eng.features, Log: log, Data: data}

	return eng, true
}

// SubmitMarketData enqueues batch onto the market-data ring. Non-blocking;
// returns false if the ring is full, matching spec.md §4.1's contract.
func (e *TradeEngine) SubmitMarketData(batch marketdata.MarketUpdateData) bool {
	return e.mdRing.Enqueue(batch)
}

// SubmitExecutionReport enqueues report onto the response ring.
func (e *TradeEngine) SubmitExecutionReport(report orders.ExecutionReport) bool {
	return e.respRing.Enqueue(report)
}

// LayerBook exposes the engine's per-symbol layer book so an order-entry
// encoder/response path can assign a layer to a client order id ahead of
// the corresponding execution report, without the caller reaching into
// TradeEngine's internals.
func (e *TradeEngine) LayerBook() *orders.LayerBook {
	return e.layers
}

// PositionInfo returns the engine's current position/PnL snapshot.
func (e *TradeEngine) PositionInfo() risk.PositionInfo {
	return e.keeper.Info()
}

// MarketDataRingDepth returns the book-update ring's current occupied depth,
// for periodic gauge sampling (spec.md §2's book-update ring).
func (e *TradeEngine) MarketDataRingDepth() int {
	return e.mdRing.Len()
}

// ExecReportRingDepth returns the response ring's current occupied depth,
// for periodic gauge sampling (spec.md §2's response ring).
func (e *TradeEngine) ExecReportRingDepth() int {
	return e.respRing.Len()
}

// Start launches the two per-symbol consumer goroutines. Per spec.md §4.10
// there is strict per-ring FIFO ordering and no cross-ring ordering
// guarantee between the market-data and response consumers.
func (e *TradeEngine) Start() {
	go e.runMarketDataConsumer()
	go e.runResponseConsumer()
}

// Stop requests both consumer goroutines exit after draining what is
// already enqueued, and blocks until they have.
func (e *TradeEngine) Stop() {
	e.stopped.Store(true)
	<-e.done
	<-e.done
}

func (e *TradeEngine) runMarketDataConsumer() {
	var wait waitstrategy.Tiered
	for {
		batch, ok := e.mdRing.Dequeue()
		if !ok {
			if e.stopped.Load() {
				e.done <- struct{}{}
				return
			}
			wait.Idle()
			continue
		}
		wait.Reset()
		e.applyMarketUpdate(batch)
	}
}

func (e *TradeEngine) runResponseConsumer() {
	var wait waitstrategy.Tiered
	for {
		report, ok := e.respRing.Dequeue()
		if !ok {
			if e.stopped.Load() {
				e.done <- struct{}{}
				return
			}
			wait.Idle()
			continue
		}
		wait.Reset()
		e.applyExecutionReport(report)
	}
}

// applyMarketUpdate feeds one decoded batch into the book, refreshes the
// feature engine and risk keeper's BBO, then dispatches the strategy's
// on_orderbook_updated / on_trade_updated callbacks for the entries it
// carries.
func (e *TradeEngine) applyMarketUpdate(batch marketdata.MarketUpdateData) {
	for _, md := range batch.Entries {
		if err := e.applyOneEntry(md); err != nil {
			e.log.Error("engine: apply market data entry failed", zap.Error(err), zap.String("ticker", e.cfg.Ticker))
		}
	}

	bbo := e.book.BBO()
	e.features.OnOrderBookUpdated(bbo)
	e.keeper.OnBBOUpdate(bbo)
	e.metrics.UnrealizedPnL.WithLabelValues(e.cfg.Ticker).Set(float64(e.keeper.Info().UnrealizedPnL.Raw))

	if bbo.BidPrice.IsValid() && bbo.AskPrice.IsValid() {
		e.metrics.BestBid.WithLabelValues(e.cfg.Ticker).Set(float64(bbo.BidPrice.Raw))
		e.metrics.BestAsk.WithLabelValues(e.cfg.Ticker).Set(float64(bbo.AskPrice.Raw))
	}

	dispatchStart := time.Now()
	e.vtable.OnOrderBookUpdated(e.strategy, e.cfg.Ticker, bbo.BidPrice, book.Bid, e.book)
	e.metrics.DispatchLatency.WithLabelValues(e.cfg.Ticker, e.cfg.StrategyName).Observe(time.Since(dispatchStart).Seconds())

	for _, md := range batch.Entries {
		if md.Type != marketdata.TypeTrade {
			continue
		}
		side := book.Bid
		if md.Side == marketdata.SideSell {
			side = book.Ask
		}
		e.features.OnTradeUpdated(side, md.Qty, bbo)
		trade := &strategy.MarketTrade{Ticker: e.cfg.Ticker, Side: side, Price: md.Price, Qty: md.Qty}
		dispatchStart = time.Now()
		e.vtable.OnTradeUpdated(e.strategy, trade, e.book)
		e.metrics.DispatchLatency.WithLabelValues(e.cfg.Ticker, e.cfg.StrategyName).Observe(time.Since(dispatchStart).Seconds())
	}
}

func (e *TradeEngine) applyOneEntry(md *marketdata.MarketData) error {
	side := book.Bid
	if md.Side == marketdata.SideSell {
		side = book.Ask
	}

	switch md.Type {
	case marketdata.TypeAdd, marketdata.TypeModify:
		return e.book.ApplyUpdate(book.Update{Type: book.Add, Side: side, PriceRaw: md.Price.Raw, Qty: md.Qty})
	case marketdata.TypeCancel:
		return e.book.ApplyUpdate(book.Update{Type: book.Cancel, Side: side, PriceRaw: md.Price.Raw})
	case marketdata.TypeTrade:
		return e.book.ApplyUpdate(book.Update{Type: book.Trade, Side: side, PriceRaw: md.Price.Raw, Qty: md.Qty})
	case marketdata.TypeSnapshotClear:
		return e.book.ApplyUpdate(book.Update{Type: book.SnapshotClear})
	default:
		return nil
	}
}

// applyExecutionReport reconciles report against the layer book/order-state
// manager, feeds each partial or full fill into the position keeper, and
// notifies the strategy.
func (e *TradeEngine) applyExecutionReport(report orders.ExecutionReport) {
	sb := e.layers.SideBookFor(e.cfg.Ticker, report.Side)

	var priorQty fixedpoint.Qty
	if layer := orders.FindLayerByID(sb, report.ClOrderID); layer >= 0 {
		priorQty = sb.Slots[layer].Qty
	}
	e.stateMgr.HandleExecutionReport(report, sb, e.reserved, nowNs())

	if report.OrdStatus == orders.OrdFilled || report.OrdStatus == orders.OrdPartiallyFilled {
		filledQty := priorQty.Sub(report.LeavesQty)
		isBuy := report.Side == orders.Buy
		e.keeper.OnFill(isBuy, report.Price, filledQty)
		info := e.keeper.Info()
		e.metrics.Position.WithLabelValues(e.cfg.Ticker).Set(float64(info.Position.Raw))
		e.metrics.UnrealizedPnL.WithLabelValues(e.cfg.Ticker).Set(float64(info.UnrealizedPnL.Raw))
		if report.OrdStatus == orders.OrdFilled {
			e.metrics.OrdersFilled.WithLabelValues(e.cfg.Ticker).Inc()
		}
	}
	if report.OrdStatus == orders.OrdRejected {
		e.metrics.OrdersRejected.WithLabelValues(e.cfg.Ticker, "exchange_reject").Inc()
	}

	dispatchStart := time.Now()
	e.vtable.OnOrderUpdated(e.strategy, &report)
	e.metrics.DispatchLatency.WithLabelValues(e.cfg.Ticker, e.cfg.StrategyName).Observe(time.Since(dispatchStart).Seconds())
}

// applyIntents is the OrderManager surface strategies call into: each quote
// intent clears the risk gate before being forwarded to the layer book and
// sender, while cancel intents go straight to the sender. A breached intent
// is dropped and counted, never sent.
func (e *TradeEngine) applyIntents(intents []strategy.QuoteIntent) {
	for _, intent := range intents {
		e.applyOneIntent(intent)
	}
}

func (e *TradeEngine) applyOneIntent(intent strategy.QuoteIntent) {
	if intent.Cancel {
		e.cancelLayerAt(intent)
		return
	}

	sideValue := e.keeper.Info().Position
	orderQty := intent.Qty
	if intent.Side == orders.Sell {
		orderQty = fixedpoint.QtyFromRaw(-intent.Qty.Raw)
	}

	if verdict := e.riskMgr.Evaluate(sideValue, orderQty); verdict != risk.Allowed {
		e.metrics.OrdersRejected.WithLabelValues(e.cfg.Ticker, verdict.String()).Inc()
		e.log.Warn("engine: intent rejected by risk gate", zap.String("verdict", verdict.String()))
		return
	}

	sb := e.layers.SideBookFor(e.cfg.Ticker, intent.Side)
	plan := orders.PlanLayer(sb, uint64(intent.Price.Raw))
	if plan.VictimLiveLayer >= 0 {
		victim := &sb.Slots[plan.VictimLiveLayer]
		if err := e.sender.SendCancel(e.cfg.Ticker, intent.Side, victim.ClOrderID); err != nil {
			e.log.Error("engine: victim cancel failed", zap.Error(err))
			return
		}
	}

	clOrderID, err := e.sender.SendNew(e.cfg.Ticker, intent.Side, intent.Price, intent.Qty)
	if err != nil {
		e.log.Error("engine: send new failed", zap.Error(err))
		return
	}
	orders.AssignLayer(sb, uint64(intent.Price.Raw), clOrderID, nowNs())
	e.reserved.AddReserved(intent.Side, intent.Qty)
	e.metrics.OrdersSubmitted.WithLabelValues(e.cfg.Ticker).Inc()
}

// cancelLayerAt cancels whatever order currently occupies intent.Price's
// layer, for strategies that want to pull a quote without replacing it.
func (e *TradeEngine) cancelLayerAt(intent strategy.QuoteIntent) {
	sb := e.layers.SideBookFor(e.cfg.Ticker, intent.Side)
	layer := orders.FindLayerByTick(sb, uint64(intent.Price.Raw))
	if layer < 0 {
		return
	}
	clOrderID := sb.Slots[layer].ClOrderID
	if err := e.sender.SendCancel(e.cfg.Ticker, intent.Side, clOrderID); err != nil {
		e.log.Error("engine: cancel intent failed", zap.Error(err))
	}
}
