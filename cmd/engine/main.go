// Command engine wires the core's components into one running process:
// per-symbol market-data transport -> decoder -> mapper -> TradeEngine ->
// encoder -> order-entry transport, plus the metrics endpoint and runtime
// tuning. This mirrors original_source/main.cpp's role (construct the
// logger, pools, and trade engine, start the consumer thread, run) with
// `go.uber.org/fx` deliberately left out per SPEC_FULL.md §3: a dozen
// components for one binary don't need a DI container.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/config"
	"github.com/richtraders/hft-core/internal/encoding"
	"github.com/richtraders/hft-core/internal/engine"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/marketdata"
	"github.com/richtraders/hft-core/internal/metrics"
	"github.com/richtraders/hft-core/internal/orders"
	"github.com/richtraders/hft-core/internal/risk"
	"github.com/richtraders/hft-core/internal/strategy"
	"github.com/richtraders/hft-core/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to engine.yaml")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	config.TuneRuntime(cfg.Runtime)

	log, err := logging.New("hft-core", cfg.Monitoring.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	sysLog := log.MakeProducer("main")

	reg := metrics.New()

	sup, err := engine.NewSupervisor(len(cfg.Symbols), sysLog)
	if err != nil {
		sysLog.Error("supervisor init failed", zap.Error(err))
		os.Exit(1)
	}

	var samplers []func()
	for _, sym := range cfg.Symbols {
		sampler, err := bootSymbol(sym, reg, sup, log)
		if err != nil {
			sysLog.Error("symbol boot failed", zap.String("symbol", sym.Symbol), zap.Error(err))
			os.Exit(1)
		}
		samplers = append(samplers, sampler)
	}

	if err := sup.StartAll(); err != nil {
		sysLog.Error("engine startup failed", zap.Error(err))
		os.Exit(1)
	}
	sysLog.Info("engine started", zap.Int("symbols", len(cfg.Symbols)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricsErr := make(chan error, 1)
	go func() { metricsErr <- reg.Serve(ctx, cfg.Monitoring.MetricsAddr) }()
	go runMetricsSampler(ctx, reg, log, samplers)

	<-ctx.Done()
	sysLog.Info("shutting down")
	sup.StopAll()
	if err := <-metricsErr; err != nil {
		sysLog.Error("metrics server shutdown error", zap.Error(err))
	}
}

// runMetricsSampler periodically refreshes the gauges that have no natural
// per-event update site (ring depth, pool occupancy, GC pause) and drains
// logging.Logger's drop counter into reg.LogRecordsDropped, at
// config.GCStatsInterval -- the same cadence the teacher's monitorGCStats
// sampled at. Runs until ctx is canceled.
func runMetricsSampler(ctx context.Context, reg *metrics.Registry, log *logging.Logger, samplers []func()) {
	ticker := time.NewTicker(config.GCStatsInterval)
	defer ticker.Stop()

	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sample := range samplers {
				sample()
			}
			stats := config.ReadRuntimeStats()
			reg.GCPause.Set(stats.GCPauseP50.Seconds())
			if dropped := log.DroppedRecords(); dropped > lastDropped {
				reg.LogRecordsDropped.Add(float64(dropped - lastDropped))
				lastDropped = dropped
			}
		}
	}
}

// exchangeSender adapts one symbol's encoding.Encoder and order-entry
// transport into engine.OrderSender, the surface TradeEngine submits
// accepted quote intents through.
type exchangeSender struct {
	ticker   string
	enc      *encoding.Encoder
	orderTrx transport.Transport
	respMap  *encoding.ResponseMapper
	eng      *engine.TradeEngine
	log      logging.Producer
}

func (s *exchangeSender) SendNew(ticker string, side orders.Side, price fixedpoint.Price, qty fixedpoint.Qty) (uint64, error) {
	req := s.enc.EncodeNew(ticker, side, price, qty, encoding.OrdTypeLimit, encoding.TIFGTC)
	frame, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}
	if _, err := s.orderTrx.Write(frame); err != nil {
		return 0, err
	}
	return req.ClOrderID, nil
}

func (s *exchangeSender) SendCancel(ticker string, side orders.Side, clOrderID uint64) error {
	req := s.enc.EncodeCancel(ticker, side, clOrderID)
	frame, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = s.orderTrx.Write(frame)
	return err
}

func (s *exchangeSender) SendCancelReplace(ticker string, side orders.Side, origClOrderID uint64, newQty fixedpoint.Qty) (uint64, error) {
	req := s.enc.EncodeCancelReplace(ticker, side, origClOrderID, fixedpoint.InvalidPrice, newQty)
	frame, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}
	if _, err := s.orderTrx.Write(frame); err != nil {
		return 0, err
	}
	return req.NewClOrderID, nil
}

// onOrderEntryMessage decodes one inbound order-entry frame and routes it
// into the engine's response ring, or handles the connected sentinel per
// spec.md §6.1.
func (s *exchangeSender) onOrderEntryMessage(payload []byte) {
	if string(payload) == transport.ConnectedSentinel {
		s.log.Info("order-entry session connected", zap.String("symbol", s.ticker))
		return
	}

	var wire encoding.WireExecutionReport
	if err := json.Unmarshal(payload, &wire); err != nil {
		s.log.Warn("order-entry: malformed execution report", zap.Error(err))
		return
	}
	report, err := s.respMap.Map(wire)
	if err != nil {
		s.log.Error("order-entry: unmapped execution report", zap.Error(err))
		return
	}
	if !s.eng.SubmitExecutionReport(report) {
		s.log.Warn("response ring full, dropping execution report", zap.String("symbol", s.ticker))
	}
}

// bootSymbol constructs one symbol's full pipeline (market-data transport
// -> decoder -> mapper -> TradeEngine -> encoder -> order-entry transport),
// registers the engine with sup, and returns a sampler closure
// runMetricsSampler polls periodically for this symbol's ring-depth and
// pool-occupancy gauges.
func bootSymbol(sym config.SymbolConfig, reg *metrics.Registry, sup *engine.Supervisor, log *logging.Logger) (func(), error) {
	symLog := log.MakeProducer(sym.Symbol)

	bookCfg := book.Config{MinPriceRaw: sym.MinPriceRaw, MaxPriceRaw: sym.MaxPriceRaw, Tick: 1}
	riskLimits := risk.Limits{
		MaxOrderQty: fixedpoint.QtyFromRaw(fixedpoint.ParseRaw("1000000", sym.QtyScale)),
		MaxPosition: fixedpoint.QtyFromRaw(fixedpoint.ParseRaw("1000000", sym.QtyScale)),
		MaxLoss:     fixedpoint.InvalidPrice,
	}

	orderTrx, err := dialOrderEntry(sym, symLog)
	if err != nil {
		return nil, err
	}
	sender := &exchangeSender{
		ticker:   sym.Symbol,
		enc:      encoding.NewEncoder(sym.PriceScale, sym.QtyScale, sym.PricePrecision, sym.QtyPrecision),
		orderTrx: orderTrx,
		respMap:  encoding.NewResponseMapper(sym.PriceScale, sym.QtyScale),
		log:      symLog,
	}

	eng, ok := engine.New(engine.Config{
		Ticker:       sym.Symbol,
		StrategyName: sym.Strategy,
		StrategyConfig: strategy.Config{
			ClipQty:         fixedpoint.QtyFromRaw(fixedpoint.ParseRaw("1", sym.QtyScale)),
			SafetyMarginRaw: 1,
			OBILevels:       5,
			ZScoreWindow:    64,
			EMADAlpha:       0.1,
			WallEMAAlpha:    0.1,
			WallPercentile:  0.9,
			EnterThreshold:  0.5,
			ExitThreshold:   0.1,
		},
		RiskLimits:     riskLimits,
		BookConfig:     bookCfg,
		MarketDataRing: sym.MarketDataRing,
		ExecReportRing: sym.ExecReportRing,
	}, sender, reg, symLog)
	if !ok {
		return nil, &unknownStrategyError{sym.Strategy}
	}
	sender.eng = eng
	orderTrx.RegisterMessageCallback(sender.onOrderEntryMessage)

	mdTrx, err := dialMarketData(sym, symLog)
	if err != nil {
		return nil, err
	}
	mapper := marketdata.NewMapper(sym.OrderPoolSize, sym.PriceScale, symLog)
	var traits marketdata.BinanceSpotTraits
	gapRecovery := &gapState{recovery: marketdata.NewGapRecovery(), reg: reg, ticker: sym.Symbol}

	mdTrx.RegisterMessageCallback(func(payload []byte) {
		if string(payload) == transport.ConnectedSentinel {
			symLog.Info("market-data session connected")
			return
		}
		kind := traits.Classify(sym.Symbol, payload)
		decodeStart := time.Now()
		wire, err := traits.DecodeOnePass(kind, payload)
		if err != nil {
			symLog.Warn("market-data: decode failed, falling back to generic path", zap.Error(err))
			wire, err = traits.DecodeGeneric(kind, payload)
			if err != nil {
				symLog.Error("market-data: generic decode failed", zap.Error(err))
				return
			}
		}
		reg.DecodeLatency.WithLabelValues(sym.Symbol).Observe(time.Since(decodeStart).Seconds())
		batch, err := mapper.ToMarketUpdate(sym.Symbol, wire)
		if err != nil {
			symLog.Error("market-data: map failed", zap.Error(err))
			return
		}
		for _, ready := range gapRecovery.admit(batch) {
			if !eng.SubmitMarketData(ready) {
				symLog.Warn("market-data ring full, dropping batch")
				mapper.Free(ready)
			}
		}
	})

	sup.Add(eng)
	sampler := func() {
		reg.RingDepth.WithLabelValues(sym.Symbol, "market_data").Set(float64(eng.MarketDataRingDepth()))
		reg.RingDepth.WithLabelValues(sym.Symbol, "exec_report").Set(float64(eng.ExecReportRingDepth()))
		reg.PoolInUse.WithLabelValues(sym.Symbol, "market_data_entries").Set(float64(mapper.PoolInUse()))
	}
	return sampler, nil
}

// gapState drives marketdata.GapRecovery per spec.md §7's GapDetected
// policy: depth updates are admitted straight through while synced;
// desynced updates are buffered (bounded) until a snapshot arrives,
// instead of being applied against a stale book.
type gapState struct {
	recovery *marketdata.GapRecovery
	pending  []marketdata.PendingUpdate
	reg      *metrics.Registry
	ticker   string
}

const maxPendingDepthUpdates = 64

func (g *gapState) admit(batch marketdata.MarketUpdateData) []marketdata.MarketUpdateData {
	switch batch.Kind {
	case marketdata.KindSnapshot:
		ready := g.recovery.ApplySnapshot(batch.LastUpdateID, g.pending)
		g.pending = nil
		return append([]marketdata.MarketUpdateData{batch}, ready...)
	case marketdata.KindMarket:
		wasSynced := g.recovery.Synced()
		if g.recovery.AdmitDepthUpdate(batch) {
			return []marketdata.MarketUpdateData{batch}
		}
		if wasSynced && !g.recovery.Synced() {
			g.reg.MarketDataGaps.WithLabelValues(g.ticker).Inc()
		}
		if len(g.pending) >= maxPendingDepthUpdates {
			g.pending = g.pending[1:]
		}
		g.pending = append(g.pending, marketdata.PendingUpdate{
			StartUpdateID: batch.FirstUpdateID, EndUpdateID: batch.LastUpdateID, Batch: batch,
		})
		return nil
	default:
		return []marketdata.MarketUpdateData{batch}
	}
}

// dialMarketData opens the market-data stream transport for sym: a real
// websocket dialer when StreamURL is configured, otherwise a loopback pair
// whose peer end is never written to (used for local dry-runs and tests).
func dialMarketData(sym config.SymbolConfig, log logging.Producer) (transport.Transport, error) {
	if sym.StreamURL == "" {
		trx, _ := transport.NewLoopbackPair()
		return trx, nil
	}
	return transport.NewWSAdapter(sym.StreamURL, log)
}

// dialOrderEntry opens the order-entry session transport for sym.
// spec.md §1 treats FIX/exchange order-entry session framing as an
// external collaborator; this dials the same reference WSAdapter the
// market-data leg uses when a URL is configured, which is sufficient to
// exercise the non-blocking Write/RegisterMessageCallback contract §6.1
// specifies without committing to one exchange's order-entry dialect.
func dialOrderEntry(sym config.SymbolConfig, log logging.Producer) (transport.Transport, error) {
	if sym.StreamURL == "" {
		trx, _ := transport.NewLoopbackPair()
		return trx, nil
	}
	return transport.NewWSAdapter(sym.StreamURL, log)
}

type unknownStrategyError struct{ name string }

func (e *unknownStrategyError) Error() string {
	return "engine: unknown strategy " + e.name
}
