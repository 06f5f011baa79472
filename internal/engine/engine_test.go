package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/marketdata"
	"github.com/richtraders/hft-core/internal/metrics"
	"github.com/richtraders/hft-core/internal/orders"
	"github.com/richtraders/hft-core/internal/risk"
	"github.com/richtraders/hft-core/internal/strategy"
)

type fakeSender struct {
	nextID  uint64
	news    []orders.Side
	cancels []uint64
}

func (f *fakeSender) SendNew(_ string, side orders.Side, _ fixedpoint.Price, _ fixedpoint.Qty) (uint64, error) {
	f.nextID++
	f.news = append(f.news, side)
	return f.nextID, nil
}

func (f *fakeSender) SendCancel(_ string, _ orders.Side, clOrderID uint64) error {
	f.cancels = append(f.cancels, clOrderID)
	return nil
}

func (f *fakeSender) SendCancelReplace(_ string, _ orders.Side, _ uint64, _ fixedpoint.Qty) (uint64, error) {
	f.nextID++
	return f.nextID, nil
}

func testEngineLog(t *testing.T) logging.Producer {
	t.Helper()
	l, err := logging.New("engine-test", "error")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l.MakeProducer("test")
}

func testConfig() Config {
	return Config{
		Ticker:       "BTCUSDT",
		StrategyName: "market_maker",
		StrategyConfig: strategy.Config{
			ClipQty:         fixedpoint.QtyFromRaw(100),
			SafetyMarginRaw: 5,
		},
		RiskLimits: risk.Limits{
			MaxPosition: fixedpoint.QtyFromRaw(10_000),
			MaxOrderQty: fixedpoint.QtyFromRaw(10_000),
			MaxLoss:     fixedpoint.InvalidPrice,
		},
		BookConfig:     book.Config{MinPriceRaw: 1, MaxPriceRaw: 1_000_000, Tick: 1},
		MarketDataRing: 1024,
		ExecReportRing: 1024,
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.StrategyName = "does_not_exist"
	_, ok := New(cfg, &fakeSender{}, metrics.New(), testEngineLog(t))
	require.False(t, ok)
}

func TestMarketDataFlowQuotesViaMarketMaker(t *testing.T) {
	sender := &fakeSender{}
	eng, ok := New(testConfig(), sender, metrics.New(), testEngineLog(t))
	require.True(t, ok)

	eng.Start()
	defer eng.Stop()

	batch := marketdata.MarketUpdateData{
		Kind: marketdata.KindMarket,
		Entries: []*marketdata.MarketData{
			{Type: marketdata.TypeAdd, Ticker: "BTCUSDT", Side: marketdata.SideBuy, Price: fixedpoint.PriceFromRaw(1000), Qty: fixedpoint.QtyFromRaw(10)},
			{Type: marketdata.TypeAdd, Ticker: "BTCUSDT", Side: marketdata.SideSell, Price: fixedpoint.PriceFromRaw(1010), Qty: fixedpoint.QtyFromRaw(10)},
		},
	}
	require.True(t, eng.SubmitMarketData(batch))

	require.Eventually(t, func() bool {
		return len(sender.news) >= 2
	}, time.Second, time.Millisecond, "market maker should quote both sides")

	require.Contains(t, sender.news, orders.Buy)
	require.Contains(t, sender.news, orders.Sell)
}

func TestExecutionReportFlowUpdatesPosition(t *testing.T) {
	sender := &fakeSender{}
	eng, ok := New(testConfig(), sender, metrics.New(), testEngineLog(t))
	require.True(t, ok)

	eng.Start()
	defer eng.Stop()

	sb := eng.layers.SideBookFor("BTCUSDT", orders.Buy)
	orders.AssignLayer(sb, 1000, 7, nowNs())

	require.True(t, eng.SubmitExecutionReport(orders.ExecutionReport{
		OrdStatus: orders.OrdNew, ClOrderID: 7, Side: orders.Buy,
		Price: fixedpoint.PriceFromRaw(1000), LeavesQty: fixedpoint.QtyFromRaw(10),
	}))
	require.True(t, eng.SubmitExecutionReport(orders.ExecutionReport{
		OrdStatus: orders.OrdFilled, ClOrderID: 7, Side: orders.Buy,
		Price: fixedpoint.PriceFromRaw(1000), LeavesQty: fixedpoint.QtyFromRaw(0),
	}))

	require.Eventually(t, func() bool {
		return eng.keeper.Info().Position.Raw == 10
	}, time.Second, time.Millisecond, "fill should extend position")
}
