// Package tests exercises the pipeline spec.md §2 describes end to end,
// starting from a raw frame: decoder → domain mapper → trade engine (book, feature
// engine, strategy, layer book/order-state manager) → order-entry encoder,
// and the response leg (execution report → response mapper → state
// manager → position keeper), all wired across real package boundaries
// rather than mocked at the engine's edge the way the per-package tests do.
package tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/richtraders/hft-core/internal/book"
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

// wireSender adapts encoding.Encoder onto engine.OrderSender: each send
// encodes the request (for its client order id) and writes one frame, the
// ticker bytes, through a Loopback transport pair. The encoded request
// itself is not serialised onto the loopback.
type wireSender struct {
	enc      *encoding.Encoder
	client   *transport.Loopback
	received [][]byte
}

func newWireSender(t *testing.T, priceScale, qtyScale int64) *wireSender {
	t.Helper()
	client, exchange := transport.NewLoopbackPair()
	ws := &wireSender{enc: encoding.NewEncoder(priceScale, qtyScale, 2, 4), client: client}
	exchange.RegisterMessageCallback(func(payload []byte) {
		frame := make([]byte, len(payload))
		copy(frame, payload)
		ws.received = append(ws.received, frame)
	})
	return ws
}

func (w *wireSender) SendNew(ticker string, side orders.Side, price fixedpoint.Price, qty fixedpoint.Qty) (uint64, error) {
	req := w.enc.EncodeNew(ticker, side, price, qty, encoding.OrdTypeLimit, encoding.TIFGTC)
	if _, err := w.client.Write([]byte(ticker)); err != nil {
		return 0, err
	}
	return req.ClOrderID, nil
}

func (w *wireSender) SendCancel(ticker string, side orders.Side, clOrderID uint64) error {
	w.enc.EncodeCancel(ticker, side, clOrderID)
	_, err := w.client.Write([]byte(ticker))
	return err
}

func (w *wireSender) SendCancelReplace(ticker string, side orders.Side, origClOrderID uint64, newQty fixedpoint.Qty) (uint64, error) {
	req := w.enc.EncodeCancelReplace(ticker, side, origClOrderID, fixedpoint.PriceFromRaw(0), newQty)
	if _, err := w.client.Write([]byte(ticker)); err != nil {
		return 0, err
	}
	return req.NewClOrderID, nil
}

func testLog(t *testing.T) logging.Producer {
	t.Helper()
	l, err := logging.New("integration-test", "error")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l.MakeProducer("test")
}

// TestDepthUpdateFlowsThroughDecoderMapperEngineToWire drives a raw
// Binance-style depth frame through the decoder, mapper, and trade engine,
// and checks that the resulting market-maker quotes reach the wire as one
// loopback frame per quote sent through the wireSender.
func TestDepthUpdateFlowsThroughDecoderMapperEngineToWire(t *testing.T) {
	const ticker = "BTCUSDT"
	const scale = 100 // two fractional digits, matching the 2-digit wire precision below

	var traits marketdata.BinanceSpotTraits
	payload := []byte(`{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":1,"u":2,"pu":0,` +
		`"b":[["1000.00","5.0"]],"a":[["1001.00","4.0"]]}`)

	kind := traits.Classify("btcusdt@depth", payload)
	require.Equal(t, marketdata.WireDepthUpdate, kind)

	wire, err := traits.DecodeGeneric(kind, payload)
	require.NoError(t, err)

	mapper := marketdata.NewMapper(64, scale, testLog(t))
	batch, err := mapper.ToMarketUpdate(ticker, wire)
	require.NoError(t, err)
	require.Equal(t, marketdata.KindMarket, batch.Kind)
	require.Len(t, batch.Entries, 2)

	sender := newWireSender(t, scale, scale)
	eng, ok := engine.New(engine.Config{
		Ticker:       ticker,
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
		BookConfig:     book.Config{MinPriceRaw: 1, MaxPriceRaw: 1_000_000_00, Tick: 1},
		MarketDataRing: 1024,
		ExecReportRing: 1024,
	}, sender, metrics.New(), testLog(t))
	require.True(t, ok)

	eng.Start()
	defer eng.Stop()

	require.True(t, eng.SubmitMarketData(batch))

	require.Eventually(t, func() bool {
		return len(sender.received) >= 2
	}, time.Second, time.Millisecond, "market maker should have quoted both sides onto the wire")
}

// TestExecutionReportFlowsThroughResponseMapperToStateManager drives a raw
// exchange execution report through the response mapper into the engine's
// order-state manager and position keeper, confirming a fill updates
// position the same way TestExecutionReportFlowUpdatesPosition in the
// engine package does, but via the wire-shaped WireExecutionReport rather
// than a pre-built domain orders.ExecutionReport.
func TestExecutionReportFlowsThroughResponseMapperToStateManager(t *testing.T) {
	const ticker = "BTCUSDT"
	const scale = 100

	sender := newWireSender(t, scale, scale)
	eng, ok := engine.New(engine.Config{
		Ticker:       ticker,
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
		BookConfig:     book.Config{MinPriceRaw: 1, MaxPriceRaw: 1_000_000_00, Tick: 1},
		MarketDataRing: 1024,
		ExecReportRing: 1024,
	}, sender, metrics.New(), testLog(t))
	require.True(t, ok)

	eng.Start()
	defer eng.Stop()

	respMapper := encoding.NewResponseMapper(scale, scale)

	newID, err := sender.SendNew(ticker, orders.Buy, fixedpoint.PriceFromRaw(100000), fixedpoint.QtyFromRaw(1000))
	require.NoError(t, err)

	sb := eng.LayerBook().SideBookFor(ticker, orders.Buy)
	orders.AssignLayer(sb, uint64(fixedpoint.PriceFromRaw(100000).Raw), newID, time.Now().UnixNano())

	newReport, err := respMapper.Map(encoding.WireExecutionReport{
		OrdStatus: "NEW", ClOrderID: newID, Side: "BUY", Price: "1000.00", LeavesQty: "10.00",
	})
	require.NoError(t, err)
	require.True(t, eng.SubmitExecutionReport(newReport))

	filledReport, err := respMapper.Map(encoding.WireExecutionReport{
		OrdStatus: "FILLED", ClOrderID: newID, Side: "BUY", Price: "1000.00", LeavesQty: "0",
	})
	require.NoError(t, err)
	require.True(t, eng.SubmitExecutionReport(filledReport))

	require.Eventually(t, func() bool {
		return eng.PositionInfo().Position.Raw == 1000
	}, time.Second, time.Millisecond, "fill mapped off the wire should extend position")
}
