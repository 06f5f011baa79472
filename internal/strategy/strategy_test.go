package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/feature"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/orders"
)

type fakeOrderManager struct {
	applied [][]QuoteIntent
}

func (f *fakeOrderManager) Apply(intents []QuoteIntent) {
	f.applied = append(f.applied, intents)
}

func testLogger(t *testing.T) logging.Producer {
	t.Helper()
	l, err := logging.New("strategy-test", "error")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l.MakeProducer("test")
}

func newTestBook(t *testing.T) *book.Book {
	t.Helper()
	cfg := book.Config{MinPriceRaw: 1, MaxPriceRaw: 1_000_000, Tick: 1}
	return book.New(cfg, testLogger(t))
}

func seedBBO(t *testing.T, ob *book.Book, bid, bidQty, ask, askQty int64) {
	t.Helper()
	require.NoError(t, ob.ApplyUpdate(book.Update{Type: book.Add, Side: book.Bid, PriceRaw: bid, Qty: fixedpoint.QtyFromRaw(bidQty)}))
	require.NoError(t, ob.ApplyUpdate(book.Update{Type: book.Add, Side: book.Ask, PriceRaw: ask, Qty: fixedpoint.QtyFromRaw(askQty)}))
}

func TestRegistryHasAllBaseStrategies(t *testing.T) {
	for _, name := range []string{"market_maker", "liquid_taker", "obi_vwap_momentum", "mean_reversion_maker"} {
		_, ok := Lookup(name)
		require.True(t, ok, "expected %s to be registered", name)
	}
}

func TestMarketMakerQuotesBothSidesOnFirstUpdate(t *testing.T) {
	vt, ok := Lookup("market_maker")
	require.True(t, ok)

	cfg := Config{ClipQty: fixedpoint.QtyFromRaw(100), SafetyMarginRaw: 5}
	om := &fakeOrderManager{}
	data := vt.Create(om, feature.New(testLogger(t)), testLogger(t), cfg)
	ctx := &Context{OrderManager: om, Log: testLogger(t), Data: data}

	ob := newTestBook(t)
	seedBBO(t, ob, 1000, 10, 1010, 10)

	vt.OnOrderBookUpdated(ctx, "BTCUSDT", fixedpoint.PriceFromRaw(1000), book.Bid, ob)

	require.Len(t, om.applied, 1)
	intents := om.applied[0]
	require.Len(t, intents, 2)
	require.Equal(t, orders.Buy, intents[0].Side)
	require.Equal(t, int64(995), intents[0].Price.Raw)
	require.Equal(t, orders.Sell, intents[1].Side)
	require.Equal(t, int64(1015), intents[1].Price.Raw)

	// BBO unchanged: no re-quote.
	vt.OnOrderBookUpdated(ctx, "BTCUSDT", fixedpoint.PriceFromRaw(1000), book.Bid, ob)
	require.Len(t, om.applied, 1, "unchanged BBO must not re-quote")
}

func TestMarketMakerRequotesOnlyMovedSide(t *testing.T) {
	vt, _ := Lookup("market_maker")
	cfg := Config{ClipQty: fixedpoint.QtyFromRaw(100), SafetyMarginRaw: 5}
	om := &fakeOrderManager{}
	data := vt.Create(om, feature.New(testLogger(t)), testLogger(t), cfg)
	ctx := &Context{OrderManager: om, Log: testLogger(t), Data: data}

	ob := newTestBook(t)
	seedBBO(t, ob, 1000, 10, 1010, 10)
	vt.OnOrderBookUpdated(ctx, "BTCUSDT", fixedpoint.PriceFromRaw(1000), book.Bid, ob)

	require.NoError(t, ob.ApplyUpdate(book.Update{Type: book.Add, Side: book.Bid, PriceRaw: 1002, Qty: fixedpoint.QtyFromRaw(5)}))
	vt.OnOrderBookUpdated(ctx, "BTCUSDT", fixedpoint.PriceFromRaw(1002), book.Bid, ob)

	require.Len(t, om.applied, 2)
	require.Len(t, om.applied[1], 1, "only the bid side moved")
	require.Equal(t, orders.Buy, om.applied[1][0].Side)
}

func TestLiquidTakerFiresOnceThenDisarms(t *testing.T) {
	vt, ok := Lookup("liquid_taker")
	require.True(t, ok)

	cfg := Config{ClipQty: fixedpoint.QtyFromRaw(50), EnterThreshold: 0.5, ExitThreshold: 0.2}
	om := &fakeOrderManager{}
	fe := feature.New(testLogger(t))
	data := vt.Create(om, fe, testLogger(t), cfg)
	ctx := &Context{OrderManager: om, Features: fe, Log: testLogger(t), Data: data}

	ob := newTestBook(t)
	seedBBO(t, ob, 1000, 10, 1010, 4)

	fe.OnTradeUpdated(book.Ask, fixedpoint.QtyFromRaw(6), ob.BBO())
	trade := &MarketTrade{Ticker: "BTCUSDT", Side: book.Ask, Price: fixedpoint.PriceFromRaw(1010), Qty: fixedpoint.QtyFromRaw(6)}
	vt.OnTradeUpdated(ctx, trade, ob)

	require.Len(t, om.applied, 1)
	require.Equal(t, orders.Buy, om.applied[0][0].Side)

	// Ratio still above enter threshold: must not double-fire while armed=false.
	vt.OnTradeUpdated(ctx, trade, ob)
	require.Len(t, om.applied, 1)
}

func TestMomentumBuysWhenMidAboveVWAPWithPositiveImbalance(t *testing.T) {
	vt, ok := Lookup("obi_vwap_momentum")
	require.True(t, ok)

	cfg := Config{ClipQty: fixedpoint.QtyFromRaw(1000), EnterThreshold: 0, ExitThreshold: 0, OBILevels: 5}
	om := &fakeOrderManager{}
	fe := feature.New(testLogger(t))
	data := vt.Create(om, fe, testLogger(t), cfg)
	ctx := &Context{OrderManager: om, Features: fe, Log: testLogger(t), Data: data}

	ob := newTestBook(t)
	// Heavy bid depth vs thin ask depth: positive OBI.
	require.NoError(t, ob.ApplyUpdate(book.Update{Type: book.Add, Side: book.Bid, PriceRaw: 1000, Qty: fixedpoint.QtyFromRaw(100)}))
	require.NoError(t, ob.ApplyUpdate(book.Update{Type: book.Add, Side: book.Ask, PriceRaw: 1010, Qty: fixedpoint.QtyFromRaw(5)}))
	fe.OnOrderBookUpdated(ob.BBO())

	vt.OnOrderBookUpdated(ctx, "BTCUSDT", fixedpoint.PriceFromRaw(1000), book.Bid, ob)

	require.Len(t, om.applied, 1)
	require.Equal(t, orders.Buy, om.applied[0][0].Side)
}

func TestRobustZScoreFlatWindowIsDegenerate(t *testing.T) {
	xs := []float64{100, 100, 100, 100}
	var emad float64
	_, ok := robustZScore(xs, 100, &emad, 0.1)
	require.False(t, ok, "zero EMAD must report no signal, not divide by zero")
}

func TestRobustZScoreDetectsOutlier(t *testing.T) {
	xs := []float64{100, 101, 99, 100, 100, 101, 99, 100}
	var emad float64
	z, ok := robustZScore(xs, 110, &emad, 0.1)
	require.True(t, ok)
	require.Greater(t, z, 0.0)
}
