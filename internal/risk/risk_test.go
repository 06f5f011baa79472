package risk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
)

func testLog(t *testing.T) logging.Producer {
	t.Helper()
	l, err := logging.New("risk-test", "error")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l.MakeProducer("test")
}

// S6 — Position and PnL round trip.
func TestScenarioS6PositionAndPnLRoundTrip(t *testing.T) {
	k := NewKeeper(testLog(t))

	k.OnFill(true, fixedpoint.PriceFromRaw(100), fixedpoint.QtyFromRaw(2))
	k.OnFill(false, fixedpoint.PriceFromRaw(110), fixedpoint.QtyFromRaw(3))

	info := k.Info()
	require.Equal(t, int64(-1), info.Position.Raw)
	require.Equal(t, int64(20), info.RealizedPnL.Raw)
	require.Equal(t, int64(110), info.OpenVWAPSell.Raw)
	require.False(t, info.OpenVWAPBuy.IsValid())

	k.OnBBOUpdate(book.BBO{BidPrice: fixedpoint.PriceFromRaw(108), AskPrice: fixedpoint.PriceFromRaw(112)})
	require.Equal(t, int64(0), k.Info().UnrealizedPnL.Raw)

	k.OnBBOUpdate(book.BBO{BidPrice: fixedpoint.PriceFromRaw(104), AskPrice: fixedpoint.PriceFromRaw(108)})
	require.Equal(t, int64(4), k.Info().UnrealizedPnL.Raw)
}

// Universal invariant 4: total_pnl == realized + unrealized after every
// event.
func TestPropertyTotalPnLIsSumOfParts(t *testing.T) {
	k := NewKeeper(testLog(t))
	k.OnFill(true, fixedpoint.PriceFromRaw(100), fixedpoint.QtyFromRaw(5))
	k.OnBBOUpdate(book.BBO{BidPrice: fixedpoint.PriceFromRaw(101), AskPrice: fixedpoint.PriceFromRaw(103)})
	require.Equal(t, k.Info().RealizedPnL.Add(k.Info().UnrealizedPnL).Raw, k.TotalPnL().Raw)

	k.OnFill(false, fixedpoint.PriceFromRaw(105), fixedpoint.QtyFromRaw(2))
	require.Equal(t, k.Info().RealizedPnL.Add(k.Info().UnrealizedPnL).Raw, k.TotalPnL().Raw)
}

func TestManagerEvaluate(t *testing.T) {
	keeper := NewKeeper(testLog(t))
	limits := Limits{
		MaxPosition: fixedpoint.QtyFromRaw(100),
		MaxOrderQty: fixedpoint.QtyFromRaw(50),
		MaxLoss:     fixedpoint.PriceFromRaw(-1000),
	}
	m := NewManager(limits, keeper, testLog(t))

	require.Equal(t, Allowed, m.Evaluate(fixedpoint.QtyFromRaw(0), fixedpoint.QtyFromRaw(10)))
	require.Equal(t, BreachesQty, m.Evaluate(fixedpoint.QtyFromRaw(0), fixedpoint.QtyFromRaw(60)))
	require.Equal(t, BreachesPosition, m.Evaluate(fixedpoint.QtyFromRaw(90), fixedpoint.QtyFromRaw(20)))

	keeper.OnFill(false, fixedpoint.PriceFromRaw(100), fixedpoint.QtyFromRaw(1))
	// drive a large realised loss by buying back much higher
	keeper.OnFill(true, fixedpoint.PriceFromRaw(2000), fixedpoint.QtyFromRaw(1))
	require.Equal(t, BreachesLoss, m.Evaluate(fixedpoint.QtyFromRaw(0), fixedpoint.QtyFromRaw(1)))
}
