package encoding

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/orders"
)

func TestNextClOrderIDIsUniqueAndNonzero(t *testing.T) {
	a := NextClOrderID()
	b := NextClOrderID()
	require.NotZero(t, a)
	require.NotEqual(t, a, b)
}

func TestEncodeNewTruncatesToExchangePrecision(t *testing.T) {
	// Scale 1e8 (8 fractional digits), exchange only shows 2 for price, 4 for qty.
	enc := NewEncoder(1e8, 1e8, 2, 4)

	price := fixedpoint.PriceFromRaw(12_345_678) // 0.12345678
	qty := fixedpoint.QtyFromRaw(500_000)         // 0.005

	req := enc.EncodeNew("BTCUSDT", orders.Buy, price, qty, OrdTypeLimit, TIFGTC)

	require.Equal(t, int64(12_000_000), req.Price.Raw) // truncated to 0.12
	require.Equal(t, int64(500_000), req.Qty.Raw)       // already within 4 digits
	require.NotZero(t, req.ClOrderID)
}

func TestResponseMapperRoundTrip(t *testing.T) {
	mapper := NewResponseMapper(1e8, 1e8)

	report, err := mapper.Map(WireExecutionReport{
		OrdStatus: "PARTIALLY_FILLED",
		ClOrderID: 42,
		Side:      "SELL",
		Price:     "100.50",
		LeavesQty: "1.25",
	})
	require.NoError(t, err)
	require.Equal(t, orders.OrdPartiallyFilled, report.OrdStatus)
	require.Equal(t, orders.Sell, report.Side)
	require.Equal(t, uint64(42), report.ClOrderID)
	require.Equal(t, int64(100_50_000_000), report.Price.Raw)
	require.Equal(t, int64(1_25_000_000), report.LeavesQty.Raw)
}

func TestResponseMapperRejectsUnknownStatus(t *testing.T) {
	mapper := NewResponseMapper(1e8, 1e8)
	_, err := mapper.Map(WireExecutionReport{OrdStatus: "BOGUS", Side: "BUY"})
	require.Error(t, err)
}
