package strategy

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/richtraders/hft-core/internal/book"
	"github.com/richtraders/hft-core/internal/feature"
	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/orders"
)

// madToStdDev is the constant that scales median absolute deviation to a
// consistent estimator of standard deviation for normally distributed data,
// per spec.md §4.7's robust z-score definition (1.4826 * MAD).
const madToStdDev = 1.4826

func init() {
	Register("mean_reversion_maker", VTable{
		OnOrderBookUpdated: meanReversionOnOrderBookUpdated,
		OnTradeUpdated:     func(*Context, *MarketTrade, *book.Book) {},
		OnOrderUpdated:     func(*Context, *orders.ExecutionReport) {},
		Create:             meanReversionCreate,
		Destroy:            func(any) {},
	})
}

// meanReversionData tracks the rolling window of mid-prices a robust
// z-score is computed over, the incrementally-updated EMAD that scores it,
// plus an EMA of top-of-book notional used for the dynamic wall threshold.
// Grounded on spec.md §4.7's textual description
// (mean_reversion_maker/{robust_zscore.h,dynamic_wall_threshold.h,
// wall_detector.h} in the retrieved source are declaration-only headers with
// no method bodies, so the algorithm follows the spec text directly: a
// rolling-window median plus EMAD scaled by 1.4826 for the z-score, and a
// hybrid EMA-of-notional plus percentile-of-top-N-notional for the wall
// threshold).
type meanReversionData struct {
	cfg Config

	window []float64 // ring of recent mid-prices, raw units
	next   int
	filled int
	emad   float64 // exponential moving absolute deviation, seeded on first sample

	notionEMA float64
	haveEMA   bool
}

func meanReversionCreate(_ OrderManager, _ *feature.Engine, _ logging.Producer, cfg Config) any {
	if cfg.ZScoreWindow <= 0 {
		cfg.ZScoreWindow = 50
	}
	if cfg.EMADAlpha <= 0 {
		cfg.EMADAlpha = 0.1
	}
	if cfg.WallEMAAlpha <= 0 {
		cfg.WallEMAAlpha = 0.05
	}
	if cfg.WallPercentile <= 0 {
		cfg.WallPercentile = 0.8
	}
	return &meanReversionData{
		cfg:    cfg,
		window: make([]float64, cfg.ZScoreWindow),
	}
}

func (d *meanReversionData) push(mid float64) {
	d.window[d.next] = mid
	d.next = (d.next + 1) % len(d.window)
	if d.filled < len(d.window) {
		d.filled++
	}
}

func (d *meanReversionData) samples() []float64 {
	out := make([]float64, d.filled)
	copy(out, d.window[:d.filled])
	return out
}

func median(xs []float64) float64 {
	sorted := append([]float64{}, xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// robustZScore computes (x - median) / (1.4826 * EMAD): the window's median
// centers the score, and *emad — the exponential moving absolute deviation —
// scales it, updated in place by an O(1) exponential blend of the current
// sample's deviation rather than a full window re-sort on every tick (the
// glossary's EMAD: "O(1) approximation of MAD"). The first call seeds *emad
// directly from its own deviation. Returns 0, false if xs has fewer than 2
// samples or *emad is still zero (a degenerate flat series).
func robustZScore(xs []float64, x float64, emad *float64, alpha float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	med := median(xs)
	dev := math.Abs(x - med)
	if *emad == 0 {
		*emad = dev
	} else {
		*emad = alpha*dev + (1-alpha)**emad
	}
	if *emad == 0 {
		return 0, false
	}
	return (x - med) / (madToStdDev * *emad), true
}

// percentileOf returns the percentile-th order statistic of xs (0<percentile<=1).
func percentileOf(xs []float64, percentile float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64{}, xs...)
	sort.Float64s(sorted)
	idx := int(percentile * float64(len(sorted)-1))
	return sorted[idx]
}

// wallThreshold blends an EMA of the first level's notional with the
// WallPercentile-th percentile of the notionals (price × qty) of all given
// levels, bid and ask together, and returns the larger of the two; the
// caller treats a level whose notional reaches it as a "wall".
func wallThreshold(d *meanReversionData, levels []book.Level) float64 {
	notionals := make([]float64, len(levels))
	for i, l := range levels {
		notionals[i] = float64(l.Price.Raw) * float64(l.Qty.Raw)
	}
	pct := percentileOf(notionals, d.cfg.WallPercentile)

	top := 0.0
	if len(notionals) > 0 {
		top = notionals[0]
	}
	if !d.haveEMA {
		d.notionEMA = top
		d.haveEMA = true
	} else {
		d.notionEMA = d.cfg.WallEMAAlpha*top + (1-d.cfg.WallEMAAlpha)*d.notionEMA
	}

	if d.notionEMA > pct {
		return d.notionEMA
	}
	return pct
}

// meanReversionOnOrderBookUpdated quotes toward the mean when the current
// mid is a statistically significant distance (robust z-score beyond
// EnterThreshold) from its rolling window, but only on the side away from a
// detected wall — quoting into a wall risks adverse selection.
func meanReversionOnOrderBookUpdated(ctx *Context, ticker string, _ fixedpoint.Price, _ book.Side, ob *book.Book) {
	data, ok := ctx.Data.(*meanReversionData)
	if !ok {
		return
	}
	mid := ctx.Features.MidPrice()
	if !mid.IsValid() {
		return
	}

	midF := float64(mid.Raw)
	z, has := robustZScore(data.samples(), midF, &data.emad, data.cfg.EMADAlpha)
	data.push(midF)
	if !has || math.Abs(z) < data.cfg.ExitThreshold {
		return
	}
	if math.Abs(z) < data.cfg.EnterThreshold {
		return
	}

	bbo := ob.BBO()
	if !bbo.BidPrice.IsValid() || !bbo.AskPrice.IsValid() {
		return
	}

	bidLevels := ob.PeekQty(book.Bid, data.cfg.OBILevels)
	askLevels := ob.PeekQty(book.Ask, data.cfg.OBILevels)
	threshold := wallThreshold(data, append(append([]book.Level{}, bidLevels...), askLevels...))

	// z > 0: price is above its mean, expect reversion down, so sell into
	// strength unless the ask side itself is a wall (quote would rest behind
	// size unlikely to trade through).
	var intent QuoteIntent
	if z > 0 {
		if len(askLevels) > 0 && float64(askLevels[0].Price.Raw)*float64(askLevels[0].Qty.Raw) >= threshold {
			return
		}
		intent = QuoteIntent{Ticker: ticker, Side: orders.Sell, Price: bbo.AskPrice, Qty: data.cfg.ClipQty}
	} else {
		if len(bidLevels) > 0 && float64(bidLevels[0].Price.Raw)*float64(bidLevels[0].Qty.Raw) >= threshold {
			return
		}
		intent = QuoteIntent{Ticker: ticker, Side: orders.Buy, Price: bbo.BidPrice, Qty: data.cfg.ClipQty}
	}

	ctx.OrderManager.Apply([]QuoteIntent{intent})
	ctx.Log.Debug("mean_reversion_maker: quote fired", zap.Float64("z", z), zap.Float64("wall_threshold", threshold))
}
