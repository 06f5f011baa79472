package marketdata

import (
	"context"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/time/rate"

	"github.com/richtraders/hft-core/internal/fixedpoint"
	"github.com/richtraders/hft-core/internal/logging"
	"github.com/richtraders/hft-core/internal/pool"
)

// Mapper converts a WireMessage into a MarketUpdateData by visiting the
// variant and allocating one MarketData per level from a fixed-capacity
// pool. Grounded on spec.md §4.5's domain-mapper contract: if the pool is
// exhausted mid-batch, the mapper backs off and retries rather than
// emitting a partial batch. The retry spin is capped by a token-bucket
// limiter rather than an unbounded doubling sleep, so a persistently
// exhausted pool cannot spin the decoder thread hotter than the configured
// retry rate.
type Mapper struct {
	pool       *pool.Pool[MarketData]
	scale      int64
	backoffCap time.Duration
	retryLimit *rate.Limiter
	log        logging.Producer
}

// NewMapper constructs a Mapper backed by a pool of the given capacity.
// scale is the fixed-point scale used to parse decimal wire strings.
func NewMapper(poolCapacity int, scale int64, log logging.Producer) *Mapper {
	return &Mapper{
		pool:       pool.New[MarketData](poolCapacity),
		scale:      scale,
		backoffCap: 10 * time.Millisecond,
		retryLimit: rate.NewLimiter(rate.Limit(200), 1),
		log:        log,
	}
}

// ToMarketUpdate converts msg to a MarketUpdateData. allocAll retries the
// whole batch allocation, paced by the token-bucket limiter, if the pool
// runs out of entries partway through, so a torn/partial batch is never
// returned.
func (m *Mapper) ToMarketUpdate(ticker string, msg WireMessage) (MarketUpdateData, error) {
	var (
		batch MarketUpdateData
		err   error
	)
	switch msg.Kind {
	case WireDepthUpdate:
		batch, err = m.fromDepth(ticker, msg.Depth)
	case WireTrade:
		batch, err = m.fromTrade(ticker, msg.Trade)
	case WireBookTicker:
		batch, err = m.fromBookTicker(ticker, msg.BookTicker)
	case WireSnapshot:
		batch, err = m.fromSnapshot(ticker, msg.Snapshot)
	default:
		return MarketUpdateData{Kind: KindNone}, nil
	}
	if err != nil {
		return MarketUpdateData{}, err
	}
	batch.CorrelationID = ksuid.New().String()
	return batch, nil
}

func (m *Mapper) fromDepth(ticker string, d *DepthUpdate) (MarketUpdateData, error) {
	entries, err := m.allocAll(ticker, len(d.Bids)+len(d.Asks), func(i int, md *MarketData) {
		var level PriceLevel
		var side Side
		if i < len(d.Bids) {
			level, side = d.Bids[i], SideBuy
		} else {
			level, side = d.Asks[i-len(d.Bids)], SideSell
		}
		m.fillLevel(md, ticker, side, level)
	})
	if err != nil {
		return MarketUpdateData{}, err
	}
	return MarketUpdateData{
		Kind: KindMarket, FirstUpdateID: d.FirstUpdateID, LastUpdateID: d.LastUpdateID,
		PrevEndUpdateID: d.PrevEndUpdateID, Entries: entries,
	}, nil
}

func (m *Mapper) fromSnapshot(ticker string, s *DepthSnapshot) (MarketUpdateData, error) {
	total := 1 + len(s.Bids) + len(s.Asks)
	entries, err := m.allocAll(ticker, total, func(i int, md *MarketData) {
		if i == 0 {
			*md = MarketData{Type: TypeSnapshotClear, Ticker: ticker, Side: SideInvalid}
			return
		}
		i--
		var level PriceLevel
		var side Side
		if i < len(s.Bids) {
			level, side = s.Bids[i], SideBuy
		} else {
			level, side = s.Asks[i-len(s.Bids)], SideSell
		}
		m.fillLevel(md, ticker, side, level)
	})
	if err != nil {
		return MarketUpdateData{}, err
	}
	return MarketUpdateData{Kind: KindSnapshot, LastUpdateID: s.LastUpdateID, Entries: entries}, nil
}

func (m *Mapper) fromTrade(ticker string, t *TradeEvent) (MarketUpdateData, error) {
	entries, err := m.allocAll(ticker, 1, func(_ int, md *MarketData) {
		side := SideSell
		if t.BuyerMaker {
			side = SideBuy
		}
		*md = MarketData{
			Type: TypeTrade, OrderID: t.TradeID, Ticker: ticker, Side: side,
			Price: fixedpoint.PriceFromRaw(fixedpoint.ParseRaw(t.Price, m.scale)),
			Qty:   fixedpoint.QtyFromRaw(fixedpoint.ParseRaw(t.Qty, m.scale)),
		}
	})
	if err != nil {
		return MarketUpdateData{}, err
	}
	return MarketUpdateData{Kind: KindTrade, Entries: entries}, nil
}

func (m *Mapper) fromBookTicker(ticker string, bt *BookTickerEvent) (MarketUpdateData, error) {
	entries, err := m.allocAll(ticker, 2, func(i int, md *MarketData) {
		if i == 0 {
			m.fillLevel(md, ticker, SideBuy, PriceLevel{Price: bt.BidPrice, Qty: bt.BidQty})
		} else {
			m.fillLevel(md, ticker, SideSell, PriceLevel{Price: bt.AskPrice, Qty: bt.AskQty})
		}
	})
	if err != nil {
		return MarketUpdateData{}, err
	}
	return MarketUpdateData{Kind: KindBookTicker, Entries: entries}, nil
}

// fillLevel applies spec.md §4.5's "qty = 0 becomes Cancel" rule.
func (m *Mapper) fillLevel(md *MarketData, ticker string, side Side, level PriceLevel) {
	qtyRaw := fixedpoint.ParseRaw(level.Qty, m.scale)
	typ := TypeAdd
	if qtyRaw == 0 {
		typ = TypeCancel
	}
	*md = MarketData{
		Type: typ, Ticker: ticker, Side: side,
		Price: fixedpoint.PriceFromRaw(fixedpoint.ParseRaw(level.Price, m.scale)),
		Qty:   fixedpoint.QtyFromRaw(qtyRaw),
	}
}

// allocAll allocates n entries from the pool via fn, retrying the entire
// batch under a bounded backoff if the pool runs dry partway through so a
// partial batch is never returned to the caller.
func (m *Mapper) allocAll(ticker string, n int, fill func(i int, md *MarketData)) ([]*MarketData, error) {
	for {
		entries, taken, ok := m.tryAllocAll(n, fill)
		if ok {
			return entries, nil
		}
		m.release(taken)
		m.log.Warn("marketdata: pool exhausted, backing off")
		if err := m.retryLimit.Wait(context.Background()); err != nil {
			time.Sleep(m.backoffCap)
		}
	}
}

func (m *Mapper) tryAllocAll(n int, fill func(i int, md *MarketData)) ([]*MarketData, []*MarketData, bool) {
	entries := make([]*MarketData, 0, n)
	for i := 0; i < n; i++ {
		md, ok := m.pool.Get()
		if !ok {
			return nil, entries, false
		}
		fill(i, md)
		entries = append(entries, md)
	}
	return entries, nil, true
}

func (m *Mapper) release(taken []*MarketData) {
	for _, md := range taken {
		m.pool.Put(md)
	}
}

// Free returns every entry in batch to the pool; called by the trade engine
// after a MarketUpdateData has been fully applied to the book.
func (m *Mapper) Free(batch MarketUpdateData) {
	for _, md := range batch.Entries {
		m.pool.Put(md)
	}
}

// PoolInUse reports how many MarketData entries are currently checked out of
// the mapper's pool, for periodic gauge sampling.
func (m *Mapper) PoolInUse() int {
	return m.pool.Cap() - m.pool.Len()
}
