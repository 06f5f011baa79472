// Package marketdata decodes exchange wire messages into pooled
// MarketData/MarketUpdateData batches and detects update-id gaps in the
// depth stream. Grounded on original_source/hft/src/market_data.h and
// NewOroFix44/market_data.h for the MarketData/MarketUpdateData shapes, and
// on binance_order_book.{h,cpp} for the concrete wire traits.
package marketdata

import "github.com/richtraders/hft-core/internal/fixedpoint"

// Side mirrors common::Side: Buy, Sell, Invalid, Trade.
type Side uint8

const (
	SideInvalid Side = iota
	SideBuy
	SideSell
	SideTrade
)

// UpdateType mirrors common::MarketUpdateType.
type UpdateType uint8

const (
	TypeInvalid UpdateType = iota
	TypeAdd
	TypeModify
	TypeCancel
	TypeTrade
	TypeBookTicker
	TypeSnapshotClear
)

// MarketData is a single book-side event, pool-allocated by the decoder and
// freed by the trade engine after being applied to the book.
type MarketData struct {
	Type    UpdateType
	OrderID uint64
	Ticker  string
	Side    Side
	Price   fixedpoint.Price
	Qty     fixedpoint.Qty
}

// BatchKind distinguishes what produced a MarketUpdateData batch.
type BatchKind uint8

const (
	KindNone BatchKind = iota
	KindMarket
	KindTrade
	KindBookTicker
	KindSnapshot
)

// MarketUpdateData is an atomic batch for one wire message, carrying the
// fields required for Binance-style gap detection.
type MarketUpdateData struct {
	Kind            BatchKind
	FirstUpdateID   uint64
	LastUpdateID    uint64
	PrevEndUpdateID uint64
	Entries         []*MarketData
	// CorrelationID identifies this batch across the decode -> book-apply
	// boundary for log correlation. It has no bearing on book semantics.
	CorrelationID string
}
