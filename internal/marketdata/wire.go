package marketdata

// WireKind tags which variant member of WireMessage is populated, mirroring
// the source's std::variant<std::monostate, DepthResponse, DepthSnapshot,
// TradeEvent, ExchangeInfoResponse, ApiResponse>.
type WireKind uint8

const (
	WireNone WireKind = iota
	WireDepthUpdate
	WireSnapshot
	WireTrade
	WireBookTicker
	WireExchangeInfo
	WireAPIResponse
)

// PriceLevel is one (price, qty) pair as it appears on the wire, still in
// decimal string form until the domain mapper parses it to raw fixed-point.
type PriceLevel struct {
	Price string
	Qty   string
}

// DepthUpdate is a Binance-style diff depth event.
type DepthUpdate struct {
	Symbol          string
	FirstUpdateID   uint64
	LastUpdateID    uint64
	PrevEndUpdateID uint64
	Bids            []PriceLevel
	Asks            []PriceLevel
}

// DepthSnapshot is a REST depth snapshot used to resynchronize after a gap.
type DepthSnapshot struct {
	Symbol       string
	LastUpdateID uint64
	Bids         []PriceLevel
	Asks         []PriceLevel
}

// TradeEvent is a single public trade print.
type TradeEvent struct {
	Symbol    string
	TradeID   uint64
	Price     string
	Qty       string
	BuyerMaker bool
}

// BookTickerEvent carries the exchange's own notion of best bid/offer.
type BookTickerEvent struct {
	Symbol  string
	BidPrice string
	BidQty   string
	AskPrice string
	AskQty   string
}

// WireMessage is the decoder's tagged-union output: exactly one of the
// pointer fields matching Kind is non-nil.
type WireMessage struct {
	Kind WireKind

	Depth       *DepthUpdate
	Snapshot    *DepthSnapshot
	Trade       *TradeEvent
	BookTicker  *BookTickerEvent
}

// ExchangeTraits is the polymorphism point the decoder and mapper run
// against. One concrete implementation exists per exchange+market
// (e.g. BinanceSpotTraits); each provides the two decode paths spec.md
// §4.5 requires to be semantically byte-identical.
type ExchangeTraits interface {
	ExchangeName() string

	// Classify inspects up to the first bytes of payload and the stream
	// name to choose a decode branch without fully parsing it.
	Classify(streamName string, payload []byte) WireKind

	// DecodeGeneric runs the schema-directed (encoding/json) decode path.
	DecodeGeneric(kind WireKind, payload []byte) (WireMessage, error)

	// DecodeOnePass runs the field-name-scanning fast-path decoder for the hot
	// streams (depth/trade/book-ticker/snapshot). Must be semantically
	// identical to DecodeGeneric for the same payload.
	DecodeOnePass(kind WireKind, payload []byte) (WireMessage, error)
}
