// Grounded on original_source/hft/core/websocket/market_data/exchanges/
// binance/spot/{binance_md_connection_handler.h,binance_spot_encoder.h} and
// json_binance_spot_md_decoder.hpp / onepass_binance_futures_md_decoder.hpp
// for the generic-vs-one-pass decode split.
package marketdata

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// BinanceSpotTraits decodes Binance spot combined-stream JSON: depthUpdate,
// trade, bookTicker, and REST depth-snapshot payloads.
type BinanceSpotTraits struct{}

func (BinanceSpotTraits) ExchangeName() string { return "binance-spot" }

// Classify inspects the event-type field without a full parse: depth and
// trade frames carry `"e":"<type>"` near the start of the object; bookTicker
// frames are matched either by `"e":"bookTicker"` or by their `u`/`b`/`B`
// fields; REST snapshots are matched by `lastUpdateId`. Only the first 256
// bytes of payload are searched.
func (BinanceSpotTraits) Classify(streamName string, payload []byte) WireKind {
	if len(payload) < 2 {
		return WireNone
	}
	switch {
	case containsField(payload, `"e":"depthUpdate"`):
		return WireDepthUpdate
	case containsField(payload, `"e":"trade"`):
		return WireTrade
	case containsField(payload, `"e":"bookTicker"`), containsField(payload, `"u":`) && containsField(payload, `"b":"`) && containsField(payload, `"B":"`):
		return WireBookTicker
	case containsField(payload, `"lastUpdateId"`):
		return WireSnapshot
	default:
		return WireNone
	}
}

func containsField(payload []byte, needle string) bool {
	n := len(needle)
	limit := len(payload)
	if limit > 256 {
		limit = 256
	}
	for i := 0; i+n <= limit; i++ {
		if string(payload[i:i+n]) == needle {
			return true
		}
	}
	return false
}

type binanceDepthWire struct {
	EventType  string     `json:"e"`
	Symbol     string     `json:"s"`
	FirstID    uint64     `json:"U"`
	FinalID    uint64     `json:"u"`
	PrevFinalID uint64    `json:"pu"`
	Bids       [][]string `json:"b"`
	Asks       [][]string `json:"a"`
}

type binanceTradeWire struct {
	Symbol     string `json:"s"`
	TradeID    uint64 `json:"t"`
	Price      string `json:"p"`
	Qty        string `json:"q"`
	BuyerMaker bool   `json:"m"`
}

type binanceBookTickerWire struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

type binanceSnapshotWire struct {
	LastUpdateID uint64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func levelsFromPairs(pairs [][]string) []PriceLevel {
	out := make([]PriceLevel, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			continue
		}
		out = append(out, PriceLevel{Price: p[0], Qty: p[1]})
	}
	return out
}

// DecodeGeneric runs the schema-directed encoding/json decode path.
func (BinanceSpotTraits) DecodeGeneric(kind WireKind, payload []byte) (WireMessage, error) {
	switch kind {
	case WireDepthUpdate:
		var w binanceDepthWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return WireMessage{}, fmt.Errorf("marketdata: decode depth: %w", err)
		}
		return WireMessage{Kind: WireDepthUpdate, Depth: &DepthUpdate{
			Symbol: w.Symbol, FirstUpdateID: w.FirstID, LastUpdateID: w.FinalID,
			PrevEndUpdateID: w.PrevFinalID,
			Bids:            levelsFromPairs(w.Bids),
			Asks:            levelsFromPairs(w.Asks),
		}}, nil
	case WireTrade:
		var w binanceTradeWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return WireMessage{}, fmt.Errorf("marketdata: decode trade: %w", err)
		}
		return WireMessage{Kind: WireTrade, Trade: &TradeEvent{
			Symbol: w.Symbol, TradeID: w.TradeID, Price: w.Price, Qty: w.Qty, BuyerMaker: w.BuyerMaker,
		}}, nil
	case WireBookTicker:
		var w binanceBookTickerWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return WireMessage{}, fmt.Errorf("marketdata: decode book ticker: %w", err)
		}
		return WireMessage{Kind: WireBookTicker, BookTicker: &BookTickerEvent{
			Symbol: w.Symbol, BidPrice: w.BidPrice, BidQty: w.BidQty, AskPrice: w.AskPrice, AskQty: w.AskQty,
		}}, nil
	case WireSnapshot:
		var w binanceSnapshotWire
		if err := json.Unmarshal(payload, &w); err != nil {
			return WireMessage{}, fmt.Errorf("marketdata: decode snapshot: %w", err)
		}
		return WireMessage{Kind: WireSnapshot, Snapshot: &DepthSnapshot{
			LastUpdateID: w.LastUpdateID, Bids: levelsFromPairs(w.Bids), Asks: levelsFromPairs(w.Asks),
		}}, nil
	default:
		return WireMessage{}, fmt.Errorf("marketdata: unsupported wire kind %d", kind)
	}
}

// DecodeOnePass bypasses generic unmarshaling for the hot streams: each
// field is extracted by scanning the payload for its name and taking the
// first occurrence, rather than building a generic token tree. It must produce results identical to
// DecodeGeneric for the same payload (verified by the equivalence test).
func (BinanceSpotTraits) DecodeOnePass(kind WireKind, payload []byte) (WireMessage, error) {
	switch kind {
	case WireDepthUpdate:
		return decodeDepthOnePass(payload)
	case WireTrade:
		return decodeTradeOnePass(payload)
	case WireBookTicker:
		return decodeBookTickerOnePass(payload)
	case WireSnapshot:
		return decodeSnapshotOnePass(payload)
	default:
		return WireMessage{}, fmt.Errorf("marketdata: unsupported wire kind %d", kind)
	}
}

func decodeDepthOnePass(payload []byte) (WireMessage, error) {
	symbol, err := stringField(payload, `"s":"`)
	if err != nil {
		return WireMessage{}, err
	}
	firstID, err := uintField(payload, `"U":`)
	if err != nil {
		return WireMessage{}, err
	}
	finalID, err := uintField(payload, `"u":`)
	if err != nil {
		return WireMessage{}, err
	}
	prevFinalID, _ := uintField(payload, `"pu":`) // absent on some snapshots-of-stream

	bids, err := levelArrayField(payload, `"b":[`)
	if err != nil {
		return WireMessage{}, err
	}
	asks, err := levelArrayField(payload, `"a":[`)
	if err != nil {
		return WireMessage{}, err
	}

	return WireMessage{Kind: WireDepthUpdate, Depth: &DepthUpdate{
		Symbol: symbol, FirstUpdateID: firstID, LastUpdateID: finalID,
		PrevEndUpdateID: prevFinalID, Bids: bids, Asks: asks,
	}}, nil
}

func decodeTradeOnePass(payload []byte) (WireMessage, error) {
	symbol, err := stringField(payload, `"s":"`)
	if err != nil {
		return WireMessage{}, err
	}
	tradeID, err := uintField(payload, `"t":`)
	if err != nil {
		return WireMessage{}, err
	}
	price, err := stringField(payload, `"p":"`)
	if err != nil {
		return WireMessage{}, err
	}
	qty, err := stringField(payload, `"q":"`)
	if err != nil {
		return WireMessage{}, err
	}
	buyerMaker := containsField(payload, `"m":true`)

	return WireMessage{Kind: WireTrade, Trade: &TradeEvent{
		Symbol: symbol, TradeID: tradeID, Price: price, Qty: qty, BuyerMaker: buyerMaker,
	}}, nil
}

func decodeBookTickerOnePass(payload []byte) (WireMessage, error) {
	symbol, err := stringField(payload, `"s":"`)
	if err != nil {
		return WireMessage{}, err
	}
	bidPrice, err := stringField(payload, `"b":"`)
	if err != nil {
		return WireMessage{}, err
	}
	bidQty, err := stringField(payload, `"B":"`)
	if err != nil {
		return WireMessage{}, err
	}
	askPrice, err := stringField(payload, `"a":"`)
	if err != nil {
		return WireMessage{}, err
	}
	askQty, err := stringField(payload, `"A":"`)
	if err != nil {
		return WireMessage{}, err
	}
	return WireMessage{Kind: WireBookTicker, BookTicker: &BookTickerEvent{
		Symbol: symbol, BidPrice: bidPrice, BidQty: bidQty, AskPrice: askPrice, AskQty: askQty,
	}}, nil
}

func decodeSnapshotOnePass(payload []byte) (WireMessage, error) {
	lastID, err := uintField(payload, `"lastUpdateId":`)
	if err != nil {
		return WireMessage{}, err
	}
	bids, err := levelArrayField(payload, `"bids":[`)
	if err != nil {
		return WireMessage{}, err
	}
	asks, err := levelArrayField(payload, `"asks":[`)
	if err != nil {
		return WireMessage{}, err
	}
	return WireMessage{Kind: WireSnapshot, Snapshot: &DepthSnapshot{
		LastUpdateID: lastID, Bids: bids, Asks: asks,
	}}, nil
}

func stringField(payload []byte, prefix string) (string, error) {
	idx := indexOf(payload, prefix)
	if idx < 0 {
		return "", fmt.Errorf("marketdata: field %q not found", prefix)
	}
	start := idx + len(prefix)
	end := start
	for end < len(payload) && payload[end] != '"' {
		end++
	}
	if end >= len(payload) {
		return "", fmt.Errorf("marketdata: unterminated string field %q", prefix)
	}
	return string(payload[start:end]), nil
}

func uintField(payload []byte, prefix string) (uint64, error) {
	idx := indexOf(payload, prefix)
	if idx < 0 {
		return 0, fmt.Errorf("marketdata: field %q not found", prefix)
	}
	start := idx + len(prefix)
	end := start
	for end < len(payload) && payload[end] >= '0' && payload[end] <= '9' {
		end++
	}
	if end == start {
		return 0, fmt.Errorf("marketdata: empty numeric field %q", prefix)
	}
	v, err := strconv.ParseUint(string(payload[start:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("marketdata: parse field %q: %w", prefix, err)
	}
	return v, nil
}

// levelArrayField extracts the [["price","qty"], ...] array starting right
// after prefix (which already includes the opening bracket).
func levelArrayField(payload []byte, prefix string) ([]PriceLevel, error) {
	idx := indexOf(payload, prefix)
	if idx < 0 {
		return nil, fmt.Errorf("marketdata: field %q not found", prefix)
	}
	pos := idx + len(prefix) - 1 // back up to the '['

	var levels []PriceLevel
	depth := 0
	for pos < len(payload) {
		c := payload[pos]
		switch c {
		case '[':
			depth++
			if depth == 2 {
				level, next, err := parsePriceLevelPair(payload, pos)
				if err != nil {
					return nil, err
				}
				levels = append(levels, level)
				depth-- // parsePriceLevelPair consumed the pair's closing ']'
				pos = next
				continue
			}
		case ']':
			depth--
			if depth == 0 {
				return levels, nil
			}
		}
		pos++
	}
	return nil, fmt.Errorf("marketdata: unterminated level array %q", prefix)
}

func parsePriceLevelPair(payload []byte, openBracket int) (PriceLevel, int, error) {
	pos := openBracket + 1
	price, pos, err := parseQuotedStringAt(payload, pos)
	if err != nil {
		return PriceLevel{}, pos, err
	}
	for pos < len(payload) && payload[pos] != '"' {
		pos++
	}
	qty, pos, err := parseQuotedStringAt(payload, pos)
	if err != nil {
		return PriceLevel{}, pos, err
	}
	for pos < len(payload) && payload[pos] != ']' {
		pos++
	}
	return PriceLevel{Price: price, Qty: qty}, pos + 1, nil
}

func parseQuotedStringAt(payload []byte, pos int) (string, int, error) {
	for pos < len(payload) && payload[pos] != '"' {
		pos++
	}
	if pos >= len(payload) {
		return "", pos, fmt.Errorf("marketdata: expected quoted string")
	}
	start := pos + 1
	end := start
	for end < len(payload) && payload[end] != '"' {
		end++
	}
	if end >= len(payload) {
		return "", end, fmt.Errorf("marketdata: unterminated quoted string")
	}
	return string(payload[start:end]), end + 1, nil
}

func indexOf(payload []byte, needle string) int {
	n := len(needle)
	for i := 0; i+n <= len(payload); i++ {
		if string(payload[i:i+n]) == needle {
			return i
		}
	}
	return -1
}
