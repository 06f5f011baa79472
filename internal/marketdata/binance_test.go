package marketdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var equivalenceCorpus = []struct {
	name    string
	kind    WireKind
	payload string
}{
	{
		name: "depth",
		kind: WireDepthUpdate,
		payload: `{"e":"depthUpdate","E":123456789,"s":"BTCUSDT","U":157,"u":160,"pu":156,` +
			`"b":[["0.0024","10"],["0.0023","0"]],"a":[["0.0026","100"]]}`,
	},
	{
		name:    "trade",
		kind:    WireTrade,
		payload: `{"e":"trade","E":123456789,"s":"BTCUSDT","t":12345,"p":"0.001","q":"100","m":true}`,
	},
	{
		name:    "book_ticker",
		kind:    WireBookTicker,
		payload: `{"u":400900217,"s":"BTCUSDT","b":"25.35190000","B":"31.21000000","a":"25.36520000","A":"40.66000000"}`,
	},
	{
		name:    "snapshot",
		kind:    WireSnapshot,
		payload: `{"lastUpdateId":160,"bids":[["0.0024","10"]],"asks":[["0.0026","100"],["0.0027","5"]]}`,
	},
}

func TestOnePassDecoderMatchesGenericDecoder(t *testing.T) {
	var traits BinanceSpotTraits
	for _, tc := range equivalenceCorpus {
		t.Run(tc.name, func(t *testing.T) {
			generic, err := traits.DecodeGeneric(tc.kind, []byte(tc.payload))
			require.NoError(t, err)
			onePass, err := traits.DecodeOnePass(tc.kind, []byte(tc.payload))
			require.NoError(t, err)
			require.Equal(t, generic, onePass)
		})
	}
}

func TestClassifyDispatchesOnEventType(t *testing.T) {
	var traits BinanceSpotTraits
	for _, tc := range equivalenceCorpus {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.kind, traits.Classify("", []byte(tc.payload)))
		})
	}
}
