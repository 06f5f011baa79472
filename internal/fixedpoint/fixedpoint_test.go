package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFormatRoundTrip(t *testing.T) {
	cases := []struct {
		in, want string
		scale    int64
	}{
		{"1001.00", "1001", 100},
		{"1001.50", "1001.5", 100},
		{"0.001", "0.001", 1000},
		{"-12.34", "-12.34", 100},
		{"100", "100", 10},
	}
	for _, c := range cases {
		raw := ParseRaw(c.in, c.scale)
		require.Equal(t, c.want, FormatRaw(raw, c.scale), "input %q", c.in)
	}
}

func TestInvalidSentinel(t *testing.T) {
	require.False(t, InvalidPrice.IsValid())
	require.False(t, InvalidQty.IsValid())
	require.True(t, PriceFromRaw(100).IsValid())
}

func TestSaturatingAdd(t *testing.T) {
	p := PriceFromRaw(1 << 62)
	sum := p.Add(p).Add(p).Add(p)
	require.True(t, sum.IsValid())
	require.Less(t, sum.Raw, Invalid)
}

func TestTruncateToPrecision(t *testing.T) {
	raw := ParseRaw("1.23456789", 100000000)
	truncated := TruncateToPrecision(raw, 100000000, 4)
	require.Equal(t, "1.2345", FormatRaw(truncated, 100000000))
}
