package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresAtLeastOneSymbol(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	yaml := []byte(`
symbols:
  - symbol: BTCUSDT
    exchange: binance
risk:
  max_order_qty: "5.0"
  max_position_qty: "20.0"
monitoring:
  metrics_addr: ":9091"
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Symbols, 1)
	require.Equal(t, "BTCUSDT", cfg.Symbols[0].Symbol)
	require.Equal(t, ":9091", cfg.Monitoring.MetricsAddr)
	require.Equal(t, 50, cfg.Risk.MaxOrdersPerSecond)
}
