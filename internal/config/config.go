// Package config loads the engine's static startup configuration: per-symbol
// ring/pool sizing, risk limits, and monitoring knobs. There is no hot-reload
// and no persisted runtime state — every value is read once at process start
// and handed to the components that need it. Grounded on the teacher's
// internal/config/config.go (viper-backed LoadConfig/setDefaults shape),
// narrowed to the sections this engine actually has.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SymbolConfig describes one traded instrument's resource sizing: ring
// capacities, pool capacities, and which exchange traits decode its feed.
type SymbolConfig struct {
	Symbol          string `mapstructure:"symbol"`
	Exchange        string `mapstructure:"exchange"`
	StreamURL       string `mapstructure:"stream_url"`
	Strategy        string `mapstructure:"strategy" default:"market_maker"`
	MarketDataRing  int    `mapstructure:"market_data_ring" default:"65536"`
	OrderEntryRing  int    `mapstructure:"order_entry_ring" default:"16384"`
	ExecReportRing  int    `mapstructure:"exec_report_ring" default:"16384"`
	OrderPoolSize   int    `mapstructure:"order_pool_size" default:"4096"`
	PriceLevelCount int    `mapstructure:"price_level_count" default:"4096"`
	PriceTick       string `mapstructure:"price_tick" default:"0.01"`
	QtyStep         string `mapstructure:"qty_step" default:"0.0001"`
	// PriceScale/QtyScale are the fixed-point scales matching PriceTick/QtyStep
	// (e.g. a 0.01 tick is scale 100): spec.md §3.1 fixes the scale at build
	// time per compiled symbol, so these are read once at startup rather than
	// derived from the tick strings at the hot path.
	PriceScale     int64 `mapstructure:"price_scale" default:"100"`
	QtyScale       int64 `mapstructure:"qty_scale" default:"10000"`
	PricePrecision int   `mapstructure:"price_precision" default:"2"`
	QtyPrecision   int   `mapstructure:"qty_precision" default:"4"`
	MinPriceRaw    int64 `mapstructure:"min_price_raw" default:"1"`
	MaxPriceRaw    int64 `mapstructure:"max_price_raw" default:"100000000"`
}

// RiskConfig bounds the pre-trade gate applied before an order reaches the
// exchange adapter.
type RiskConfig struct {
	MaxOrderQty      string `mapstructure:"max_order_qty"`
	MaxPositionQty    string `mapstructure:"max_position_qty"`
	MaxOrdersPerSecond int   `mapstructure:"max_orders_per_second" default:"50"`
}

// MonitoringConfig controls the metrics endpoint and logger verbosity.
type MonitoringConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr" default:":9090"`
	LogLevel    string `mapstructure:"log_level" default:"info"`
}

// RuntimeConfig holds Go-runtime tuning applied once at startup (see
// TuneRuntime in gc_tuning.go).
type RuntimeConfig struct {
	GCPercent   int   `mapstructure:"gc_percent" default:"400"`
	MemoryLimit int64 `mapstructure:"memory_limit_bytes" default:"2147483648"`
	LockOSThread bool `mapstructure:"lock_os_thread" default:"true"`
}

// Config is the engine's complete startup configuration tree.
type Config struct {
	Symbols    []SymbolConfig   `mapstructure:"symbols"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("risk.max_orders_per_second", 50)
	v.SetDefault("monitoring.metrics_addr", ":9090")
	v.SetDefault("monitoring.log_level", "info")
	v.SetDefault("runtime.gc_percent", 400)
	v.SetDefault("runtime.memory_limit_bytes", int64(2147483648))
	v.SetDefault("runtime.lock_os_thread", true)
}

// Load reads configuration from path (if non-empty) plus environment
// variables prefixed HFT_, e.g. HFT_RISK_MAX_ORDER_QTY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("hft")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("config: at least one symbol must be configured")
	}
	return &cfg, nil
}

// MustLoad is Load but panics on error; intended for cmd/engine's main.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GCStatsInterval is how often cmd/engine's metrics sampler refreshes the
// periodically sampled gauges (GC pause, ring depth, pool occupancy).
const GCStatsInterval = 30 * time.Second
