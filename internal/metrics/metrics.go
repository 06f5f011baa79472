// Package metrics exposes the engine's Prometheus registry and the counters,
// gauges, and histograms its components update. Grounded on the teacher's
// internal/metrics/metrics_module.go (NewPrometheusRegistry,
// RegisterMetricsHandler), with the fx.Options/fx.Invoke wiring replaced by
// direct construction and an explicit Serve call from cmd/engine.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this engine exports, tagged per-symbol
// where that makes sense.
type Registry struct {
	reg *prometheus.Registry

	OrdersSubmitted  *prometheus.CounterVec
	OrdersFilled     *prometheus.CounterVec
	OrdersRejected   *prometheus.CounterVec
	MarketDataGaps   *prometheus.CounterVec
	LogRecordsDropped prometheus.Counter

	RingDepth     *prometheus.GaugeVec
	PoolInUse     *prometheus.GaugeVec
	BestBid       *prometheus.GaugeVec
	BestAsk       *prometheus.GaugeVec
	Position      *prometheus.GaugeVec
	UnrealizedPnL *prometheus.GaugeVec

	DecodeLatency   *prometheus.HistogramVec
	DispatchLatency *prometheus.HistogramVec
	GCPause         prometheus.Gauge
}

// New builds a Registry with every metric registered under the hft_
// namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hft", Name: "orders_submitted_total",
			Help: "Orders submitted to the exchange, by symbol.",
		}, []string{"symbol"}),
		OrdersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hft", Name: "orders_filled_total",
			Help: "Orders that reached Filled, by symbol.",
		}, []string{"symbol"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hft", Name: "orders_rejected_total",
			Help: "Orders rejected by the pre-trade gate or the exchange, by symbol and reason.",
		}, []string{"symbol", "reason"}),
		MarketDataGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hft", Name: "market_data_gaps_total",
			Help: "Detected update-id gaps in the market data feed, by symbol.",
		}, []string{"symbol"}),
		LogRecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hft", Name: "log_records_dropped_total",
			Help: "Log records dropped because the async drain queue was full.",
		}),
		RingDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hft", Name: "ring_depth",
			Help: "Current occupied depth of an SPSC ring, by symbol and ring name.",
		}, []string{"symbol", "ring"}),
		PoolInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hft", Name: "pool_in_use",
			Help: "Items currently checked out of a fixed-capacity pool, by symbol and pool name.",
		}, []string{"symbol", "pool"}),
		BestBid: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hft", Name: "best_bid",
			Help: "Current best bid price, by symbol.",
		}, []string{"symbol"}),
		BestAsk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hft", Name: "best_ask",
			Help: "Current best ask price, by symbol.",
		}, []string{"symbol"}),
		Position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hft", Name: "position_qty",
			Help: "Current net position quantity, by symbol.",
		}, []string{"symbol"}),
		UnrealizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hft", Name: "unrealized_pnl",
			Help: "Current mark-to-market unrealized PnL, by symbol.",
		}, []string{"symbol"}),
		DecodeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hft", Name: "decode_latency_seconds",
			Help:    "Market data decode latency, by symbol.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 2, 16),
		}, []string{"symbol"}),
		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hft", Name: "strategy_dispatch_latency_seconds",
			Help:    "Time spent inside a strategy's on_* callback, by symbol and strategy.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 2, 16),
		}, []string{"symbol", "strategy"}),
		GCPause: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hft", Name: "gc_pause_p50_seconds",
			Help: "Median GC pause duration, sampled periodically.",
		}),
	}

	reg.MustRegister(
		r.OrdersSubmitted, r.OrdersFilled, r.OrdersRejected, r.MarketDataGaps,
		r.LogRecordsDropped, r.RingDepth, r.PoolInUse, r.BestBid, r.BestAsk,
		r.Position, r.UnrealizedPnL, r.DecodeLatency, r.DispatchLatency, r.GCPause,
	)
	return r
}

// Serve starts an HTTP server exposing /metrics on addr and blocks until ctx
// is canceled, then shuts the server down gracefully.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
