// Package metrics exposes the process's Prometheus metrics: a dedicated
// registry plus promauto.With(Registry) constructors covering per-model
// accounting gauges and pipeline counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the dedicated collector registry served at /metrics; using a
// private registry instead of the global default avoids pulling in whatever
// a linked library registers on init.
var Registry = prometheus.NewRegistry()

var (
	ModelEquityTotal = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "controlplane_model_equity_total",
		Help: "Total portfolio value (initial_capital + realized + unrealized PnL) per model.",
	}, []string{"model_id"})

	ModelUnrealizedPnL = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "controlplane_model_unrealized_pnl",
		Help: "Unrealized PnL per model.",
	}, []string{"model_id"})

	ModelRealizedPnL = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "controlplane_model_realized_pnl",
		Help: "Cumulative realized PnL per model.",
	}, []string{"model_id"})

	ModelMarginUsed = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "controlplane_model_margin_used",
		Help: "Margin currently occupied by open positions, per model.",
	}, []string{"model_id"})

	TradingCyclesTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "controlplane_trading_cycles_total",
		Help: "Trading cycles completed, partitioned by model and cycle type (buy/sell) and outcome.",
	}, []string{"model_id", "cycle_type", "outcome"})

	TickerIngestTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "controlplane_ticker_ingest_total",
		Help: "Ticker events received from the all-market stream, counted before the ingester filters and dedupes them.",
	})

	LeaderboardBatchesTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "controlplane_leaderboard_batches_total",
		Help: "Leaderboard synchronizer runs, partitioned by whether a batch was written or skipped.",
	}, []string{"outcome"})

	PriceRefreshFailuresTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "controlplane_price_refresh_failures_total",
		Help: "Per-symbol failures in the price-refresh worker.",
	})
)

// ObserveCycle records a completed trading cycle's outcome.
func ObserveCycle(modelID string, cycleType string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	TradingCyclesTotal.WithLabelValues(modelID, cycleType, outcome).Inc()
}

// ObservePortfolio updates the per-model equity gauges after a cycle.
func ObservePortfolio(modelID string, totalValue, unrealizedPnL, realizedPnL, marginUsed float64) {
	ModelEquityTotal.WithLabelValues(modelID).Set(totalValue)
	ModelUnrealizedPnL.WithLabelValues(modelID).Set(unrealizedPnL)
	ModelRealizedPnL.WithLabelValues(modelID).Set(realizedPnL)
	ModelMarginUsed.WithLabelValues(modelID).Set(marginUsed)
}
