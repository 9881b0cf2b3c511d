// Command controlplane wires the whole system together: configuration,
// storage, market data, the ingestion/leaderboard/price-refresh background
// jobs, and the buy/sell orchestrator loops, plus a /metrics endpoint.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/perpctl/controlplane/internal/config"
	"github.com/perpctl/controlplane/internal/executor"
	"github.com/perpctl/controlplane/internal/ingest"
	"github.com/perpctl/controlplane/internal/leaderboard"
	"github.com/perpctl/controlplane/internal/logger"
	"github.com/perpctl/controlplane/internal/market"
	"github.com/perpctl/controlplane/internal/metrics"
	"github.com/perpctl/controlplane/internal/orchestrator"
	"github.com/perpctl/controlplane/internal/priceworker"
	"github.com/perpctl/controlplane/internal/store"
	"github.com/perpctl/controlplane/internal/trading"
)

func main() {
	cfg := config.Load()

	relational, err := store.OpenRelational(cfg.RelationalDSN)
	if err != nil {
		logger.Errorf("❌ failed to open relational store: %v", err)
		os.Exit(1)
	}
	defer relational.Close()

	analytical, err := store.OpenAnalytical(cfg.AnalyticalDriver, cfg.AnalyticalDSN)
	if err != nil {
		logger.Errorf("❌ failed to open analytical store: %v", err)
		os.Exit(1)
	}

	exchange := market.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startIngest(ctx, analytical, exchange, cfg)
	startPriceWorker(analytical, exchange, cfg)
	startLeaderboard(analytical, cfg)
	startOrchestrator(ctx, relational, analytical, exchange, cfg)
	startMetricsServer()

	waitForShutdown()
	logger.Infof("🛑 shutting down")
	cancel()
}

func startIngest(ctx context.Context, analytical *store.AnalyticalStore, exchange market.ExchangeClient, cfg *config.Config) {
	ingester := ingest.New(analytical, analytical, cfg.FuturesQuoteAsset)
	stream := market.NewTickerStream(func(batch []market.RawTickerEvent) {
		metrics.TickerIngestTotal.Add(float64(len(batch)))
		ingester.HandleBatch(batch)
	})

	stopC := make(chan struct{})
	go stream.Start(stopC)
	go func() {
		<-ctx.Done()
		close(stopC)
	}()
}

func startPriceWorker(analytical *store.AnalyticalStore, exchange market.ExchangeClient, cfg *config.Config) {
	worker := priceworker.New(analytical, analytical, exchange, cfg.PriceRefreshMaxPerMinute, cfg.TradingDayLocation)
	c := cron.New(cron.WithSeconds())
	if err := worker.Schedule(c, cfg.PriceRefreshCron); err != nil {
		logger.Errorf("❌ failed to schedule price-refresh worker: %v", err)
		return
	}
	c.Start()
}

func startLeaderboard(analytical *store.AnalyticalStore, cfg *config.Config) {
	sync := leaderboard.New(analytical, cfg.LeaderboardTopN)
	cleaner := leaderboard.NewCleaner(analytical, cfg.LeaderboardRetentionMinutes)

	syncInterval := time.Duration(cfg.LeaderboardSyncIntervalSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(syncInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := sync.Run(); err != nil {
				logger.Errorf("❌ [leaderboard] sync failed: %v", err)
			}
		}
	}()

	cleanupInterval := time.Duration(cfg.LeaderboardCleanupIntervalMinutes) * time.Minute
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for range ticker.C {
			cleaner.Run()
		}
	}()
}

func startOrchestrator(ctx context.Context, relational *store.RelationalStore, analytical *store.AnalyticalStore,
	exchange market.ExchangeClient, cfg *config.Config) {

	exec := executor.New(relational, relational, cfg.FeeRate)
	tradingEngine := trading.New(analytical, relational, relational, relational, relational,
		exchange, exec, cfg.FuturesKlineLimit, cfg.LeaderboardTopN).
		WithFunding(market.NewFundingRateCache(market.RawClient(exchange)))
	resolver := orchestrator.NewResolver(relational, relational, relational, cfg.PromptMarketSymbolLimit)

	orch := orchestrator.New(relational, tradingEngine, resolver, cfg.BuyFrequencyMinutes, cfg.SellFrequencyMinutes)
	go orch.RunBuyLoop(ctx)
	go orch.RunSellLoop(ctx)
}

func startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("❌ metrics server stopped: %v", err)
		}
	}()
	logger.Infof("📈 metrics listening on %s", addr)
}

func waitForShutdown() {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	<-sigC
}
