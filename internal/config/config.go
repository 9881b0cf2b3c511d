// Package config loads the process configuration from the environment:
// godotenv.Load() followed by os.Getenv reads with typed defaults, no
// viper/koanf indirection.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/perpctl/controlplane/internal/logger"
)

// Config is the process-wide configuration surface. Out-of-scope areas
// (REST/WS transport, UI, auth) are deliberately absent.
type Config struct {
	// Fees & cadence
	FeeRate               float64
	BuyFrequencyMinutes   int
	SellFrequencyMinutes  int

	// Leaderboard
	LeaderboardSyncIntervalSeconds   int
	LeaderboardRetentionMinutes      int
	LeaderboardCleanupIntervalMinutes int
	LeaderboardTopN                  int

	// Price refresh
	PriceRefreshCron        string
	PriceRefreshMaxPerMinute int

	// Prompting
	PromptMarketSymbolLimit int

	// Futures universe
	FuturesKlineLimit int
	FuturesQuoteAsset string

	// Trading-day boundary used by the price-refresh worker to decide
	// "today"; the session day rolls over at midnight in this zone, not UTC.
	TradingDayLocation *time.Location

	// Storage DSNs
	RelationalDSN string
	AnalyticalDriver string // "postgres" or "sqlite"
	AnalyticalDSN    string
}

// Load reads .env (if present) then the process environment, applying
// defaults and clamping loop cadences to [1, 1440] minutes.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("no .env file loaded: %v", err)
	}

	cfg := &Config{
		FeeRate:                            envFloat("FEE_RATE", 0.001),
		BuyFrequencyMinutes:                clamp(envInt("BUY_FREQUENCY_MINUTES", 15), 1, 1440),
		SellFrequencyMinutes:               clamp(envInt("SELL_FREQUENCY_MINUTES", 5), 1, 1440),
		LeaderboardSyncIntervalSeconds:     envInt("LEADERBOARD_SYNC_INTERVAL_SECONDS", 2),
		LeaderboardRetentionMinutes:        envInt("LEADERBOARD_RETENTION_MINUTES", 5),
		LeaderboardCleanupIntervalMinutes:  envInt("LEADERBOARD_CLEANUP_INTERVAL_MINUTES", 2),
		LeaderboardTopN:                    envInt("LEADERBOARD_TOP_N", 10),
		PriceRefreshCron:                   envStr("PRICE_REFRESH_CRON", "0 0 * * * *"), // hourly, robfig/cron seconds-field form
		PriceRefreshMaxPerMinute:           envInt("PRICE_REFRESH_MAX_PER_MINUTE", 1000),
		PromptMarketSymbolLimit:            envInt("PROMPT_MARKET_SYMBOL_LIMIT", 5),
		FuturesKlineLimit:                  envInt("FUTURES_KLINE_LIMIT", 120),
		FuturesQuoteAsset:                  envStr("FUTURES_QUOTE_ASSET", "USDT"),
		RelationalDSN:                      envStr("RELATIONAL_DSN", "file:controlplane.db?cache=shared&_pragma=busy_timeout(5000)"),
		AnalyticalDriver:                   envStr("ANALYTICAL_DRIVER", "sqlite"),
		AnalyticalDSN:                      envStr("ANALYTICAL_DSN", "file:controlplane_analytical.db?cache=shared&_pragma=busy_timeout(5000)"),
	}

	loc, err := time.LoadLocation(envStr("TRADING_DAY_TIMEZONE", "Asia/Shanghai"))
	if err != nil {
		logger.Warnf("⚠️  unknown TRADING_DAY_TIMEZONE, falling back to UTC: %v", err)
		loc = time.UTC
	}
	cfg.TradingDayLocation = loc

	return cfg
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
