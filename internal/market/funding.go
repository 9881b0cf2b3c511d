package market

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
)

// Funding rates only change every 8h on Binance futures, so a 1h cache cuts
// API calls sharply without materially staling the value.
type fundingEntry struct {
	rate      float64
	updatedAt time.Time
}

const fundingCacheTTL = 1 * time.Hour

// FundingRateCache caches per-symbol funding rates behind a shared TTL.
type FundingRateCache struct {
	cli     *futures.Client
	entries sync.Map // map[string]fundingEntry
}

func NewFundingRateCache(cli *futures.Client) *FundingRateCache {
	return &FundingRateCache{cli: cli}
}

// Get returns the cached funding rate for symbol, refreshing it from the
// exchange if absent or older than fundingCacheTTL. Callers treat funding
// rate as best-effort.
func (c *FundingRateCache) Get(ctx context.Context, symbol string) (float64, error) {
	if v, ok := c.entries.Load(symbol); ok {
		e := v.(fundingEntry)
		if time.Since(e.updatedAt) < fundingCacheTTL {
			return e.rate, nil
		}
	}

	rates, err := c.cli.NewFundingRateService().Symbol(symbol).Limit(1).Do(ctx)
	if err != nil {
		return 0, err
	}
	rate := 0.0
	if len(rates) > 0 {
		rate, _ = strconv.ParseFloat(rates[len(rates)-1].FundingRate, 64)
	}
	c.entries.Store(symbol, fundingEntry{rate: rate, updatedAt: time.Now()})
	return rate, nil
}
