// Package priceworker anchors each symbol's daily reference open price. It
// is the sole owner of the open_price/update_price_date columns, runs on a
// cron schedule, and fans out within each batch through a bounded worker
// pool with a 60s pause between batches to stay inside the kline rate
// budget.
package priceworker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"

	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/logger"
	"github.com/perpctl/controlplane/internal/market"
	"github.com/perpctl/controlplane/internal/metrics"
)

// SymbolLister returns the distinct symbols whose open_price needs
// refreshing this run: update_price_date unset, or dated before today.
type SymbolLister interface {
	SymbolsNeedingRefresh(today time.Time) ([]string, error)
}

// TickerStore is the read-modify-write surface the worker needs.
type TickerStore interface {
	GetTicker(symbol string) (*domain.Ticker, error)
	UpsertTickers(tickers []domain.Ticker) error
}

// Klines fetches daily candles for the open-price lookup.
type Klines interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Kline, error)
}

// Worker runs the cron-scheduled refresh.
type Worker struct {
	lister       SymbolLister
	store        TickerStore
	klines       Klines
	maxPerMinute int
	location     *time.Location
}

func New(lister SymbolLister, store TickerStore, klines Klines, maxPerMinute int, location *time.Location) *Worker {
	if maxPerMinute <= 0 {
		maxPerMinute = 1000
	}
	if location == nil {
		location = time.UTC
	}
	return &Worker{lister: lister, store: store, klines: klines, maxPerMinute: maxPerMinute, location: location}
}

// Schedule registers the worker's Run method against cronExpr on c; it does
// not start c. Callers own c's lifecycle (Start/Stop).
func (w *Worker) Schedule(c *cron.Cron, cronExpr string) error {
	_, err := c.AddFunc(cronExpr, func() {
		if err := w.Run(context.Background()); err != nil {
			logger.Errorf("❌ [priceworker] run failed: %v", err)
		}
	})
	return err
}

// Run executes one full refresh pass.
func (w *Worker) Run(ctx context.Context) error {
	today := timeTruncateToDay(time.Now().In(w.location))

	symbols, err := w.lister.SymbolsNeedingRefresh(today)
	if err != nil {
		return fmt.Errorf("list symbols needing refresh: %w", err)
	}
	if len(symbols) == 0 {
		return nil
	}
	logger.Infof("🔄 [priceworker] refreshing open_price for %d symbols", len(symbols))

	batches := batchOf(symbols, w.maxPerMinute)
	for i, batch := range batches {
		w.refreshBatch(ctx, batch, today)
		if i < len(batches)-1 {
			select {
			case <-time.After(60 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (w *Worker) refreshBatch(ctx context.Context, symbols []string, today time.Time) {
	var failed atomic.Int32
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(len(symbols), func(arg interface{}) {
		defer wg.Done()
		symbol := arg.(string)
		if err := w.refreshSymbol(ctx, symbol, today); err != nil {
			logger.Warnf("⚠️  [priceworker] refresh %s failed: %v", symbol, err)
			metrics.PriceRefreshFailuresTotal.Inc()
			failed.Add(1)
		}
	})
	if err != nil {
		logger.Errorf("❌ [priceworker] pool init failed: %v", err)
		return
	}
	defer pool.Release()

	for _, symbol := range symbols {
		wg.Add(1)
		if err := pool.Invoke(symbol); err != nil {
			wg.Done()
			logger.Warnf("⚠️  [priceworker] submit %s failed: %v", symbol, err)
		}
	}
	wg.Wait()
	if n := failed.Load(); n > 0 {
		logger.Warnf("⚠️  [priceworker] %d/%d symbols failed this batch", n, len(symbols))
	}
}

// refreshSymbol anchors one symbol's open price to yesterday's daily close
// and re-derives the change fields from the current last price.
func (w *Worker) refreshSymbol(ctx context.Context, symbol string, today time.Time) error {
	klines, err := w.klines.Klines(ctx, symbol, "1d", 2)
	if err != nil {
		return fmt.Errorf("fetch daily klines: %w", err)
	}
	if len(klines) == 0 {
		return fmt.Errorf("no daily klines returned")
	}
	yesterdayClose := klines[0].Close // earlier of the two candles

	prior, err := w.store.GetTicker(symbol)
	if err != nil {
		return fmt.Errorf("read prior ticker: %w", err)
	}
	if prior == nil {
		return fmt.Errorf("no ticker row for %s yet", symbol)
	}

	row := *prior
	row.OpenPrice = domain.SetOpenPrice(yesterdayClose, today)
	if yesterdayClose > 0 && row.LastPrice > 0 {
		row.PriceChange = row.LastPrice - yesterdayClose
		row.PriceChangePercent = row.PriceChange / yesterdayClose * 100
		if row.PriceChangePercent >= 0 {
			row.Side = domain.SideGainer
		} else {
			row.Side = domain.SideLoser
		}
		row.ChangePercentText = fmt.Sprintf("%.2f%%", row.PriceChangePercent)
	} else {
		row.PriceChange = 0
		row.PriceChangePercent = 0
		row.Side = domain.SideNone
		row.ChangePercentText = ""
	}

	return w.store.UpsertTickers([]domain.Ticker{row})
}

func batchOf(symbols []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[i:end])
	}
	return out
}

func timeTruncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
