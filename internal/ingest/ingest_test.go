package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/market"
)

type fakeTickerStore struct {
	existing map[string]domain.Ticker
	written  []domain.Ticker
}

func newFakeTickerStore() *fakeTickerStore {
	return &fakeTickerStore{existing: map[string]domain.Ticker{}}
}

func (f *fakeTickerStore) GetTicker(symbol string) (*domain.Ticker, error) {
	t, ok := f.existing[symbol]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTickerStore) UpsertTickers(tickers []domain.Ticker) error {
	f.written = append(f.written, tickers...)
	return nil
}

func event(symbol string, lastPrice float64, closeTime int64) market.RawTickerEvent {
	return market.RawTickerEvent{
		Symbol:         symbol,
		EventTime:      time.UnixMilli(closeTime),
		LastPrice:      lastPrice,
		StatsCloseTime: closeTime,
	}
}

func TestHandleBatchFiltersQuoteAsset(t *testing.T) {
	store := newFakeTickerStore()
	ing := New(store, store, "USDT")

	ing.HandleBatch([]market.RawTickerEvent{
		event("BTCUSDT", 100, 1),
		event("BTCBUSD", 100, 1),
		event("ETHBTC", 0.05, 1),
	})

	require.Len(t, store.written, 1)
	assert.Equal(t, "BTCUSDT", store.written[0].Symbol)
}

func TestHandleBatchKeepsLatestPerSymbol(t *testing.T) {
	store := newFakeTickerStore()
	ing := New(store, store, "USDT")

	ing.HandleBatch([]market.RawTickerEvent{
		event("BTCUSDT", 100, 10),
		event("BTCUSDT", 105, 30),
		event("BTCUSDT", 102, 20),
	})

	require.Len(t, store.written, 1)
	assert.Equal(t, 105.0, store.written[0].LastPrice)
}

func TestHandleBatchNeutralFieldsWithoutReferencePrice(t *testing.T) {
	store := newFakeTickerStore()
	ing := New(store, store, "USDT")

	// Inbound events carry an exchange-computed open price; it must be
	// ignored, since the refresh worker owns that column.
	ev := event("BTCUSDT", 100, 1)
	ev.OpenPrice = 95
	ing.HandleBatch([]market.RawTickerEvent{ev})

	require.Len(t, store.written, 1)
	row := store.written[0]
	assert.False(t, row.OpenPrice.IsSet())
	assert.Zero(t, row.PriceChange)
	assert.Zero(t, row.PriceChangePercent)
	assert.Equal(t, domain.SideNone, row.Side)
	assert.Empty(t, row.ChangePercentText)
}

func TestHandleBatchRecomputesFromStoredReferencePrice(t *testing.T) {
	store := newFakeTickerStore()
	day := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	store.existing["BTCUSDT"] = domain.Ticker{
		Symbol:    "BTCUSDT",
		OpenPrice: domain.SetOpenPrice(90, day),
	}
	ing := New(store, store, "USDT")

	ing.HandleBatch([]market.RawTickerEvent{event("BTCUSDT", 100, 1)})

	require.Len(t, store.written, 1)
	row := store.written[0]
	assert.True(t, row.OpenPrice.IsSet())
	assert.Equal(t, 90.0, row.OpenPrice.Value())
	assert.InDelta(t, 10, row.PriceChange, 1e-9)
	assert.InDelta(t, 100.0/9, row.PriceChangePercent, 1e-9)
	assert.Equal(t, domain.SideGainer, row.Side)
	assert.Equal(t, "11.11%", row.ChangePercentText)
}

func TestHandleBatchTagsLoserOnNegativeChange(t *testing.T) {
	store := newFakeTickerStore()
	day := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	store.existing["XRPUSDT"] = domain.Ticker{
		Symbol:    "XRPUSDT",
		OpenPrice: domain.SetOpenPrice(1.1, day),
	}
	ing := New(store, store, "USDT")

	ing.HandleBatch([]market.RawTickerEvent{event("XRPUSDT", 1.0, 1)})

	require.Len(t, store.written, 1)
	row := store.written[0]
	assert.Equal(t, domain.SideLoser, row.Side)
	assert.InDelta(t, -9.09, row.PriceChangePercent, 0.01)
}

func TestHandleBatchPreservesZeroAnchoredReferencePrice(t *testing.T) {
	store := newFakeTickerStore()
	day := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	store.existing["THINUSDT"] = domain.Ticker{
		Symbol:    "THINUSDT",
		OpenPrice: domain.SetOpenPrice(0, day),
	}
	ing := New(store, store, "USDT")

	ing.HandleBatch([]market.RawTickerEvent{event("THINUSDT", 2, 1)})

	require.Len(t, store.written, 1)
	row := store.written[0]
	assert.Equal(t, domain.SideNone, row.Side, "zero reference price derives nothing")
	assert.False(t, row.OpenPrice.StaleOn(day), "but the anchor date is carried through")
}

func TestHandleBatchZeroLastPriceStaysNeutral(t *testing.T) {
	store := newFakeTickerStore()
	day := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	store.existing["BTCUSDT"] = domain.Ticker{
		Symbol:    "BTCUSDT",
		OpenPrice: domain.SetOpenPrice(90, day),
	}
	ing := New(store, store, "USDT")

	ing.HandleBatch([]market.RawTickerEvent{event("BTCUSDT", 0, 1)})

	require.Len(t, store.written, 1)
	assert.Equal(t, domain.SideNone, store.written[0].Side)
}

func TestHandleBatchEmptyAfterFilterWritesNothing(t *testing.T) {
	store := newFakeTickerStore()
	ing := New(store, store, "USDT")

	ing.HandleBatch([]market.RawTickerEvent{event("ETHBTC", 0.05, 1)})

	assert.Empty(t, store.written)
}
