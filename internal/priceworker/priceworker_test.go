package priceworker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/market"
)

type fakeLister struct {
	symbols []string
}

func (f *fakeLister) SymbolsNeedingRefresh(today time.Time) ([]string, error) { return f.symbols, nil }

type fakeTickerStore struct {
	existing map[string]domain.Ticker
	written  []domain.Ticker
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

type fakeKlines struct {
	bySymbol map[string][]market.Kline
	err      error
}

func (f *fakeKlines) Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Kline, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bySymbol[symbol], nil
}

func TestRunAnchorsYesterdayCloseAndRederives(t *testing.T) {
	store := &fakeTickerStore{existing: map[string]domain.Ticker{
		"BTCUSDT": {Symbol: "BTCUSDT", LastPrice: 100},
	}}
	klines := &fakeKlines{bySymbol: map[string][]market.Kline{
		// Earlier candle is yesterday; its close becomes the reference price.
		"BTCUSDT": {{Close: 90}, {Close: 100}},
	}}
	w := New(&fakeLister{symbols: []string{"BTCUSDT"}}, store, klines, 1000, time.UTC)

	require.NoError(t, w.Run(context.Background()))
	require.Len(t, store.written, 1)

	row := store.written[0]
	assert.True(t, row.OpenPrice.IsSet())
	assert.Equal(t, 90.0, row.OpenPrice.Value())
	assert.InDelta(t, 10, row.PriceChange, 1e-9)
	assert.InDelta(t, 100.0/9, row.PriceChangePercent, 1e-9)
	assert.Equal(t, domain.SideGainer, row.Side)
	assert.Equal(t, "11.11%", row.ChangePercentText)
	assert.False(t, row.OpenPrice.StaleOn(time.Now().UTC()))
}

func TestRunTagsLoserWhenPriceFellFromReference(t *testing.T) {
	store := &fakeTickerStore{existing: map[string]domain.Ticker{
		"XRPUSDT": {Symbol: "XRPUSDT", LastPrice: 1.0},
	}}
	klines := &fakeKlines{bySymbol: map[string][]market.Kline{
		"XRPUSDT": {{Close: 1.1}, {Close: 1.0}},
	}}
	w := New(&fakeLister{symbols: []string{"XRPUSDT"}}, store, klines, 1000, time.UTC)

	require.NoError(t, w.Run(context.Background()))
	require.Len(t, store.written, 1)
	assert.Equal(t, domain.SideLoser, store.written[0].Side)
}

func TestRunNoSymbolsIsNoOp(t *testing.T) {
	store := &fakeTickerStore{}
	w := New(&fakeLister{}, store, &fakeKlines{}, 1000, time.UTC)

	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, store.written)
}

func TestRunFailedSymbolWritesNothingForIt(t *testing.T) {
	store := &fakeTickerStore{existing: map[string]domain.Ticker{
		"BTCUSDT": {Symbol: "BTCUSDT", LastPrice: 100},
	}}
	w := New(&fakeLister{symbols: []string{"BTCUSDT"}}, store, &fakeKlines{err: errors.New("rate limited")}, 1000, time.UTC)

	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, store.written)
}

func TestBatchOfSplitsEvenly(t *testing.T) {
	batches := batchOf([]string{"a", "b", "c", "d", "e"}, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"e"}, batches[2])
}
