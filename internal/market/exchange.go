package market

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
)

// Stats24h is the exchange's 24h rolling window for one symbol.
type Stats24h struct {
	Symbol             string
	LastPrice          float64
	PriceChange        float64
	PriceChangePercent float64
	QuoteVolume        float64
	BaseVolume         float64
	HighPrice          float64
	LowPrice           float64
}

// SymbolPrice is the latest mark/last price for a symbol.
type SymbolPrice struct {
	Symbol string
	Price  float64
}

// ExchangeClient is the typed wrapper over the exchange SDK: ticker24h,
// allTickers, topGainers, symbolPrices, klines, plus an all-market ticker
// stream in ws.go. The SDK itself is treated as an opaque collaborator; this
// package is the only place that imports go-binance.
type ExchangeClient interface {
	Ticker24h(ctx context.Context, symbols []string) (map[string]Stats24h, error)
	AllTickers(ctx context.Context) ([]Stats24h, error)
	TopGainers(ctx context.Context, limit int) ([]Stats24h, error)
	SymbolPrices(ctx context.Context, symbols []string) (map[string]SymbolPrice, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
}

type binanceClient struct {
	cli *futures.Client
}

// NewBinanceClient wraps the go-binance futures REST client. Credentials may
// be empty for market-data-only use; no order routing is performed.
func NewBinanceClient(apiKey, secretKey string) ExchangeClient {
	return &binanceClient{cli: futures.NewClient(apiKey, secretKey)}
}

// RawClient exposes the underlying SDK client for collaborators (the funding
// rate cache) that need SDK calls not in the ExchangeClient contract.
func RawClient(c ExchangeClient) *futures.Client {
	return c.(*binanceClient).cli
}

func (b *binanceClient) Ticker24h(ctx context.Context, symbols []string) (map[string]Stats24h, error) {
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}
	stats, err := b.cli.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("ticker24h: %w", err)
	}
	out := make(map[string]Stats24h, len(symbols))
	for _, st := range stats {
		if len(wanted) > 0 && !wanted[st.Symbol] {
			continue
		}
		out[st.Symbol] = toStats24h(st)
	}
	return out, nil
}

func (b *binanceClient) AllTickers(ctx context.Context) ([]Stats24h, error) {
	stats, err := b.cli.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("allTickers: %w", err)
	}
	out := make([]Stats24h, 0, len(stats))
	for _, st := range stats {
		out = append(out, toStats24h(st))
	}
	return out, nil
}

func (b *binanceClient) TopGainers(ctx context.Context, limit int) ([]Stats24h, error) {
	all, err := b.AllTickers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PriceChangePercent > all[j].PriceChangePercent })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (b *binanceClient) SymbolPrices(ctx context.Context, symbols []string) (map[string]SymbolPrice, error) {
	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}
	prices, err := b.cli.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("symbolPrices: %w", err)
	}
	out := make(map[string]SymbolPrice, len(symbols))
	for _, p := range prices {
		if len(wanted) > 0 && !wanted[p.Symbol] {
			continue
		}
		price, _ := strconv.ParseFloat(p.Price, 64)
		out[p.Symbol] = SymbolPrice{Symbol: p.Symbol, Price: price}
	}
	return out, nil
}

func (b *binanceClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	raw, err := b.cli.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines(%s,%s): %w", symbol, interval, err)
	}
	out := make([]Kline, 0, len(raw))
	for _, k := range raw {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		close_, _ := strconv.ParseFloat(k.Close, 64)
		vol, _ := strconv.ParseFloat(k.Volume, 64)
		out = append(out, Kline{OpenTime: k.OpenTime, Open: open, High: high, Low: low, Close: close_, Volume: vol})
	}
	return out, nil
}

func toStats24h(st *futures.PriceChangeStats) Stats24h {
	last, _ := strconv.ParseFloat(st.LastPrice, 64)
	change, _ := strconv.ParseFloat(st.PriceChange, 64)
	changePct, _ := strconv.ParseFloat(st.PriceChangePercent, 64)
	quoteVol, _ := strconv.ParseFloat(st.QuoteVolume, 64)
	baseVol, _ := strconv.ParseFloat(st.Volume, 64)
	high, _ := strconv.ParseFloat(st.HighPrice, 64)
	low, _ := strconv.ParseFloat(st.LowPrice, 64)
	return Stats24h{
		Symbol: st.Symbol, LastPrice: last, PriceChange: change, PriceChangePercent: changePct,
		QuoteVolume: quoteVol, BaseVolume: baseVol, HighPrice: high, LowPrice: low,
	}
}
