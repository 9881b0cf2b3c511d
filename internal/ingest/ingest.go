// Package ingest consumes the exchange's all-market ticker stream,
// normalizes each micro-batch, and upserts it into the wide ticker store.
// It never touches the open_price/update_price_date columns, which the
// price-refresh worker owns.
package ingest

import (
	"fmt"
	"strings"

	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/logger"
	"github.com/perpctl/controlplane/internal/market"
)

// TickerReader is the subset of the analytical store the ingester needs to
// read prior open_price state before recomputing derived fields.
type TickerReader interface {
	GetTicker(symbol string) (*domain.Ticker, error)
}

// TickerWriter is the subset of the analytical store the ingester writes to.
type TickerWriter interface {
	UpsertTickers(tickers []domain.Ticker) error
}

// Ingester consumes RawTickerEvent batches from a market.TickerStream.
type Ingester struct {
	reader     TickerReader
	writer     TickerWriter
	quoteAsset string
}

func New(reader TickerReader, writer TickerWriter, quoteAsset string) *Ingester {
	if quoteAsset == "" {
		quoteAsset = "USDT"
	}
	return &Ingester{reader: reader, writer: writer, quoteAsset: quoteAsset}
}

// HandleBatch processes one websocket message: filter, dedupe, re-read the
// stored reference price, recompute derived fields, upsert.
func (ing *Ingester) HandleBatch(events []market.RawTickerEvent) {
	deduped := ing.filterAndDedupe(events)
	if len(deduped) == 0 {
		return
	}

	rows := make([]domain.Ticker, 0, len(deduped))
	for symbol, ev := range deduped {
		prior, err := ing.reader.GetTicker(symbol)
		if err != nil {
			logger.Warnf("⚠️  [ingest] read prior ticker for %s failed: %v — skipping", symbol, err)
			continue
		}
		rows = append(rows, buildTickerRow(symbol, ev, prior))
	}
	if len(rows) == 0 {
		return
	}
	if err := ing.writer.UpsertTickers(rows); err != nil {
		logger.Errorf("❌ [ingest] upsert of %d tickers failed: %v", len(rows), err)
	}
}

// filterAndDedupe keeps only quote-asset symbols and, per symbol, the row
// with the largest StatsCloseTime.
func (ing *Ingester) filterAndDedupe(events []market.RawTickerEvent) map[string]market.RawTickerEvent {
	out := make(map[string]market.RawTickerEvent, len(events))
	for _, ev := range events {
		if !strings.HasSuffix(ev.Symbol, ing.quoteAsset) {
			continue
		}
		existing, ok := out[ev.Symbol]
		if !ok || ev.StatsCloseTime > existing.StatsCloseTime {
			out[ev.Symbol] = ev
		}
	}
	return out
}

// buildTickerRow strips any client-supplied open_price/update_price_date,
// preserves the stored reference price, and recomputes derived fields
// from it.
func buildTickerRow(symbol string, ev market.RawTickerEvent, prior *domain.Ticker) domain.Ticker {
	row := domain.Ticker{
		Symbol:       symbol,
		EventTime:    ev.EventTime,
		LastPrice:    ev.LastPrice,
		HighPrice:    ev.HighPrice,
		LowPrice:     ev.LowPrice,
		BaseVolume:   ev.BaseVolume,
		QuoteVolume:  ev.QuoteVolume,
		FirstTradeID: ev.FirstTradeID,
		LastTradeID:  ev.LastTradeID,
		TradeCount:   ev.TradeCount,
	}

	// The stored pair is carried over as-is: an anchored-but-zero reference
	// price must survive the rewrite so the refresh worker doesn't re-queue
	// the symbol within the same day.
	row.OpenPrice = domain.UnsetOpenPrice
	if prior != nil {
		row.OpenPrice = prior.OpenPrice
	}

	if openPrice := row.OpenPrice.Value(); row.OpenPrice.IsSet() && ev.LastPrice > 0 {
		row.PriceChange = ev.LastPrice - openPrice
		row.PriceChangePercent = row.PriceChange / openPrice * 100
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

	return row
}
