package market

import (
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/perpctl/controlplane/internal/logger"
)

// RawTickerEvent is one symbol's 24h rolling window as delivered by the
// all-market ticker stream, translated from the exchange SDK's own event
// type so the ingester never imports go-binance.
type RawTickerEvent struct {
	EventTime      time.Time
	Symbol         string
	PriceChange    float64
	ChangePercent  float64
	LastPrice      float64
	OpenPrice      float64
	HighPrice      float64
	LowPrice       float64
	BaseVolume     float64
	QuoteVolume    float64
	StatsOpenTime  int64
	StatsCloseTime int64
	FirstTradeID   int64
	LastTradeID    int64
	TradeCount     int64
}

// TickerStream is a long-lived consumer of the all-market ticker stream;
// Start blocks until stopC is closed, delivering each micro-batch to
// onBatch. Reconnection never gives up; the wait between attempts doubles
// from 1s and is capped at 30s.
type TickerStream struct {
	onBatch func([]RawTickerEvent)
}

func NewTickerStream(onBatch func([]RawTickerEvent)) *TickerStream {
	return &TickerStream{onBatch: onBatch}
}

// Start runs the reconnect loop. It returns only when stopC is closed.
func (t *TickerStream) Start(stopC <-chan struct{}) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-stopC:
			return
		default:
		}

		doneC, wsStop, err := t.connect()
		if err != nil {
			logger.Warnf("⚠️  [market] ticker stream connect failed: %v — retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-stopC:
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = time.Second

		select {
		case <-stopC:
			close(wsStop)
			<-doneC
			return
		case <-doneC:
			logger.Warnf("⚠️  [market] ticker stream disconnected, reconnecting")
		}
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func (t *TickerStream) connect() (doneC, stopC chan struct{}, err error) {
	handler := func(events futures.WsAllMarketTickerEvent) {
		batch := make([]RawTickerEvent, 0, len(events))
		for i := range events {
			batch = append(batch, toRawTickerEvent(events[i]))
		}
		if len(batch) > 0 {
			t.onBatch(batch)
		}
	}
	errHandler := func(err error) {
		logger.Warnf("⚠️  [market] ticker stream error: %v", err)
	}
	return futures.WsAllMarketTickerServe(handler, errHandler)
}

func toRawTickerEvent(e *futures.WsMarketTickerEvent) RawTickerEvent {
	last, _ := strconv.ParseFloat(e.ClosePrice, 64)
	open, _ := strconv.ParseFloat(e.OpenPrice, 64)
	high, _ := strconv.ParseFloat(e.HighPrice, 64)
	low, _ := strconv.ParseFloat(e.LowPrice, 64)
	change, _ := strconv.ParseFloat(e.PriceChange, 64)
	changePct, _ := strconv.ParseFloat(e.PriceChangePercent, 64)
	baseVol, _ := strconv.ParseFloat(e.BaseVolume, 64)
	quoteVol, _ := strconv.ParseFloat(e.QuoteVolume, 64)
	return RawTickerEvent{
		EventTime:      time.UnixMilli(e.Time),
		Symbol:         e.Symbol,
		PriceChange:    change,
		ChangePercent:  changePct,
		LastPrice:      last,
		OpenPrice:      open,
		HighPrice:      high,
		LowPrice:       low,
		BaseVolume:     baseVol,
		QuoteVolume:    quoteVol,
		StatsOpenTime:  e.OpenTime,
		StatsCloseTime: e.CloseTime,
		FirstTradeID:   e.FirstID,
		LastTradeID:    e.LastID,
		TradeCount:     e.TradeCount,
	}
}
