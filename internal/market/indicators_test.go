package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func flatKlines(n int, close, volume float64) []Kline {
	out := make([]Kline, n)
	for i := range out {
		out[i] = Kline{OpenTime: int64(i), Open: close, High: close, Low: close, Close: close, Volume: volume}
	}
	return out
}

func TestMA_InsufficientHistoryReturnsZero(t *testing.T) {
	klines := flatKlines(3, 100, 10)
	assert.Equal(t, 0.0, MA(klines, 5))
}

func TestMA_SimpleAverage(t *testing.T) {
	klines := []Kline{{Close: 1}, {Close: 2}, {Close: 3}}
	assert.Equal(t, 2.0, MA(klines, 3))
}

func TestEMA_ShorterThanPeriodIsZero(t *testing.T) {
	klines := flatKlines(5, 50, 1)
	assert.Equal(t, 0.0, EMA(klines, 12))
}

func TestEMA_FlatSeriesConvergesToThatPrice(t *testing.T) {
	klines := flatKlines(30, 42, 1)
	assert.InDelta(t, 42.0, EMA(klines, 12), 0.0001)
}

func TestMACD_NeedsTwentySixBars(t *testing.T) {
	klines := flatKlines(25, 10, 1)
	assert.Equal(t, 0.0, MACD(klines))
}

func TestMACD_FlatSeriesIsZero(t *testing.T) {
	klines := flatKlines(30, 10, 1)
	assert.InDelta(t, 0.0, MACD(klines), 0.0001)
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	klines := make([]Kline, 0, 16)
	price := 1.0
	for i := 0; i < 16; i++ {
		klines = append(klines, Kline{Close: price})
		price++
	}
	assert.Equal(t, 100.0, RSI(klines, 14))
}

func TestRSI_FlatSeriesIsHundred(t *testing.T) {
	klines := flatKlines(16, 10, 1)
	assert.Equal(t, 100.0, RSI(klines, 14))
}

func TestVol_LastBarOnly(t *testing.T) {
	klines := []Kline{{Volume: 1}, {Volume: 2}, {Volume: 99}}
	assert.Equal(t, 99.0, Vol(klines))
}

func TestVol_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Vol(nil))
}

func TestIsStale_FrozenPriceAndZeroVolume(t *testing.T) {
	klines := flatKlines(10, 100, 0)
	assert.True(t, IsStale(klines))
}

func TestIsStale_FlatPriceButActiveVolumeIsNotStale(t *testing.T) {
	klines := flatKlines(10, 100, 5)
	assert.False(t, IsStale(klines))
}

func TestIsStale_MovingPriceIsNotStale(t *testing.T) {
	klines := []Kline{
		{Close: 100, Volume: 0}, {Close: 100.5, Volume: 0}, {Close: 101, Volume: 0},
		{Close: 99, Volume: 0}, {Close: 98, Volume: 0},
	}
	assert.False(t, IsStale(klines))
}

func TestIsStale_TooShortHistoryIsNeverStale(t *testing.T) {
	assert.False(t, IsStale(flatKlines(2, 100, 0)))
}
