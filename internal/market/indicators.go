package market

// Kline is one OHLCV bar.
type Kline struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// MA is a simple moving average over the last `period` closes.
func MA(klines []Kline, period int) float64 {
	if len(klines) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for _, k := range klines[len(klines)-period:] {
		sum += k.Close
	}
	return sum / float64(period)
}

// EMA is the exponential moving average, seeded with an SMA of the first
// `period` closes.
func EMA(klines []Kline, period int) float64 {
	if len(klines) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += klines[i].Close
	}
	ema := sum / float64(period)
	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(klines); i++ {
		ema = (klines[i].Close-ema)*multiplier + ema
	}
	return ema
}

// MACD is EMA(12) - EMA(26).
func MACD(klines []Kline) float64 {
	if len(klines) < 26 {
		return 0
	}
	return EMA(klines, 12) - EMA(klines, 26)
}

// RSI is the Wilder-smoothed relative strength index over `period` bars.
func RSI(klines []Kline, period int) float64 {
	if len(klines) <= period || period <= 0 {
		return 0
	}
	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	for i := period + 1; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			avgGain = (avgGain*float64(period-1) + change) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + (-change)) / float64(period)
		}
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// Vol is the most recent bar's volume.
func Vol(klines []Kline) float64 {
	if len(klines) == 0 {
		return 0
	}
	return klines[len(klines)-1].Volume
}

// Indicators computes the full MA{5,20,60,99}/MACD/RSI(14)/VOL set the
// trading engine embeds per timeframe.
func Indicators(klines []Kline) (ma5, ma20, ma60, ma99, macd, rsi14, vol float64) {
	return MA(klines, 5), MA(klines, 20), MA(klines, 60), MA(klines, 99),
		MACD(klines), RSI(klines, 14), Vol(klines)
}

const (
	staleLookback       = 5
	stalePriceTolerance = 0.0001
)

// IsStale flags a symbol whose last staleLookback closes never moved beyond
// stalePriceTolerance AND whose volume over that window is all zero: a
// frozen feed, not a genuinely quiet market.
func IsStale(klines []Kline) bool {
	if len(klines) < staleLookback {
		return false
	}
	recent := klines[len(klines)-staleLookback:]
	first := recent[0].Close
	if first == 0 {
		return false
	}
	for _, k := range recent[1:] {
		diff := k.Close - first
		if diff < 0 {
			diff = -diff
		}
		if diff/first > stalePriceTolerance {
			return false
		}
	}
	for _, k := range recent {
		if k.Volume > 0 {
			return false
		}
	}
	return true
}
