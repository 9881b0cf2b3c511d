package domain

// Candidate is one symbol offered to a decision engine for a buy cycle,
// carrying the indicator snapshot the prompt/rule evaluates.
type Candidate struct {
	Symbol          string
	ContractSymbol  string
	Price           float64
	DailyQuoteVolume float64
	Change24h       float64
	Timeframes      map[string]TimeframeIndicators
}

// TimeframeIndicators are the technical indicators computed for one kline
// timeframe: MA{5,20,60,99}, MACD, RSI(14), VOL.
type TimeframeIndicators struct {
	MA5   float64
	MA20  float64
	MA60  float64
	MA99  float64
	MACD  float64
	RSI14 float64
	VOL   float64

	// FundingRate is a best-effort auxiliary field: a fetch failure zeroes
	// it rather than failing the cycle.
	FundingRate float64
}

// MarketState is the per-symbol market context assembled for one cycle.
type MarketState map[string]Candidate

// Portfolio is the per-model accounting snapshot the ledger computes.
type Portfolio struct {
	ModelID         string
	Positions       []Position
	RealizedPnL     float64
	MarginUsed      float64
	UnrealizedPnL   float64
	Cash            float64
	PositionsValue  float64
	TotalValue      float64
}

// AccountInfo is the derived account summary fed to the decision engine.
type AccountInfo struct {
	InitialCapital float64
	TotalReturn    float64 // percent
	CurrentTimeUTC string
}
