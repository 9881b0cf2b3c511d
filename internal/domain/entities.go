package domain

import "time"

// Provider is an LLM provider registration.
type Provider struct {
	ID           string
	Name         string
	APIURL       string
	APIKey       string
	ProviderType ProviderType
}

// Model is the tenant unit every trading cycle runs against.
type Model struct {
	ID                string
	Name              string
	ProviderID        string
	ModelName         string
	InitialCapital    float64
	Leverage          int
	MaxPositions      int
	AutoBuyEnabled    bool
	AutoSellEnabled   bool
	TradeType         TradeType
	SymbolSource      SymbolSource
	BuyBatchSize      int
	SellBatchSize     int
	BuyIntervalSecs   int
	SellIntervalSecs  int
	GroupSize         int
	AccountAlias      string
	IsVirtual         bool
}

// ModelPrompt holds the free-text prompt fragments injected into LLM
// messages for one model.
type ModelPrompt struct {
	ModelID    string
	BuyPrompt  string
	SellPrompt string
}

// Strategy is an executable in-process rule registered under Name (the key
// into the rule table — see internal/decision/rules).
type Strategy struct {
	ID              string
	Name            string
	Type            StrategyType
	StrategyContext string
	StrategyCode    string
}

// ModelStrategy orders a Strategy within a model's rule chain.
type ModelStrategy struct {
	ModelID    string
	StrategyID string
	Type       StrategyType
	Priority   int
	CreatedAt  time.Time
}

// Future is a global symbol universe entry; ModelFuture mirrors it per model.
type Future struct {
	Symbol         string
	ContractSymbol string
	Name           string
	Exchange       string
	SortOrder      int
}

type ModelFuture struct {
	ModelID string
	Future
}

// Position is unique per (Model, Symbol, PositionSide); a zero position_amt
// means the row must be deleted, never persisted with a zero amount.
type Position struct {
	ModelID          string
	Symbol           string
	PositionSide     PositionSide
	PositionAmt      float64 // signed magnitude; |PositionAmt| used for sizing
	AvgPrice         float64
	Leverage         int
	InitialMargin    float64
	UnrealizedProfit float64
}

// Trade is an immutable, append-only execution record.
type Trade struct {
	ID        string
	ModelID   string
	Symbol    string
	Signal    Signal
	Quantity  float64
	Price     float64
	Leverage  int
	Side      PositionSide
	PnL       float64
	Fee       float64
	Timestamp time.Time
}

// AccountValue is the latest balance snapshot; AccountValueHistory never
// mutates already-written rows.
type AccountValue struct {
	ModelID              string
	Balance              float64
	AvailableBalance     float64
	CrossWalletBalance   float64
	CrossUnPnL           float64
	AccountAlias         string
	Timestamp            time.Time
}

// Conversation records one LLM decision call for audit.
type Conversation struct {
	ID         string
	ModelID    string
	UserPrompt string
	AIResponse string
	CoTTrace   string
	Tokens     int
	Type       DecisionCycleType
	Timestamp  time.Time
}

// StrategyDecision records one rule-engine output for audit.
type StrategyDecision struct {
	ID            string
	ModelID       string
	StrategyName  string
	StrategyType  StrategyType
	Signal        Signal
	Symbol        string
	Quantity      float64
	Leverage      int
	Price         float64
	StopPrice     float64
	Justification string
	Timestamp     time.Time
}

// Ticker is the wide per-symbol row the ingester upserts and the leaderboard
// synchronizer reads from.
type Ticker struct {
	Symbol              string
	EventTime           time.Time
	LastPrice           float64
	OpenPrice           OpenPrice
	HighPrice           float64
	LowPrice            float64
	BaseVolume          float64
	QuoteVolume         float64
	FirstTradeID        int64
	LastTradeID         int64
	TradeCount          int64
	PriceChange         float64
	PriceChangePercent  float64
	ChangePercentText   string
	Side                LeaderboardSide
}

// LeaderboardEntry is one row of one batch: all ticker columns plus rank and
// the batch identifiers.
type LeaderboardEntry struct {
	Ticker
	Rank                int
	CreateDatetime      time.Time
	CreateDatetimeLong  int64
}
