package domain

// Signal is the closed set of actions a decision engine can request; every
// decision the system acts on carries one of these tags.
type Signal string

const (
	SignalBuyToEnter   Signal = "buy_to_enter"
	SignalSellToEnter  Signal = "sell_to_enter"
	SignalClosePosition Signal = "close_position"
	SignalStopLoss     Signal = "stop_loss"
	SignalTakeProfit   Signal = "take_profit"
	SignalHold         Signal = "hold"
)

// Valid reports whether s is one of the six recognized signals.
func (s Signal) Valid() bool {
	switch s {
	case SignalBuyToEnter, SignalSellToEnter, SignalClosePosition, SignalStopLoss, SignalTakeProfit, SignalHold:
		return true
	}
	return false
}

// IsEntry reports whether the signal opens or adds to a position.
func (s Signal) IsEntry() bool {
	return s == SignalBuyToEnter || s == SignalSellToEnter
}

// IsExit reports whether the signal closes a position.
func (s Signal) IsExit() bool {
	return s == SignalClosePosition || s == SignalStopLoss || s == SignalTakeProfit
}

// PositionSide is LONG or SHORT; anything else is an invariant violation and
// must never be silently coerced.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

func (s PositionSide) Valid() bool {
	return s == SideLong || s == SideShort
}

// LeaderboardSide tags a leaderboard row as a gainer or loser; empty means
// "not ranked" and such a row must never be selected into a batch.
type LeaderboardSide string

const (
	SideGainer LeaderboardSide = "gainer"
	SideLoser  LeaderboardSide = "loser"
	SideNone   LeaderboardSide = ""
)

// ProviderType enumerates the LLM providers the decision engine dispatches
// HTTP requests to.
type ProviderType string

const (
	ProviderOpenAI      ProviderType = "openai"
	ProviderAzureOpenAI ProviderType = "azure_openai"
	ProviderDeepSeek    ProviderType = "deepseek"
	ProviderAnthropic   ProviderType = "anthropic"
	ProviderGemini      ProviderType = "gemini"
)

// TradeType distinguishes a model driven by an LLM decision engine from one
// driven purely by in-process rule strategies.
type TradeType string

const (
	TradeTypeAI       TradeType = "ai"
	TradeTypeStrategy TradeType = "strategy"
)

// SymbolSource selects where a model's candidate symbols come from.
type SymbolSource string

const (
	SymbolSourceLeaderboard SymbolSource = "leaderboard"
	SymbolSourceFuture      SymbolSource = "future"
)

// StrategyType is the buy/sell half a ModelStrategy rule applies to.
type StrategyType string

const (
	StrategyTypeBuy  StrategyType = "buy"
	StrategyTypeSell StrategyType = "sell"
)

// DecisionCycleType tags a Conversation row with which loop produced it.
type DecisionCycleType string

const (
	CycleBuy  DecisionCycleType = "buy"
	CycleSell DecisionCycleType = "sell"
)
