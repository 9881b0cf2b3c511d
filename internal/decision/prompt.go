package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/perpctl/controlplane/internal/domain"
)

// buildBuyPrompt assembles the buy-cycle user prompt: role, candidate
// enumeration with indicators, account constraints, the model's own prompt
// fragment, and the strict JSON response template.
func buildBuyPrompt(candidates []domain.Candidate, portfolio domain.Portfolio, account domain.AccountInfo,
	symbolSource domain.SymbolSource, maxPositions int, modelBuyPrompt string) string {

	var b strings.Builder
	b.WriteString("You are a professional crypto futures trader. ")
	if symbolSource == domain.SymbolSourceLeaderboard {
		b.WriteString("The following candidates are drawn from the live movers list.\n\n")
	} else {
		b.WriteString("The following candidates are drawn from the configured futures universe.\n\n")
	}

	b.WriteString("Candidates:\n")
	for _, c := range candidates {
		indicatorsJSON, _ := json.Marshal(c.Timeframes)
		fmt.Fprintf(&b, "- %s: price=%.8f, 24h_quote_volume=%.2f, 24h_change=%.2f%%, indicators=%s\n",
			c.Symbol, c.Price, c.DailyQuoteVolume, c.Change24h, indicatorsJSON)
	}

	fmt.Fprintf(&b, "\nAccount: cash=%.2f, occupied_slots=%d, max_slots=%d, initial_capital=%.2f, total_return=%.2f%%, time=%s\n",
		portfolio.Cash, len(portfolio.Positions), maxPositions, account.InitialCapital, account.TotalReturn, account.CurrentTimeUTC)

	if modelBuyPrompt != "" {
		b.WriteString("\n")
		b.WriteString(modelBuyPrompt)
		b.WriteString("\n")
	}

	b.WriteString("\nRespond with JSON only, no markdown fences, matching exactly:\n")
	b.WriteString(`{"decisions": {"<symbol>": {"signal": "buy_to_enter|sell_to_enter|hold", "quantity": 0, "leverage": 1, "confidence": 0, "risk_budget_pct": 0, "profit_target": 0, "stop_loss": 0, "justification": ""}}, "cot_trace": []}`)
	return b.String()
}

// buildSellPrompt assembles the sell-cycle user prompt: one line per open
// position with its live P&L and indicators, then the JSON template.
func buildSellPrompt(positions []domain.Position, marketState domain.MarketState, account domain.AccountInfo, modelSellPrompt string) string {
	var b strings.Builder
	b.WriteString("You are a professional crypto futures trader managing open positions.\n\n")

	for _, p := range positions {
		current := marketState[p.Symbol].Price
		pnl, pnlPct := positionPnL(p, current)
		indicatorsJSON, _ := json.Marshal(marketState[p.Symbol].Timeframes)
		fmt.Fprintf(&b, "- %s %s qty=%.8f avg=%.8f current=%.8f pnl=%.2f (%.2f%%) indicators=%s\n",
			p.Symbol, p.PositionSide, p.PositionAmt, p.AvgPrice, current, pnl, pnlPct, indicatorsJSON)
	}

	fmt.Fprintf(&b, "\nTime: %s\n", account.CurrentTimeUTC)

	if modelSellPrompt != "" {
		b.WriteString("\n")
		b.WriteString(modelSellPrompt)
		b.WriteString("\n")
	}

	b.WriteString("\nRespond with JSON only, no markdown fences, matching exactly:\n")
	b.WriteString(`{"decisions": {"<symbol>": {"signal": "close_position|stop_loss|take_profit|hold", "quantity": 0, "price": 0, "stop_price": 0, "justification": ""}}, "cot_trace": []}`)
	return b.String()
}

// positionPnL formats current P&L for a position the way the sell prompt
// needs it: prefer the stored unrealized_profit if nonzero, else derive it
// from avg vs current respecting LONG/SHORT sign.
func positionPnL(p domain.Position, current float64) (pnl, pct float64) {
	if p.UnrealizedProfit != 0 {
		pnl = p.UnrealizedProfit
	} else if current > 0 {
		qty := absFloat(p.PositionAmt)
		if p.PositionSide == domain.SideLong {
			pnl = (current - p.AvgPrice) * qty
		} else {
			pnl = (p.AvgPrice - current) * qty
		}
	}
	if p.AvgPrice > 0 {
		pct = pnl / (p.AvgPrice * absFloat(p.PositionAmt)) * 100
	}
	return pnl, pct
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

const systemPromptJSONOnly = "You are a professional crypto trader. Respond with JSON only."
