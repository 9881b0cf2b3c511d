package rules

import "github.com/perpctl/controlplane/internal/domain"

// ProfitGuard is a sell-side rule: close a position once it has moved far
// enough in either direction, a fixed take-profit/stop-loss band rather
// than an LLM judgment call.
type ProfitGuard struct {
	TakeProfitPct float64
	StopLossPct   float64
}

func (r ProfitGuard) thresholds() (takeProfit, stopLoss float64) {
	takeProfit = r.TakeProfitPct
	if takeProfit == 0 {
		takeProfit = 8
	}
	stopLoss = r.StopLossPct
	if stopLoss == 0 {
		stopLoss = 4
	}
	return
}

func (r ProfitGuard) Evaluate(ctx Context) map[string]domain.Decision {
	takeProfit, stopLoss := r.thresholds()
	out := make(map[string]domain.Decision)

	for _, p := range ctx.Positions {
		current := ctx.MarketState[p.Symbol].Price
		if current <= 0 || p.AvgPrice <= 0 {
			continue
		}
		var pctMove float64
		if p.PositionSide == domain.SideLong {
			pctMove = (current - p.AvgPrice) / p.AvgPrice * 100
		} else {
			pctMove = (p.AvgPrice - current) / p.AvgPrice * 100
		}

		switch {
		case pctMove >= takeProfit:
			out[p.Symbol] = domain.Decision{Signal: domain.SignalTakeProfit, Price: current, Justification: "take-profit threshold reached"}
		case pctMove <= -stopLoss:
			out[p.Symbol] = domain.Decision{Signal: domain.SignalStopLoss, Price: current, Justification: "stop-loss threshold breached"}
		}
	}
	return out
}
