package rules

import "github.com/perpctl/controlplane/internal/domain"

// MomentumBreakout is a buy-side rule: enter when the fast average has
// crossed above the slow one (MA5 > MA20), momentum is still building
// (MACD > 0) and the symbol isn't already overbought (RSI14 < 70). It emits
// a risk_budget_pct rather than a hand-computed quantity; the executor does
// the actual sizing math.
type MomentumBreakout struct {
	RSIUpperBound float64
	RiskBudgetPct float64
}

func (r MomentumBreakout) thresholds() (rsiUpper, riskPct float64) {
	rsiUpper = r.RSIUpperBound
	if rsiUpper == 0 {
		rsiUpper = 70
	}
	riskPct = r.RiskBudgetPct
	if riskPct == 0 {
		riskPct = 2
	}
	return
}

func (r MomentumBreakout) Evaluate(ctx Context) map[string]domain.Decision {
	rsiUpper, riskPct := r.thresholds()
	out := make(map[string]domain.Decision)

	for _, c := range ctx.Candidates {
		tf, ok := primaryTimeframe(c)
		if !ok {
			continue
		}
		if tf.MA5 <= tf.MA20 || tf.MACD <= 0 || tf.RSI14 >= rsiUpper {
			continue
		}
		out[c.Symbol] = domain.Decision{
			Signal:        domain.SignalBuyToEnter,
			RiskBudgetPct: riskPct,
			Price:         c.Price,
			Justification: "MA5 crossed above MA20 with positive MACD and RSI14 below threshold",
		}
	}
	return out
}

func primaryTimeframe(c domain.Candidate) (domain.TimeframeIndicators, bool) {
	for _, tf := range c.Timeframes {
		return tf, true
	}
	return domain.TimeframeIndicators{}, false
}
