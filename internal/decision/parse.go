package decision

import (
	"encoding/json"
	"strings"

	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/logger"
)

// rawDecision mirrors the wire shape both buy and sell JSON templates ask
// for; unused fields for a given cycle type are simply zero.
type rawDecision struct {
	Signal        string      `json:"signal"`
	Quantity      float64     `json:"quantity"`
	Leverage      int         `json:"leverage"`
	Confidence    float64     `json:"confidence"`
	RiskBudgetPct float64     `json:"risk_budget_pct"`
	ProfitTarget  float64     `json:"profit_target"`
	StopLoss      float64     `json:"stop_loss"`
	Price         float64     `json:"price"`
	StopPrice     float64     `json:"stop_price"`
	Justification string      `json:"justification"`
}

type rawResponse struct {
	Decisions map[string]rawDecision `json:"decisions"`
	CoTTrace  json.RawMessage        `json:"cot_trace"`
}

// stripFences removes an optional ```json ... ``` or ``` ... ``` wrapper
// before parsing; providers wrap JSON in fences inconsistently.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	if idx := strings.LastIndex(t, "```"); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}

// parseDecisionResponse accepts either {decisions:{...}, cot_trace?} or a
// bare decisions map; invalid JSON yields empty decisions rather than an
// error, since a single malformed response must not abort the cycle.
func parseDecisionResponse(text string) (map[string]domain.Decision, string) {
	clean := stripFences(text)

	var parsed rawResponse
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil || parsed.Decisions == nil {
		// Fall back to treating the whole body as a bare decisions map.
		var bare map[string]rawDecision
		if err2 := json.Unmarshal([]byte(clean), &bare); err2 != nil {
			logger.Warnf("⚠️  [decision] could not parse LLM response as JSON: %v", err)
			return map[string]domain.Decision{}, ""
		}
		parsed.Decisions = bare
	}

	out := make(map[string]domain.Decision, len(parsed.Decisions))
	for symbol, rd := range parsed.Decisions {
		out[symbol] = domain.Decision{
			Signal:        domain.Signal(rd.Signal),
			Quantity:      rd.Quantity,
			Leverage:      rd.Leverage,
			Confidence:    rd.Confidence,
			RiskBudgetPct: rd.RiskBudgetPct,
			ProfitTarget:  rd.ProfitTarget,
			StopLoss:      rd.StopLoss,
			Price:         rd.Price,
			StopPrice:     rd.StopPrice,
			Justification: rd.Justification,
		}
	}
	return out, stringifyCoTTrace(parsed.CoTTrace)
}

// stringifyCoTTrace flattens a cot_trace of any shape to one string: a bare
// string is kept as-is; an array is joined by newline (non-string items
// JSON-encoded); any other shape is JSON-serialized whole.
func stringifyCoTTrace(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		lines := make([]string, 0, len(asArray))
		for _, item := range asArray {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				lines = append(lines, s)
			} else {
				lines = append(lines, string(item))
			}
		}
		return strings.Join(lines, "\n")
	}

	return string(raw)
}
