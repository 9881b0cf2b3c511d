package decision

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/perpctl/controlplane/internal/decision/rules"
	"github.com/perpctl/controlplane/internal/domain"
)

// StrategyStore is the subset of storage the strategy engine needs: load a
// model's ordered rule chain, and persist the audit trail.
type StrategyStore interface {
	ListModelStrategies(modelID string, t domain.StrategyType) ([]domain.Strategy, error)
	InsertStrategyDecisions(decs []domain.StrategyDecision) error
}

// StrategyEngine runs a model's registered rule chain in priority order,
// concatenating and de-duplicating their outputs.
type StrategyEngine struct {
	store   StrategyStore
	modelID string
}

func NewStrategyEngine(store StrategyStore, modelID string) *StrategyEngine {
	return &StrategyEngine{store: store, modelID: modelID}
}

func (e *StrategyEngine) MakeBuyDecision(ctx context.Context, candidates []domain.Candidate, portfolio domain.Portfolio,
	account domain.AccountInfo, marketState domain.MarketState, symbolSource domain.SymbolSource) (domain.DecisionResult, error) {

	ruleCtx := rules.Context{Portfolio: portfolio, MarketState: marketState, Account: account, Candidates: candidates}
	decisions, err := e.run(domain.StrategyTypeBuy, ruleCtx)
	return domain.DecisionResult{Decisions: decisions}, err
}

func (e *StrategyEngine) MakeSellDecision(ctx context.Context, portfolio domain.Portfolio, marketState domain.MarketState,
	account domain.AccountInfo) (domain.DecisionResult, error) {

	ruleCtx := rules.Context{Portfolio: portfolio, MarketState: marketState, Account: account, Positions: portfolio.Positions}
	decisions, err := e.run(domain.StrategyTypeSell, ruleCtx)
	return domain.DecisionResult{Decisions: decisions}, err
}

// run loads the ordered chain, evaluates each rule, concatenates outputs in
// priority order, de-duplicates by symbol keeping the first occurrence, then
// persists one StrategyDecision row per surviving decision.
func (e *StrategyEngine) run(t domain.StrategyType, ruleCtx rules.Context) (map[string]domain.Decision, error) {
	strategies, err := e.store.ListModelStrategies(e.modelID, t)
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.Decision)
	var audit []domain.StrategyDecision
	now := time.Now().UTC()

	for _, strat := range strategies {
		rule := rules.Lookup(strat.Name)
		if rule == nil {
			continue
		}
		for symbol, dec := range rule.Evaluate(ruleCtx) {
			if _, exists := out[symbol]; exists {
				continue
			}
			out[symbol] = dec
			audit = append(audit, domain.StrategyDecision{
				ID:            uuid.NewString(),
				ModelID:       e.modelID,
				StrategyName:  strat.Name,
				StrategyType:  t,
				Signal:        dec.Signal,
				Symbol:        symbol,
				Quantity:      dec.Quantity,
				Leverage:      dec.Leverage,
				Price:         dec.Price,
				StopPrice:     dec.StopPrice,
				Justification: dec.Justification,
				Timestamp:     now,
			})
		}
	}

	if len(audit) > 0 {
		if err := e.store.InsertStrategyDecisions(audit); err != nil {
			return out, err
		}
	}
	return out, nil
}
