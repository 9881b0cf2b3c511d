package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpctl/controlplane/internal/decision/rules"
	"github.com/perpctl/controlplane/internal/domain"
)

type fakeStrategyStore struct {
	strategies []domain.Strategy
	audit      []domain.StrategyDecision
}

func (f *fakeStrategyStore) ListModelStrategies(modelID string, t domain.StrategyType) ([]domain.Strategy, error) {
	return f.strategies, nil
}

func (f *fakeStrategyStore) InsertStrategyDecisions(decs []domain.StrategyDecision) error {
	f.audit = append(f.audit, decs...)
	return nil
}

type staticRule struct {
	decisions map[string]domain.Decision
}

func (r staticRule) Evaluate(ctx rules.Context) map[string]domain.Decision { return r.decisions }

func TestStrategyEnginePriorityDedup(t *testing.T) {
	rules.Register("test_hi", staticRule{decisions: map[string]domain.Decision{
		"BTCUSDT": {Signal: domain.SignalBuyToEnter, Quantity: 0.01},
	}})
	rules.Register("test_lo", staticRule{decisions: map[string]domain.Decision{
		"BTCUSDT": {Signal: domain.SignalBuyToEnter, Quantity: 0.05},
		"ETHUSDT": {Signal: domain.SignalBuyToEnter, Quantity: 0.1},
	}})

	// Store returns strategies already ordered by priority DESC, created ASC.
	store := &fakeStrategyStore{strategies: []domain.Strategy{
		{ID: "s1", Name: "test_hi", Type: domain.StrategyTypeBuy},
		{ID: "s2", Name: "test_lo", Type: domain.StrategyTypeBuy},
	}}
	engine := NewStrategyEngine(store, "m1")

	result, err := engine.MakeBuyDecision(context.Background(), nil, domain.Portfolio{},
		domain.AccountInfo{}, domain.MarketState{}, domain.SymbolSourceLeaderboard)
	require.NoError(t, err)

	require.Len(t, result.Decisions, 2)
	assert.Equal(t, 0.01, result.Decisions["BTCUSDT"].Quantity, "higher-priority strategy wins the symbol")
	assert.Equal(t, 0.1, result.Decisions["ETHUSDT"].Quantity)

	require.Len(t, store.audit, 2)
	names := map[string]string{}
	for _, a := range store.audit {
		names[a.Symbol] = a.StrategyName
		assert.Equal(t, "m1", a.ModelID)
		assert.Equal(t, domain.StrategyTypeBuy, a.StrategyType)
		assert.NotEmpty(t, a.ID)
	}
	assert.Equal(t, "test_hi", names["BTCUSDT"])
	assert.Equal(t, "test_lo", names["ETHUSDT"])
}

func TestStrategyEngineUnknownRuleSkipped(t *testing.T) {
	store := &fakeStrategyStore{strategies: []domain.Strategy{
		{ID: "s1", Name: "not_registered_anywhere", Type: domain.StrategyTypeSell},
	}}
	engine := NewStrategyEngine(store, "m1")

	result, err := engine.MakeSellDecision(context.Background(), domain.Portfolio{}, domain.MarketState{}, domain.AccountInfo{})
	require.NoError(t, err)
	assert.Empty(t, result.Decisions)
	assert.Empty(t, store.audit)
}

func TestStrategyEngineSellPassesPositions(t *testing.T) {
	var seen rules.Context
	rules.Register("test_capture", captureRule{ctx: &seen})

	store := &fakeStrategyStore{strategies: []domain.Strategy{
		{ID: "s1", Name: "test_capture", Type: domain.StrategyTypeSell},
	}}
	engine := NewStrategyEngine(store, "m1")

	portfolio := domain.Portfolio{Positions: []domain.Position{
		{Symbol: "BTCUSDT", PositionSide: domain.SideLong, PositionAmt: 0.01},
	}}
	_, err := engine.MakeSellDecision(context.Background(), portfolio, domain.MarketState{}, domain.AccountInfo{})
	require.NoError(t, err)

	require.Len(t, seen.Positions, 1)
	assert.Equal(t, "BTCUSDT", seen.Positions[0].Symbol)
}

type captureRule struct {
	ctx *rules.Context
}

func (r captureRule) Evaluate(ctx rules.Context) map[string]domain.Decision {
	*r.ctx = ctx
	return nil
}
