package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpctl/controlplane/internal/domain"
)

type fakeProviderStore struct {
	calls int
}

func (f *fakeProviderStore) GetProvider(providerID string) (domain.Provider, error) {
	f.calls++
	return domain.Provider{ID: providerID, ProviderType: domain.ProviderOpenAI, APIURL: "https://api.example.com"}, nil
}

type fakePromptStore struct{}

func (f *fakePromptStore) GetModelPrompt(modelID string) (domain.ModelPrompt, error) {
	return domain.ModelPrompt{ModelID: modelID}, nil
}

type fakeStrategyStore struct{}

func (f *fakeStrategyStore) ListModelStrategies(modelID string, t domain.StrategyType) ([]domain.Strategy, error) {
	return nil, nil
}
func (f *fakeStrategyStore) InsertStrategyDecisions(decs []domain.StrategyDecision) error { return nil }

func TestResolverCachesPerModel(t *testing.T) {
	providers := &fakeProviderStore{}
	r := NewResolver(providers, &fakePromptStore{}, &fakeStrategyStore{}, 5)
	model := domain.Model{ID: "m1", TradeType: domain.TradeTypeAI, ProviderID: "p1"}

	first, err := r.Resolve(model)
	require.NoError(t, err)
	second, err := r.Resolve(model)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, providers.calls, "provider looked up once, then served from cache")
}

func TestResolverStrategyModelNeedsNoProvider(t *testing.T) {
	providers := &fakeProviderStore{}
	r := NewResolver(providers, &fakePromptStore{}, &fakeStrategyStore{}, 5)

	engine, err := r.Resolve(domain.Model{ID: "m2", TradeType: domain.TradeTypeStrategy})
	require.NoError(t, err)
	assert.NotNil(t, engine)
	assert.Zero(t, providers.calls)
}

func TestResolverRejectsUnknownTradeType(t *testing.T) {
	r := NewResolver(&fakeProviderStore{}, &fakePromptStore{}, &fakeStrategyStore{}, 5)

	_, err := r.Resolve(domain.Model{ID: "m3", TradeType: "manual"})
	assert.Error(t, err)
}
