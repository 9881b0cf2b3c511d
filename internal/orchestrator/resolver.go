package orchestrator

import (
	"fmt"
	"sync"

	"github.com/perpctl/controlplane/internal/decision"
	"github.com/perpctl/controlplane/internal/domain"
)

// ProviderStore and PromptStore are the lookups the resolver needs to build
// a model's decision engine on first use.
type ProviderStore interface {
	GetProvider(providerID string) (domain.Provider, error)
}

type PromptStore interface {
	GetModelPrompt(modelID string) (domain.ModelPrompt, error)
}

// Resolver builds and caches one decision.Engine per model, dispatching on
// TradeType: AI models get an LLM engine bound to their provider and prompt,
// strategy models get the rule engine.
type Resolver struct {
	providers   ProviderStore
	prompts     PromptStore
	strategies  decision.StrategyStore
	symbolLimit int

	mu     sync.Mutex
	cached map[string]decision.Engine
}

func NewResolver(providers ProviderStore, prompts PromptStore, strategies decision.StrategyStore, promptSymbolLimit int) *Resolver {
	return &Resolver{providers: providers, prompts: prompts, strategies: strategies,
		symbolLimit: promptSymbolLimit, cached: map[string]decision.Engine{}}
}

func (r *Resolver) Resolve(model domain.Model) (decision.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.cached[model.ID]; ok {
		return e, nil
	}

	var engine decision.Engine
	switch model.TradeType {
	case domain.TradeTypeAI:
		provider, err := r.providers.GetProvider(model.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("load provider for model %s: %w", model.ID, err)
		}
		prompt, err := r.prompts.GetModelPrompt(model.ID)
		if err != nil {
			return nil, fmt.Errorf("load prompt for model %s: %w", model.ID, err)
		}
		llmEngine, err := decision.NewLLMEngine(provider, model, prompt, r.symbolLimit)
		if err != nil {
			return nil, err
		}
		engine = llmEngine
	case domain.TradeTypeStrategy:
		engine = decision.NewStrategyEngine(r.strategies, model.ID)
	default:
		return nil, fmt.Errorf("model %s has unknown trade_type %q", model.ID, model.TradeType)
	}

	r.cached[model.ID] = engine
	return engine, nil
}
