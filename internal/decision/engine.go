// Package decision provides the two decision-engine variants: an LLM-backed
// engine dispatching per provider_type, and a statically compiled
// strategy/rule engine (see strategy_engine.go).
package decision

import (
	"context"
	"fmt"

	"github.com/perpctl/controlplane/internal/decision/llm"
	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/logger"
)

// Engine is the uniform decision contract; both the LLM and strategy
// variants satisfy it so the trading engine never branches on which one a
// model uses.
type Engine interface {
	MakeBuyDecision(ctx context.Context, candidates []domain.Candidate, portfolio domain.Portfolio,
		account domain.AccountInfo, marketState domain.MarketState, symbolSource domain.SymbolSource) (domain.DecisionResult, error)
	MakeSellDecision(ctx context.Context, portfolio domain.Portfolio, marketState domain.MarketState,
		account domain.AccountInfo) (domain.DecisionResult, error)
}

// LLMEngine is one model's binding to a provider's HTTP client plus its two
// prompt fragments.
type LLMEngine struct {
	client       *llm.Client
	maxPositions int
	buyPrompt    string
	sellPrompt   string
	symbolLimit  int
}

// NewLLMEngine builds the engine for one model, resolving its provider's
// wire-shape client via llm.NewForProvider. promptSymbolLimit caps how many
// candidates the buy prompt enumerates.
func NewLLMEngine(provider domain.Provider, model domain.Model, prompt domain.ModelPrompt, promptSymbolLimit int) (*LLMEngine, error) {
	client, err := llm.NewForProvider(provider.ProviderType, provider.APIURL, provider.APIKey, model.ModelName)
	if err != nil {
		return nil, fmt.Errorf("build llm client for model %s: %w", model.ID, err)
	}
	if promptSymbolLimit <= 0 {
		promptSymbolLimit = 5
	}
	return &LLMEngine{
		client:       client,
		maxPositions: model.MaxPositions,
		buyPrompt:    prompt.BuyPrompt,
		sellPrompt:   prompt.SellPrompt,
		symbolLimit:  promptSymbolLimit,
	}, nil
}

func (e *LLMEngine) MakeBuyDecision(ctx context.Context, candidates []domain.Candidate, portfolio domain.Portfolio,
	account domain.AccountInfo, marketState domain.MarketState, symbolSource domain.SymbolSource) (domain.DecisionResult, error) {

	if len(candidates) > e.symbolLimit {
		candidates = candidates[:e.symbolLimit]
	}
	prompt := buildBuyPrompt(candidates, portfolio, account, symbolSource, e.maxPositions, e.buyPrompt)
	return e.call(ctx, prompt)
}

func (e *LLMEngine) MakeSellDecision(ctx context.Context, portfolio domain.Portfolio, marketState domain.MarketState,
	account domain.AccountInfo) (domain.DecisionResult, error) {

	prompt := buildSellPrompt(portfolio.Positions, marketState, account, e.sellPrompt)
	return e.call(ctx, prompt)
}

func (e *LLMEngine) call(ctx context.Context, userPrompt string) (domain.DecisionResult, error) {
	resp, err := e.client.Call(ctx, systemPromptJSONOnly, userPrompt)
	if err != nil {
		logger.Errorf("❌ [decision] LLM call failed: %v", err)
		return domain.DecisionResult{Prompt: userPrompt, Skipped: true}, err
	}

	decisions, cot := parseDecisionResponse(resp.Text)
	return domain.DecisionResult{
		Decisions:   decisions,
		Prompt:      userPrompt,
		RawResponse: resp.Text,
		CoTTrace:    cot,
		Tokens:      resp.Tokens,
	}, nil
}
