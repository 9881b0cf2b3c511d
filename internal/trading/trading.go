// Package trading runs one model's buy and sell cycles: assembles market
// context, computes the portfolio, calls the model's decision engine,
// applies the returned decisions, and persists the audit trail.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/perpctl/controlplane/internal/decision"
	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/ledger"
	"github.com/perpctl/controlplane/internal/logger"
	"github.com/perpctl/controlplane/internal/market"
	"github.com/perpctl/controlplane/internal/metrics"
)

// Timeframes enumerates the kline intervals the trading engine embeds into
// marketState for each symbol.
var Timeframes = []string{"15m", "1h", "4h"}

type LeaderboardReader interface {
	LatestLeaderboardBatch(side domain.LeaderboardSide, topN int) ([]domain.LeaderboardEntry, error)
}

type FutureLister interface {
	ListModelFutures(modelID string) ([]domain.Future, error)
}

type ConversationWriter interface {
	AppendConversation(c domain.Conversation) error
}

type AccountValueWriter interface {
	AppendAccountValue(v domain.AccountValue) error
}

type LedgerStore interface {
	ListPositions(modelID string) ([]domain.Position, error)
	RealizedPnL(modelID string) (float64, error)
}

// Market is the subset of ExchangeClient the trading engine needs for
// context assembly (prices, 24h stats, klines — the rest is the ingester's
// concern).
type Market interface {
	SymbolPrices(ctx context.Context, symbols []string) (map[string]market.SymbolPrice, error)
	Ticker24h(ctx context.Context, symbols []string) (map[string]market.Stats24h, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Kline, error)
}

// FundingReader is the auxiliary, best-effort funding-rate lookup: a failure
// here never fails the cycle, it just leaves FundingRate at its zero value
// for that symbol.
type FundingReader interface {
	Get(ctx context.Context, symbol string) (float64, error)
}

// Executor is the subset of internal/executor the trading engine drives.
type Executor interface {
	Execute(modelID, symbol string, dec domain.Decision, model domain.Model,
		marketState domain.MarketState, portfolio domain.Portfolio) domain.Execution
}

// Engine is the per-model trading engine.
type Engine struct {
	leaderboard   LeaderboardReader
	futures       FutureLister
	conversations ConversationWriter
	accountValues AccountValueWriter
	ledgerStore   LedgerStore
	market        Market
	funding       FundingReader
	executor      Executor
	klineLimit    int
	topN          int
}

func New(leaderboard LeaderboardReader, futures FutureLister,
	conversations ConversationWriter, accountValues AccountValueWriter, ledgerStore LedgerStore,
	mkt Market, exec Executor, klineLimit, topN int) *Engine {

	if klineLimit <= 0 {
		klineLimit = 120
	}
	if topN <= 0 {
		topN = 10
	}
	return &Engine{leaderboard: leaderboard, futures: futures, conversations: conversations,
		accountValues: accountValues, ledgerStore: ledgerStore, market: mkt, executor: exec, klineLimit: klineLimit, topN: topN}
}

// WithFunding attaches the best-effort funding-rate cache; trading engines
// built without it simply leave TimeframeIndicators.FundingRate at zero.
func (e *Engine) WithFunding(f FundingReader) *Engine {
	e.funding = f
	return e
}

// ExecuteBuyCycle runs one buy cycle for the model.
func (e *Engine) ExecuteBuyCycle(ctx context.Context, model domain.Model, engine decision.Engine) (domain.CycleResult, error) {
	symbols, err := e.resolveSymbols(model)
	if err != nil {
		return domain.CycleResult{}, fmt.Errorf("resolve symbols: %w", err)
	}

	marketState, err := e.buildMarketState(ctx, symbols)
	if err != nil {
		return domain.CycleResult{}, fmt.Errorf("build market state: %w", err)
	}

	portfolio, accountInfo, err := e.portfolioAndAccount(model, marketState)
	if err != nil {
		return domain.CycleResult{}, err
	}

	candidates := buildCandidates(symbols, marketState)
	result, decErr := engine.MakeBuyDecision(ctx, candidates, portfolio, accountInfo, marketState, model.SymbolSource)
	if decErr != nil {
		logger.Errorf("❌ [trading] buy decision failed for model %s: %v", model.ID, decErr)
	}

	executions := e.applyDecisions(model, result.Decisions, marketState, portfolio)
	e.persistCycle(model, domain.CycleBuy, result, portfolio)
	metrics.ObserveCycle(model.ID, "buy", decErr == nil)

	return domain.CycleResult{Success: decErr == nil, Executions: executions}, nil
}

// ExecuteSellCycle runs one sell cycle over the model's open positions.
func (e *Engine) ExecuteSellCycle(ctx context.Context, model domain.Model, engine decision.Engine) (domain.CycleResult, error) {
	positions, err := e.ledgerStore.ListPositions(model.ID)
	if err != nil {
		return domain.CycleResult{}, fmt.Errorf("list positions: %w", err)
	}
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		symbols = append(symbols, p.Symbol)
	}

	marketState, err := e.buildMarketState(ctx, symbols)
	if err != nil {
		return domain.CycleResult{}, fmt.Errorf("build market state: %w", err)
	}

	portfolio, accountInfo, err := e.portfolioAndAccount(model, marketState)
	if err != nil {
		return domain.CycleResult{}, err
	}

	result, decErr := engine.MakeSellDecision(ctx, portfolio, marketState, accountInfo)
	if decErr != nil {
		logger.Errorf("❌ [trading] sell decision failed for model %s: %v", model.ID, decErr)
	}

	executions := e.applyDecisions(model, result.Decisions, marketState, portfolio)
	e.persistCycle(model, domain.CycleSell, result, portfolio)
	metrics.ObserveCycle(model.ID, "sell", decErr == nil)

	return domain.CycleResult{Success: decErr == nil, Executions: executions}, nil
}

func (e *Engine) resolveSymbols(model domain.Model) ([]string, error) {
	if model.SymbolSource == domain.SymbolSourceLeaderboard {
		entries, err := e.leaderboard.LatestLeaderboardBatch(domain.SideGainer, e.topN)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(entries))
		for _, en := range entries {
			out = append(out, en.Symbol)
		}
		return out, nil
	}

	futs, err := e.futures.ListModelFutures(model.ID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(futs))
	for _, f := range futs {
		out = append(out, f.ContractSymbol)
	}
	return out, nil
}

// buildMarketState assembles the per-symbol context a decision engine sees:
// current price, 24h volume/change, and per-timeframe indicators. A symbol
// whose recent closes are frozen is excluded from the cycle.
func (e *Engine) buildMarketState(ctx context.Context, symbols []string) (domain.MarketState, error) {
	state := make(domain.MarketState, len(symbols))
	if len(symbols) == 0 {
		return state, nil
	}

	prices, err := e.market.SymbolPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}
	stats, err := e.market.Ticker24h(ctx, symbols)
	if err != nil {
		logger.Warnf("⚠️  [trading] ticker24h fetch failed, candidates carry zero volume/change: %v", err)
		stats = map[string]market.Stats24h{}
	}

	for _, symbol := range symbols {
		price := prices[symbol].Price
		timeframes := make(map[string]domain.TimeframeIndicators, len(Timeframes))
		stale := false
		for _, tf := range Timeframes {
			klines, err := e.market.Klines(ctx, symbol, tf, e.klineLimit)
			if err != nil {
				logger.Warnf("⚠️  [trading] klines %s/%s failed: %v", symbol, tf, err)
				continue
			}
			if market.IsStale(klines) {
				stale = true
				break
			}
			ma5, ma20, ma60, ma99, macd, rsi14, vol := market.Indicators(klines)
			timeframes[tf] = domain.TimeframeIndicators{
				MA5: ma5, MA20: ma20, MA60: ma60, MA99: ma99, MACD: macd, RSI14: rsi14, VOL: vol,
				FundingRate: e.fundingRate(ctx, symbol),
			}
		}
		if stale {
			logger.Warnf("⚠️  [trading] excluding %s from this cycle: frozen price feed", symbol)
			continue
		}
		st := stats[symbol]
		state[symbol] = domain.Candidate{
			Symbol:           symbol,
			ContractSymbol:   symbol,
			Price:            price,
			DailyQuoteVolume: st.QuoteVolume,
			Change24h:        st.PriceChangePercent,
			Timeframes:       timeframes,
		}
	}
	return state, nil
}

// fundingRate is best-effort: a missing FundingReader or a failed lookup
// both resolve to 0 rather than aborting market-state assembly.
func (e *Engine) fundingRate(ctx context.Context, symbol string) float64 {
	if e.funding == nil {
		return 0
	}
	rate, err := e.funding.Get(ctx, symbol)
	if err != nil {
		return 0
	}
	return rate
}

func buildCandidates(symbols []string, marketState domain.MarketState) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(symbols))
	for _, symbol := range symbols {
		if c, ok := marketState[symbol]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) portfolioAndAccount(model domain.Model, marketState domain.MarketState) (domain.Portfolio, domain.AccountInfo, error) {
	prices := make(map[string]float64, len(marketState))
	for symbol, c := range marketState {
		prices[symbol] = c.Price
	}

	portfolio, err := ledger.Compute(e.ledgerStore, model.ID, model.InitialCapital, prices)
	if err != nil {
		return domain.Portfolio{}, domain.AccountInfo{}, fmt.Errorf("compute portfolio: %w", err)
	}

	totalReturn := 0.0
	if model.InitialCapital > 0 {
		totalReturn = (portfolio.TotalValue/model.InitialCapital - 1) * 100
	}

	return portfolio, domain.AccountInfo{
		InitialCapital: model.InitialCapital,
		TotalReturn:    totalReturn,
		CurrentTimeUTC: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// applyDecisions routes each decision through the executor; one symbol's
// failure never aborts the others.
func (e *Engine) applyDecisions(model domain.Model, decisions map[string]domain.Decision,
	marketState domain.MarketState, portfolio domain.Portfolio) []domain.Execution {

	out := make([]domain.Execution, 0, len(decisions))
	for symbol, dec := range decisions {
		out = append(out, e.executor.Execute(model.ID, symbol, dec, model, marketState, portfolio))
	}
	return out
}

// persistCycle writes a Conversation row only for the LLM variant (it
// carries prompt/response/cot; the strategy variant already wrote its own
// StrategyDecision audit rows), plus an account-value snapshot either way.
func (e *Engine) persistCycle(model domain.Model, cycleType domain.DecisionCycleType, result domain.DecisionResult, portfolio domain.Portfolio) {
	if model.TradeType == domain.TradeTypeAI {
		conv := domain.Conversation{
			ModelID: model.ID, UserPrompt: result.Prompt, AIResponse: result.RawResponse,
			CoTTrace: result.CoTTrace, Tokens: result.Tokens, Type: cycleType,
		}
		if err := e.conversations.AppendConversation(conv); err != nil {
			logger.Errorf("❌ [trading] persist conversation failed for model %s: %v", model.ID, err)
		}
	}

	snapshot := domain.AccountValue{
		ModelID: model.ID, Balance: portfolio.TotalValue, AvailableBalance: portfolio.Cash,
		CrossWalletBalance: portfolio.TotalValue, CrossUnPnL: portfolio.UnrealizedPnL, AccountAlias: model.AccountAlias,
	}
	if err := e.accountValues.AppendAccountValue(snapshot); err != nil {
		logger.Errorf("❌ [trading] persist account value failed for model %s: %v", model.ID, err)
	}
	metrics.ObservePortfolio(model.ID, portfolio.TotalValue, portfolio.UnrealizedPnL, portfolio.RealizedPnL, portfolio.MarginUsed)
}
