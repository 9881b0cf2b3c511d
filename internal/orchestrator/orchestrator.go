// Package orchestrator runs the two long-lived trading loops: a buy loop and
// a sell loop, each iterating models sequentially on its own cadence.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/perpctl/controlplane/internal/decision"
	"github.com/perpctl/controlplane/internal/domain"
	"github.com/perpctl/controlplane/internal/logger"
)

// ModelLister provides the registration-ordered model set each loop tick
// re-reads (so admin changes take effect without a restart).
type ModelLister interface {
	ListEnabledModels() ([]domain.Model, error)
}

// TradingEngine is the subset of internal/trading the orchestrator drives.
type TradingEngine interface {
	ExecuteBuyCycle(ctx context.Context, model domain.Model, engine decision.Engine) (domain.CycleResult, error)
	ExecuteSellCycle(ctx context.Context, model domain.Model, engine decision.Engine) (domain.CycleResult, error)
}

// EngineResolver builds (or looks up) the decision engine bound to one
// model; buy and sell use the same resolver since a model has exactly one
// engine regardless of cycle type.
type EngineResolver interface {
	Resolve(model domain.Model) (decision.Engine, error)
}

// Orchestrator owns the two loops.
type Orchestrator struct {
	models   ModelLister
	trading  TradingEngine
	engines  EngineResolver

	buyInterval  time.Duration
	sellInterval time.Duration
}

func New(models ModelLister, trading TradingEngine, engines EngineResolver, buyFrequencyMinutes, sellFrequencyMinutes int) *Orchestrator {
	return &Orchestrator{
		models: models, trading: trading, engines: engines,
		buyInterval:  time.Duration(buyFrequencyMinutes) * time.Minute,
		sellInterval: time.Duration(sellFrequencyMinutes) * time.Minute,
	}
}

// RunBuyLoop and RunSellLoop are meant to run as independent goroutines;
// each blocks until ctx is cancelled.
func (o *Orchestrator) RunBuyLoop(ctx context.Context) {
	o.runLoop(ctx, "buy", o.buyInterval, func(model domain.Model) (bool, error) {
		return model.AutoBuyEnabled, o.runOneBuy(ctx, model)
	})
}

func (o *Orchestrator) RunSellLoop(ctx context.Context) {
	o.runLoop(ctx, "sell", o.sellInterval, func(model domain.Model) (bool, error) {
		return model.AutoSellEnabled, o.runOneSell(ctx, model)
	})
}

// runLoop drives one loop: tick, sleep the remainder of the interval, and on
// a catastrophic tick failure sleep 60s and restart. runModel reports whether
// the model participates and runs the per-model cycle in the same call so a
// panic there is recovered per model, not per loop tick.
func (o *Orchestrator) runLoop(ctx context.Context, name string, interval time.Duration, runModel func(domain.Model) (bool, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		if err := o.tick(ctx, name, runModel); err != nil {
			logger.Errorf("❌ [orchestrator] %s loop catastrophic failure: %v — sleeping 60s and restarting", name, err)
			select {
			case <-time.After(60 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		remaining := interval - time.Since(start)
		if remaining > 0 {
			select {
			case <-time.After(remaining):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context, name string, runModel func(domain.Model) (bool, error)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s loop: %v", name, r)
		}
	}()

	models, listErr := o.models.ListEnabledModels()
	if listErr != nil {
		return fmt.Errorf("list models: %w", listErr)
	}

	for _, model := range models {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("❌ [orchestrator] %s cycle panicked for model %s: %v", name, model.ID, r)
				}
			}()
			enabled, cycleErr := runModel(model)
			if !enabled {
				return
			}
			if cycleErr != nil {
				logger.Errorf("❌ [orchestrator] %s cycle failed for model %s: %v", name, model.ID, cycleErr)
			}
		}()
	}
	return nil
}

func (o *Orchestrator) runOneBuy(ctx context.Context, model domain.Model) error {
	if !model.AutoBuyEnabled {
		return nil
	}
	engine, err := o.engines.Resolve(model)
	if err != nil {
		return fmt.Errorf("resolve engine: %w", err)
	}
	_, err = o.trading.ExecuteBuyCycle(ctx, model, engine)
	return err
}

func (o *Orchestrator) runOneSell(ctx context.Context, model domain.Model) error {
	if !model.AutoSellEnabled {
		return nil
	}
	engine, err := o.engines.Resolve(model)
	if err != nil {
		return fmt.Errorf("resolve engine: %w", err)
	}
	_, err = o.trading.ExecuteSellCycle(ctx, model, engine)
	return err
}
