// Package ledger computes per-model portfolio snapshots from positions,
// trades, and current prices.
package ledger

import (
	"github.com/perpctl/controlplane/internal/domain"
)

// Store is the subset of the relational store the ledger reads.
type Store interface {
	ListPositions(modelID string) ([]domain.Position, error)
	RealizedPnL(modelID string) (float64, error)
}

// Compute builds the portfolio snapshot given currentPrices keyed by symbol
// (0 if unknown). Stored unrealized PnL wins over a recomputed mark when a
// position carries one.
func Compute(store Store, modelID string, initialCapital float64, currentPrices map[string]float64) (domain.Portfolio, error) {
	positions, err := store.ListPositions(modelID)
	if err != nil {
		return domain.Portfolio{}, err
	}
	realizedPnL, err := store.RealizedPnL(modelID)
	if err != nil {
		return domain.Portfolio{}, err
	}

	var marginUsed, unrealizedPnL, positionsValue float64
	for _, p := range positions {
		amt := absFloat(p.PositionAmt)

		if p.InitialMargin != 0 {
			marginUsed += p.InitialMargin
		} else if p.Leverage > 0 {
			marginUsed += amt * p.AvgPrice / float64(p.Leverage)
		}

		if p.UnrealizedProfit != 0 {
			unrealizedPnL += p.UnrealizedProfit
		} else if current, ok := currentPrices[p.Symbol]; ok && current > 0 {
			if p.PositionSide == domain.SideLong {
				unrealizedPnL += (current - p.AvgPrice) * amt
			} else {
				unrealizedPnL += (p.AvgPrice - current) * amt
			}
		}

		positionsValue += amt * p.AvgPrice
	}

	cash := initialCapital + realizedPnL - marginUsed
	totalValue := initialCapital + realizedPnL + unrealizedPnL

	return domain.Portfolio{
		ModelID:        modelID,
		Positions:      positions,
		RealizedPnL:    realizedPnL,
		MarginUsed:     marginUsed,
		UnrealizedPnL:  unrealizedPnL,
		Cash:           cash,
		PositionsValue: positionsValue,
		TotalValue:     totalValue,
	}, nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
