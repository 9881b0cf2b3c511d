package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perpctl/controlplane/internal/domain"
)

func openTestRelational(t *testing.T) *RelationalStore {
	t.Helper()
	s, err := OpenRelational(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndGetPosition(t *testing.T) {
	s := openTestRelational(t)

	p := domain.Position{ModelID: "m1", Symbol: "BTCUSDT", PositionSide: domain.SideLong,
		PositionAmt: 0.01, AvgPrice: 50000, Leverage: 10, InitialMargin: 50}
	require.NoError(t, s.UpsertPosition(p))

	got, err := s.GetPosition("m1", "BTCUSDT", domain.SideLong)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.01, got.PositionAmt)
	assert.Equal(t, 50000.0, got.AvgPrice)
}

func TestUpsertPositionOverwritesSameKey(t *testing.T) {
	s := openTestRelational(t)

	p := domain.Position{ModelID: "m1", Symbol: "BTCUSDT", PositionSide: domain.SideLong,
		PositionAmt: 0.01, AvgPrice: 50000, Leverage: 10}
	require.NoError(t, s.UpsertPosition(p))
	p.PositionAmt, p.AvgPrice = 0.02, 45000
	require.NoError(t, s.UpsertPosition(p))

	positions, err := s.ListPositions("m1")
	require.NoError(t, err)
	require.Len(t, positions, 1, "(model, symbol, side) stays unique")
	assert.Equal(t, 0.02, positions[0].PositionAmt)
}

func TestUpsertPositionZeroAmountDeletesRow(t *testing.T) {
	s := openTestRelational(t)

	p := domain.Position{ModelID: "m1", Symbol: "BTCUSDT", PositionSide: domain.SideLong,
		PositionAmt: 0.01, AvgPrice: 50000, Leverage: 10}
	require.NoError(t, s.UpsertPosition(p))
	p.PositionAmt = 0
	require.NoError(t, s.UpsertPosition(p))

	got, err := s.GetPosition("m1", "BTCUSDT", domain.SideLong)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertPositionRejectsInvalidSide(t *testing.T) {
	s := openTestRelational(t)

	err := s.UpsertPosition(domain.Position{ModelID: "m1", Symbol: "BTCUSDT",
		PositionSide: "SIDEWAYS", PositionAmt: 1})
	assert.Error(t, err)
}

func TestRealizedPnLSumsTrades(t *testing.T) {
	s := openTestRelational(t)

	for _, pnl := range []float64{49.45, -12.3, 0} {
		require.NoError(t, s.AppendTrade(domain.Trade{ModelID: "m1", Symbol: "BTCUSDT",
			Signal: domain.SignalClosePosition, Quantity: 0.01, Price: 50000,
			Side: domain.SideLong, PnL: pnl}))
	}
	require.NoError(t, s.AppendTrade(domain.Trade{ModelID: "other", Symbol: "BTCUSDT",
		Signal: domain.SignalClosePosition, PnL: 1000, Side: domain.SideLong}))

	total, err := s.RealizedPnL("m1")
	require.NoError(t, err)
	assert.InDelta(t, 37.15, total, 1e-9)
}

func TestRealizedPnLZeroWithoutTrades(t *testing.T) {
	s := openTestRelational(t)

	total, err := s.RealizedPnL("m1")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListModelStrategiesOrdersByPriorityThenAge(t *testing.T) {
	s := openTestRelational(t)

	mustExec := func(query string, args ...interface{}) {
		_, err := s.db.Exec(query, args...)
		require.NoError(t, err)
	}
	mustExec(`INSERT INTO strategies (id, name, type) VALUES ('s1', 'low_prio', 'buy')`)
	mustExec(`INSERT INTO strategies (id, name, type) VALUES ('s2', 'high_prio', 'buy')`)
	mustExec(`INSERT INTO strategies (id, name, type) VALUES ('s3', 'sell_only', 'sell')`)
	mustExec(`INSERT INTO model_strategies (model_id, strategy_id, type, priority, created_at) VALUES ('m1', 's1', 'buy', 1, '2026-01-01')`)
	mustExec(`INSERT INTO model_strategies (model_id, strategy_id, type, priority, created_at) VALUES ('m1', 's2', 'buy', 10, '2026-01-02')`)
	mustExec(`INSERT INTO model_strategies (model_id, strategy_id, type, priority, created_at) VALUES ('m1', 's3', 'sell', 5, '2026-01-01')`)

	buys, err := s.ListModelStrategies("m1", domain.StrategyTypeBuy)
	require.NoError(t, err)
	require.Len(t, buys, 2)
	assert.Equal(t, "high_prio", buys[0].Name)
	assert.Equal(t, "low_prio", buys[1].Name)
}

func TestInsertStrategyDecisionsBatch(t *testing.T) {
	s := openTestRelational(t)

	decs := []domain.StrategyDecision{
		{ModelID: "m1", StrategyName: "momentum_breakout", StrategyType: domain.StrategyTypeBuy,
			Signal: domain.SignalBuyToEnter, Symbol: "BTCUSDT", Quantity: 0.01},
		{ModelID: "m1", StrategyName: "momentum_breakout", StrategyType: domain.StrategyTypeBuy,
			Signal: domain.SignalBuyToEnter, Symbol: "ETHUSDT", Quantity: 0.1},
	}
	require.NoError(t, s.InsertStrategyDecisions(decs))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM strategy_decisions WHERE model_id = 'm1'`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestDeleteFutureIfUnheld(t *testing.T) {
	s := openTestRelational(t)

	_, err := s.db.Exec(`INSERT INTO futures (symbol, contract_symbol) VALUES ('BTCUSDT', 'BTCUSDT')`)
	require.NoError(t, err)

	// Still held by another model: row survives.
	require.NoError(t, s.UpsertPosition(domain.Position{ModelID: "m2", Symbol: "BTCUSDT",
		PositionSide: domain.SideLong, PositionAmt: 1, AvgPrice: 1, Leverage: 1}))
	require.NoError(t, s.DeleteFutureIfUnheld("BTCUSDT"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM futures WHERE symbol = 'BTCUSDT'`).Scan(&count))
	assert.Equal(t, 1, count)

	// Last holder closes: row goes.
	require.NoError(t, s.UpsertPosition(domain.Position{ModelID: "m2", Symbol: "BTCUSDT",
		PositionSide: domain.SideLong, PositionAmt: 0}))
	require.NoError(t, s.DeleteFutureIfUnheld("BTCUSDT"))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM futures WHERE symbol = 'BTCUSDT'`).Scan(&count))
	assert.Zero(t, count)
}

func TestGetModelPromptMissingRowIsEmptyNotError(t *testing.T) {
	s := openTestRelational(t)

	mp, err := s.GetModelPrompt("nope")
	require.NoError(t, err)
	assert.Empty(t, mp.BuyPrompt)
	assert.Empty(t, mp.SellPrompt)
}
