// Package executor applies per-symbol decisions to a model's positions and
// trade ledger. All quantities are positive magnitudes; direction always
// comes from the signal.
package executor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/perpctl/controlplane/internal/domain"
)

// PositionStore is the subset of storage the executor mutates.
type PositionStore interface {
	GetPosition(modelID, symbol string, side domain.PositionSide) (*domain.Position, error)
	UpsertPosition(p domain.Position) error
	DeleteFutureIfUnheld(symbol string) error
}

// TradeStore appends the immutable trade ledger.
type TradeStore interface {
	AppendTrade(t domain.Trade) error
}

// Executor applies decisions to storage.
type Executor struct {
	positions PositionStore
	trades    TradeStore
	feeRate   float64
}

func New(positions PositionStore, trades TradeStore, feeRate float64) *Executor {
	if feeRate <= 0 {
		feeRate = 0.001
	}
	return &Executor{positions: positions, trades: trades, feeRate: feeRate}
}

// Execute dispatches one symbol's decision to the matching entry/exit path.
func (e *Executor) Execute(modelID, symbol string, dec domain.Decision, model domain.Model,
	marketState domain.MarketState, portfolio domain.Portfolio) domain.Execution {

	switch {
	case dec.Signal == domain.SignalHold:
		return domain.Execution{Symbol: symbol, Signal: dec.Signal, Message: "hold"}
	case dec.Signal.IsEntry():
		return e.executeEntry(modelID, symbol, dec, model, marketState, portfolio)
	case dec.Signal.IsExit():
		return e.executeExit(modelID, symbol, dec, marketState)
	default:
		return domain.Execution{Symbol: symbol, Signal: dec.Signal, Error: fmt.Sprintf("invalid signal %q", dec.Signal)}
	}
}

func (e *Executor) executeEntry(modelID, symbol string, dec domain.Decision, model domain.Model,
	marketState domain.MarketState, portfolio domain.Portfolio) domain.Execution {

	side := domain.SideLong
	if dec.Signal == domain.SignalSellToEnter {
		side = domain.SideShort
	}

	existing, err := e.positions.GetPosition(modelID, symbol, side)
	if err != nil {
		return errExec(symbol, dec.Signal, fmt.Errorf("read existing position: %w", err))
	}
	if existing == nil && len(portfolio.Positions) >= model.MaxPositions {
		return domain.Execution{Symbol: symbol, Signal: dec.Signal, Error: "max_positions reached"}
	}

	price := marketState[symbol].Price
	if price <= 0 {
		return domain.Execution{Symbol: symbol, Signal: dec.Signal, Error: "no price available"}
	}

	leverage := model.Leverage
	if leverage <= 0 {
		leverage = dec.Leverage
	}
	if leverage <= 0 {
		leverage = 1
	}

	feeRate := decimal.NewFromFloat(e.feeRate)
	priceD := decimal.NewFromFloat(price)
	cashD := decimal.NewFromFloat(portfolio.Cash)

	maxAffordableQty := cashD.Div(priceD.Mul(decimal.NewFromInt(1).Add(feeRate)))
	riskPct := clampDecimal(decimal.NewFromFloat(dec.RiskBudgetPct).Div(decimal.NewFromInt(100)),
		decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.05))
	riskQty := cashD.Mul(riskPct).Div(priceD.Mul(decimal.NewFromInt(1).Add(feeRate)))

	qty := decimal.NewFromFloat(dec.Quantity)
	if qty.LessThanOrEqual(decimal.Zero) || qty.GreaterThan(maxAffordableQty) {
		qty = maxAffordableQty
		if riskQty.GreaterThan(decimal.Zero) {
			qty = decimal.Min(maxAffordableQty, riskQty)
		}
	}
	qty = qty.Truncate(8) // round down, never up
	if qty.LessThanOrEqual(decimal.Zero) {
		return domain.Execution{Symbol: symbol, Signal: dec.Signal, Error: "insufficient cash to open"}
	}

	margin := qty.Mul(priceD).Div(decimal.NewFromInt(int64(leverage)))
	fee := qty.Mul(priceD).Mul(feeRate)
	if margin.Add(fee).GreaterThan(cashD) {
		return domain.Execution{Symbol: symbol, Signal: dec.Signal, Error: "insufficient cash including fee"}
	}

	merged := mergePosition(existing, symbol, side, qty, priceD, leverage, margin)
	merged.ModelID = modelID
	if err := e.positions.UpsertPosition(merged); err != nil {
		return errExec(symbol, dec.Signal, fmt.Errorf("upsert position: %w", err))
	}

	qtyF, _ := qty.Float64()
	priceF, _ := priceD.Float64()
	feeF, _ := fee.Float64()
	trade := domain.Trade{ModelID: modelID, Symbol: symbol, Signal: dec.Signal, Quantity: qtyF, Price: priceF,
		Leverage: leverage, Side: side, PnL: 0, Fee: feeF}
	if err := e.trades.AppendTrade(trade); err != nil {
		return errExec(symbol, dec.Signal, fmt.Errorf("append trade: %w", err))
	}

	return domain.Execution{Symbol: symbol, Signal: dec.Signal, Quantity: qtyF, Price: priceF, Fee: feeF,
		Message: fmt.Sprintf("entered %s %.8f %s @ %.4f", side, qtyF, symbol, priceF)}
}

func mergePosition(existing *domain.Position, symbol string, side domain.PositionSide, qty, price decimal.Decimal,
	leverage int, margin decimal.Decimal) domain.Position {

	if existing == nil || existing.PositionAmt == 0 {
		qtyF, _ := qty.Float64()
		priceF, _ := price.Float64()
		marginF, _ := margin.Float64()
		return domain.Position{Symbol: symbol, PositionSide: side, PositionAmt: qtyF, AvgPrice: priceF,
			Leverage: leverage, InitialMargin: marginF}
	}

	existingAmt := decimal.NewFromFloat(existing.PositionAmt)
	existingAvg := decimal.NewFromFloat(existing.AvgPrice)
	totalAmt := existingAmt.Add(qty)
	// volume-weighted average price
	newAvg := existingAmt.Mul(existingAvg).Add(qty.Mul(price)).Div(totalAmt)

	amtF, _ := totalAmt.Float64()
	avgF, _ := newAvg.Float64()
	marginF := existing.InitialMargin
	if m, _ := margin.Float64(); m > 0 {
		marginF += m
	}
	return domain.Position{ModelID: existing.ModelID, Symbol: symbol, PositionSide: side, PositionAmt: amtF,
		AvgPrice: avgF, Leverage: leverage, InitialMargin: marginF, UnrealizedProfit: existing.UnrealizedProfit}
}

func (e *Executor) executeExit(modelID, symbol string, dec domain.Decision, marketState domain.MarketState) domain.Execution {
	side := domain.SideLong
	existing, err := e.positions.GetPosition(modelID, symbol, side)
	if err != nil {
		return errExec(symbol, dec.Signal, fmt.Errorf("read position: %w", err))
	}
	if existing == nil {
		side = domain.SideShort
		existing, err = e.positions.GetPosition(modelID, symbol, side)
		if err != nil {
			return errExec(symbol, dec.Signal, fmt.Errorf("read position: %w", err))
		}
	}
	if existing == nil {
		return domain.Execution{Symbol: symbol, Signal: dec.Signal, Error: "no existing position to close"}
	}

	current := marketState[symbol].Price
	if current <= 0 {
		return domain.Execution{Symbol: symbol, Signal: dec.Signal, Error: "no price available"}
	}

	currentD := decimal.NewFromFloat(current)
	avgD := decimal.NewFromFloat(existing.AvgPrice)
	qtyD := decimal.NewFromFloat(existing.PositionAmt).Abs()

	var grossPnL decimal.Decimal
	if side == domain.SideLong {
		grossPnL = currentD.Sub(avgD).Mul(qtyD)
	} else {
		grossPnL = avgD.Sub(currentD).Mul(qtyD)
	}
	fee := qtyD.Mul(currentD).Mul(decimal.NewFromFloat(e.feeRate))
	netPnL := grossPnL.Sub(fee)

	if err := e.positions.UpsertPosition(domain.Position{ModelID: modelID, Symbol: symbol, PositionSide: side, PositionAmt: 0}); err != nil {
		return errExec(symbol, dec.Signal, fmt.Errorf("delete position: %w", err))
	}
	if err := e.positions.DeleteFutureIfUnheld(symbol); err != nil {
		return errExec(symbol, dec.Signal, fmt.Errorf("delete unheld future: %w", err))
	}

	qtyF, _ := qtyD.Float64()
	feeF, _ := fee.Float64()
	pnlF, _ := netPnL.Float64()
	trade := domain.Trade{ModelID: modelID, Symbol: symbol, Signal: dec.Signal, Quantity: qtyF, Price: current,
		Leverage: existing.Leverage, Side: side, PnL: pnlF, Fee: feeF}
	if err := e.trades.AppendTrade(trade); err != nil {
		return errExec(symbol, dec.Signal, fmt.Errorf("append trade: %w", err))
	}

	return domain.Execution{Symbol: symbol, Signal: dec.Signal, Quantity: qtyF, Price: current, PnL: pnlF, Fee: feeF,
		Message: fmt.Sprintf("closed %s %.8f %s @ %.4f pnl=%.4f", side, qtyF, symbol, current, pnlF)}
}

func errExec(symbol string, signal domain.Signal, err error) domain.Execution {
	return domain.Execution{Symbol: symbol, Signal: signal, Error: err.Error()}
}

func clampDecimal(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
