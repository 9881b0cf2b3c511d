package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignal_Valid(t *testing.T) {
	assert.True(t, SignalBuyToEnter.Valid())
	assert.True(t, SignalHold.Valid())
	assert.False(t, Signal("not_a_signal").Valid())
}

func TestSignal_IsEntryIsExitAreMutuallyExclusive(t *testing.T) {
	for _, s := range []Signal{SignalBuyToEnter, SignalSellToEnter, SignalClosePosition, SignalStopLoss, SignalTakeProfit, SignalHold} {
		assert.False(t, s.IsEntry() && s.IsExit(), "signal %q cannot be both entry and exit", s)
	}
	assert.True(t, SignalBuyToEnter.IsEntry())
	assert.True(t, SignalStopLoss.IsExit())
	assert.False(t, SignalHold.IsEntry())
	assert.False(t, SignalHold.IsExit())
}

func TestPositionSide_Valid(t *testing.T) {
	assert.True(t, SideLong.Valid())
	assert.True(t, SideShort.Valid())
	assert.False(t, PositionSide("long").Valid(), "must not silently coerce case")
	assert.False(t, PositionSide("").Valid())
}
