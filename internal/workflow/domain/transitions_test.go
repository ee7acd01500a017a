package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextState(t *testing.T) {
	t.Run("happy path through the pipeline", func(t *testing.T) {
		steps := []struct {
			from   State
			action Action
			to     State
		}{
			{StateNew, ActionClaim, StateInProgress},
			{StateInProgress, ActionSubmitToCalculation, StatePendingCalculation},
			{StatePendingCalculation, ActionApproveCalculation, StateCalculationApproved},
			{StateCalculationApproved, ActionSendToClosing, StatePendingClosing},
			{StatePendingClosing, ActionApproveClosing, StateClosingApproved},
			{StateClosingApproved, ActionSendToFinance, StatePendingFinance},
			{StatePendingFinance, ActionConfirmFinance, StateActivated},
		}
		for _, s := range steps {
			to, ok := NextState(s.from, s.action)
			assert.True(t, ok, "%s from %s", s.action, s.from)
			assert.Equal(t, s.to, to)
		}
	})

	t.Run("re-claim keeps the case in progress", func(t *testing.T) {
		to, ok := NextState(StateInProgress, ActionClaim)
		assert.True(t, ok)
		assert.Equal(t, StateInProgress, to)
	})

	t.Run("undefined pairs", func(t *testing.T) {
		_, ok := NextState(StatePendingCalculation, ActionApproveClosing)
		assert.False(t, ok)
		_, ok = NextState(StateNew, ActionConfirmFinance)
		assert.False(t, ok)
	})

	t.Run("terminal states have no outgoing transitions", func(t *testing.T) {
		for _, s := range []State{StateActivated, StateDeclinedByClient, StateRejectedClosed} {
			assert.True(t, s.Terminal())
			for _, a := range []Action{ActionClaim, ActionCloseDeclined, ActionConfirmFinance} {
				_, ok := NextState(s, a)
				assert.False(t, ok, "%s from terminal %s", a, s)
			}
		}
	})

	t.Run("no_contact side branch returns to intake", func(t *testing.T) {
		to, ok := NextState(StateInProgress, ActionMarkNoContact)
		assert.True(t, ok)
		assert.Equal(t, StateNoContact, to)

		to, ok = NextState(StateNoContact, ActionReturnToPipeline)
		assert.True(t, ok)
		assert.Equal(t, StateNew, to)

		to, ok = NextState(StateNoContact, ActionClaim)
		assert.True(t, ok)
		assert.Equal(t, StateInProgress, to)
	})
}

func TestLockHelpers(t *testing.T) {
	assert.True(t, ReleasesLock(ActionConfirmFinance))
	assert.True(t, ReleasesLock(ActionSubmitToCalculation))
	assert.False(t, ReleasesLock(ActionClaim))

	assert.True(t, RequiresOwnership(ActionSubmitToCalculation))
	assert.False(t, RequiresOwnership(ActionApproveCalculation))

	assert.True(t, RequiresApprovedSimulation(ActionApproveCalculation))
	assert.True(t, RequiresApprovedSimulation(ActionSendToClosing))
	assert.False(t, RequiresApprovedSimulation(ActionClaim))
}
