package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
)

func TestMatrix_DefaultDeny(t *testing.T) {
	m := New()

	t.Run("unlisted combination", func(t *testing.T) {
		assert.False(t, m.Allowed(domain.StateNew, domain.RoleFinance, domain.ActionConfirmFinance))
		assert.False(t, m.Allowed(domain.StatePendingFinance, domain.RoleAgent, domain.ActionConfirmFinance))
		assert.False(t, m.Allowed(domain.StateInProgress, domain.RoleCalculator, domain.ActionSubmitToCalculation))
	})

	t.Run("unknown enum values", func(t *testing.T) {
		assert.False(t, m.Allowed(domain.State("bogus"), domain.RoleAgent, domain.ActionClaim))
		assert.False(t, m.Allowed(domain.StateNew, domain.Role("bogus"), domain.ActionClaim))
		assert.False(t, m.Allowed(domain.StateNew, domain.RoleAgent, domain.Action("bogus")))
	})

	t.Run("terminal states allow nothing", func(t *testing.T) {
		roles := []domain.Role{
			domain.RoleAgent, domain.RoleCalculator, domain.RoleCloser,
			domain.RoleFinance, domain.RoleSupervisor, domain.RoleAdmin,
		}
		actions := []domain.Action{
			domain.ActionClaim, domain.ActionSubmitToCalculation,
			domain.ActionApproveCalculation, domain.ActionConfirmFinance,
			domain.ActionCloseDeclined,
		}
		for _, state := range []domain.State{domain.StateActivated, domain.StateDeclinedByClient, domain.StateRejectedClosed} {
			for _, role := range roles {
				for _, action := range actions {
					assert.False(t, m.Allowed(state, role, action),
						"%s/%s/%s should be denied", state, role, action)
				}
			}
		}
	})
}

func TestMatrix_SpecialistQueues(t *testing.T) {
	m := New()

	assert.True(t, m.Allowed(domain.StateNew, domain.RoleAgent, domain.ActionClaim))
	assert.True(t, m.Allowed(domain.StateInProgress, domain.RoleAgent, domain.ActionSubmitToCalculation))
	assert.True(t, m.Allowed(domain.StatePendingCalculation, domain.RoleCalculator, domain.ActionApproveCalculation))
	assert.True(t, m.Allowed(domain.StatePendingCalculation, domain.RoleCalculator, domain.ActionRejectCalculation))
	assert.True(t, m.Allowed(domain.StatePendingClosing, domain.RoleCloser, domain.ActionApproveClosing))
	assert.True(t, m.Allowed(domain.StatePendingFinance, domain.RoleFinance, domain.ActionConfirmFinance))

	// cross-queue access is denied
	assert.False(t, m.Allowed(domain.StatePendingCalculation, domain.RoleCloser, domain.ActionApproveCalculation))
	assert.False(t, m.Allowed(domain.StatePendingClosing, domain.RoleCalculator, domain.ActionApproveClosing))
}

func TestMatrix_ElevatedRoles(t *testing.T) {
	m := New()

	for _, role := range []domain.Role{domain.RoleSupervisor, domain.RoleAdmin} {
		assert.True(t, m.Allowed(domain.StatePendingCalculation, role, domain.ActionApproveCalculation))
		assert.True(t, m.Allowed(domain.StatePendingClosing, role, domain.ActionApproveClosing))
		assert.True(t, m.Allowed(domain.StatePendingFinance, role, domain.ActionConfirmFinance))
		assert.True(t, m.Allowed(domain.StateCalculationRejected, role, domain.ActionCloseRejected))
	}
}

func TestMatrix_SimulationOperations(t *testing.T) {
	m := New()

	assert.True(t, m.Allowed(domain.StateInProgress, domain.RoleAgent, domain.ActionSubmitSimulation))
	assert.True(t, m.Allowed(domain.StatePendingCalculation, domain.RoleCalculator, domain.ActionSubmitSimulation))
	assert.False(t, m.Allowed(domain.StateNew, domain.RoleAgent, domain.ActionSubmitSimulation))

	// only elevated roles may re-point the authoritative attempt
	assert.True(t, m.Allowed(domain.StateCalculationApproved, domain.RoleSupervisor, domain.ActionSetFinalSimulation))
	assert.False(t, m.Allowed(domain.StateCalculationApproved, domain.RoleAgent, domain.ActionSetFinalSimulation))
}
