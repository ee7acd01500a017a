// Package permissions holds the declarative (state, role, action)
// authorization table: a single default-deny lookup built once at
// startup, instead of role checks scattered across handlers.
package permissions

import (
	"fmt"

	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
)

type entry struct {
	state  domain.State
	role   domain.Role
	action domain.Action
}

// Matrix answers Allowed(state, role, action). Anything not explicitly
// whitelisted is denied.
type Matrix struct {
	allowed map[entry]struct{}
}

type rule struct {
	state  domain.State
	action domain.Action
	roles  []domain.Role
}

// elevated roles are whitelisted alongside the queue's specialist role.
var elevated = []domain.Role{domain.RoleSupervisor, domain.RoleAdmin}

func with(specialists ...domain.Role) []domain.Role {
	return append(specialists, elevated...)
}

var rules = []rule{
	{domain.StateNew, domain.ActionClaim, with(domain.RoleAgent)},

	{domain.StateNoContact, domain.ActionClaim, with(domain.RoleAgent)},
	{domain.StateNoContact, domain.ActionReturnToPipeline, with()},
	{domain.StateNoContact, domain.ActionCloseDeclined, with()},

	{domain.StateNew, domain.ActionCloseDeclined, with()},

	{domain.StateInProgress, domain.ActionClaim, with(domain.RoleAgent)},
	{domain.StateInProgress, domain.ActionSubmitToCalculation, with(domain.RoleAgent)},
	{domain.StateInProgress, domain.ActionMarkNoContact, with(domain.RoleAgent)},
	{domain.StateInProgress, domain.ActionCloseDeclined, with(domain.RoleAgent)},
	{domain.StateInProgress, domain.ActionSubmitSimulation, with(domain.RoleAgent)},

	{domain.StatePendingCalculation, domain.ActionApproveCalculation, with(domain.RoleCalculator)},
	{domain.StatePendingCalculation, domain.ActionRejectCalculation, with(domain.RoleCalculator)},
	{domain.StatePendingCalculation, domain.ActionSubmitSimulation, with(domain.RoleCalculator)},
	{domain.StatePendingCalculation, domain.ActionCloseDeclined, with()},

	{domain.StateCalculationApproved, domain.ActionSendToClosing, with(domain.RoleAgent)},
	{domain.StateCalculationApproved, domain.ActionSetFinalSimulation, with()},
	{domain.StateCalculationApproved, domain.ActionCloseDeclined, with(domain.RoleAgent)},

	{domain.StateCalculationRejected, domain.ActionReturnToPipeline, with(domain.RoleAgent)},
	{domain.StateCalculationRejected, domain.ActionCloseRejected, with()},
	{domain.StateCalculationRejected, domain.ActionCloseDeclined, with()},

	{domain.StatePendingClosing, domain.ActionApproveClosing, with(domain.RoleCloser)},
	{domain.StatePendingClosing, domain.ActionCloseRejected, with(domain.RoleCloser)},
	{domain.StatePendingClosing, domain.ActionSetFinalSimulation, with()},
	{domain.StatePendingClosing, domain.ActionCloseDeclined, with()},

	{domain.StateClosingApproved, domain.ActionSendToFinance, with(domain.RoleCloser)},
	{domain.StateClosingApproved, domain.ActionCloseDeclined, with()},

	{domain.StatePendingFinance, domain.ActionConfirmFinance, with(domain.RoleFinance)},
	{domain.StatePendingFinance, domain.ActionCloseDeclined, with()},
}

// New builds the matrix from the rule table. A rule referencing an
// unknown state or role is a programming error and panics at startup.
func New() *Matrix {
	m := &Matrix{allowed: make(map[entry]struct{}, len(rules)*3)}
	for _, r := range rules {
		if !domain.ValidState(r.state) {
			panic(fmt.Sprintf("permissions: unknown state %q in rule table", r.state))
		}
		for _, role := range r.roles {
			if !domain.ValidRole(role) {
				panic(fmt.Sprintf("permissions: unknown role %q in rule table", role))
			}
			m.allowed[entry{r.state, role, r.action}] = struct{}{}
		}
	}
	return m
}

// Allowed reports whether role may perform action on a case in state.
// Default deny: unknown combinations return false.
func (m *Matrix) Allowed(state domain.State, role domain.Role, action domain.Action) bool {
	_, ok := m.allowed[entry{state, role, action}]
	return ok
}
