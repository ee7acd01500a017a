package domain

import (
	"time"

	"github.com/google/uuid"
)

// State is the queue a case currently sits in.
type State string

const (
	StateNew                 State = "new"
	StateInProgress          State = "in_progress"
	StatePendingCalculation  State = "pending_calculation"
	StateCalculationApproved State = "calculation_approved"
	StateCalculationRejected State = "calculation_rejected"
	StatePendingClosing      State = "pending_closing"
	StateClosingApproved     State = "closing_approved"
	StatePendingFinance      State = "pending_finance"
	StateActivated           State = "activated"
	StateDeclinedByClient    State = "declined_by_client"
	StateRejectedClosed      State = "rejected_closed"
	StateNoContact           State = "no_contact"
)

// Action is a named workflow transition requested by an actor.
type Action string

const (
	ActionClaim               Action = "claim"
	ActionSubmitToCalculation Action = "submit_to_calculation"
	ActionApproveCalculation  Action = "approve_calculation"
	ActionRejectCalculation   Action = "reject_calculation"
	ActionSendToClosing       Action = "send_to_closing"
	ActionApproveClosing      Action = "approve_closing"
	ActionSendToFinance       Action = "send_to_finance"
	ActionConfirmFinance      Action = "confirm_finance"
	ActionCloseDeclined       Action = "close_declined"
	ActionCloseRejected       Action = "close_rejected"
	ActionReturnToPipeline    Action = "return_to_pipeline"
	ActionMarkNoContact       Action = "mark_no_contact"

	// Simulation operations are permission-gated through the same matrix.
	ActionSubmitSimulation   Action = "submit_simulation"
	ActionSetFinalSimulation Action = "set_final_simulation"
)

// Role of an authenticated actor. Authentication itself happens upstream;
// the backend only consumes the resolved (actor_id, role) pair.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleCalculator Role = "calculator"
	RoleCloser     Role = "closer"
	RoleFinance    Role = "finance"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Case is the unit of work moving through the restructuring pipeline.
type Case struct {
	ID                  uuid.UUID  `json:"id"`
	ClientName          string     `json:"client_name"`
	ClientDocument      string     `json:"client_document"`
	Status              State      `json:"status"`
	AssignedAgent       *string    `json:"assigned_agent,omitempty"`
	AssignmentExpiresAt *time.Time `json:"assignment_expires_at,omitempty"`
	LockActive          bool       `json:"lock_active"`
	LockOwner           *string    `json:"lock_owner,omitempty"`
	LockStartedAt       *time.Time `json:"lock_started_at,omitempty"`
	CurrentSimulationID *uuid.UUID `json:"current_simulation_id,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Locked reports whether the case carries an active lock that has not
// expired as of now.
func (c *Case) Locked(now time.Time) bool {
	if !c.LockActive {
		return false
	}
	if c.AssignmentExpiresAt != nil && !c.AssignmentExpiresAt.After(now) {
		return false
	}
	return true
}

// LockedBy reports whether actorID holds the active lock as of now.
func (c *Case) LockedBy(actorID string, now time.Time) bool {
	return c.Locked(now) && c.LockOwner != nil && *c.LockOwner == actorID
}

// ClearLock drops all lock fields. Callers persist the change.
func (c *Case) ClearLock() {
	c.LockActive = false
	c.LockOwner = nil
	c.LockStartedAt = nil
	c.AssignedAgent = nil
	c.AssignmentExpiresAt = nil
}

// Terminal reports whether no further transition is defined from s.
func (s State) Terminal() bool {
	switch s {
	case StateActivated, StateDeclinedByClient, StateRejectedClosed:
		return true
	}
	return false
}

// ValidState reports whether s is one of the closed set of states.
// An unknown state on a loaded case means code and data are out of sync.
func ValidState(s State) bool {
	switch s {
	case StateNew, StateInProgress, StatePendingCalculation,
		StateCalculationApproved, StateCalculationRejected,
		StatePendingClosing, StateClosingApproved, StatePendingFinance,
		StateActivated, StateDeclinedByClient, StateRejectedClosed,
		StateNoContact:
		return true
	}
	return false
}

// ValidAction reports whether a is one of the closed set of actions.
func ValidAction(a Action) bool {
	switch a {
	case ActionClaim, ActionSubmitToCalculation, ActionApproveCalculation,
		ActionRejectCalculation, ActionSendToClosing, ActionApproveClosing,
		ActionSendToFinance, ActionConfirmFinance, ActionCloseDeclined,
		ActionCloseRejected, ActionReturnToPipeline, ActionMarkNoContact,
		ActionSubmitSimulation, ActionSetFinalSimulation:
		return true
	}
	return false
}

// ValidRole reports whether r is one of the closed set of roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAgent, RoleCalculator, RoleCloser, RoleFinance, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// Actor is the already-authenticated caller of a workflow operation.
type Actor struct {
	ID   string
	Role Role
}

// Override reports whether the actor may release locks they do not own.
func (a Actor) Override() bool {
	return a.Role == RoleSupervisor || a.Role == RoleAdmin
}
