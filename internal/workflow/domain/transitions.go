package domain

// transitions defines the full state graph: (from, action) -> to.
// Any pair absent here is an invalid transition regardless of role.
var transitions = map[State]map[Action]State{
	StateNew: {
		ActionClaim:         StateInProgress,
		ActionCloseDeclined: StateDeclinedByClient,
	},
	StateNoContact: {
		ActionClaim:            StateInProgress,
		ActionReturnToPipeline: StateNew,
		ActionCloseDeclined:    StateDeclinedByClient,
	},
	StateInProgress: {
		// Re-claim: refresh by the owner, or pick up a case whose lock
		// expired and was swept.
		ActionClaim:               StateInProgress,
		ActionSubmitToCalculation: StatePendingCalculation,
		ActionMarkNoContact:       StateNoContact,
		ActionCloseDeclined:       StateDeclinedByClient,
	},
	StatePendingCalculation: {
		ActionApproveCalculation: StateCalculationApproved,
		ActionRejectCalculation:  StateCalculationRejected,
		ActionCloseDeclined:      StateDeclinedByClient,
	},
	StateCalculationApproved: {
		ActionSendToClosing: StatePendingClosing,
		ActionCloseDeclined: StateDeclinedByClient,
	},
	StateCalculationRejected: {
		ActionReturnToPipeline: StateInProgress,
		ActionCloseRejected:    StateRejectedClosed,
		ActionCloseDeclined:    StateDeclinedByClient,
	},
	StatePendingClosing: {
		ActionApproveClosing: StateClosingApproved,
		ActionCloseRejected:  StateRejectedClosed,
		ActionCloseDeclined:  StateDeclinedByClient,
	},
	StateClosingApproved: {
		ActionSendToFinance: StatePendingFinance,
		ActionCloseDeclined: StateDeclinedByClient,
	},
	StatePendingFinance: {
		ActionConfirmFinance: StateActivated,
		ActionCloseDeclined:  StateDeclinedByClient,
	},
}

// NextState resolves the target state for (from, action). The second
// return is false when the transition is not defined.
func NextState(from State, action Action) (State, bool) {
	m, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := m[action]
	return to, ok
}

// releasesLock lists actions that move the case out of the acting
// agent's working queue; the lock is dropped on success.
var releasesLock = map[Action]bool{
	ActionSubmitToCalculation: true,
	ActionMarkNoContact:       true,
	ActionConfirmFinance:      true,
	ActionCloseDeclined:       true,
	ActionCloseRejected:       true,
	ActionReturnToPipeline:    true,
}

// ReleasesLock reports whether a successful action clears the case lock.
func ReleasesLock(action Action) bool {
	return releasesLock[action]
}

// requiresOwnership lists actions only the current lock holder may run.
var requiresOwnership = map[Action]bool{
	ActionSubmitToCalculation: true,
	ActionMarkNoContact:       true,
}

// RequiresOwnership reports whether the action demands holding the lock.
func RequiresOwnership(action Action) bool {
	return requiresOwnership[action]
}

// requiresApprovedSimulation lists actions gated on an approved
// simulation attempt being present on the case.
var requiresApprovedSimulation = map[Action]bool{
	ActionApproveCalculation: true,
	ActionSendToClosing:      true,
}

// RequiresApprovedSimulation reports whether the action is gated on an
// approved simulation attempt.
func RequiresApprovedSimulation(action Action) bool {
	return requiresApprovedSimulation[action]
}
