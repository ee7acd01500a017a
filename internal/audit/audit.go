// Package audit is the append-only record of every workflow action.
// Entries are ordered per case by creation time and never mutated.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types recorded alongside workflow actions.
const (
	EventCaseCreated        = "case_created"
	EventLockClaimed        = "lock_claimed"
	EventLockReleased       = "lock_released"
	EventLockRenewed        = "lock_renewed"
	EventLockExpired        = "lock_expired"
	EventSimulationSubmit   = "simulation_submitted"
	EventSimulationApproved = "simulation_approved"
	EventSimulationRejected = "simulation_rejected"
	EventSimulationSetFinal = "simulation_set_final"
)

// Entry is one audit record. ActorID is nil for system-driven events
// such as lock expiry sweeps.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	CaseID    uuid.UUID      `json:"case_id"`
	EventType string         `json:"event_type"`
	ActorID   *string        `json:"actor_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEntry fills in identifier and timestamp for an audit record.
func NewEntry(caseID uuid.UUID, eventType string, actorID *string, payload map[string]any) Entry {
	return Entry{
		ID:        uuid.New(),
		CaseID:    caseID,
		EventType: eventType,
		ActorID:   actorID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// Repository reads the audit trail. Appends happen through the case
// repository so they commit atomically with the state change.
type Repository interface {
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]Entry, error)
}
