package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/credfluxo/restructure-backend/internal/simulation/domain"
)

// Repository persists the append-only collection of simulation attempts
// per case.
type Repository interface {
	Create(ctx context.Context, a *domain.SimulationAttempt) error
	Get(ctx context.Context, id uuid.UUID) (*domain.SimulationAttempt, error)
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]domain.SimulationAttempt, error)
	// SetStatus re-tags one attempt as of at. reason is stored for
	// rejections; at is recorded as the approval time on approvals.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.AttemptStatus, reason string, at time.Time) error
	// SupersedeOthers marks every non-superseded sibling of keepID as
	// superseded, keeping the approved-attempt invariant.
	SupersedeOthers(ctx context.Context, caseID, keepID uuid.UUID) error
	// HasApproved reports whether the case has an approved, non-superseded
	// attempt.
	HasApproved(ctx context.Context, caseID uuid.UUID) (bool, error)
}
