package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/credfluxo/restructure-backend/internal/audit"
	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
)

// Filter narrows case listings to a queue and/or an assigned agent.
type Filter struct {
	Status        *domain.State
	AssignedAgent *string
	Limit         int
}

// Repository persists cases. Update applies an optimistic version check
// and fails with domain.ErrVersionConflict when the row moved underneath
// the caller. Audit entries passed to Create/Update commit atomically
// with the case row, never after it.
type Repository interface {
	Create(ctx context.Context, c *domain.Case, entries ...audit.Entry) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Case, error)
	Update(ctx context.Context, c *domain.Case, entries ...audit.Entry) error
	List(ctx context.Context, f Filter) ([]domain.Case, error)
	ListExpiredLocks(ctx context.Context, now time.Time) ([]domain.Case, error)
	CountByStatus(ctx context.Context) (map[domain.State]int64, error)
}
