package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/credfluxo/restructure-backend/internal/audit"
	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
)

// Memory is an in-memory case store with the same optimistic-version
// semantics as the Postgres repo. Used by service tests; also serves
// audit reads over the entries it collected.
type Memory struct {
	mu      sync.RWMutex
	cases   map[uuid.UUID]domain.Case
	entries []audit.Entry
}

func NewMemory() *Memory {
	return &Memory{cases: make(map[uuid.UUID]domain.Case)}
}

func (m *Memory) Create(ctx context.Context, c *domain.Case, entries ...audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	c.Version = 1
	c.CreatedAt = now
	c.UpdatedAt = now
	m.cases[c.ID] = cloneCase(*c)
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cases[id]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	out := cloneCase(c)
	return &out, nil
}

func (m *Memory) Update(ctx context.Context, c *domain.Case, entries ...audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.cases[c.ID]
	if !ok {
		return domain.ErrCaseNotFound
	}
	if stored.Version != c.Version {
		return domain.ErrVersionConflict
	}

	c.Version++
	c.UpdatedAt = time.Now().UTC()
	m.cases[c.ID] = cloneCase(*c)
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *Memory) List(ctx context.Context, f Filter) ([]domain.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Case, 0, len(m.cases))
	for _, c := range m.cases {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.AssignedAgent != nil && (c.AssignedAgent == nil || *c.AssignedAgent != *f.AssignedAgent) {
			continue
		}
		out = append(out, cloneCase(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ListExpiredLocks(ctx context.Context, now time.Time) ([]domain.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Case, 0, 4)
	for _, c := range m.cases {
		if c.LockActive && c.AssignmentExpiresAt != nil && !c.AssignmentExpiresAt.After(now) {
			out = append(out, cloneCase(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AssignmentExpiresAt.Before(*out[j].AssignmentExpiresAt)
	})
	return out, nil
}

func (m *Memory) CountByStatus(ctx context.Context) (map[domain.State]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[domain.State]int64)
	for _, c := range m.cases {
		out[c.Status]++
	}
	return out, nil
}

// ListByCase implements audit.Repository over the collected entries.
func (m *Memory) ListByCase(ctx context.Context, caseID uuid.UUID) ([]audit.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]audit.Entry, 0, 8)
	for _, e := range m.entries {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func cloneCase(c domain.Case) domain.Case {
	out := c
	out.AssignedAgent = clonePtr(c.AssignedAgent)
	out.AssignmentExpiresAt = clonePtr(c.AssignmentExpiresAt)
	out.LockOwner = clonePtr(c.LockOwner)
	out.LockStartedAt = clonePtr(c.LockStartedAt)
	out.CurrentSimulationID = clonePtr(c.CurrentSimulationID)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
