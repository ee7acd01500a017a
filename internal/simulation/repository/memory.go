package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/credfluxo/restructure-backend/internal/simulation/domain"
)

// Memory is an in-memory attempt store for service tests.
type Memory struct {
	mu       sync.RWMutex
	attempts map[uuid.UUID]domain.SimulationAttempt
}

func NewMemory() *Memory {
	return &Memory{attempts: make(map[uuid.UUID]domain.SimulationAttempt)}
}

func (m *Memory) Create(ctx context.Context, a *domain.SimulationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID] = cloneAttempt(*a)
	return nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*domain.SimulationAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attempts[id]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	out := cloneAttempt(a)
	return &out, nil
}

func (m *Memory) ListByCase(ctx context.Context, caseID uuid.UUID) ([]domain.SimulationAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.SimulationAttempt, 0, 8)
	for _, a := range m.attempts {
		if a.CaseID == caseID {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SetStatus(ctx context.Context, id uuid.UUID, status domain.AttemptStatus, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[id]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	a.Status = status
	if reason != "" {
		a.RejectReason = reason
	}
	if status == domain.StatusApproved {
		a.ApprovedAt = &at
	}
	m.attempts[id] = a
	return nil
}

func (m *Memory) SupersedeOthers(ctx context.Context, caseID, keepID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, a := range m.attempts {
		if a.CaseID == caseID && id != keepID && a.Status != domain.StatusSuperseded {
			a.Status = domain.StatusSuperseded
			m.attempts[id] = a
		}
	}
	return nil
}

func (m *Memory) HasApproved(ctx context.Context, caseID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.attempts {
		if a.CaseID == caseID && a.Status == domain.StatusApproved {
			return true, nil
		}
	}
	return false, nil
}

func cloneAttempt(a domain.SimulationAttempt) domain.SimulationAttempt {
	out := a
	out.Entries = append([]domain.BankEntry(nil), a.Entries...)
	return out
}
