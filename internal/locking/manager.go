// Package locking is the single choke point for exclusive case
// ownership. Every claim, release, renewal and expiry sweep goes
// through the Manager so the lock invariants are checked in one place.
package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credfluxo/restructure-backend/internal/audit"
	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
	"github.com/credfluxo/restructure-backend/internal/workflow/repository"
)

// Manager grants and reclaims time-bounded case ownership.
type Manager struct {
	repo  repository.Repository
	mutex *KeyedMutex
	clock Clock
	log   zerolog.Logger
}

func NewManager(repo repository.Repository, mutex *KeyedMutex, clock Clock, log zerolog.Logger) *Manager {
	return &Manager{repo: repo, mutex: mutex, clock: clock, log: log}
}

// Clock exposes the injected time source to collaborating services.
func (m *Manager) Clock() Clock { return m.clock }

// Claim stamps the lock fields onto an already-loaded case. The caller
// holds the per-case mutex and persists the case afterwards. Claiming a
// case the actor already owns refreshes the expiry.
func (m *Manager) Claim(c *domain.Case, actorID string, ttl time.Duration) error {
	now := m.clock.Now()
	if c.Locked(now) && !c.LockedBy(actorID, now) {
		return domain.ErrAlreadyLocked
	}

	expires := now.Add(ttl)
	c.LockActive = true
	c.LockOwner = &actorID
	c.LockStartedAt = &now
	c.AssignedAgent = &actorID
	c.AssignmentExpiresAt = &expires
	return nil
}

// Release clears the lock fields. Only the owner may release, except
// for supervisor/admin override. Releasing an unlocked case is a no-op.
func (m *Manager) Release(c *domain.Case, actor domain.Actor) error {
	now := m.clock.Now()
	if !c.Locked(now) {
		c.ClearLock()
		return nil
	}
	if !c.LockedBy(actor.ID, now) && !actor.Override() {
		return domain.ErrNotOwner
	}
	c.ClearLock()
	return nil
}

// Renew extends the expiry of a lock the actor currently holds.
func (m *Manager) Renew(c *domain.Case, actorID string, ttl time.Duration) error {
	if !c.LockedBy(actorID, m.clock.Now()) {
		return domain.ErrNotOwner
	}
	expires := m.clock.Now().Add(ttl)
	c.AssignmentExpiresAt = &expires
	return nil
}

// SweepExpired reclaims every lock whose expiry is behind now and
// returns the affected cases. Each case is re-checked under its mutex;
// a case released or re-claimed in the meantime is skipped, so running
// the sweep twice in a row is idempotent.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time) ([]domain.Case, error) {
	expired, err := m.repo.ListExpiredLocks(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("scan expired locks: %w", err)
	}

	reclaimed := make([]domain.Case, 0, len(expired))
	for _, candidate := range expired {
		c, err := m.reclaim(ctx, candidate.ID, now)
		if err != nil {
			m.log.Error().Err(err).Str("case_id", candidate.ID.String()).Msg("sweep: reclaim failed")
			continue
		}
		if c != nil {
			reclaimed = append(reclaimed, *c)
		}
	}
	return reclaimed, nil
}

func (m *Manager) reclaim(ctx context.Context, id uuid.UUID, now time.Time) (*domain.Case, error) {
	unlock := m.mutex.Lock(id)
	defer unlock()

	c, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Race lost against a legitimate release or fresh claim: no-op.
	if !c.LockActive || c.AssignmentExpiresAt == nil || c.AssignmentExpiresAt.After(now) {
		return nil, nil
	}

	owner := ""
	if c.LockOwner != nil {
		owner = *c.LockOwner
	}
	c.ClearLock()

	entry := audit.NewEntry(c.ID, audit.EventLockExpired, nil, map[string]any{
		"previous_owner": owner,
		"swept_at":       now,
	})
	if err := m.repo.Update(ctx, c, entry); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Concurrent mutation between Get and Update: treat as race
			// lost, the next sweep will see the final state.
			return nil, nil
		}
		return nil, err
	}

	m.log.Info().
		Str("case_id", c.ID.String()).
		Str("previous_owner", owner).
		Msg("lock reclaimed by expiry sweep")
	return c, nil
}
