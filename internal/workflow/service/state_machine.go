// Package service orchestrates case transitions. Every mutation of a
// case flows through here: authorization against the permission matrix,
// exclusivity through the lock manager, simulation gating, then a
// single versioned write with its audit entries, then event emission.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credfluxo/restructure-backend/internal/audit"
	"github.com/credfluxo/restructure-backend/internal/events"
	"github.com/credfluxo/restructure-backend/internal/locking"
	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
	"github.com/credfluxo/restructure-backend/internal/workflow/permissions"
	"github.com/credfluxo/restructure-backend/internal/workflow/repository"
)

// SimulationGate answers whether a case carries an approved simulation
// attempt. Satisfied by the simulation repository.
type SimulationGate interface {
	HasApproved(ctx context.Context, caseID uuid.UUID) (bool, error)
}

// StateMachine applies named actions to cases.
type StateMachine struct {
	repo  repository.Repository
	perms *permissions.Matrix
	locks *locking.Manager
	mutex *locking.KeyedMutex
	sims  SimulationGate
	pub   events.Publisher
	cfg   Config
	log   zerolog.Logger
}

// Config carries the workflow tunables.
type Config struct {
	LockTTL time.Duration
}

// NewStateMachine wires the transition orchestrator. mutex must be the
// same instance handed to the lock manager and the simulation store.
func NewStateMachine(
	repo repository.Repository,
	perms *permissions.Matrix,
	locks *locking.Manager,
	mutex *locking.KeyedMutex,
	sims SimulationGate,
	pub events.Publisher,
	cfg Config,
	log zerolog.Logger,
) *StateMachine {
	return &StateMachine{
		repo:  repo,
		perms: perms,
		locks: locks,
		mutex: mutex,
		sims:  sims,
		pub:   pub,
		cfg:   cfg,
		log:   log,
	}
}

// CreateCase registers a freshly ingested case in the intake queue.
func (s *StateMachine) CreateCase(ctx context.Context, clientName, clientDocument string) (*domain.Case, error) {
	c := &domain.Case{
		ID:             uuid.New(),
		ClientName:     clientName,
		ClientDocument: clientDocument,
		Status:         domain.StateNew,
	}

	entry := audit.NewEntry(c.ID, audit.EventCaseCreated, nil, map[string]any{
		"client_name": clientName,
	})
	if err := s.repo.Create(ctx, c, entry); err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}

	s.publish(ctx, events.Transition{
		CaseID:    c.ID,
		Action:    audit.EventCaseCreated,
		NewState:  c.Status,
		Timestamp: s.locks.Clock().Now(),
	})
	return c, nil
}

// Apply runs one named action for an actor against a case. All checks
// happen before any write; on error the case is untouched.
func (s *StateMachine) Apply(ctx context.Context, caseID uuid.UUID, action domain.Action, actor domain.Actor, payload map[string]any) (*domain.Case, error) {
	if !domain.ValidRole(actor.Role) {
		// Code/data mismatch, not a user error. Fail loudly.
		return nil, fmt.Errorf("unrecognized role %q", actor.Role)
	}

	unlock := s.mutex.Lock(caseID)
	defer unlock()

	c, err := s.repo.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidState(c.Status) {
		return nil, fmt.Errorf("case %s has unrecognized state %q", caseID, c.Status)
	}

	// Transition validity is independent of role: an undefined action
	// from this state is invalid no matter who asks.
	to, ok := domain.NextState(c.Status, action)
	if !ok {
		return nil, fmt.Errorf("%w: %s from %s", domain.ErrInvalidTransition, action, c.Status)
	}

	if !s.perms.Allowed(c.Status, actor.Role, action) {
		return nil, fmt.Errorf("%w: %s as %s in %s", domain.ErrForbidden, action, actor.Role, c.Status)
	}

	now := s.locks.Clock().Now()
	if action == domain.ActionClaim {
		if err := s.locks.Claim(c, actor.ID, s.lockTTL()); err != nil {
			return nil, err
		}
	} else {
		if domain.RequiresOwnership(action) && !c.LockedBy(actor.ID, now) {
			return nil, fmt.Errorf("%w: %s requires holding the case lock", domain.ErrLockConflict, action)
		}
		if c.Locked(now) && !c.LockedBy(actor.ID, now) && !actor.Override() {
			return nil, fmt.Errorf("%w: locked by %s", domain.ErrLockConflict, *c.LockOwner)
		}
	}

	if domain.RequiresApprovedSimulation(action) {
		approved, err := s.sims.HasApproved(ctx, caseID)
		if err != nil {
			return nil, fmt.Errorf("check approved simulation: %w", err)
		}
		if !approved {
			return nil, domain.ErrSimulationRequired
		}
	}

	old := c.Status
	c.Status = to
	if domain.ReleasesLock(action) {
		c.ClearLock()
	}

	entry := audit.NewEntry(caseID, string(action), &actor.ID, mergePayload(payload, old, to))
	if err := s.repo.Update(ctx, c, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Transition{
		CaseID:    caseID,
		Action:    string(action),
		OldState:  old,
		NewState:  to,
		ActorID:   actor.ID,
		Timestamp: now,
	})

	s.log.Info().
		Str("case_id", caseID.String()).
		Str("action", string(action)).
		Str("actor", actor.ID).
		Str("from", string(old)).
		Str("to", string(to)).
		Msg("case transition")
	return c, nil
}

// ReleaseLock gives a case back to its queue without a state change.
func (s *StateMachine) ReleaseLock(ctx context.Context, caseID uuid.UUID, actor domain.Actor) (*domain.Case, error) {
	unlock := s.mutex.Lock(caseID)
	defer unlock()

	c, err := s.repo.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.locks.Release(c, actor); err != nil {
		return nil, err
	}

	entry := audit.NewEntry(caseID, audit.EventLockReleased, &actor.ID, nil)
	if err := s.repo.Update(ctx, c, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Transition{
		CaseID:    caseID,
		Action:    audit.EventLockReleased,
		OldState:  c.Status,
		NewState:  c.Status,
		ActorID:   actor.ID,
		Timestamp: s.locks.Clock().Now(),
	})
	return c, nil
}

// RenewLock extends the caller's assignment before it expires.
func (s *StateMachine) RenewLock(ctx context.Context, caseID uuid.UUID, actor domain.Actor) (*domain.Case, error) {
	unlock := s.mutex.Lock(caseID)
	defer unlock()

	c, err := s.repo.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.locks.Renew(c, actor.ID, s.lockTTL()); err != nil {
		return nil, err
	}

	entry := audit.NewEntry(caseID, audit.EventLockRenewed, &actor.ID, map[string]any{
		"expires_at": c.AssignmentExpiresAt,
	})
	if err := s.repo.Update(ctx, c, entry); err != nil {
		return nil, err
	}
	return c, nil
}

// ReclaimExpired sweeps expired locks and emits a release event for
// every reclaimed case. Run by the worker on a schedule.
func (s *StateMachine) ReclaimExpired(ctx context.Context) ([]uuid.UUID, error) {
	now := s.locks.Clock().Now()
	reclaimed, err := s.locks.SweepExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(reclaimed))
	for _, c := range reclaimed {
		ids = append(ids, c.ID)
		s.publish(ctx, events.Transition{
			CaseID:    c.ID,
			Action:    audit.EventLockExpired,
			OldState:  c.Status,
			NewState:  c.Status,
			Timestamp: now,
		})
	}
	return ids, nil
}

func (s *StateMachine) lockTTL() time.Duration {
	return s.cfg.LockTTL
}

func (s *StateMachine) publish(ctx context.Context, t events.Transition) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, t); err != nil {
		// Event delivery is at-least-once from the subscriber's point of
		// view; a failed publish is logged, not rolled back.
		s.log.Warn().Err(err).Str("case_id", t.CaseID.String()).Msg("publish transition failed")
	}
}

func mergePayload(payload map[string]any, from, to domain.State) map[string]any {
	out := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		out[k] = v
	}
	out["from"] = string(from)
	out["to"] = string(to)
	return out
}
