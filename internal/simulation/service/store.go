// Package service is the versioned simulation store: it runs the engine
// on submissions, tracks which attempt is current, and drives the
// approve/reject workflow transitions that depend on the outcome.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/credfluxo/restructure-backend/internal/audit"
	"github.com/credfluxo/restructure-backend/internal/events"
	"github.com/credfluxo/restructure-backend/internal/locking"
	simdomain "github.com/credfluxo/restructure-backend/internal/simulation/domain"
	"github.com/credfluxo/restructure-backend/internal/simulation/engine"
	simrepo "github.com/credfluxo/restructure-backend/internal/simulation/repository"
	wfdomain "github.com/credfluxo/restructure-backend/internal/workflow/domain"
	"github.com/credfluxo/restructure-backend/internal/workflow/permissions"
	wfrepo "github.com/credfluxo/restructure-backend/internal/workflow/repository"
)

// Store coordinates simulation attempts with the case workflow. It
// shares the per-case mutex with the state machine so attempt and case
// mutations of one case never interleave.
type Store struct {
	attempts simrepo.Repository
	cases    wfrepo.Repository
	perms    *permissions.Matrix
	mutex    *locking.KeyedMutex
	pub      events.Publisher
	clock    locking.Clock
	log      zerolog.Logger
}

func NewStore(
	attempts simrepo.Repository,
	cases wfrepo.Repository,
	perms *permissions.Matrix,
	mutex *locking.KeyedMutex,
	pub events.Publisher,
	clock locking.Clock,
	log zerolog.Logger,
) *Store {
	return &Store{
		attempts: attempts,
		cases:    cases,
		perms:    perms,
		mutex:    mutex,
		pub:      pub,
		clock:    clock,
		log:      log,
	}
}

// SubmitInput is one calculation submission.
type SubmitInput struct {
	Entries            []simdomain.BankEntry
	TermMonths         int
	Insurance          decimal.Decimal
	ConsultancyPercent decimal.Decimal
}

// Submit computes a new draft attempt and makes it the case's current
// one. Nothing is persisted when the engine rejects the input.
func (s *Store) Submit(ctx context.Context, caseID uuid.UUID, actor wfdomain.Actor, in SubmitInput) (*simdomain.SimulationAttempt, error) {
	unlock := s.mutex.Lock(caseID)
	defer unlock()

	c, err := s.cases.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(c, actor, wfdomain.ActionSubmitSimulation); err != nil {
		return nil, err
	}

	totals, err := engine.Compute(in.Entries, in.TermMonths, in.Insurance, in.ConsultancyPercent)
	if err != nil {
		return nil, err
	}

	attempt := &simdomain.SimulationAttempt{
		ID:                 uuid.New(),
		CaseID:             caseID,
		Entries:            in.Entries,
		TermMonths:         in.TermMonths,
		Insurance:          in.Insurance,
		ConsultancyPercent: in.ConsultancyPercent,
		Totals:             totals,
		Status:             simdomain.StatusDraft,
		CreatedAt:          s.clock.Now(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	c.CurrentSimulationID = &attempt.ID
	entry := audit.NewEntry(caseID, audit.EventSimulationSubmit, &actor.ID, map[string]any{
		"attempt_id":             attempt.ID,
		"term_months":            attempt.TermMonths,
		"financed_total":         totals.FinancedTotal,
		"client_released_amount": totals.ClientReleasedAmount,
	})
	if err := s.cases.Update(ctx, c, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, caseID, audit.EventSimulationSubmit, c.Status, c.Status, actor.ID)
	return attempt, nil
}

// Approve marks a draft attempt approved, supersedes its siblings and
// advances the case out of the calculation queue.
func (s *Store) Approve(ctx context.Context, attemptID uuid.UUID, actor wfdomain.Actor) (*wfdomain.Case, error) {
	a, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	unlock := s.mutex.Lock(a.CaseID)
	defer unlock()

	// Re-read under the case mutex; a concurrent approval may have
	// retagged the attempt.
	if a, err = s.attempts.Get(ctx, attemptID); err != nil {
		return nil, err
	}
	if a.Status != simdomain.StatusDraft {
		return nil, fmt.Errorf("%w: status is %s", simdomain.ErrNotDraft, a.Status)
	}

	c, err := s.cases.Get(ctx, a.CaseID)
	if err != nil {
		return nil, err
	}
	to, ok := wfdomain.NextState(c.Status, wfdomain.ActionApproveCalculation)
	if !ok {
		return nil, fmt.Errorf("%w: %s from %s", wfdomain.ErrInvalidTransition, wfdomain.ActionApproveCalculation, c.Status)
	}
	if err := s.authorize(c, actor, wfdomain.ActionApproveCalculation); err != nil {
		return nil, err
	}

	// Attempt statuses first: if the case write loses a version race the
	// approved attempt simply satisfies the gate on the retry. Siblings
	// are superseded before the new approval so at most one approved
	// attempt ever exists per case.
	if err := s.attempts.SupersedeOthers(ctx, a.CaseID, attemptID); err != nil {
		return nil, err
	}
	if err := s.attempts.SetStatus(ctx, attemptID, simdomain.StatusApproved, "", s.clock.Now()); err != nil {
		return nil, err
	}

	old := c.Status
	c.Status = to
	c.CurrentSimulationID = &attemptID

	entries := []audit.Entry{
		audit.NewEntry(c.ID, audit.EventSimulationApproved, &actor.ID, map[string]any{
			"attempt_id":             attemptID,
			"client_released_amount": a.Totals.ClientReleasedAmount,
		}),
		audit.NewEntry(c.ID, string(wfdomain.ActionApproveCalculation), &actor.ID, map[string]any{
			"from": string(old),
			"to":   string(to),
		}),
	}
	if err := s.cases.Update(ctx, c, entries...); err != nil {
		return nil, err
	}

	s.publish(ctx, c.ID, string(wfdomain.ActionApproveCalculation), old, to, actor.ID)
	s.log.Info().
		Str("case_id", c.ID.String()).
		Str("attempt_id", attemptID.String()).
		Str("actor", actor.ID).
		Msg("simulation approved")
	return c, nil
}

// Reject marks a draft attempt rejected and sends the case to the
// rejected queue, from where an agent can return it to the pipeline.
func (s *Store) Reject(ctx context.Context, attemptID uuid.UUID, actor wfdomain.Actor, reason string) (*wfdomain.Case, error) {
	a, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	unlock := s.mutex.Lock(a.CaseID)
	defer unlock()

	if a, err = s.attempts.Get(ctx, attemptID); err != nil {
		return nil, err
	}
	if a.Status != simdomain.StatusDraft {
		return nil, fmt.Errorf("%w: status is %s", simdomain.ErrNotDraft, a.Status)
	}

	c, err := s.cases.Get(ctx, a.CaseID)
	if err != nil {
		return nil, err
	}
	to, ok := wfdomain.NextState(c.Status, wfdomain.ActionRejectCalculation)
	if !ok {
		return nil, fmt.Errorf("%w: %s from %s", wfdomain.ErrInvalidTransition, wfdomain.ActionRejectCalculation, c.Status)
	}
	if err := s.authorize(c, actor, wfdomain.ActionRejectCalculation); err != nil {
		return nil, err
	}

	if err := s.attempts.SetStatus(ctx, attemptID, simdomain.StatusRejected, reason, s.clock.Now()); err != nil {
		return nil, err
	}

	old := c.Status
	c.Status = to
	entries := []audit.Entry{
		audit.NewEntry(c.ID, audit.EventSimulationRejected, &actor.ID, map[string]any{
			"attempt_id": attemptID,
			"reason":     reason,
		}),
		audit.NewEntry(c.ID, string(wfdomain.ActionRejectCalculation), &actor.ID, map[string]any{
			"from": string(old),
			"to":   string(to),
		}),
	}
	if err := s.cases.Update(ctx, c, entries...); err != nil {
		return nil, err
	}

	s.publish(ctx, c.ID, string(wfdomain.ActionRejectCalculation), old, to, actor.ID)
	return c, nil
}

// SetAsFinal re-points the case at a previously approved attempt when a
// later one is judged wrong. No recomputation, no state change.
func (s *Store) SetAsFinal(ctx context.Context, attemptID uuid.UUID, actor wfdomain.Actor) (*simdomain.SimulationAttempt, error) {
	a, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	unlock := s.mutex.Lock(a.CaseID)
	defer unlock()

	if a, err = s.attempts.Get(ctx, attemptID); err != nil {
		return nil, err
	}
	if !a.EverApproved() {
		return nil, fmt.Errorf("%w: status is %s", simdomain.ErrNotApproved, a.Status)
	}

	c, err := s.cases.Get(ctx, a.CaseID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(c, actor, wfdomain.ActionSetFinalSimulation); err != nil {
		return nil, err
	}

	if err := s.attempts.SupersedeOthers(ctx, a.CaseID, attemptID); err != nil {
		return nil, err
	}
	if err := s.attempts.SetStatus(ctx, attemptID, simdomain.StatusApproved, "", s.clock.Now()); err != nil {
		return nil, err
	}

	c.CurrentSimulationID = &attemptID
	entry := audit.NewEntry(c.ID, audit.EventSimulationSetFinal, &actor.ID, map[string]any{
		"attempt_id": attemptID,
	})
	if err := s.cases.Update(ctx, c, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, c.ID, audit.EventSimulationSetFinal, c.Status, c.Status, actor.ID)
	return s.attempts.Get(ctx, attemptID)
}

// Get returns one attempt.
func (s *Store) Get(ctx context.Context, attemptID uuid.UUID) (*simdomain.SimulationAttempt, error) {
	return s.attempts.Get(ctx, attemptID)
}

// ListByCase returns the ordered attempt history of a case.
func (s *Store) ListByCase(ctx context.Context, caseID uuid.UUID) ([]simdomain.SimulationAttempt, error) {
	return s.attempts.ListByCase(ctx, caseID)
}

// authorize applies the permission matrix and the lock-conflict rule
// shared with the state machine.
func (s *Store) authorize(c *wfdomain.Case, actor wfdomain.Actor, action wfdomain.Action) error {
	if !wfdomain.ValidRole(actor.Role) {
		return fmt.Errorf("unrecognized role %q", actor.Role)
	}
	if !s.perms.Allowed(c.Status, actor.Role, action) {
		return fmt.Errorf("%w: %s as %s in %s", wfdomain.ErrForbidden, action, actor.Role, c.Status)
	}
	now := s.clock.Now()
	if c.Locked(now) && !c.LockedBy(actor.ID, now) && !actor.Override() {
		return fmt.Errorf("%w: locked by %s", wfdomain.ErrLockConflict, *c.LockOwner)
	}
	return nil
}

func (s *Store) publish(ctx context.Context, caseID uuid.UUID, action string, from, to wfdomain.State, actorID string) {
	if s.pub == nil {
		return
	}
	t := events.Transition{
		CaseID:    caseID,
		Action:    action,
		OldState:  from,
		NewState:  to,
		ActorID:   actorID,
		Timestamp: s.clock.Now(),
	}
	if err := s.pub.Publish(ctx, t); err != nil {
		s.log.Warn().Err(err).Str("case_id", caseID.String()).Msg("publish transition failed")
	}
}
