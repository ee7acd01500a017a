package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credfluxo/restructure-backend/internal/locking"
	simdomain "github.com/credfluxo/restructure-backend/internal/simulation/domain"
	simrepo "github.com/credfluxo/restructure-backend/internal/simulation/repository"
	wfdomain "github.com/credfluxo/restructure-backend/internal/workflow/domain"
	"github.com/credfluxo/restructure-backend/internal/workflow/permissions"
	wfrepo "github.com/credfluxo/restructure-backend/internal/workflow/repository"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

type fixture struct {
	store    *Store
	attempts *simrepo.Memory
	cases    *wfrepo.Memory
	clock    *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	attempts := simrepo.NewMemory()
	cases := wfrepo.NewMemory()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	store := NewStore(attempts, cases, permissions.New(), locking.NewKeyedMutex(),
		nil, clock, zerolog.Nop())
	return &fixture{store: store, attempts: attempts, cases: cases, clock: clock}
}

func (f *fixture) createCase(t *testing.T, status wfdomain.State) *wfdomain.Case {
	t.Helper()
	c := &wfdomain.Case{ID: uuid.New(), ClientName: "Carlos Lima", ClientDocument: "98765432100", Status: status}
	require.NoError(t, f.cases.Create(context.Background(), c))
	return c
}

func validInput() SubmitInput {
	return SubmitInput{
		Entries: []simdomain.BankEntry{{
			BankCode:    "341",
			Balance:     decimal.NewFromInt(10000),
			Installment: decimal.NewFromInt(400),
			Released:    decimal.NewFromInt(9000),
		}},
		TermMonths:         24,
		Insurance:          decimal.NewFromInt(200),
		ConsultancyPercent: decimal.RequireFromString("0.10"),
	}
}

var (
	agent      = wfdomain.Actor{ID: "agent-1", Role: wfdomain.RoleAgent}
	calculator = wfdomain.Actor{ID: "calc-1", Role: wfdomain.RoleCalculator}
	supervisor = wfdomain.Actor{ID: "boss-1", Role: wfdomain.RoleSupervisor}
)

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("creates a draft and points the case at it", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateInProgress)

		a, err := f.store.Submit(ctx, c.ID, agent, validInput())
		require.NoError(t, err)
		assert.Equal(t, simdomain.StatusDraft, a.Status)
		assert.True(t, a.Totals.ClientReleasedAmount.Equal(decimal.RequireFromString("8280.00")))

		stored, err := f.cases.Get(ctx, c.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.CurrentSimulationID)
		assert.Equal(t, a.ID, *stored.CurrentSimulationID)
		assert.Equal(t, wfdomain.StateInProgress, stored.Status, "submit does not move the case")
	})

	t.Run("later submission becomes current, earlier one stays", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateInProgress)

		first, err := f.store.Submit(ctx, c.ID, agent, validInput())
		require.NoError(t, err)
		in := validInput()
		in.TermMonths = 36
		second, err := f.store.Submit(ctx, c.ID, agent, in)
		require.NoError(t, err)

		stored, err := f.cases.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, *stored.CurrentSimulationID)

		history, err := f.store.ListByCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Len(t, history, 2)
		kept, err := f.store.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, simdomain.StatusDraft, kept.Status)
	})

	t.Run("rejected input persists nothing", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateInProgress)

		in := validInput()
		in.TermMonths = 0
		_, err := f.store.Submit(ctx, c.ID, agent, in)
		assert.ErrorIs(t, err, simdomain.ErrInvalidInput)

		history, err := f.store.ListByCase(ctx, c.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
		stored, err := f.cases.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.CurrentSimulationID)
	})

	t.Run("wrong state is forbidden", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateNew)
		_, err := f.store.Submit(ctx, c.ID, agent, validInput())
		assert.ErrorIs(t, err, wfdomain.ErrForbidden)
	})

	t.Run("case locked by someone else conflicts", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateInProgress)
		owner := "agent-2"
		now := time.Now().UTC()
		exp := now.Add(time.Hour)
		c.LockActive = true
		c.LockOwner = &owner
		c.LockStartedAt = &now
		c.AssignmentExpiresAt = &exp
		require.NoError(t, f.cases.Update(ctx, c))

		_, err := f.store.Submit(ctx, c.ID, agent, validInput())
		assert.ErrorIs(t, err, wfdomain.ErrLockConflict)

		_, err = f.store.Submit(ctx, c.ID, supervisor, validInput())
		require.NoError(t, err, "override roles bypass the lock")
	})
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("supersedes siblings and advances the case", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StatePendingCalculation)
		first, err := f.store.Submit(ctx, c.ID, calculator, validInput())
		require.NoError(t, err)
		second, err := f.store.Submit(ctx, c.ID, calculator, validInput())
		require.NoError(t, err)

		out, err := f.store.Approve(ctx, second.ID, calculator)
		require.NoError(t, err)
		assert.Equal(t, wfdomain.StateCalculationApproved, out.Status)
		require.NotNil(t, out.CurrentSimulationID)
		assert.Equal(t, second.ID, *out.CurrentSimulationID)

		a, err := f.store.Get(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, simdomain.StatusApproved, a.Status)
		require.NotNil(t, a.ApprovedAt)
		assert.Equal(t, f.clock.Now(), *a.ApprovedAt)

		sibling, err := f.store.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, simdomain.StatusSuperseded, sibling.Status)

		ok, err := f.attempts.HasApproved(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("only drafts can be approved", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StatePendingCalculation)
		a, err := f.store.Submit(ctx, c.ID, calculator, validInput())
		require.NoError(t, err)
		_, err = f.store.Approve(ctx, a.ID, calculator)
		require.NoError(t, err)

		_, err = f.store.Approve(ctx, a.ID, calculator)
		assert.ErrorIs(t, err, simdomain.ErrNotDraft)
	})

	t.Run("case outside the calculation queue", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateInProgress)
		a, err := f.store.Submit(ctx, c.ID, agent, validInput())
		require.NoError(t, err)

		_, err = f.store.Approve(ctx, a.ID, calculator)
		assert.ErrorIs(t, err, wfdomain.ErrInvalidTransition)
	})

	t.Run("agent cannot approve", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StatePendingCalculation)
		a, err := f.store.Submit(ctx, c.ID, calculator, validInput())
		require.NoError(t, err)

		_, err = f.store.Approve(ctx, a.ID, agent)
		assert.ErrorIs(t, err, wfdomain.ErrForbidden)
	})
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.createCase(t, wfdomain.StatePendingCalculation)
	a, err := f.store.Submit(ctx, c.ID, calculator, validInput())
	require.NoError(t, err)

	out, err := f.store.Reject(ctx, a.ID, calculator, "released amount below payoff")
	require.NoError(t, err)
	assert.Equal(t, wfdomain.StateCalculationRejected, out.Status)

	stored, err := f.store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, simdomain.StatusRejected, stored.Status)
	assert.Equal(t, "released amount below payoff", stored.RejectReason)

	_, err = f.store.Reject(ctx, a.ID, calculator, "again")
	assert.ErrorIs(t, err, simdomain.ErrNotDraft)
}

func TestSetAsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("re-points the case at an older approved attempt", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateCalculationApproved)
		approvedAt := time.Now().UTC().Add(-time.Hour)

		older := &simdomain.SimulationAttempt{
			ID: uuid.New(), CaseID: c.ID, TermMonths: 24,
			Status: simdomain.StatusSuperseded, ApprovedAt: &approvedAt,
			CreatedAt: approvedAt.Add(-time.Hour),
		}
		current := &simdomain.SimulationAttempt{
			ID: uuid.New(), CaseID: c.ID, TermMonths: 36,
			Status: simdomain.StatusApproved, ApprovedAt: &approvedAt,
			CreatedAt: approvedAt,
		}
		require.NoError(t, f.attempts.Create(ctx, older))
		require.NoError(t, f.attempts.Create(ctx, current))
		c.CurrentSimulationID = &current.ID
		require.NoError(t, f.cases.Update(ctx, c))

		out, err := f.store.SetAsFinal(ctx, older.ID, supervisor)
		require.NoError(t, err)
		assert.Equal(t, simdomain.StatusApproved, out.Status)

		replaced, err := f.store.Get(ctx, current.ID)
		require.NoError(t, err)
		assert.Equal(t, simdomain.StatusSuperseded, replaced.Status)

		stored, err := f.cases.Get(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, older.ID, *stored.CurrentSimulationID)
		assert.Equal(t, wfdomain.StateCalculationApproved, stored.Status, "no state change")
	})

	t.Run("never-approved attempt is rejected", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateCalculationApproved)
		draft := &simdomain.SimulationAttempt{
			ID: uuid.New(), CaseID: c.ID, Status: simdomain.StatusDraft,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, f.attempts.Create(ctx, draft))

		_, err := f.store.SetAsFinal(ctx, draft.ID, supervisor)
		assert.ErrorIs(t, err, simdomain.ErrNotApproved)
	})

	t.Run("agents may not re-point", func(t *testing.T) {
		c := f.createCase(t, wfdomain.StateCalculationApproved)
		approvedAt := time.Now().UTC()
		a := &simdomain.SimulationAttempt{
			ID: uuid.New(), CaseID: c.ID, Status: simdomain.StatusApproved,
			ApprovedAt: &approvedAt, CreatedAt: approvedAt,
		}
		require.NoError(t, f.attempts.Create(ctx, a))

		_, err := f.store.SetAsFinal(ctx, a.ID, agent)
		assert.ErrorIs(t, err, wfdomain.ErrForbidden)
	})
}
