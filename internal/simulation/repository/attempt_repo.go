package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/credfluxo/restructure-backend/internal/simulation/domain"
)

// AttemptRepo is the Postgres-backed attempt store. Monetary fields are
// numeric columns read back as text and parsed into decimals; entries
// and totals are stored as jsonb.
type AttemptRepo struct {
	db *pgxpool.Pool
}

func NewAttemptRepo(db *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{db: db}
}

func (r *AttemptRepo) Create(ctx context.Context, a *domain.SimulationAttempt) error {
	entries, err := json.Marshal(a.Entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	totals, err := json.Marshal(a.Totals)
	if err != nil {
		return fmt.Errorf("marshal totals: %w", err)
	}

	const q = `
insert into simulation_attempts
  (id, case_id, entries, term_months, insurance, consultancy_percent, totals, status, created_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err = r.db.Exec(ctx, q,
		a.ID, a.CaseID, entries, a.TermMonths,
		a.Insurance.String(), a.ConsultancyPercent.String(),
		totals, a.Status, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

const attemptColumns = `
id, case_id, entries, term_months, insurance::text, consultancy_percent::text,
totals, status, coalesce(reject_reason, ''), approved_at, created_at`

func scanAttempt(row pgx.Row) (*domain.SimulationAttempt, error) {
	var (
		a                  domain.SimulationAttempt
		entries, totals    []byte
		insurance, percent string
	)
	err := row.Scan(
		&a.ID, &a.CaseID, &entries, &a.TermMonths, &insurance, &percent,
		&totals, &a.Status, &a.RejectReason, &a.ApprovedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(entries, &a.Entries); err != nil {
		return nil, fmt.Errorf("unmarshal entries: %w", err)
	}
	if err := json.Unmarshal(totals, &a.Totals); err != nil {
		return nil, fmt.Errorf("unmarshal totals: %w", err)
	}
	if a.Insurance, err = decimal.NewFromString(insurance); err != nil {
		return nil, fmt.Errorf("parse insurance: %w", err)
	}
	if a.ConsultancyPercent, err = decimal.NewFromString(percent); err != nil {
		return nil, fmt.Errorf("parse consultancy_percent: %w", err)
	}
	return &a, nil
}

func (r *AttemptRepo) Get(ctx context.Context, id uuid.UUID) (*domain.SimulationAttempt, error) {
	const q = `select ` + attemptColumns + ` from simulation_attempts where id = $1;`

	a, err := scanAttempt(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return a, nil
}

func (r *AttemptRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]domain.SimulationAttempt, error) {
	const q = `
select ` + attemptColumns + `
from simulation_attempts
where case_id = $1
order by created_at asc, id asc;
`
	rows, err := r.db.Query(ctx, q, caseID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SimulationAttempt, 0, 8)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AttemptRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.AttemptStatus, reason string, at time.Time) error {
	const q = `
update simulation_attempts
set status = $2,
    reject_reason = nullif($3, ''),
    approved_at = case when $2 = 'approved' then $4::timestamptz else approved_at end
where id = $1;
`
	ct, err := r.db.Exec(ctx, q, id, status, reason, at)
	if err != nil {
		return fmt.Errorf("set attempt status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (r *AttemptRepo) SupersedeOthers(ctx context.Context, caseID, keepID uuid.UUID) error {
	const q = `
update simulation_attempts
set status = $3
where case_id = $1 and id <> $2 and status <> $3;
`
	if _, err := r.db.Exec(ctx, q, caseID, keepID, domain.StatusSuperseded); err != nil {
		return fmt.Errorf("supersede attempts: %w", err)
	}
	return nil
}

func (r *AttemptRepo) HasApproved(ctx context.Context, caseID uuid.UUID) (bool, error) {
	const q = `
select exists(
  select 1 from simulation_attempts
  where case_id = $1 and status = $2
);
`
	var ok bool
	if err := r.db.QueryRow(ctx, q, caseID, domain.StatusApproved).Scan(&ok); err != nil {
		return false, fmt.Errorf("has approved: %w", err)
	}
	return ok, nil
}
