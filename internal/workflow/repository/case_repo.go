package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credfluxo/restructure-backend/internal/audit"
	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
)

// CaseRepo is the Postgres-backed case store.
type CaseRepo struct {
	db *pgxpool.Pool
}

func NewCaseRepo(db *pgxpool.Pool) *CaseRepo {
	return &CaseRepo{db: db}
}

const caseColumns = `
id, client_name, client_document, status, assigned_agent, assignment_expires_at,
lock_active, lock_owner, lock_started_at, current_simulation_id, version,
created_at, updated_at`

func scanCase(row pgx.Row) (*domain.Case, error) {
	var c domain.Case
	err := row.Scan(
		&c.ID, &c.ClientName, &c.ClientDocument, &c.Status,
		&c.AssignedAgent, &c.AssignmentExpiresAt,
		&c.LockActive, &c.LockOwner, &c.LockStartedAt,
		&c.CurrentSimulationID, &c.Version,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CaseRepo) Create(ctx context.Context, c *domain.Case, entries ...audit.Entry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
insert into cases (id, client_name, client_document, status, version)
values ($1, $2, $3, $4, 1)
returning version, created_at, updated_at;
`
	err = tx.QueryRow(ctx, q, c.ID, c.ClientName, c.ClientDocument, c.Status).
		Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}

	if err := appendAudit(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *CaseRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	const q = `select ` + caseColumns + ` from cases where id = $1;`

	c, err := scanCase(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

// Update writes the full mutable state of the case guarded by the
// version the caller loaded. The audit entries ride the same
// transaction, so a committed state change always has its trail.
func (r *CaseRepo) Update(ctx context.Context, c *domain.Case, entries ...audit.Entry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
update cases
set status = $3,
    assigned_agent = $4,
    assignment_expires_at = $5,
    lock_active = $6,
    lock_owner = $7,
    lock_started_at = $8,
    current_simulation_id = $9,
    version = version + 1,
    updated_at = now()
where id = $1 and version = $2;
`
	ct, err := tx.Exec(ctx, q,
		c.ID, c.Version, c.Status,
		c.AssignedAgent, c.AssignmentExpiresAt,
		c.LockActive, c.LockOwner, c.LockStartedAt,
		c.CurrentSimulationID,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}

	if err := appendAudit(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	c.Version++
	return nil
}

func (r *CaseRepo) List(ctx context.Context, f Filter) ([]domain.Case, error) {
	q := `select ` + caseColumns + ` from cases where 1=1`
	args := make([]any, 0, 3)

	if f.Status != nil {
		args = append(args, *f.Status)
		q += fmt.Sprintf(" and status = $%d", len(args))
	}
	if f.AssignedAgent != nil {
		args = append(args, *f.AssignedAgent)
		q += fmt.Sprintf(" and assigned_agent = $%d", len(args))
	}
	q += " order by created_at asc"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" limit $%d", len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Case, 0, 32)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CaseRepo) ListExpiredLocks(ctx context.Context, now time.Time) ([]domain.Case, error) {
	const q = `
select ` + caseColumns + `
from cases
where lock_active = true and assignment_expires_at <= $1
order by assignment_expires_at asc;
`
	rows, err := r.db.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("list expired locks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Case, 0, 8)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CaseRepo) CountByStatus(ctx context.Context) (map[domain.State]int64, error) {
	const q = `select status, count(*) from cases group by status;`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.State]int64)
	for rows.Next() {
		var s domain.State
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func appendAudit(ctx context.Context, tx pgx.Tx, entries []audit.Entry) error {
	const q = `
insert into audit_entries (id, case_id, event_type, actor_id, payload, created_at)
values ($1, $2, $3, $4, $5, $6);
`
	for _, e := range entries {
		if _, err := tx.Exec(ctx, q, e.ID, e.CaseID, e.EventType, e.ActorID, e.Payload, e.CreatedAt); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}
	}
	return nil
}
