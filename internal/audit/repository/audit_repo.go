package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/credfluxo/restructure-backend/internal/audit"
)

// AuditRepo reads the append-only audit trail. Writes go through the
// case repository so they share the case-update transaction.
type AuditRepo struct {
	db *pgxpool.Pool
}

func NewAuditRepo(db *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]audit.Entry, error) {
	const q = `
select id, case_id, event_type, actor_id, payload, created_at
from audit_entries
where case_id = $1
order by created_at asc, id asc;
`
	rows, err := r.db.Query(ctx, q, caseID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]audit.Entry, 0, 32)
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.EventType, &e.ActorID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
