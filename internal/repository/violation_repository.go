package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ViolationRepository is the PostgreSQL implementation of the append-only
// violation ledger.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

var _ store.ViolationStore = (*ViolationRepository)(nil)

// Append inserts one ledger entry. Rows are never updated or deleted.
func (r *ViolationRepository) Append(ctx context.Context, v *model.Violation) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO violations (session_token, type, severity, actor, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		v.SessionToken, v.Type, v.Severity, v.Actor, v.OccurredAt,
	).Scan(&v.ID)
}

// ListBySession returns the ledger in causal (insertion) order.
func (r *ViolationRepository) ListBySession(ctx context.Context, token uuid.UUID) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_token, type, severity, actor, occurred_at
		 FROM violations WHERE session_token = $1 ORDER BY id`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.SessionToken, &v.Type, &v.Severity, &v.Actor, &v.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
