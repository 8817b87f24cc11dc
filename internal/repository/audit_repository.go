package repository

import (
	"context"

	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository is the PostgreSQL implementation of the append-only audit
// sink.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

var _ store.AuditStore = (*AuditRepository)(nil)

// Append inserts one audit entry.
func (r *AuditRepository) Append(ctx context.Context, e *model.AuditEntry) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO audit_log (actor, action, target, detail, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		e.Actor, e.Action, e.Target, e.Detail, e.OccurredAt,
	).Scan(&e.ID)
}
