package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const batchColumns = `exam_id, number, capacity, size, admitted, status, created_at, updated_at`

// BatchRepository is the PostgreSQL implementation of store.BatchStore.
// Activation and slot accounting are single conditional statements, so the
// one-active-batch and capacity invariants hold under concurrency.
type BatchRepository struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a BatchRepository.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepository {
	return &BatchRepository{pool: pool}
}

var _ store.BatchStore = (*BatchRepository)(nil)

func scanBatch(row pgx.Row) (*model.ExamBatch, error) {
	b := &model.ExamBatch{}
	err := row.Scan(&b.ExamID, &b.Number, &b.Capacity, &b.Size, &b.Admitted,
		&b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

// ReplaceAll swaps the whole batch plan in one transaction. Fails with
// store.ErrConflict once any batch has left SCHEDULED.
func (r *BatchRepository) ReplaceAll(ctx context.Context, examID uuid.UUID, batches []model.ExamBatch, assignments []model.BatchAssignment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var started int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_batches WHERE exam_id = $1 AND status <> 'SCHEDULED'`,
		examID).Scan(&started)
	if err != nil {
		return err
	}
	if started > 0 {
		return store.ErrConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM batch_assignments WHERE exam_id = $1`, examID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM exam_batches WHERE exam_id = $1`, examID); err != nil {
		return err
	}

	batchRows := make([][]interface{}, 0, len(batches))
	for i := range batches {
		b := &batches[i]
		batchRows = append(batchRows, []interface{}{
			b.ExamID, b.Number, b.Capacity, b.Size, 0, b.Status, b.CreatedAt, b.UpdatedAt,
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"exam_batches"},
		[]string{"exam_id", "number", "capacity", "size", "admitted", "status", "created_at", "updated_at"},
		pgx.CopyFromRows(batchRows),
	); err != nil {
		return err
	}

	assignmentRows := make([][]interface{}, 0, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		assignmentRows = append(assignmentRows, []interface{}{a.ExamID, a.CandidateID, a.BatchNumber})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"batch_assignments"},
		[]string{"exam_id", "candidate_id", "batch_number"},
		pgx.CopyFromRows(assignmentRows),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get retrieves one batch.
func (r *BatchRepository) Get(ctx context.Context, examID uuid.UUID, number int) (*model.ExamBatch, error) {
	return scanBatch(r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM exam_batches WHERE exam_id = $1 AND number = $2`,
		examID, number))
}

// ListByExam lists batches in number order.
func (r *BatchRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamBatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM exam_batches WHERE exam_id = $1 ORDER BY number`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []model.ExamBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// ActiveBatch returns the ACTIVE batch or store.ErrNotFound.
func (r *BatchRepository) ActiveBatch(ctx context.Context, examID uuid.UUID) (*model.ExamBatch, error) {
	return scanBatch(r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM exam_batches WHERE exam_id = $1 AND status = 'ACTIVE'`,
		examID))
}

// Assignment returns the candidate's batch number.
func (r *BatchRepository) Assignment(ctx context.Context, examID uuid.UUID, candidateID int) (int, error) {
	var number int
	err := r.pool.QueryRow(ctx,
		`SELECT batch_number FROM batch_assignments WHERE exam_id = $1 AND candidate_id = $2`,
		examID, candidateID).Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return number, nil
}

// ActivateNext promotes the lowest SCHEDULED batch to ACTIVE in one
// statement guarded against an existing ACTIVE batch.
func (r *BatchRepository) ActivateNext(ctx context.Context, examID uuid.UUID) (*model.ExamBatch, error) {
	batch, err := scanBatch(r.pool.QueryRow(ctx,
		`UPDATE exam_batches SET status = 'ACTIVE', updated_at = NOW()
		 WHERE exam_id = $1
		   AND status = 'SCHEDULED'
		   AND number = (
		       SELECT MIN(number) FROM exam_batches
		       WHERE exam_id = $1 AND status = 'SCHEDULED')
		   AND NOT EXISTS (
		       SELECT 1 FROM exam_batches
		       WHERE exam_id = $1 AND status = 'ACTIVE')
		 RETURNING `+batchColumns, examID))
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// Nothing updated: distinguish "already active" from "none scheduled".
	var active int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_batches WHERE exam_id = $1 AND status = 'ACTIVE'`,
		examID).Scan(&active); err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, store.ErrBatchActive
	}
	return nil, store.ErrNoScheduled
}

// SetStatus is a compare-and-set status transition.
func (r *BatchRepository) SetStatus(ctx context.Context, examID uuid.UUID, number int, from, to model.BatchStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_batches SET status = $1, updated_at = NOW()
		 WHERE exam_id = $2 AND number = $3 AND status = $4`,
		to, examID, number, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AdmitOne takes an admission slot; the WHERE clause enforces both the
// ACTIVE status and the capacity bound atomically.
func (r *BatchRepository) AdmitOne(ctx context.Context, examID uuid.UUID, number int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_batches SET admitted = admitted + 1
		 WHERE exam_id = $1 AND number = $2 AND status = 'ACTIVE' AND admitted < capacity`,
		examID, number)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseOne gives a slot back, flooring at zero.
func (r *BatchRepository) ReleaseOne(ctx context.Context, examID uuid.UUID, number int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_batches SET admitted = GREATEST(admitted - 1, 0)
		 WHERE exam_id = $1 AND number = $2`,
		examID, number)
	return err
}
