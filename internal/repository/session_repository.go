package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `token, exam_id, candidate_id, batch_number, addr_hash, fingerprint_hash,
	started_at, server_end_time, last_activity_at, status, violation_count,
	answered_count, final_score, finished_at, termination_note`

// SessionRepository is the PostgreSQL implementation of store.SessionStore.
// Terminal transitions are conditional updates on status so the first caller
// wins and everyone else observes the recorded outcome.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

var _ store.SessionStore = (*SessionRepository)(nil)

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(
		&s.Token, &s.ExamID, &s.CandidateID, &s.BatchNumber,
		&s.Binding.AddrHash, &s.Binding.FingerprintHash,
		&s.StartedAt, &s.ServerEndTime, &s.LastActivityAt, &s.Status,
		&s.ViolationCount, &s.AnsweredCount, &s.FinalScore, &s.FinishedAt,
		&s.TerminationNote,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func collectSessions(rows pgx.Rows) ([]model.ExamSession, error) {
	defer rows.Close()
	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Create inserts a new session. The unique (exam_id, candidate_id) index
// turns a concurrent double-join into store.ErrConflict.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO exam_sessions (token, exam_id, candidate_id, batch_number,
			addr_hash, fingerprint_hash, started_at, server_end_time,
			last_activity_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (exam_id, candidate_id) DO NOTHING`,
		s.Token, s.ExamID, s.CandidateID, s.BatchNumber,
		s.Binding.AddrHash, s.Binding.FingerprintHash,
		s.StartedAt, s.ServerEndTime, s.LastActivityAt, s.Status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

// Get retrieves a session by token.
func (r *SessionRepository) Get(ctx context.Context, token uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE token = $1`, token))
}

// GetByExamAndCandidate retrieves the attempt for one exam-candidate pair.
func (r *SessionRepository) GetByExamAndCandidate(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE exam_id = $1 AND candidate_id = $2`, examID, candidateID))
}

// ListOverdue returns ACTIVE sessions past their server end time.
func (r *SessionRepository) ListOverdue(ctx context.Context, now time.Time) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE status = 'ACTIVE' AND server_end_time <= $1`, now)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListIdle returns ACTIVE sessions whose last activity predates cutoff.
func (r *SessionRepository) ListIdle(ctx context.Context, cutoff time.Time) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE status = 'ACTIVE' AND last_activity_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListByBatch returns the sessions of one batch.
func (r *SessionRepository) ListByBatch(ctx context.Context, examID uuid.UUID, batchNumber int, activeOnly bool) ([]model.ExamSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM exam_sessions
		 WHERE exam_id = $1 AND batch_number = $2`
	if activeOnly {
		query += ` AND status = 'ACTIVE'`
	}
	rows, err := r.pool.Query(ctx, query, examID, batchNumber)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListByExam returns every session of an exam ordered by admission time.
func (r *SessionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions
		 WHERE exam_id = $1 ORDER BY started_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// TouchActivity advances last_activity_at, never backwards.
func (r *SessionRepository) TouchActivity(ctx context.Context, token uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions SET last_activity_at = GREATEST(last_activity_at, $1)
		 WHERE token = $2`, at, token)
	return err
}

// IncrementViolations bumps the monotonic counter and returns the new value.
func (r *SessionRepository) IncrementViolations(ctx context.Context, token uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE exam_sessions SET violation_count = violation_count + 1
		 WHERE token = $1 RETURNING violation_count`, token).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return count, nil
}

// UpsertAnswer creates or updates a response and keeps answered_count in
// step within the same transaction.
func (r *SessionRepository) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var inserted bool
	err = tx.QueryRow(ctx,
		`INSERT INTO session_answers (session_token, question_id, response, visited, flagged, time_spent_seconds, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_token, question_id) DO UPDATE
		 SET response = EXCLUDED.response,
		     visited = EXCLUDED.visited,
		     flagged = EXCLUDED.flagged,
		     time_spent_seconds = session_answers.time_spent_seconds + EXCLUDED.time_spent_seconds,
		     updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0)`,
		a.SessionToken, a.QuestionID, a.Response, a.Visited, a.Flagged, a.TimeSpentSeconds, a.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return err
	}

	if inserted {
		if _, err := tx.Exec(ctx,
			`UPDATE exam_sessions SET answered_count = answered_count + 1 WHERE token = $1`,
			a.SessionToken); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Answers lists the recorded responses for a session.
func (r *SessionRepository) Answers(ctx context.Context, token uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_token, question_id, response, visited, flagged, time_spent_seconds, updated_at
		 FROM session_answers WHERE session_token = $1 ORDER BY question_id`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.SessionToken, &a.QuestionID, &a.Response, &a.Visited, &a.Flagged, &a.TimeSpentSeconds, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// Finalize is the terminal compare-and-set: only a row still in ACTIVE is
// updated. Returns false when another trigger already finalized the session.
func (r *SessionRepository) Finalize(ctx context.Context, token uuid.UUID, status model.SessionStatus, score float64, finishedAt time.Time, note string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, final_score = $2, finished_at = $3, termination_note = $4
		 WHERE token = $5 AND status = 'ACTIVE'`,
		status, score, finishedAt, note, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountsByExam recomputes aggregates for every exam with sessions.
func (r *SessionRepository) CountsByExam(ctx context.Context) (map[uuid.UUID]model.SessionCounts, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, status, COUNT(*), COALESCE(SUM(violation_count), 0)
		 FROM exam_sessions GROUP BY exam_id, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]model.SessionCounts)
	for rows.Next() {
		var examID uuid.UUID
		var status model.SessionStatus
		var count, violations int
		if err := rows.Scan(&examID, &status, &count, &violations); err != nil {
			return nil, err
		}
		c := out[examID]
		applyCount(&c, status, count, violations)
		out[examID] = c
	}
	return out, rows.Err()
}

// CountsForExam recomputes aggregates for one exam.
func (r *SessionRepository) CountsForExam(ctx context.Context, examID uuid.UUID) (model.SessionCounts, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(violation_count), 0)
		 FROM exam_sessions WHERE exam_id = $1 GROUP BY status`, examID)
	if err != nil {
		return model.SessionCounts{}, err
	}
	defer rows.Close()

	var c model.SessionCounts
	for rows.Next() {
		var status model.SessionStatus
		var count, violations int
		if err := rows.Scan(&status, &count, &violations); err != nil {
			return model.SessionCounts{}, err
		}
		applyCount(&c, status, count, violations)
	}
	return c, rows.Err()
}

func applyCount(c *model.SessionCounts, status model.SessionStatus, count, violations int) {
	switch status {
	case model.SessionStatusActive:
		c.Active += count
	case model.SessionStatusSubmitted:
		c.Submitted += count
	case model.SessionStatusForceSubmitted:
		c.Forced += count
	case model.SessionStatusExpired:
		c.Expired += count
	case model.SessionStatusViolationTerminated:
		c.Terminated += count
	}
	c.Violations += violations
}
