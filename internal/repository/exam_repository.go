package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Question is a full question row including the correct option; it never
// leaves the server side.
type Question struct {
	ID            uuid.UUID
	ExamID        uuid.UUID
	QuestionText  string
	Options       json.RawMessage
	CorrectOption string
	OrderNum      int
}

// ExamRepository reads the exam catalogue and its question rows.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates an ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

var _ store.ExamStore = (*ExamRepository)(nil)

const examColumns = `id, title, duration_minutes, entry_token, question_count, status, created_at, updated_at`

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.EntryToken,
		&e.QuestionCount, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// Get retrieves one exam.
func (r *ExamRepository) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// ListRunning returns exams open for sessions (PUBLISHED or RUNNING).
func (r *ExamRepository) ListRunning(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status IN ('PUBLISHED', 'RUNNING')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListQuestions returns the ordered question set for cache warming.
func (r *ExamRepository) ListQuestions(ctx context.Context, examID uuid.UUID) ([]Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, options, correct_option, order_num
		 FROM questions WHERE exam_id = $1 ORDER BY order_num`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.Options, &q.CorrectOption, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
