// Package store defines the persistence contracts consumed by the session
// engine and batch controller. There is exactly one abstraction: production
// wires the pgx implementations from internal/repository, tests wire
// internal/store/memstore. Nothing falls back between the two at runtime.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/model"
)

// Sentinel errors shared by all implementations.
var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: conflict")

	// ErrBatchActive is returned by ActivateNext when a batch is already
	// ACTIVE for the exam.
	ErrBatchActive = errors.New("store: a batch is already active")
	// ErrNoScheduled is returned by ActivateNext when no SCHEDULED batch
	// remains.
	ErrNoScheduled = errors.New("store: no scheduled batches remaining")
)

// SessionStore is the durable record of exam attempts. All terminal
// transitions go through Finalize, a compare-and-set on status: the first
// caller wins and every later caller observes the stored outcome.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession) error
	Get(ctx context.Context, token uuid.UUID) (*model.ExamSession, error)
	GetByExamAndCandidate(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamSession, error)

	// ListOverdue returns ACTIVE sessions whose ServerEndTime is at or
	// before now.
	ListOverdue(ctx context.Context, now time.Time) ([]model.ExamSession, error)
	// ListIdle returns ACTIVE sessions whose LastActivityAt is before cutoff.
	ListIdle(ctx context.Context, cutoff time.Time) ([]model.ExamSession, error)
	// ListByBatch returns sessions for one batch, optionally only ACTIVE ones.
	ListByBatch(ctx context.Context, examID uuid.UUID, batchNumber int, activeOnly bool) ([]model.ExamSession, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error)

	TouchActivity(ctx context.Context, token uuid.UUID, at time.Time) error
	// IncrementViolations bumps the monotonic violation counter and returns
	// the new value.
	IncrementViolations(ctx context.Context, token uuid.UUID) (int, error)

	UpsertAnswer(ctx context.Context, a *model.Answer) error
	Answers(ctx context.Context, token uuid.UUID) ([]model.Answer, error)

	// Finalize transitions token from ACTIVE to status, recording score and
	// finishedAt. It returns false when the session was already terminal,
	// in which case nothing was written.
	Finalize(ctx context.Context, token uuid.UUID, status model.SessionStatus, score float64, finishedAt time.Time, note string) (bool, error)

	// CountsByExam recomputes aggregate counters for every exam that has at
	// least one session.
	CountsByExam(ctx context.Context) (map[uuid.UUID]model.SessionCounts, error)
	CountsForExam(ctx context.Context, examID uuid.UUID) (model.SessionCounts, error)
}

// BatchStore owns admission windows. Activation and slot accounting are
// check-and-set operations so two controllers can never activate two batches
// or over-admit a batch.
type BatchStore interface {
	// ReplaceAll atomically replaces the batch plan for an exam. It fails
	// with ErrConflict if any existing batch has left SCHEDULED.
	ReplaceAll(ctx context.Context, examID uuid.UUID, batches []model.ExamBatch, assignments []model.BatchAssignment) error
	Get(ctx context.Context, examID uuid.UUID, number int) (*model.ExamBatch, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamBatch, error)
	// ActiveBatch returns the ACTIVE batch for the exam or ErrNotFound.
	ActiveBatch(ctx context.Context, examID uuid.UUID) (*model.ExamBatch, error)
	// Assignment returns the batch number the candidate belongs to.
	Assignment(ctx context.Context, examID uuid.UUID, candidateID int) (int, error)

	// ActivateNext promotes the lowest-numbered SCHEDULED batch to ACTIVE.
	// Fails with ErrBatchActive or ErrNoScheduled.
	ActivateNext(ctx context.Context, examID uuid.UUID) (*model.ExamBatch, error)
	// SetStatus is a compare-and-set transition; returns false if the batch
	// was not in the expected state.
	SetStatus(ctx context.Context, examID uuid.UUID, number int, from, to model.BatchStatus) (bool, error)

	// AdmitOne takes an admission slot if the batch is ACTIVE and below
	// capacity; returns false otherwise.
	AdmitOne(ctx context.Context, examID uuid.UUID, number int) (bool, error)
	// ReleaseOne gives a slot back on any terminal session transition.
	ReleaseOne(ctx context.Context, examID uuid.UUID, number int) error
}

// ViolationStore is the append-only integrity ledger.
type ViolationStore interface {
	Append(ctx context.Context, v *model.Violation) error
	ListBySession(ctx context.Context, token uuid.UUID) ([]model.Violation, error)
}

// AuditStore is the append-only sink for state-affecting events.
type AuditStore interface {
	Append(ctx context.Context, e *model.AuditEntry) error
}

// ExamStore is the read-side contract to the exam catalogue collaborator.
type ExamStore interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListRunning(ctx context.Context) ([]model.Exam, error)
}

// CandidateStore resolves candidate accounts for authentication.
type CandidateStore interface {
	GetByNumber(ctx context.Context, number string) (*model.Candidate, error)
	Get(ctx context.Context, id int) (*model.Candidate, error)
}
