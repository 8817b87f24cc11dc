package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
)

// The Store type carries every table, but the contracts in internal/store
// overlap on method names (Get, Append, ListByExam). These thin views give
// each contract its own receiver.

// Sessions returns the store as a SessionStore.
func (m *Store) Sessions() store.SessionStore { return m }

// Violations returns the store as a ViolationStore.
func (m *Store) Violations() store.ViolationStore { return m }

// Batches returns the store as a BatchStore.
func (m *Store) Batches() store.BatchStore { return batchView{m} }

// Audit returns the store as an AuditStore.
func (m *Store) Audit() store.AuditStore { return auditView{m} }

// Exams returns the store as an ExamStore.
func (m *Store) Exams() store.ExamStore { return examView{m} }

// Candidates returns the store as a CandidateStore.
func (m *Store) Candidates() store.CandidateStore { return candidateView{m} }

type batchView struct{ *Store }

func (v batchView) Get(ctx context.Context, examID uuid.UUID, number int) (*model.ExamBatch, error) {
	return v.GetBatch(ctx, examID, number)
}

func (v batchView) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamBatch, error) {
	return v.ListBatches(ctx, examID)
}

type auditView struct{ *Store }

func (v auditView) Append(ctx context.Context, e *model.AuditEntry) error {
	return v.AppendAudit(ctx, e)
}

type examView struct{ *Store }

func (v examView) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return v.GetExam(ctx, id)
}

type candidateView struct{ *Store }

func (v candidateView) Get(ctx context.Context, id int) (*model.Candidate, error) {
	return v.GetCandidate(ctx, id)
}
