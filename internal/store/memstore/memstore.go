// Package memstore implements the store contracts entirely in memory.
// It exists for unit tests; it is never wired as a production fallback.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
)

// Store holds every table behind one mutex. The coarse lock keeps the
// compare-and-set semantics identical to the SQL implementations.
type Store struct {
	mu sync.Mutex

	sessions    map[uuid.UUID]*model.ExamSession
	answers     map[uuid.UUID]map[uuid.UUID]*model.Answer
	batches     map[uuid.UUID]map[int]*model.ExamBatch
	assignments map[uuid.UUID]map[int]int // examID → candidateID → batch number
	violations  []model.Violation
	audit       []model.AuditEntry
	exams       map[uuid.UUID]*model.Exam
	candidates  map[int]*model.Candidate

	nextViolationID int64
	nextAuditID     int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		sessions:    make(map[uuid.UUID]*model.ExamSession),
		answers:     make(map[uuid.UUID]map[uuid.UUID]*model.Answer),
		batches:     make(map[uuid.UUID]map[int]*model.ExamBatch),
		assignments: make(map[uuid.UUID]map[int]int),
		exams:       make(map[uuid.UUID]*model.Exam),
		candidates:  make(map[int]*model.Candidate),
	}
}

// ─── Seeding helpers (tests only) ───────────────────────────────────

// PutExam seeds an exam.
func (m *Store) PutExam(e *model.Exam) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.exams[e.ID] = &cp
}

// PutCandidate seeds a candidate account.
func (m *Store) PutCandidate(c *model.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.candidates[c.ID] = &cp
}

// AuditEntries returns a copy of the audit trail.
func (m *Store) AuditEntries() []model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

// ─── SessionStore ───────────────────────────────────────────────────

func (m *Store) Create(ctx context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.ExamID == s.ExamID && existing.CandidateID == s.CandidateID {
			return store.ErrConflict
		}
	}
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, token uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Store) GetByExamAndCandidate(ctx context.Context, examID uuid.UUID, candidateID int) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ExamID == examID && s.CandidateID == candidateID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) ListOverdue(ctx context.Context, now time.Time) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusActive && !s.ServerEndTime.After(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *Store) ListIdle(ctx context.Context, cutoff time.Time) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.Status == model.SessionStatusActive && s.LastActivityAt.Before(cutoff) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *Store) ListByBatch(ctx context.Context, examID uuid.UUID, batchNumber int, activeOnly bool) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.ExamID != examID || s.BatchNumber != batchNumber {
			continue
		}
		if activeOnly && s.Status != model.SessionStatusActive {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *Store) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, s := range m.sessions {
		if s.ExamID == examID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (m *Store) TouchActivity(ctx context.Context, token uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return store.ErrNotFound
	}
	if at.After(s.LastActivityAt) {
		s.LastActivityAt = at
	}
	return nil
}

func (m *Store) IncrementViolations(ctx context.Context, token uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return 0, store.ErrNotFound
	}
	s.ViolationCount++
	return s.ViolationCount, nil
}

func (m *Store) UpsertAnswer(ctx context.Context, a *model.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[a.SessionToken]
	if !ok {
		return store.ErrNotFound
	}
	byQuestion, ok := m.answers[a.SessionToken]
	if !ok {
		byQuestion = make(map[uuid.UUID]*model.Answer)
		m.answers[a.SessionToken] = byQuestion
	}
	if _, seen := byQuestion[a.QuestionID]; !seen {
		s.AnsweredCount++
	}
	cp := *a
	byQuestion[a.QuestionID] = &cp
	return nil
}

func (m *Store) Answers(ctx context.Context, token uuid.UUID) ([]model.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Answer
	for _, a := range m.answers[token] {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QuestionID.String() < out[j].QuestionID.String()
	})
	return out, nil
}

func (m *Store) Finalize(ctx context.Context, token uuid.UUID, status model.SessionStatus, score float64, finishedAt time.Time, note string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return false, store.ErrNotFound
	}
	if s.Status != model.SessionStatusActive {
		return false, nil
	}
	s.Status = status
	s.FinalScore = &score
	s.FinishedAt = &finishedAt
	s.TerminationNote = note
	return true, nil
}

func (m *Store) CountsByExam(ctx context.Context) (map[uuid.UUID]model.SessionCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]model.SessionCounts)
	for _, s := range m.sessions {
		c := out[s.ExamID]
		addCount(&c, s)
		out[s.ExamID] = c
	}
	return out, nil
}

func (m *Store) CountsForExam(ctx context.Context, examID uuid.UUID) (model.SessionCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c model.SessionCounts
	for _, s := range m.sessions {
		if s.ExamID == examID {
			addCount(&c, s)
		}
	}
	return c, nil
}

func addCount(c *model.SessionCounts, s *model.ExamSession) {
	switch s.Status {
	case model.SessionStatusActive:
		c.Active++
	case model.SessionStatusSubmitted:
		c.Submitted++
	case model.SessionStatusForceSubmitted:
		c.Forced++
	case model.SessionStatusExpired:
		c.Expired++
	case model.SessionStatusViolationTerminated:
		c.Terminated++
	}
	c.Violations += s.ViolationCount
}

// ─── BatchStore ─────────────────────────────────────────────────────

func (m *Store) ReplaceAll(ctx context.Context, examID uuid.UUID, batches []model.ExamBatch, assignments []model.BatchAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches[examID] {
		if b.Status != model.BatchStatusScheduled {
			return store.ErrConflict
		}
	}
	byNumber := make(map[int]*model.ExamBatch, len(batches))
	for i := range batches {
		cp := batches[i]
		byNumber[cp.Number] = &cp
	}
	m.batches[examID] = byNumber

	byCandidate := make(map[int]int, len(assignments))
	for _, a := range assignments {
		byCandidate[a.CandidateID] = a.BatchNumber
	}
	m.assignments[examID] = byCandidate
	return nil
}

func (m *Store) GetBatch(ctx context.Context, examID uuid.UUID, number int) (*model.ExamBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[examID][number]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Store) ListBatches(ctx context.Context, examID uuid.UUID) ([]model.ExamBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamBatch
	for _, b := range m.batches[examID] {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Store) ActiveBatch(ctx context.Context, examID uuid.UUID) (*model.ExamBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.batches[examID] {
		if b.Status == model.BatchStatusActive {
			cp := *b
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) Assignment(ctx context.Context, examID uuid.UUID, candidateID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.assignments[examID][candidateID]
	if !ok {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (m *Store) ActivateNext(ctx context.Context, examID uuid.UUID) (*model.ExamBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *model.ExamBatch
	for _, b := range m.batches[examID] {
		if b.Status == model.BatchStatusActive {
			return nil, store.ErrBatchActive
		}
		if b.Status == model.BatchStatusScheduled && (next == nil || b.Number < next.Number) {
			next = b
		}
	}
	if next == nil {
		return nil, store.ErrNoScheduled
	}
	next.Status = model.BatchStatusActive
	next.UpdatedAt = time.Now()
	cp := *next
	return &cp, nil
}

func (m *Store) SetStatus(ctx context.Context, examID uuid.UUID, number int, from, to model.BatchStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[examID][number]
	if !ok {
		return false, store.ErrNotFound
	}
	if b.Status != from {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	return true, nil
}

func (m *Store) AdmitOne(ctx context.Context, examID uuid.UUID, number int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[examID][number]
	if !ok {
		return false, store.ErrNotFound
	}
	if b.Status != model.BatchStatusActive || b.Admitted >= b.Capacity {
		return false, nil
	}
	b.Admitted++
	return true, nil
}

func (m *Store) ReleaseOne(ctx context.Context, examID uuid.UUID, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[examID][number]
	if !ok {
		return store.ErrNotFound
	}
	if b.Admitted > 0 {
		b.Admitted--
	}
	return nil
}

// ─── ViolationStore ─────────────────────────────────────────────────

func (m *Store) Append(ctx context.Context, v *model.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextViolationID++
	cp := *v
	cp.ID = m.nextViolationID
	m.violations = append(m.violations, cp)
	return nil
}

func (m *Store) ListBySession(ctx context.Context, token uuid.UUID) ([]model.Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Violation
	for _, v := range m.violations {
		if v.SessionToken == token {
			out = append(out, v)
		}
	}
	return out, nil
}

// ─── AuditStore ─────────────────────────────────────────────────────

func (m *Store) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAuditID++
	cp := *e
	cp.ID = m.nextAuditID
	m.audit = append(m.audit, cp)
	return nil
}

// ─── ExamStore ──────────────────────────────────────────────────────

func (m *Store) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Store) ListRunning(ctx context.Context) ([]model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Exam
	for _, e := range m.exams {
		if e.Status == model.ExamStatusPublished || e.Status == model.ExamStatusRunning {
			out = append(out, *e)
		}
	}
	return out, nil
}

// ─── CandidateStore ─────────────────────────────────────────────────

func (m *Store) GetByNumber(ctx context.Context, number string) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.candidates {
		if c.Number == number {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) GetCandidate(ctx context.Context, id int) (*model.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}
