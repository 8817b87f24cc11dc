package batch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/batch"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store/memstore"
	"github.com/rs/zerolog"
)

// emptyBank grades everything to zero; batch tests only care about states.
type emptyBank struct{}

func (emptyBank) AnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	return map[string]string{}, nil
}

var planTime = time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC)

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

func newController(t *testing.T) (*batch.Controller, *engine.Engine, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	hub := broadcast.NewHub(nil, zerolog.Nop())
	eng := engine.New(engine.Stores{
		Sessions:   ms.Sessions(),
		Batches:    ms.Batches(),
		Violations: ms.Violations(),
		Audit:      ms.Audit(),
		Exams:      ms.Exams(),
	}, emptyBank{}, hub, engine.SystemClock{}, engine.Policy{WarningThreshold: 3, HardThreshold: 5}, zerolog.Nop())
	ctrl := batch.NewController(ms.Batches(), ms.Sessions(), ms.Audit(), eng, hub, stubClock{now: planTime}, 500, zerolog.Nop())
	return ctrl, eng, ms
}

func candidateIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

func TestGenerateBatchesPartition(t *testing.T) {
	tests := []struct {
		name       string
		candidates int
		capacity   int
		wantSizes  []int
	}{
		{"exact multiple", 10, 5, []int{5, 5}},
		{"remainder batch", 1200, 500, []int{500, 500, 200}},
		{"single undersized batch", 3, 10, []int{3}},
		{"one candidate per batch", 3, 1, []int{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, _, ms := newController(t)
			ctx := context.Background()
			examID := uuid.New()

			batches, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(tt.candidates), tt.capacity)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if len(batches) != len(tt.wantSizes) {
				t.Fatalf("batches = %d, want %d", len(batches), len(tt.wantSizes))
			}
			for i, b := range batches {
				if b.Number != i+1 {
					t.Errorf("batch %d: number = %d", i, b.Number)
				}
				if b.Size != tt.wantSizes[i] {
					t.Errorf("batch %d: size = %d, want %d", i+1, b.Size, tt.wantSizes[i])
				}
				if b.Capacity != tt.capacity {
					t.Errorf("batch %d: capacity = %d, want %d", i+1, b.Capacity, tt.capacity)
				}
				if b.Status != model.BatchStatusScheduled {
					t.Errorf("batch %d: status = %s, want SCHEDULED", i+1, b.Status)
				}
			}

			// Assignment is contiguous: the first candidate past a full
			// batch belongs to the next one.
			if tt.candidates > tt.capacity {
				number, err := ms.Batches().Assignment(ctx, examID, tt.capacity+1)
				if err != nil {
					t.Fatalf("assignment: %v", err)
				}
				if number != 2 {
					t.Errorf("candidate %d assigned to batch %d, want 2", tt.capacity+1, number)
				}
			}
		})
	}
}

func TestGenerateBatchesValidation(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()
	examID := uuid.New()

	if _, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(5), 0); !errors.Is(err, batch.ErrInvalidCapacity) {
		t.Errorf("zero capacity err = %v, want ErrInvalidCapacity", err)
	}
	if _, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(5), 501); !errors.Is(err, batch.ErrCapacityTooLarge) {
		t.Errorf("oversized capacity err = %v, want ErrCapacityTooLarge", err)
	}
	if _, err := ctrl.GenerateBatches(ctx, examID, nil, 10); !errors.Is(err, batch.ErrNoCandidates) {
		t.Errorf("empty candidates err = %v, want ErrNoCandidates", err)
	}
}

func TestGenerateBatchesStampsFromInjectedClock(t *testing.T) {
	ctrl, _, ms := newController(t)
	ctx := context.Background()
	examID := uuid.New()

	batches, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(3), 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i, b := range batches {
		if !b.CreatedAt.Equal(planTime) || !b.UpdatedAt.Equal(planTime) {
			t.Errorf("batch %d: timestamps = %v/%v, want %v", i+1, b.CreatedAt, b.UpdatedAt, planTime)
		}
	}

	entries := ms.AuditEntries()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if !entries[0].OccurredAt.Equal(planTime) {
		t.Errorf("audit occurred at %v, want %v", entries[0].OccurredAt, planTime)
	}
}

func TestRegenerateOnlyWhileScheduled(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()
	examID := uuid.New()

	if _, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(10), 5); err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Replanning an untouched plan is allowed.
	batches, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(10), 2)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(batches) != 5 {
		t.Fatalf("regenerated batches = %d, want 5", len(batches))
	}

	if _, err := ctrl.StartNext(ctx, examID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(10), 5); !errors.Is(err, batch.ErrPlanInProgress) {
		t.Fatalf("regenerate after start err = %v, want ErrPlanInProgress", err)
	}
}

func TestStartNextLifecycle(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()
	examID := uuid.New()

	if _, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(4), 2); err != nil {
		t.Fatalf("generate: %v", err)
	}

	first, err := ctrl.StartNext(ctx, examID)
	if err != nil {
		t.Fatalf("start first: %v", err)
	}
	if first.Number != 1 || first.Status != model.BatchStatusActive {
		t.Fatalf("first = %+v, want batch 1 ACTIVE", first)
	}

	if _, err := ctrl.StartNext(ctx, examID); !errors.Is(err, batch.ErrBatchAlreadyActive) {
		t.Fatalf("start while active err = %v, want ErrBatchAlreadyActive", err)
	}

	if _, err := ctrl.Complete(ctx, examID, 1); err != nil {
		t.Fatalf("complete first: %v", err)
	}

	second, err := ctrl.StartNext(ctx, examID)
	if err != nil {
		t.Fatalf("start second: %v", err)
	}
	if second.Number != 2 {
		t.Fatalf("second batch number = %d, want 2", second.Number)
	}

	if _, err := ctrl.Complete(ctx, examID, 2); err != nil {
		t.Fatalf("complete second: %v", err)
	}
	if _, err := ctrl.StartNext(ctx, examID); !errors.Is(err, batch.ErrNoBatchesRemaining) {
		t.Fatalf("start with none left err = %v, want ErrNoBatchesRemaining", err)
	}
}

func TestCompleteForceSubmitsLiveSessions(t *testing.T) {
	ctrl, eng, ms := newController(t)
	ctx := context.Background()
	examID := uuid.New()

	ms.PutExam(&model.Exam{ID: examID, DurationMinutes: 60, Status: model.ExamStatusRunning})
	ms.PutCandidate(&model.Candidate{ID: 1, Number: "REG-001"})

	if _, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(2), 2); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ctrl.StartNext(ctx, examID); err != nil {
		t.Fatalf("start: %v", err)
	}

	sess, err := eng.Admit(ctx, 1, examID, model.Binding{})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	completed, err := ctrl.Complete(ctx, examID, 1)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != model.BatchStatusCompleted {
		t.Errorf("batch status = %s, want COMPLETED", completed.Status)
	}

	final, err := eng.Session(ctx, sess.Token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if final.Status != model.SessionStatusForceSubmitted {
		t.Errorf("session status = %s, want FORCE_SUBMITTED", final.Status)
	}

	if _, err := ctrl.Complete(ctx, examID, 1); !errors.Is(err, batch.ErrNotActive) {
		t.Fatalf("repeat complete err = %v, want ErrNotActive", err)
	}
}

func TestLockRequiresCompleted(t *testing.T) {
	ctrl, _, _ := newController(t)
	ctx := context.Background()
	examID := uuid.New()

	if _, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(2), 2); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := ctrl.Lock(ctx, examID, 1); !errors.Is(err, batch.ErrNotCompleted) {
		t.Fatalf("lock scheduled err = %v, want ErrNotCompleted", err)
	}

	if _, err := ctrl.StartNext(ctx, examID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := ctrl.Complete(ctx, examID, 1); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := ctrl.Lock(ctx, examID, 1); err != nil {
		t.Fatalf("lock completed: %v", err)
	}

	// Locking is irreversible and not repeatable.
	if err := ctrl.Lock(ctx, examID, 1); !errors.Is(err, batch.ErrNotCompleted) {
		t.Fatalf("repeat lock err = %v, want ErrNotCompleted", err)
	}
}

func TestStatusAggregatesFromSessions(t *testing.T) {
	ctrl, eng, ms := newController(t)
	ctx := context.Background()
	examID := uuid.New()

	ms.PutExam(&model.Exam{ID: examID, DurationMinutes: 60, Status: model.ExamStatusRunning})
	ms.PutCandidate(&model.Candidate{ID: 1, Number: "REG-001"})
	ms.PutCandidate(&model.Candidate{ID: 2, Number: "REG-002"})

	if _, err := ctrl.GenerateBatches(ctx, examID, candidateIDs(2), 2); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ctrl.StartNext(ctx, examID); err != nil {
		t.Fatalf("start: %v", err)
	}

	s1, err := eng.Admit(ctx, 1, examID, model.Binding{})
	if err != nil {
		t.Fatalf("admit 1: %v", err)
	}
	s2, err := eng.Admit(ctx, 2, examID, model.Binding{})
	if err != nil {
		t.Fatalf("admit 2: %v", err)
	}

	if _, err := eng.RecordViolation(ctx, s1.Token, model.ViolationTabSwitch, model.ActorCandidate); err != nil {
		t.Fatalf("violation: %v", err)
	}
	if _, err := eng.Submit(ctx, s2.Token, model.ActorCandidate); err != nil {
		t.Fatalf("submit: %v", err)
	}

	statuses, err := ctrl.Status(ctx, examID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(statuses))
	}
	st := statuses[0]
	if st.ActiveSessions != 1 {
		t.Errorf("active = %d, want 1", st.ActiveSessions)
	}
	if st.FinalizedSessions != 1 {
		t.Errorf("finalized = %d, want 1", st.FinalizedSessions)
	}
	if st.Violations != 1 {
		t.Errorf("violations = %d, want 1", st.Violations)
	}
}
