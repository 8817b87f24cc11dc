package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store/memstore"
	"github.com/rs/zerolog"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fixedBank serves a static answer key regardless of exam.
type fixedBank map[string]string

func (b fixedBank) AnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	return b, nil
}

type fixture struct {
	eng   *engine.Engine
	ms    *memstore.Store
	clock *fakeClock

	examID uuid.UUID
	q1, q2 uuid.UUID
}

// newFixture seeds a published 60-minute exam with a two-question answer key
// and one ACTIVE batch holding candidates 1 and 2 (capacity 2).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, func(q1, q2 uuid.UUID) engine.QuestionBank {
		return fixedBank{q1.String(): "A", q2.String(): "C"}
	})
}

// newFixtureWith is newFixture with the answer-key collaborator swapped out.
func newFixtureWith(t *testing.T, mkBank func(q1, q2 uuid.UUID) engine.QuestionBank) *fixture {
	t.Helper()
	ctx := context.Background()

	ms := memstore.New()
	clock := &fakeClock{now: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)}

	examID := uuid.New()
	ms.PutExam(&model.Exam{
		ID:              examID,
		Title:           "Placement Test",
		DurationMinutes: 60,
		EntryToken:      "OPEN-SESAME",
		QuestionCount:   2,
		Status:          model.ExamStatusPublished,
	})
	ms.PutCandidate(&model.Candidate{ID: 1, Number: "REG-001", Name: "One"})
	ms.PutCandidate(&model.Candidate{ID: 2, Number: "REG-002", Name: "Two"})

	err := ms.Batches().ReplaceAll(ctx, examID,
		[]model.ExamBatch{{ExamID: examID, Number: 1, Capacity: 2, Size: 2, Status: model.BatchStatusScheduled}},
		[]model.BatchAssignment{
			{ExamID: examID, CandidateID: 1, BatchNumber: 1},
			{ExamID: examID, CandidateID: 2, BatchNumber: 1},
		})
	if err != nil {
		t.Fatalf("seed batches: %v", err)
	}
	if _, err := ms.Batches().ActivateNext(ctx, examID); err != nil {
		t.Fatalf("activate batch: %v", err)
	}

	q1, q2 := uuid.New(), uuid.New()

	hub := broadcast.NewHub(nil, zerolog.Nop())
	eng := engine.New(engine.Stores{
		Sessions:   ms.Sessions(),
		Batches:    ms.Batches(),
		Violations: ms.Violations(),
		Audit:      ms.Audit(),
		Exams:      ms.Exams(),
	}, mkBank(q1, q2), hub, clock, engine.Policy{WarningThreshold: 3, HardThreshold: 5}, zerolog.Nop())

	return &fixture{eng: eng, ms: ms, clock: clock, examID: examID, q1: q1, q2: q2}
}

func (f *fixture) admit(t *testing.T, candidateID int) *model.ExamSession {
	t.Helper()
	sess, err := f.eng.Admit(context.Background(), candidateID, f.examID, model.Binding{})
	if err != nil {
		t.Fatalf("admit candidate %d: %v", candidateID, err)
	}
	return sess
}

func TestAdmitCreatesActiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.admit(t, 1)

	if sess.Status != model.SessionStatusActive {
		t.Fatalf("status = %s, want ACTIVE", sess.Status)
	}
	if sess.BatchNumber != 1 {
		t.Errorf("batch = %d, want 1", sess.BatchNumber)
	}
	if got, want := sess.ServerEndTime, sess.StartedAt.Add(60*time.Minute); !got.Equal(want) {
		t.Errorf("server end time = %v, want %v", got, want)
	}

	batch, err := f.ms.Batches().Get(ctx, f.examID, 1)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Admitted != 1 {
		t.Errorf("admitted = %d, want 1", batch.Admitted)
	}
}

func TestAdmitRejectsSecondAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.admit(t, 1)

	if _, err := f.eng.Admit(ctx, 1, f.examID, model.Binding{}); !errors.Is(err, engine.ErrAlreadyActive) {
		t.Fatalf("second admit err = %v, want ErrAlreadyActive", err)
	}

	if _, err := f.eng.Submit(ctx, sess.Token, model.ActorCandidate); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.eng.Admit(ctx, 1, f.examID, model.Binding{}); !errors.Is(err, engine.ErrAlreadyFinalized) {
		t.Fatalf("admit after submit err = %v, want ErrAlreadyFinalized", err)
	}
}

func TestAdmitEnforcesCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A second exam whose only batch holds one slot for two candidates.
	tightExam := uuid.New()
	f.ms.PutExam(&model.Exam{ID: tightExam, DurationMinutes: 60, Status: model.ExamStatusRunning})
	err := f.ms.Batches().ReplaceAll(ctx, tightExam,
		[]model.ExamBatch{{ExamID: tightExam, Number: 1, Capacity: 1, Size: 2, Status: model.BatchStatusScheduled}},
		[]model.BatchAssignment{
			{ExamID: tightExam, CandidateID: 1, BatchNumber: 1},
			{ExamID: tightExam, CandidateID: 2, BatchNumber: 1},
		})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if _, err := f.ms.Batches().ActivateNext(ctx, tightExam); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if _, err := f.eng.Admit(ctx, 1, tightExam, model.Binding{}); err != nil {
		t.Fatalf("admit candidate 1: %v", err)
	}
	if _, err := f.eng.Admit(ctx, 2, tightExam, model.Binding{}); !errors.Is(err, engine.ErrCapacityExceeded) {
		t.Fatalf("over-capacity admit err = %v, want ErrCapacityExceeded", err)
	}
}

func TestAdmitRequiresAdmittingBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Candidate 99 has no assignment at all.
	if _, err := f.eng.Admit(ctx, 99, f.examID, model.Binding{}); !errors.Is(err, engine.ErrBatchNotAdmitting) {
		t.Fatalf("unassigned admit err = %v, want ErrBatchNotAdmitting", err)
	}
}

func TestAdmitRequiresRunningExam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ms.PutExam(&model.Exam{ID: f.examID, DurationMinutes: 60, Status: model.ExamStatusDraft})
	if _, err := f.eng.Admit(ctx, 1, f.examID, model.Binding{}); !errors.Is(err, engine.ErrExamNotRunning) {
		t.Fatalf("draft exam admit err = %v, want ErrExamNotRunning", err)
	}
}

func TestRecordAnswerRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.admit(t, 1)

	f.clock.Advance(10 * time.Minute)

	remaining, err := f.eng.RecordAnswer(ctx, sess.Token, &model.Answer{
		QuestionID: f.q1,
		Response:   "A",
		Flagged:    true,
	}, nil)
	if err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if remaining != 50*time.Minute {
		t.Errorf("remaining = %v, want 50m", remaining)
	}

	_, answers, err := f.eng.State(ctx, sess.Token)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(answers))
	}
	a := answers[0]
	if a.QuestionID != f.q1 || a.Response != "A" || !a.Visited || !a.Flagged {
		t.Errorf("stored answer = %+v", a)
	}

	// Overwriting the same question must not double-count it.
	if _, err := f.eng.RecordAnswer(ctx, sess.Token, &model.Answer{QuestionID: f.q1, Response: "B"}, nil); err != nil {
		t.Fatalf("overwrite answer: %v", err)
	}
	current, err := f.eng.Session(ctx, sess.Token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if current.AnsweredCount != 1 {
		t.Errorf("answered count = %d, want 1", current.AnsweredCount)
	}
}

func TestRecordAnswerAfterDeadlineExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.admit(t, 1)

	if _, err := f.eng.RecordAnswer(ctx, sess.Token, &model.Answer{QuestionID: f.q1, Response: "A"}, nil); err != nil {
		t.Fatalf("record answer: %v", err)
	}

	f.clock.Advance(61 * time.Minute)

	_, err := f.eng.RecordAnswer(ctx, sess.Token, &model.Answer{QuestionID: f.q2, Response: "C"}, nil)
	if !errors.Is(err, engine.ErrDeadlinePassed) {
		t.Fatalf("late answer err = %v, want ErrDeadlinePassed", err)
	}

	current, err := f.eng.Session(ctx, sess.Token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if current.Status != model.SessionStatusExpired {
		t.Errorf("status = %s, want EXPIRED", current.Status)
	}
	// The answer saved before the deadline still counts: 1 of 2 correct.
	if current.FinalScore == nil || *current.FinalScore != 50 {
		t.Errorf("final score = %v, want 50", current.FinalScore)
	}
}

func TestSubmitGradesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.admit(t, 1)

	for _, a := range []model.Answer{
		{QuestionID: f.q1, Response: "A"},
		{QuestionID: f.q2, Response: "B"},
	} {
		a := a
		if _, err := f.eng.RecordAnswer(ctx, sess.Token, &a, nil); err != nil {
			t.Fatalf("record answer: %v", err)
		}
	}

	first, err := f.eng.Submit(ctx, sess.Token, model.ActorCandidate)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Status != model.SessionStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", first.Status)
	}
	if first.FinalScore == nil || *first.FinalScore != 50 {
		t.Errorf("final score = %v, want 50", first.FinalScore)
	}

	// A retry must return the recorded outcome unchanged, not re-grade.
	second, err := f.eng.Submit(ctx, sess.Token, model.ActorAdmin)
	if err != nil {
		t.Fatalf("repeat submit: %v", err)
	}
	if second.Status != model.SessionStatusSubmitted {
		t.Errorf("repeat status = %s, want SUBMITTED", second.Status)
	}
	if second.FinalScore == nil || *second.FinalScore != *first.FinalScore {
		t.Errorf("repeat score = %v, want %v", second.FinalScore, *first.FinalScore)
	}

	batch, err := f.ms.Batches().Get(ctx, f.examID, 1)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Admitted != 0 {
		t.Errorf("admitted after finalize = %d, want 0", batch.Admitted)
	}

	// The retry must not have produced a second finalize audit record.
	finalized := 0
	for _, entry := range f.ms.AuditEntries() {
		if entry.Action == "session.finalize" {
			finalized++
		}
	}
	if finalized != 1 {
		t.Errorf("finalize audit records = %d, want 1", finalized)
	}
}

func TestSubmitByAdminIsForceSubmitted(t *testing.T) {
	f := newFixture(t)
	sess := f.admit(t, 1)

	final, err := f.eng.Submit(context.Background(), sess.Token, model.ActorAdmin)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if final.Status != model.SessionStatusForceSubmitted {
		t.Errorf("status = %s, want FORCE_SUBMITTED", final.Status)
	}
}

func TestHeartbeatLazyExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.admit(t, 1)

	hb, err := f.eng.Heartbeat(ctx, sess.Token, nil)
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if hb.Status != model.SessionStatusActive {
		t.Fatalf("status = %s, want ACTIVE", hb.Status)
	}
	if hb.RemainingSeconds != 3600 {
		t.Errorf("remaining = %d, want 3600", hb.RemainingSeconds)
	}

	f.clock.Advance(2 * time.Hour)

	hb, err = f.eng.Heartbeat(ctx, sess.Token, nil)
	if err != nil {
		t.Fatalf("late heartbeat: %v", err)
	}
	if hb.Status != model.SessionStatusExpired {
		t.Errorf("status = %s, want EXPIRED", hb.Status)
	}
	if hb.RemainingSeconds != 0 {
		t.Errorf("remaining = %d, want 0", hb.RemainingSeconds)
	}
	if hb.FinalScore == nil {
		t.Error("late heartbeat must carry the computed score")
	}
}

func TestViolationEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.admit(t, 1)

	// Counts 1 and 2 stay below the warning threshold.
	for want := 1; want <= 2; want++ {
		esc, err := f.eng.RecordViolation(ctx, sess.Token, model.ViolationTabSwitch, model.ActorCandidate)
		if err != nil {
			t.Fatalf("violation %d: %v", want, err)
		}
		if esc.Count != want || esc.Warn || esc.Terminate {
			t.Errorf("violation %d: escalation = %+v", want, esc)
		}
	}

	// Counts 3 and 4 warn with the remaining budget.
	for want, remaining := 3, 2; want <= 4; want, remaining = want+1, remaining-1 {
		esc, err := f.eng.RecordViolation(ctx, sess.Token, model.ViolationWindowBlur, model.ActorCandidate)
		if err != nil {
			t.Fatalf("violation %d: %v", want, err)
		}
		if !esc.Warn || esc.Terminate || esc.Remaining != remaining {
			t.Errorf("violation %d: escalation = %+v, want warn remaining=%d", want, esc, remaining)
		}
	}

	// Count 5 crosses the hard threshold and terminates.
	esc, err := f.eng.RecordViolation(ctx, sess.Token, model.ViolationDevtoolsOpen, model.ActorCandidate)
	if err != nil {
		t.Fatalf("violation 5: %v", err)
	}
	if !esc.Terminate {
		t.Fatalf("violation 5: escalation = %+v, want terminate", esc)
	}

	current, err := f.eng.Session(ctx, sess.Token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if current.Status != model.SessionStatusViolationTerminated {
		t.Errorf("status = %s, want VIOLATION_TERMINATED", current.Status)
	}
	if current.FinalScore == nil {
		t.Error("terminated session must still carry a score")
	}

	// The session is terminal; further reports are rejected, not counted.
	if _, err := f.eng.RecordViolation(ctx, sess.Token, model.ViolationTabSwitch, model.ActorCandidate); !errors.Is(err, engine.ErrSessionNotActive) {
		t.Fatalf("post-terminal violation err = %v, want ErrSessionNotActive", err)
	}

	ledger, err := f.eng.Ledger(ctx, sess.Token)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger) != 5 {
		t.Errorf("ledger entries = %d, want 5", len(ledger))
	}
}

func TestRecordViolationRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	sess := f.admit(t, 1)

	_, err := f.eng.RecordViolation(context.Background(), sess.Token, model.ViolationType("telepathy"), model.ActorCandidate)
	if !errors.Is(err, engine.ErrInvalidViolation) {
		t.Fatalf("err = %v, want ErrInvalidViolation", err)
	}
}

func TestBindingMismatchRecordsViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.eng.Admit(ctx, 1, f.examID, model.Binding{AddrHash: "aaa", FingerprintHash: "fff"})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}

	// Matching binding and empty fields do not count.
	if _, err := f.eng.Heartbeat(ctx, sess.Token, &model.Binding{AddrHash: "aaa", FingerprintHash: "fff"}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if _, err := f.eng.Heartbeat(ctx, sess.Token, &model.Binding{AddrHash: "aaa"}); err != nil {
		t.Fatalf("partial heartbeat: %v", err)
	}

	current, err := f.eng.Session(ctx, sess.Token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if current.ViolationCount != 0 {
		t.Fatalf("violations after matching beats = %d, want 0", current.ViolationCount)
	}

	// A different fingerprint is a violation on the normal threshold path.
	hb, err := f.eng.Heartbeat(ctx, sess.Token, &model.Binding{AddrHash: "aaa", FingerprintHash: "zzz"})
	if err != nil {
		t.Fatalf("mismatched heartbeat: %v", err)
	}
	if hb.ViolationCount != 1 {
		t.Errorf("violation count = %d, want 1", hb.ViolationCount)
	}
	if hb.Status != model.SessionStatusActive {
		t.Errorf("status = %s, want ACTIVE (one mismatch must not terminate)", hb.Status)
	}

	ledger, err := f.eng.Ledger(ctx, sess.Token)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Type != model.ViolationFingerprintMismatch {
		t.Fatalf("ledger = %+v, want one fingerprint_mismatch", ledger)
	}
	if ledger[0].Actor != model.ActorSystem {
		t.Errorf("actor = %s, want system", ledger[0].Actor)
	}
}

func TestTerminateGradesAndKeepsNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.admit(t, 1)

	if _, err := f.eng.RecordAnswer(ctx, sess.Token, &model.Answer{QuestionID: f.q1, Response: "A"}, nil); err != nil {
		t.Fatalf("record answer: %v", err)
	}

	final, err := f.eng.Terminate(ctx, sess.Token, model.ActorAdmin, "proctor decision")
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if final.Status != model.SessionStatusViolationTerminated {
		t.Errorf("status = %s, want VIOLATION_TERMINATED", final.Status)
	}
	if final.TerminationNote != "proctor decision" {
		t.Errorf("note = %q", final.TerminationNote)
	}
	if final.FinalScore == nil || *final.FinalScore != 50 {
		t.Errorf("final score = %v, want 50", final.FinalScore)
	}
}

func TestExpireOverdueSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s1 := f.admit(t, 1)
	s2 := f.admit(t, 2)

	if n := f.eng.ExpireOverdue(ctx); n != 0 {
		t.Fatalf("premature sweep expired %d sessions", n)
	}

	f.clock.Advance(61 * time.Minute)

	if n := f.eng.ExpireOverdue(ctx); n != 2 {
		t.Fatalf("sweep expired %d sessions, want 2", n)
	}
	for _, token := range []uuid.UUID{s1.Token, s2.Token} {
		sess, err := f.eng.Session(ctx, token)
		if err != nil {
			t.Fatalf("session: %v", err)
		}
		if sess.Status != model.SessionStatusExpired {
			t.Errorf("session %s status = %s, want EXPIRED", token, sess.Status)
		}
	}

	// Nothing left to expire.
	if n := f.eng.ExpireOverdue(ctx); n != 0 {
		t.Errorf("second sweep expired %d sessions", n)
	}
}

func TestFlagIdleSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.admit(t, 1)

	f.clock.Advance(10 * time.Minute)

	if n := f.eng.FlagIdle(ctx, 5*time.Minute); n != 1 {
		t.Fatalf("idle sweep flagged %d sessions, want 1", n)
	}

	current, err := f.eng.Session(ctx, sess.Token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if current.ViolationCount != 1 {
		t.Errorf("violation count = %d, want 1", current.ViolationCount)
	}
	if current.Status != model.SessionStatusActive {
		t.Errorf("status = %s, want ACTIVE (idle flags never terminate directly)", current.Status)
	}

	ledger, err := f.eng.Ledger(ctx, sess.Token)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Type != model.ViolationInactivity {
		t.Fatalf("ledger = %+v, want one inactivity entry", ledger)
	}
}

func TestConcurrentSubmitFinalizesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.admit(t, 1)

	var wg sync.WaitGroup
	results := make([]*model.ExamSession, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.eng.Submit(ctx, sess.Token, model.ActorCandidate)
			if err != nil {
				t.Errorf("submit %d: %v", i, err)
				return
			}
			results[i] = out
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		if out == nil {
			continue
		}
		if out.Status != model.SessionStatusSubmitted {
			t.Errorf("submit %d: status = %s, want SUBMITTED", i, out.Status)
		}
	}

	batch, err := f.ms.Batches().Get(ctx, f.examID, 1)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	// Exactly one finalize releases exactly one slot.
	if batch.Admitted != 0 {
		t.Errorf("admitted = %d, want 0", batch.Admitted)
	}
}

// gatedBank signals when grading starts and blocks until released, standing
// in for a slow answer-key collaborator.
type gatedBank struct {
	started chan struct{}
	release chan struct{}
}

func (b *gatedBank) AnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	b.started <- struct{}{}
	<-b.release
	return map[string]string{}, nil
}

func TestSlowGradingDoesNotStallSessionOperations(t *testing.T) {
	bank := &gatedBank{started: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWith(t, func(q1, q2 uuid.UUID) engine.QuestionBank { return bank })
	ctx := context.Background()
	sess := f.admit(t, 1)

	submitDone := make(chan error, 1)
	go func() {
		_, err := f.eng.Submit(ctx, sess.Token, model.ActorCandidate)
		submitDone <- err
	}()
	<-bank.started

	// Grading is in flight; another operation on the same token must not
	// queue behind it.
	opDone := make(chan error, 1)
	go func() {
		_, err := f.eng.RecordViolation(ctx, sess.Token, model.ViolationTabSwitch, model.ActorCandidate)
		opDone <- err
	}()
	select {
	case err := <-opDone:
		if err != nil {
			t.Fatalf("violation during grading: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("operation blocked behind an in-flight grade")
	}

	close(bank.release)
	if err := <-submitDone; err != nil {
		t.Fatalf("submit: %v", err)
	}
	final, err := f.eng.Session(ctx, sess.Token)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if final.Status != model.SessionStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", final.Status)
	}
}
