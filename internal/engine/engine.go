// Package engine owns the live exam session state machine. Every mutation of
// a session flows through exactly one of its operations. The per-token keyed
// mutex serializes in-process state reads and writes; grading and audit are
// round-trips to collaborators and run after the lock is released, with the
// store's compare-and-set terminal transition deciding the single winner. So
// grading runs exactly once no matter which trigger fires first, and a slow
// collaborator never stalls the session's other operations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
	"github.com/rs/zerolog"
)

// QuestionBank is the answer-key collaborator. Question content is owned by
// an external system; the engine only needs the key for grading.
type QuestionBank interface {
	// AnswerKey maps question ID (string form) to the correct option.
	AnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error)
}

// Stores groups the persistence contracts the engine consumes.
type Stores struct {
	Sessions   store.SessionStore
	Batches    store.BatchStore
	Violations store.ViolationStore
	Audit      store.AuditStore
	Exams      store.ExamStore
}

// Policy holds the violation escalation thresholds.
type Policy struct {
	WarningThreshold int
	HardThreshold    int
}

// Engine is the session engine. One instance exclusively owns all session
// mutations for the process.
type Engine struct {
	st     Stores
	bank   QuestionBank
	hub    *broadcast.Hub
	clock  Clock
	policy Policy
	locks  *keyedMutex
	log    zerolog.Logger
}

// New creates a session engine.
func New(st Stores, bank QuestionBank, hub *broadcast.Hub, clock Clock, policy Policy, log zerolog.Logger) *Engine {
	return &Engine{
		st:     st,
		bank:   bank,
		hub:    hub,
		clock:  clock,
		policy: policy,
		locks:  newKeyedMutex(),
		log:    log.With().Str("component", "session_engine").Logger(),
	}
}

// HeartbeatResult is the candidate-facing view of a session clock tick.
type HeartbeatResult struct {
	Status           model.SessionStatus `json:"status"`
	RemainingSeconds int64               `json:"remaining_seconds"`
	ViolationCount   int                 `json:"violation_count"`
	FinalScore       *float64            `json:"final_score,omitempty"`
}

// ─── Admission ──────────────────────────────────────────────────────

// Admit creates an ACTIVE session for the candidate if their assigned batch
// is admitting and has capacity. StartedAt and ServerEndTime derive from the
// engine clock and the exam's configured duration, never from the client.
func (e *Engine) Admit(ctx context.Context, candidateID int, examID uuid.UUID, binding model.Binding) (*model.ExamSession, error) {
	session, err := e.admit(ctx, candidateID, examID, binding)
	if err != nil {
		return nil, err
	}

	e.auditLog(ctx, model.ActorCandidate, "session.admit", session.Token.String(),
		fmt.Sprintf("candidate %d batch %d", candidateID, session.BatchNumber))
	e.hub.Publish(ctx, broadcast.Event{
		Type:        broadcast.EventJoin,
		ExamID:      examID,
		Token:       session.Token,
		CandidateID: candidateID,
		Data:        map[string]any{"batch": session.BatchNumber},
	})

	return session, nil
}

// admit holds the per-candidate admission lock for the checks, the slot take
// and the create only. Audit and broadcast happen after release.
func (e *Engine) admit(ctx context.Context, candidateID int, examID uuid.UUID, binding model.Binding) (*model.ExamSession, error) {
	unlock := e.locks.Lock(fmt.Sprintf("admit:%s:%d", examID, candidateID))
	defer unlock()

	exam, err := e.st.Exams.Get(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusPublished && exam.Status != model.ExamStatusRunning {
		return nil, ErrExamNotRunning
	}

	existing, err := e.st.Sessions.GetByExamAndCandidate(ctx, examID, candidateID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		if existing.Status == model.SessionStatusActive {
			return nil, ErrAlreadyActive
		}
		return nil, ErrAlreadyFinalized
	}

	batchNumber, err := e.st.Batches.Assignment(ctx, examID, candidateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBatchNotAdmitting
		}
		return nil, fmt.Errorf("resolve batch assignment: %w", err)
	}

	admitted, err := e.st.Batches.AdmitOne(ctx, examID, batchNumber)
	if err != nil {
		return nil, fmt.Errorf("take admission slot: %w", err)
	}
	if !admitted {
		batch, err := e.st.Batches.Get(ctx, examID, batchNumber)
		if err == nil && batch.Status != model.BatchStatusActive {
			return nil, ErrBatchNotAdmitting
		}
		return nil, ErrCapacityExceeded
	}

	now := e.clock.Now()
	session := &model.ExamSession{
		Token:          uuid.New(),
		ExamID:         examID,
		CandidateID:    candidateID,
		BatchNumber:    batchNumber,
		Binding:        binding,
		StartedAt:      now,
		ServerEndTime:  now.Add(exam.Duration()),
		LastActivityAt: now,
		Status:         model.SessionStatusActive,
	}

	if err := e.st.Sessions.Create(ctx, session); err != nil {
		if relErr := e.st.Batches.ReleaseOne(ctx, examID, batchNumber); relErr != nil {
			e.log.Error().Err(relErr).Int("batch", batchNumber).Msg("Slot release after failed create")
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrAlreadyActive
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	return session, nil
}

// ─── Candidate-driven operations ────────────────────────────────────

// RecordAnswer upserts a response, marks the question visited and refreshes
// the activity clock. If the deadline already passed, the session is
// finalized as EXPIRED and ErrDeadlinePassed is returned; the answer is not
// recorded but nothing previously saved is lost.
func (e *Engine) RecordAnswer(ctx context.Context, token uuid.UUID, answer *model.Answer, binding *model.Binding) (time.Duration, error) {
	unlock := e.locks.Lock(token.String())

	sess, err := e.load(ctx, token)
	if err != nil {
		unlock()
		return 0, err
	}
	if sess.Status.Terminal() {
		unlock()
		return 0, ErrSessionNotActive
	}

	if esc, flagged := e.checkBinding(ctx, sess, binding); flagged && esc.Terminate {
		unlock()
		if _, err := e.finalize(ctx, sess, model.SessionStatusViolationTerminated, model.ActorSystem, thresholdNote(esc.Count)); err != nil {
			return 0, err
		}
		return 0, ErrSessionNotActive
	}

	now := e.clock.Now()
	if !now.Before(sess.ServerEndTime) {
		unlock()
		if _, err := e.finalize(ctx, sess, model.SessionStatusExpired, model.ActorSystem, "deadline passed"); err != nil {
			return 0, err
		}
		return 0, ErrDeadlinePassed
	}

	answer.SessionToken = token
	answer.Visited = true
	answer.UpdatedAt = now
	if err := e.st.Sessions.UpsertAnswer(ctx, answer); err != nil {
		unlock()
		return 0, fmt.Errorf("upsert answer: %w", err)
	}
	if err := e.st.Sessions.TouchActivity(ctx, token, now); err != nil {
		e.log.Warn().Err(err).Str("token", token.String()).Msg("Activity touch failed")
	}
	unlock()

	return sess.Remaining(now), nil
}

// RecordViolation appends the event to the integrity ledger, bumps the
// monotonic counter and applies the escalation policy. Crossing the hard
// threshold finalizes the session as VIOLATION_TERMINATED before returning.
func (e *Engine) RecordViolation(ctx context.Context, token uuid.UUID, vtype model.ViolationType, actor model.Actor) (Escalation, error) {
	if !vtype.Valid() {
		return Escalation{}, ErrInvalidViolation
	}

	unlock := e.locks.Lock(token.String())

	sess, err := e.load(ctx, token)
	if err != nil {
		unlock()
		return Escalation{}, err
	}
	if sess.Status.Terminal() {
		unlock()
		return Escalation{}, ErrSessionNotActive
	}

	esc, err := e.applyViolation(ctx, sess, vtype, actor)
	unlock()
	if err != nil {
		return Escalation{}, err
	}

	if esc.Terminate {
		if _, err := e.finalize(ctx, sess, model.SessionStatusViolationTerminated, model.ActorSystem, thresholdNote(esc.Count)); err != nil {
			return esc, err
		}
	}
	return esc, nil
}

// Submit finalizes the session: SUBMITTED for the candidate, FORCE_SUBMITTED
// for an administrator or the batch controller, EXPIRED when the deadline
// already passed. Calling it on a terminal session returns the recorded
// outcome unchanged.
func (e *Engine) Submit(ctx context.Context, token uuid.UUID, actor model.Actor) (*model.ExamSession, error) {
	unlock := e.locks.Lock(token.String())

	sess, err := e.load(ctx, token)
	if err != nil {
		unlock()
		return nil, err
	}
	if sess.Status.Terminal() {
		unlock()
		return sess, nil
	}

	status := model.SessionStatusSubmitted
	note := ""
	switch {
	case !e.clock.Now().Before(sess.ServerEndTime):
		status = model.SessionStatusExpired
		actor = model.ActorSystem
		note = "deadline passed"
	case actor == model.ActorAdmin || actor == model.ActorSystem:
		status = model.SessionStatusForceSubmitted
	}
	unlock()

	return e.finalize(ctx, sess, status, actor, note)
}

// Terminate forcibly ends the session with reason VIOLATION_TERMINATED. The
// recorded answers are still graded so the result is never silently empty.
func (e *Engine) Terminate(ctx context.Context, token uuid.UUID, actor model.Actor, note string) (*model.ExamSession, error) {
	unlock := e.locks.Lock(token.String())

	sess, err := e.load(ctx, token)
	if err != nil {
		unlock()
		return nil, err
	}
	if sess.Status.Terminal() {
		unlock()
		return sess, nil
	}
	unlock()

	return e.finalize(ctx, sess, model.SessionStatusViolationTerminated, actor, note)
}

// Heartbeat returns the session clock and triggers lazy expiry: a heartbeat
// after ServerEndTime finalizes the attempt and reports status EXPIRED with
// the computed score, so the candidate always sees a result, never an error.
func (e *Engine) Heartbeat(ctx context.Context, token uuid.UUID, binding *model.Binding) (*HeartbeatResult, error) {
	unlock := e.locks.Lock(token.String())

	sess, err := e.load(ctx, token)
	if err != nil {
		unlock()
		return nil, err
	}

	if sess.Status == model.SessionStatusActive {
		if esc, flagged := e.checkBinding(ctx, sess, binding); flagged && esc.Terminate {
			unlock()
			sess, err = e.finalize(ctx, sess, model.SessionStatusViolationTerminated, model.ActorSystem, thresholdNote(esc.Count))
			if err != nil {
				return nil, err
			}
			return heartbeatResult(sess, 0), nil
		}
	}

	now := e.clock.Now()
	switch {
	case sess.Status == model.SessionStatusActive && !now.Before(sess.ServerEndTime):
		unlock()
		sess, err = e.finalize(ctx, sess, model.SessionStatusExpired, model.ActorSystem, "deadline passed")
		if err != nil {
			return nil, err
		}
	case sess.Status == model.SessionStatusActive:
		if err := e.st.Sessions.TouchActivity(ctx, token, now); err != nil {
			e.log.Warn().Err(err).Str("token", token.String()).Msg("Activity touch failed")
		}
		unlock()
	default:
		unlock()
	}

	var remaining time.Duration
	if sess.Status == model.SessionStatusActive {
		remaining = sess.Remaining(now)
	}
	return heartbeatResult(sess, remaining), nil
}

func heartbeatResult(sess *model.ExamSession, remaining time.Duration) *HeartbeatResult {
	return &HeartbeatResult{
		Status:           sess.Status,
		RemainingSeconds: int64(remaining / time.Second),
		ViolationCount:   sess.ViolationCount,
		FinalScore:       sess.FinalScore,
	}
}

// ─── Reads ──────────────────────────────────────────────────────────

// Remaining is a pure read of max(0, serverEndTime − now). It never blocks
// on the per-token lock and never mutates.
func (e *Engine) Remaining(ctx context.Context, token uuid.UUID) (time.Duration, error) {
	sess, err := e.load(ctx, token)
	if err != nil {
		return 0, err
	}
	return sess.Remaining(e.clock.Now()), nil
}

// State returns the session and its recorded answers.
func (e *Engine) State(ctx context.Context, token uuid.UUID) (*model.ExamSession, []model.Answer, error) {
	sess, err := e.load(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	answers, err := e.st.Sessions.Answers(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("list answers: %w", err)
	}
	return sess, answers, nil
}

// Session returns the current session record.
func (e *Engine) Session(ctx context.Context, token uuid.UUID) (*model.ExamSession, error) {
	return e.load(ctx, token)
}

// Ledger returns the session's violation ledger in causal order.
func (e *Engine) Ledger(ctx context.Context, token uuid.UUID) ([]model.Violation, error) {
	return e.st.Violations.ListBySession(ctx, token)
}

// StatsForExam recomputes aggregate counters from session records.
func (e *Engine) StatsForExam(ctx context.Context, examID uuid.UUID) (model.SessionCounts, error) {
	return e.st.Sessions.CountsForExam(ctx, examID)
}

// StatsAll recomputes aggregate counters for every exam with sessions.
func (e *Engine) StatsAll(ctx context.Context) (map[uuid.UUID]model.SessionCounts, error) {
	return e.st.Sessions.CountsByExam(ctx)
}

// SessionsForExam lists every session of an exam for monitoring.
func (e *Engine) SessionsForExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	return e.st.Sessions.ListByExam(ctx, examID)
}

// ─── Sweep entry points ─────────────────────────────────────────────

// ExpireOverdue finalizes every ACTIVE session whose deadline has passed.
// Failures are isolated per session; the scan never aborts early. Returns
// the number of sessions expired.
func (e *Engine) ExpireOverdue(ctx context.Context) int {
	overdue, err := e.st.Sessions.ListOverdue(ctx, e.clock.Now())
	if err != nil {
		e.log.Error().Err(err).Msg("Overdue scan failed")
		return 0
	}

	expired := 0
	for i := range overdue {
		token := overdue[i].Token
		if _, err := e.Submit(ctx, token, model.ActorSystem); err != nil {
			e.log.Error().Err(err).Str("token", token.String()).Msg("Deadline sweep finalize failed")
			continue
		}
		expired++
	}
	return expired
}

// FlagIdle records an inactivity violation for every ACTIVE session whose
// last activity is older than the idle window. It never terminates directly;
// the normal threshold path decides.
func (e *Engine) FlagIdle(ctx context.Context, idleWindow time.Duration) int {
	cutoff := e.clock.Now().Add(-idleWindow)
	idle, err := e.st.Sessions.ListIdle(ctx, cutoff)
	if err != nil {
		e.log.Error().Err(err).Msg("Idle scan failed")
		return 0
	}

	flagged := 0
	for i := range idle {
		token := idle[i].Token
		if _, err := e.RecordViolation(ctx, token, model.ViolationInactivity, model.ActorSystem); err != nil {
			if !errors.Is(err, ErrSessionNotActive) {
				e.log.Error().Err(err).Str("token", token.String()).Msg("Inactivity flag failed")
			}
			continue
		}
		flagged++
	}
	return flagged
}

// ─── Internals ──────────────────────────────────────────────────────

func (e *Engine) load(ctx context.Context, token uuid.UUID) (*model.ExamSession, error) {
	sess, err := e.st.Sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// checkBinding compares the caller's binding against the one captured at
// admission. A mismatch is a violation, never an outright rejection; the
// escalation policy governs the outcome. When the returned escalation
// demands termination the caller finalizes, after releasing the token lock.
func (e *Engine) checkBinding(ctx context.Context, sess *model.ExamSession, binding *model.Binding) (Escalation, bool) {
	if binding == nil || sess.Binding.Matches(*binding) {
		return Escalation{}, false
	}
	esc, err := e.applyViolation(ctx, sess, model.ViolationFingerprintMismatch, model.ActorSystem)
	if err != nil {
		e.log.Error().Err(err).Str("token", sess.Token.String()).Msg("Binding violation record failed")
		return Escalation{}, false
	}
	return esc, true
}

// applyViolation persists one ledger entry, bumps the counter and announces
// the event. It runs under the caller's token lock and never finalizes; the
// caller acts on the returned escalation once the lock is released.
func (e *Engine) applyViolation(ctx context.Context, sess *model.ExamSession, vtype model.ViolationType, actor model.Actor) (Escalation, error) {
	now := e.clock.Now()
	violation := &model.Violation{
		SessionToken: sess.Token,
		Type:         vtype,
		Severity:     model.DefaultSeverity(vtype),
		Actor:        actor,
		OccurredAt:   now,
	}
	if err := e.st.Violations.Append(ctx, violation); err != nil {
		return Escalation{}, fmt.Errorf("append violation: %w", err)
	}

	count, err := e.st.Sessions.IncrementViolations(ctx, sess.Token)
	if err != nil {
		return Escalation{}, fmt.Errorf("increment violations: %w", err)
	}
	sess.ViolationCount = count

	e.hub.Publish(ctx, broadcast.Event{
		Type:        broadcast.EventViolation,
		ExamID:      sess.ExamID,
		Token:       sess.Token,
		CandidateID: sess.CandidateID,
		Data:        map[string]any{"violation_type": string(vtype), "count": count},
	})

	esc := Escalate(count, e.policy.WarningThreshold, e.policy.HardThreshold)
	if esc.Warn {
		e.hub.Publish(ctx, broadcast.Event{
			Type:        broadcast.EventWarning,
			ExamID:      sess.ExamID,
			Token:       sess.Token,
			CandidateID: sess.CandidateID,
			Data:        map[string]any{"count": count, "remaining": esc.Remaining},
		})
		e.hub.Deliver(sess.Token, broadcast.Command{
			Type: broadcast.CommandWarning,
			Data: map[string]any{"count": count, "remaining": esc.Remaining},
		})
	}

	return esc, nil
}

func thresholdNote(count int) string {
	return fmt.Sprintf("violation threshold reached (%d)", count)
}

// finalize is the single convergence point for every terminal transition.
// Callers must not hold the token lock: grading is a round-trip to the
// answer-key collaborator, and the store CAS alone guarantees the score is
// computed and persisted exactly once. A caller that loses the race returns
// the stored outcome.
func (e *Engine) finalize(ctx context.Context, sess *model.ExamSession, status model.SessionStatus, actor model.Actor, note string) (*model.ExamSession, error) {
	score, err := e.grade(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("grade session: %w", err)
	}

	finishedAt := e.clock.Now()
	won, err := e.st.Sessions.Finalize(ctx, sess.Token, status, score, finishedAt, note)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	if !won {
		// Another trigger got there first; its outcome stands.
		return e.load(ctx, sess.Token)
	}

	if err := e.st.Batches.ReleaseOne(ctx, sess.ExamID, sess.BatchNumber); err != nil {
		e.log.Error().Err(err).Int("batch", sess.BatchNumber).Msg("Slot release failed")
	}

	e.auditLog(ctx, actor, "session.finalize", sess.Token.String(),
		fmt.Sprintf("status=%s score=%.2f %s", status, score, note))

	sess.Status = status
	sess.FinalScore = &score
	sess.FinishedAt = &finishedAt
	sess.TerminationNote = note

	e.hub.Publish(ctx, broadcast.Event{
		Type:        finalEventType(status),
		ExamID:      sess.ExamID,
		Token:       sess.Token,
		CandidateID: sess.CandidateID,
		Data:        map[string]any{"score": score, "actor": string(actor)},
	})
	e.hub.Deliver(sess.Token, broadcast.Command{
		Type:    finalCommandType(status),
		Message: note,
		Data:    map[string]any{"status": string(status), "score": score},
	})

	return sess, nil
}

// grade scores the recorded answers against the answer-key collaborator.
func (e *Engine) grade(ctx context.Context, sess *model.ExamSession) (float64, error) {
	key, err := e.bank.AnswerKey(ctx, sess.ExamID)
	if err != nil {
		return 0, fmt.Errorf("answer key: %w", err)
	}

	answers, err := e.st.Sessions.Answers(ctx, sess.Token)
	if err != nil {
		return 0, fmt.Errorf("list answers: %w", err)
	}

	total := len(key)
	if total == 0 {
		return 0, nil
	}
	correct := 0
	for i := range answers {
		want, ok := key[answers[i].QuestionID.String()]
		if ok && strings.TrimSpace(answers[i].Response) == want {
			correct++
		}
	}
	return float64(correct) / float64(total) * 100, nil
}

func (e *Engine) auditLog(ctx context.Context, actor model.Actor, action, target, detail string) {
	entry := &model.AuditEntry{
		Actor:      actor,
		Action:     action,
		Target:     target,
		Detail:     detail,
		OccurredAt: e.clock.Now(),
	}
	if err := e.st.Audit.Append(ctx, entry); err != nil {
		e.log.Error().Err(err).Str("action", action).Msg("Audit append failed")
	}
}

func finalEventType(status model.SessionStatus) broadcast.EventType {
	switch status {
	case model.SessionStatusSubmitted:
		return broadcast.EventSubmit
	case model.SessionStatusForceSubmitted:
		return broadcast.EventForceSubmit
	case model.SessionStatusExpired:
		return broadcast.EventExpired
	default:
		return broadcast.EventTerminate
	}
}

func finalCommandType(status model.SessionStatus) broadcast.CommandType {
	switch status {
	case model.SessionStatusViolationTerminated:
		return broadcast.CommandTerminate
	default:
		return broadcast.CommandForceSubmit
	}
}
