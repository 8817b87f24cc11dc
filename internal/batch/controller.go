// Package batch sequences large candidate pools through bounded-size
// admission windows. The controller only reads and aggregates session state;
// every session mutation it needs (force-submitting a batch) goes through
// the session engine's own operations.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/store"
	"github.com/rs/zerolog"
)

// Controller errors.
var (
	ErrInvalidCapacity    = errors.New("batch: capacity must be positive")
	ErrCapacityTooLarge   = errors.New("batch: capacity exceeds the configured maximum")
	ErrNoCandidates       = errors.New("batch: candidate list is empty")
	ErrBatchAlreadyActive = errors.New("batch: a batch is already active for this exam")
	ErrNoBatchesRemaining = errors.New("batch: no scheduled batches remaining")
	ErrNotCompleted       = errors.New("batch: batch is not completed")
	ErrNotActive          = errors.New("batch: batch is not active")
	ErrPlanInProgress     = errors.New("batch: existing batches have already started")
)

// Controller owns the admission plan per exam.
type Controller struct {
	batches  store.BatchStore
	sessions store.SessionStore
	audit    store.AuditStore
	engine   *engine.Engine
	hub      *broadcast.Hub
	clock    engine.Clock
	maxCap   int
	log      zerolog.Logger
}

// NewController creates a batch controller. The clock is shared with the
// session engine so plan and audit timestamps come from one source. maxCap
// bounds any requested batch capacity.
func NewController(batches store.BatchStore, sessions store.SessionStore, audit store.AuditStore, eng *engine.Engine, hub *broadcast.Hub, clock engine.Clock, maxCap int, log zerolog.Logger) *Controller {
	return &Controller{
		batches:  batches,
		sessions: sessions,
		audit:    audit,
		engine:   eng,
		hub:      hub,
		clock:    clock,
		maxCap:   maxCap,
		log:      log.With().Str("component", "batch_controller").Logger(),
	}
}

// GenerateBatches deterministically partitions the candidate list into
// contiguous batches numbered from 1, each holding at most maxCapacity
// candidates. Regenerating is allowed only while every existing batch is
// still SCHEDULED.
func (c *Controller) GenerateBatches(ctx context.Context, examID uuid.UUID, candidateIDs []int, maxCapacity int) ([]model.ExamBatch, error) {
	if maxCapacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if c.maxCap > 0 && maxCapacity > c.maxCap {
		return nil, ErrCapacityTooLarge
	}
	if len(candidateIDs) == 0 {
		return nil, ErrNoCandidates
	}

	now := c.clock.Now()
	count := (len(candidateIDs) + maxCapacity - 1) / maxCapacity
	batches := make([]model.ExamBatch, 0, count)
	assignments := make([]model.BatchAssignment, 0, len(candidateIDs))

	for number := 1; number <= count; number++ {
		start := (number - 1) * maxCapacity
		end := start + maxCapacity
		if end > len(candidateIDs) {
			end = len(candidateIDs)
		}
		batches = append(batches, model.ExamBatch{
			ExamID:    examID,
			Number:    number,
			Capacity:  maxCapacity,
			Size:      end - start,
			Status:    model.BatchStatusScheduled,
			CreatedAt: now,
			UpdatedAt: now,
		})
		for _, candidateID := range candidateIDs[start:end] {
			assignments = append(assignments, model.BatchAssignment{
				ExamID:      examID,
				CandidateID: candidateID,
				BatchNumber: number,
			})
		}
	}

	if err := c.batches.ReplaceAll(ctx, examID, batches, assignments); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrPlanInProgress
		}
		return nil, fmt.Errorf("persist batch plan: %w", err)
	}

	c.auditLog(ctx, "batch.generate", examID.String(),
		fmt.Sprintf("%d candidates into %d batches of <=%d", len(candidateIDs), count, maxCapacity))
	c.log.Info().
		Str("exam_id", examID.String()).
		Int("candidates", len(candidateIDs)).
		Int("batches", count).
		Msg("Batch plan generated")

	return batches, nil
}

// StartNext activates the lowest-numbered SCHEDULED batch. The activation is
// a check-and-set in the store, so two concurrent calls can never leave two
// batches ACTIVE.
func (c *Controller) StartNext(ctx context.Context, examID uuid.UUID) (*model.ExamBatch, error) {
	activated, err := c.batches.ActivateNext(ctx, examID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrBatchActive):
			return nil, ErrBatchAlreadyActive
		case errors.Is(err, store.ErrNoScheduled):
			return nil, ErrNoBatchesRemaining
		default:
			return nil, fmt.Errorf("activate next batch: %w", err)
		}
	}

	c.auditLog(ctx, "batch.start", examID.String(), fmt.Sprintf("batch %d", activated.Number))
	c.hub.Publish(ctx, broadcast.Event{
		Type:   broadcast.EventBatch,
		ExamID: examID,
		Data:   map[string]any{"batch": activated.Number, "status": string(activated.Status)},
	})

	return activated, nil
}

// Complete force-submits every still-active session in the batch through the
// engine, then transitions the batch to COMPLETED. Per-session failures are
// logged and skipped; the batch only completes once every session reached a
// terminal state.
func (c *Controller) Complete(ctx context.Context, examID uuid.UUID, number int) (*model.ExamBatch, error) {
	batch, err := c.batches.Get(ctx, examID, number)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	if batch.Status != model.BatchStatusActive {
		return nil, ErrNotActive
	}

	live, err := c.sessions.ListByBatch(ctx, examID, number, true)
	if err != nil {
		return nil, fmt.Errorf("list live sessions: %w", err)
	}

	failed := 0
	for i := range live {
		token := live[i].Token
		if _, err := c.engine.Submit(ctx, token, model.ActorAdmin); err != nil {
			failed++
			c.log.Error().Err(err).Str("token", token.String()).Msg("Force submit during batch completion failed")
		}
	}
	if failed > 0 {
		return nil, fmt.Errorf("batch completion: %d of %d sessions could not be finalized", failed, len(live))
	}

	ok, err := c.batches.SetStatus(ctx, examID, number, model.BatchStatusActive, model.BatchStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("complete batch: %w", err)
	}
	if !ok {
		return nil, ErrNotActive
	}

	c.auditLog(ctx, "batch.complete", examID.String(),
		fmt.Sprintf("batch %d, %d sessions force-submitted", number, len(live)))
	c.hub.Publish(ctx, broadcast.Event{
		Type:   broadcast.EventBatch,
		ExamID: examID,
		Data:   map[string]any{"batch": number, "status": string(model.BatchStatusCompleted)},
	})

	batch.Status = model.BatchStatusCompleted
	return batch, nil
}

// Lock freezes a COMPLETED batch; after this no further mutation of its
// results is allowed. Irreversible.
func (c *Controller) Lock(ctx context.Context, examID uuid.UUID, number int) error {
	ok, err := c.batches.SetStatus(ctx, examID, number, model.BatchStatusCompleted, model.BatchStatusLocked)
	if err != nil {
		return fmt.Errorf("lock batch: %w", err)
	}
	if !ok {
		return ErrNotCompleted
	}

	c.auditLog(ctx, "batch.lock", examID.String(), fmt.Sprintf("batch %d", number))
	return nil
}

// BatchStatus is one batch with aggregates reconciled against sessions.
type BatchStatus struct {
	model.ExamBatch
	ActiveSessions    int `json:"active_sessions"`
	FinalizedSessions int `json:"finalized_sessions"`
	Violations        int `json:"violations"`
}

// Status lists the exam's batches with per-batch session aggregates. The
// counters come from session rows, not from the batch record.
func (c *Controller) Status(ctx context.Context, examID uuid.UUID) ([]BatchStatus, error) {
	batches, err := c.batches.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	out := make([]BatchStatus, 0, len(batches))
	for i := range batches {
		sessions, err := c.sessions.ListByBatch(ctx, examID, batches[i].Number, false)
		if err != nil {
			return nil, fmt.Errorf("list batch sessions: %w", err)
		}
		st := BatchStatus{ExamBatch: batches[i]}
		for j := range sessions {
			if sessions[j].Status == model.SessionStatusActive {
				st.ActiveSessions++
			} else {
				st.FinalizedSessions++
			}
			st.Violations += sessions[j].ViolationCount
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *Controller) auditLog(ctx context.Context, action, target, detail string) {
	entry := &model.AuditEntry{
		Actor:      model.ActorAdmin,
		Action:     action,
		Target:     target,
		Detail:     detail,
		OccurredAt: c.clock.Now(),
	}
	if err := c.audit.Append(ctx, entry); err != nil {
		c.log.Error().Err(err).Str("action", action).Msg("Audit append failed")
	}
}
