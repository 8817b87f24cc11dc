// Package sweep runs the background recurring tasks that keep sessions
// honest without client cooperation: the deadline sweep, the inactivity
// sweep and the periodic stats broadcast. Every effect goes through the
// session engine's public operations; the sweeps never touch session rows
// directly.
package sweep

import (
	"context"
	"time"

	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/rs/zerolog"
)

// Intervals configures the three recurring tasks.
type Intervals struct {
	Deadline   time.Duration
	Inactivity time.Duration
	Stats      time.Duration
}

// Sweeper drives the recurring tasks. Each task runs in its own goroutine
// and is independently safe against client-driven operations racing on the
// same sessions.
type Sweeper struct {
	engine     *engine.Engine
	hub        *broadcast.Hub
	intervals  Intervals
	idleWindow time.Duration
	log        zerolog.Logger
}

// New creates a sweeper.
func New(eng *engine.Engine, hub *broadcast.Hub, intervals Intervals, idleWindow time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		engine:     eng,
		hub:        hub,
		intervals:  intervals,
		idleWindow: idleWindow,
		log:        log.With().Str("component", "sweeper").Logger(),
	}
}

// Start launches all three loops. They stop when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx, "deadline_sweep", s.intervals.Deadline, s.deadlineSweep)
	go s.run(ctx, "inactivity_sweep", s.intervals.Inactivity, s.inactivitySweep)
	go s.run(ctx, "stats_broadcast", s.intervals.Stats, s.statsBroadcast)
}

func (s *Sweeper) run(ctx context.Context, name string, interval time.Duration, task func(context.Context)) {
	log := s.log.With().Str("task", name).Logger()
	log.Info().Dur("interval", interval).Msg("Sweep task started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweep task stopping")
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}

// deadlineSweep finalizes every session whose server end time has passed.
// The engine isolates per-session failures, so a single bad session never
// blocks the rest of the scan.
func (s *Sweeper) deadlineSweep(ctx context.Context) {
	if expired := s.engine.ExpireOverdue(ctx); expired > 0 {
		s.log.Info().Int("expired", expired).Msg("Deadline sweep finalized sessions")
	}
}

// inactivitySweep flags idle sessions with an inactivity violation. It does
// not terminate anything itself; the threshold path decides.
func (s *Sweeper) inactivitySweep(ctx context.Context) {
	if flagged := s.engine.FlagIdle(ctx, s.idleWindow); flagged > 0 {
		s.log.Info().Int("flagged", flagged).Msg("Inactivity sweep flagged sessions")
	}
}

// statsBroadcast recomputes per-exam aggregates and pushes them to monitor
// observers. Read-only with respect to session state.
func (s *Sweeper) statsBroadcast(ctx context.Context) {
	stats, err := s.engine.StatsAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Stats recompute failed")
		return
	}

	for examID, counts := range stats {
		s.hub.Publish(ctx, broadcast.Event{
			Type:   broadcast.EventStats,
			ExamID: examID,
			Data: map[string]any{
				"joined":               counts.Joined(),
				"active":               counts.Active,
				"submitted":            counts.Submitted,
				"force_submitted":      counts.Forced,
				"expired":              counts.Expired,
				"violation_terminated": counts.Terminated,
				"violations":           counts.Violations,
			},
		})
	}
}
