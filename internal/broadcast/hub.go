// Package broadcast carries the two real-time channels of the proctoring
// engine: a monitor fan-out for observers (admin dashboards) and a
// point-to-point command mailbox per session (admin → candidate). The hub is
// purely a read/observe and relay layer; it never mutates session state.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventType enumerates the point events observers receive.
type EventType string

const (
	EventJoin        EventType = "join"
	EventViolation   EventType = "violation"
	EventWarning     EventType = "warning"
	EventSubmit      EventType = "submit"
	EventForceSubmit EventType = "force_submit"
	EventTerminate   EventType = "terminate"
	EventExpired     EventType = "expired"
	EventStats       EventType = "stats"
	EventBatch       EventType = "batch"
)

// Event is a single monitor message. Payload is pre-shaped for direct JSON
// forwarding to SSE observers.
type Event struct {
	Type        EventType      `json:"type"`
	ExamID      uuid.UUID      `json:"exam_id"`
	Token       uuid.UUID      `json:"token,omitempty"`
	CandidateID int            `json:"candidate_id,omitempty"`
	At          time.Time      `json:"at"`
	Data        map[string]any `json:"data,omitempty"`
}

// CommandType enumerates administrator commands delivered to one session.
type CommandType string

const (
	CommandForceSubmit CommandType = "force_submit"
	CommandTerminate   CommandType = "terminate"
	CommandMessage     CommandType = "message"
	CommandWarning     CommandType = "warning"
)

// Command is a point-to-point message for a connected candidate.
type Command struct {
	Type    CommandType    `json:"type"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Observer is one attached monitor consumer.
type Observer struct {
	ExamID uuid.UUID
	C      chan Event
}

const observerBuffer = 64

// Hub fans events out to observers and routes commands to sessions. When a
// Redis client is supplied, events are additionally published to the exam's
// monitor channel so observers attached to other instances see them too.
type Hub struct {
	mu        sync.RWMutex
	observers map[*Observer]struct{}
	mailboxes map[uuid.UUID]chan Command

	rdb *redis.Client // optional cross-instance relay
	log zerolog.Logger
}

// NewHub creates a hub. rdb may be nil (single instance, tests).
func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		observers: make(map[*Observer]struct{}),
		mailboxes: make(map[uuid.UUID]chan Command),
		rdb:       rdb,
		log:       log.With().Str("component", "broadcast_hub").Logger(),
	}
}

// Publish delivers an event to every observer of the exam. Slow observers
// are skipped, never blocked on; correctness of sessions must not depend on
// who is watching.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	for obs := range h.observers {
		if obs.ExamID != ev.ExamID {
			continue
		}
		select {
		case obs.C <- ev:
		default:
			h.log.Debug().Str("type", string(ev.Type)).Msg("Observer buffer full, event dropped")
		}
	}
	h.mu.RUnlock()

	if h.rdb != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		channel := config.CacheKey.ExamMonitorChannel(ev.ExamID.String())
		if err := h.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			h.log.Warn().Err(err).Msg("Monitor relay publish failed")
		}
	}
}

// Subscribe attaches an observer for one exam.
func (h *Hub) Subscribe(examID uuid.UUID) *Observer {
	obs := &Observer{ExamID: examID, C: make(chan Event, observerBuffer)}
	h.mu.Lock()
	h.observers[obs] = struct{}{}
	h.mu.Unlock()
	return obs
}

// Unsubscribe detaches an observer and closes its channel.
func (h *Hub) Unsubscribe(obs *Observer) {
	h.mu.Lock()
	if _, ok := h.observers[obs]; ok {
		delete(h.observers, obs)
		close(obs.C)
	}
	h.mu.Unlock()
}

// Attach registers a session's command mailbox. A reconnecting candidate
// replaces the previous mailbox; the old channel is closed so its reader
// unwinds.
func (h *Hub) Attach(token uuid.UUID) chan Command {
	ch := make(chan Command, 8)
	h.mu.Lock()
	if old, ok := h.mailboxes[token]; ok {
		close(old)
	}
	h.mailboxes[token] = ch
	h.mu.Unlock()
	return ch
}

// Detach removes a session's mailbox if it still owns the channel.
func (h *Hub) Detach(token uuid.UUID, ch chan Command) {
	h.mu.Lock()
	if current, ok := h.mailboxes[token]; ok && current == ch {
		delete(h.mailboxes, token)
		close(current)
	}
	h.mu.Unlock()
}

// Deliver sends a command to one session's mailbox. Returns false when the
// session is not connected to this instance or the mailbox is full; the
// caller already applied the state change through the engine, so delivery is
// informational. The read lock is held across the send: Attach and Detach
// close mailbox channels under the write lock, so the channel cannot be
// closed mid-send. The send itself never blocks.
func (h *Hub) Deliver(token uuid.UUID, cmd Command) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.mailboxes[token]
	if !ok {
		return false
	}
	select {
	case ch <- cmd:
		return true
	default:
		return false
	}
}

// DeliverAll broadcasts a command to every connected session of an exam,
// identified by the provided token set. Returns the number delivered.
func (h *Hub) DeliverAll(tokens []uuid.UUID, cmd Command) int {
	delivered := 0
	for _, token := range tokens {
		if h.Deliver(token, cmd) {
			delivered++
		}
	}
	return delivered
}
