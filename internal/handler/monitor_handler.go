package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/config"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/invigo/invigo-backend/internal/middleware"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/response"
	"github.com/invigo/invigo-backend/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
)

// MonitorHandler streams the live exam monitor over SSE. Events come from the
// broadcast hub; with Redis attached the pub/sub channel carries events from
// every instance, so the observer sees the whole exam, not just this process.
type MonitorHandler struct {
	rdb         *redis.Client
	engine      *engine.Engine
	hub         *broadcast.Hub
	examService *service.ExamService
	log         zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, eng *engine.Engine, hub *broadcast.Hub, examService *service.ExamService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:         rdb,
		engine:      eng,
		hub:         hub,
		examService: examService,
		log:         log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:exam_id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, examID, exam.Title, exam.QuestionCount)

	// Event source: Redis pub/sub when clustered, direct hub observer
	// otherwise. Both carry the same broadcast.Event JSON.
	var events <-chan string
	if h.rdb != nil {
		channelName := config.CacheKey.ExamMonitorChannel(examID.String())
		pubsub := h.rdb.Subscribe(reqCtx, channelName)
		defer pubsub.Close()
		events = redisEventStrings(reqCtx, pubsub.Channel())
	} else {
		obs := h.hub.Subscribe(examID)
		defer h.hub.Unsubscribe(obs)
		events = hubEventStrings(reqCtx, obs.C)
	}

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()
	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	h.log.Info().Str("exam_id", examID.String()).Msg("Observer attached to monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Observer detached from monitor SSE")
			return

		case payload, ok := <-events:
			if !ok {
				return
			}
			writeSSE(c, []byte(payload))

		case <-refreshTicker.C:
			h.sendRefresh(c, examID)

		case <-keepAliveTicker.C:
			writeSSE(c, pingPayload)
		}
	}
}

// sendSnapshot writes the initial full state: exam header, aggregate counts
// and the per-session rows.
func (h *MonitorHandler) sendSnapshot(c *gin.Context, examID uuid.UUID, title string, questionCount int) {
	ctx := c.Request.Context()

	counts, err := h.engine.StatsForExam(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Snapshot stats failed")
		return
	}
	sessions, err := h.engine.SessionsForExam(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Snapshot session list failed")
		return
	}

	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"exam": gin.H{
				"id":              examID.String(),
				"title":           title,
				"total_questions": questionCount,
			},
			"stats":    statsPayload(counts),
			"sessions": sessions,
		},
	})
	c.Writer.Flush()
}

// sendRefresh writes a compact stats-only event on the periodic tick.
func (h *MonitorHandler) sendRefresh(c *gin.Context, examID uuid.UUID) {
	counts, err := h.engine.StatsForExam(c.Request.Context(), examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Refresh stats failed")
		return
	}

	c.SSEvent("message", gin.H{
		"type":  "refresh",
		"stats": statsPayload(counts),
	})
	c.Writer.Flush()
}

func statsPayload(counts model.SessionCounts) gin.H {
	return gin.H{
		"joined": counts.Joined(),
		"counts": counts,
	}
}

func writeSSE(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

// redisEventStrings adapts a Redis pub/sub channel to raw JSON payloads.
// The goroutine exits on ctx cancellation even with a send in flight, so a
// detached observer never strands it.
func redisEventStrings(ctx context.Context, in <-chan *redis.Message) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// hubEventStrings adapts a hub observer channel to raw JSON payloads, with
// the same ctx-bounded lifetime as redisEventStrings.
func hubEventStrings(ctx context.Context, in <-chan broadcast.Event) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				select {
				case out <- string(payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
