package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/invigo/invigo-backend/internal/middleware"
	"github.com/invigo/invigo-backend/internal/model"
	ws "github.com/invigo/invigo-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn serializes writes; the command forwarder and the read loop both
// write to the same socket.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) writeError(msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws.WriteError(w.conn, msg)
}

// WSHandler streams a candidate's session: answer autosave and violation
// reports inbound, proctor commands and the final verdict outbound.
type WSHandler struct {
	engine   *engine.Engine
	hub      *broadcast.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(eng *engine.Engine, hub *broadcast.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		engine:   eng,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/candidate/sessions/:token/stream
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session token"})
		return
	}

	sess, err := h.engine.Session(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.CandidateID != claims.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return
	}

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer rawConn.Close()
	conn := &wsConn{conn: rawConn}

	if sess.Status.Terminal() {
		conn.writeError("session already finalized")
		return
	}

	wsLog := h.log.With().
		Int("candidate_id", claims.UserID).
		Str("token", token.String()).
		Logger()
	wsLog.Info().Msg("Candidate connected")

	binding := bindingFromRequest(c, "")

	// Forward proctor commands delivered to this session's mailbox. The
	// channel closes on Detach or when a reconnect replaces the mailbox.
	mailbox := h.hub.Attach(token)
	defer h.hub.Detach(token, mailbox)
	go func() {
		for cmd := range mailbox {
			h.forwardCommand(conn, cmd)
		}
	}()

	graceful := false
	for {
		var envelope ws.RequestEnvelope
		raw, err := readRaw(rawConn, &envelope)
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				graceful = true
				wsLog.Debug().Msg("Connection closed")
			} else {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			break
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, wsLog, token, &binding, raw)
		case ws.ActionViolation:
			h.handleViolation(conn, wsLog, token, raw)
		case ws.ActionSubmit:
			if h.handleSubmit(conn, wsLog, token) {
				graceful = true
			}
		case ws.ActionPing:
			h.handlePing(conn, token)
		default:
			conn.writeError("unknown action: " + string(envelope.Action))
		}
	}

	// A drop mid-exam counts against the candidate through the ordinary
	// escalation path.
	if !graceful {
		if current, err := h.engine.Session(context.Background(), token); err == nil && !current.Status.Terminal() {
			if _, err := h.engine.RecordViolation(context.Background(), token,
				model.ViolationConnectionLost, model.ActorSystem); err != nil {
				wsLog.Warn().Err(err).Msg("Connection-lost violation record failed")
			}
		}
	}
	wsLog.Info().Msg("Candidate disconnected")
}

// readRaw reads one message and peeks at the action; the raw bytes are kept
// for the action-specific second parse.
func readRaw(conn *websocket.Conn, envelope *ws.RequestEnvelope) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, envelope); err != nil {
		return nil, err
	}
	return raw, nil
}

func (h *WSHandler) handleAnswer(conn *wsConn, wsLog zerolog.Logger, token uuid.UUID, binding *model.Binding, raw []byte) {
	var msg ws.AnswerRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		conn.writeError("malformed answer payload")
		return
	}

	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		conn.writeError("invalid q_id format")
		return
	}

	answer := &model.Answer{
		QuestionID:       questionID,
		Response:         msg.Response,
		Flagged:          msg.Flagged,
		TimeSpentSeconds: msg.TimeSpent,
	}
	remaining, err := h.engine.RecordAnswer(context.Background(), token, answer, binding)
	if err != nil {
		wsLog.Debug().Err(err).Msg("Answer save rejected")
		conn.writeError("save failed: " + err.Error())
		return
	}

	conn.write(ws.SavedResponse{
		Event:            ws.EventSaved,
		RemainingSeconds: int64(remaining / time.Second),
	})
}

func (h *WSHandler) handleViolation(conn *wsConn, wsLog zerolog.Logger, token uuid.UUID, raw []byte) {
	var msg ws.ViolationRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		conn.writeError("malformed violation payload")
		return
	}

	_, err := h.engine.RecordViolation(context.Background(), token,
		model.ViolationType(msg.Type), model.ActorCandidate)
	if err != nil {
		wsLog.Debug().Err(err).Str("type", msg.Type).Msg("Violation report rejected")
		conn.writeError("violation rejected: " + err.Error())
	}
	// Warnings and terminations arrive through the mailbox; no direct ack.
}

func (h *WSHandler) handleSubmit(conn *wsConn, wsLog zerolog.Logger, token uuid.UUID) bool {
	sess, err := h.engine.Submit(context.Background(), token, model.ActorCandidate)
	if err != nil {
		wsLog.Error().Err(err).Msg("Submit failed")
		conn.writeError("submit failed")
		return false
	}

	var score float64
	if sess.FinalScore != nil {
		score = *sess.FinalScore
	}
	conn.write(ws.GradedResponse{
		Event:  ws.EventGraded,
		Status: string(sess.Status),
		Score:  score,
	})
	wsLog.Info().Float64("score", score).Str("status", string(sess.Status)).Msg("Session submitted")
	return true
}

func (h *WSHandler) handlePing(conn *wsConn, token uuid.UUID) {
	remaining, err := h.engine.Remaining(context.Background(), token)
	if err != nil {
		conn.writeError("ping failed")
		return
	}
	conn.write(ws.PongResponse{
		Event:            ws.EventPong,
		RemainingSeconds: int64(remaining / time.Second),
	})
}

func (h *WSHandler) forwardCommand(conn *wsConn, cmd broadcast.Command) {
	switch cmd.Type {
	case broadcast.CommandWarning:
		count, _ := cmd.Data["count"].(int)
		remaining, _ := cmd.Data["remaining"].(int)
		conn.write(ws.WarningResponse{
			Event:     ws.EventWarning,
			Count:     count,
			Remaining: remaining,
		})
	case broadcast.CommandTerminate:
		status, _ := cmd.Data["status"].(string)
		conn.write(ws.TerminatedResponse{
			Event:  ws.EventTerminated,
			Status: status,
			Reason: cmd.Message,
		})
	case broadcast.CommandForceSubmit:
		status, _ := cmd.Data["status"].(string)
		score, _ := cmd.Data["score"].(float64)
		conn.write(ws.GradedResponse{
			Event:  ws.EventGraded,
			Status: status,
			Score:  score,
		})
	case broadcast.CommandMessage:
		conn.write(ws.MessageResponse{
			Event: ws.EventMessage,
			Text:  cmd.Message,
		})
	}
}
