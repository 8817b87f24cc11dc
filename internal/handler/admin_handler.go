package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/batch"
	"github.com/invigo/invigo-backend/internal/broadcast"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/response"
	"github.com/invigo/invigo-backend/internal/service"
	"github.com/invigo/invigo-backend/internal/validator"
	"github.com/rs/zerolog"
)

// AdminHandler handles proctor/administrator endpoints: batch sequencing,
// session oversight and live interventions.
type AdminHandler struct {
	engine      *engine.Engine
	controller  *batch.Controller
	hub         *broadcast.Hub
	examService *service.ExamService
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	eng *engine.Engine,
	controller *batch.Controller,
	hub *broadcast.Hub,
	examService *service.ExamService,
	authService *service.AuthService,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		engine:      eng,
		controller:  controller,
		hub:         hub,
		examService: examService,
		authService: authService,
		log:         log.With().Str("component", "admin_handler").Logger(),
	}
}

// ─── Batch control ──────────────────────────────────────────────────

// GenerateBatches godoc
// POST /api/v1/admin/exams/:exam_id/batches
func (h *AdminHandler) GenerateBatches(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.GenerateBatchesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	batches, err := h.controller.GenerateBatches(c.Request.Context(), examID, req.CandidateIDs, req.MaxCapacity)
	if err != nil {
		h.failBatch(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"batches": batches})
}

// StartNextBatch godoc
// POST /api/v1/admin/exams/:exam_id/batches/start
func (h *AdminHandler) StartNextBatch(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	activated, err := h.controller.StartNext(c.Request.Context(), examID)
	if err != nil {
		h.failBatch(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"batch": activated})
}

// CompleteBatch godoc
// POST /api/v1/admin/exams/:exam_id/batches/:number/complete
func (h *AdminHandler) CompleteBatch(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	completed, err := h.controller.Complete(c.Request.Context(), examID, number)
	if err != nil {
		h.failBatch(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"batch": completed})
}

// LockBatch godoc
// POST /api/v1/admin/exams/:exam_id/batches/:number/lock
// Irreversible; a locked batch's results are frozen.
func (h *AdminHandler) LockBatch(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.controller.Lock(c.Request.Context(), examID, number); err != nil {
		h.failBatch(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// BatchStatus godoc
// GET /api/v1/admin/exams/:exam_id/batches
func (h *AdminHandler) BatchStatus(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	statuses, err := h.controller.Status(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"batches": statuses})
}

// ─── Session oversight ──────────────────────────────────────────────

// ListSessions godoc
// GET /api/v1/admin/exams/:exam_id/sessions
func (h *AdminHandler) ListSessions(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	sessions, err := h.engine.SessionsForExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession godoc
// GET /api/v1/admin/sessions/:token
// Returns the session record together with its violation ledger.
func (h *AdminHandler) GetSession(c *gin.Context) {
	token, ok := parseSessionToken(c)
	if !ok {
		return
	}

	sess, err := h.engine.Session(c.Request.Context(), token)
	if err != nil {
		h.failEngine(c, err)
		return
	}
	ledger, err := h.engine.Ledger(c.Request.Context(), token)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":    sess,
		"violations": ledger,
	})
}

// ForceSubmitSession godoc
// POST /api/v1/admin/sessions/:token/force-submit
func (h *AdminHandler) ForceSubmitSession(c *gin.Context) {
	token, ok := parseSessionToken(c)
	if !ok {
		return
	}

	sess, err := h.engine.Submit(c.Request.Context(), token, model.ActorAdmin)
	if err != nil {
		h.failEngine(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// TerminateSession godoc
// POST /api/v1/admin/sessions/:token/terminate
func (h *AdminHandler) TerminateSession(c *gin.Context) {
	token, ok := parseSessionToken(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"max=500"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.engine.Terminate(c.Request.Context(), token, model.ActorAdmin, req.Reason)
	if err != nil {
		h.failEngine(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// ResetCandidateLogin godoc
// POST /api/v1/admin/candidates/:id/reset-login
// Clears the single-device login lock so the candidate can sign in again.
func (h *AdminHandler) ResetCandidateLogin(c *gin.Context) {
	candidateID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetCandidateLogin(c.Request.Context(), candidateID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ExamStats godoc
// GET /api/v1/admin/exams/:exam_id/stats
// Aggregates are recomputed from session rows on every call.
func (h *AdminHandler) ExamStats(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	counts, err := h.engine.StatsForExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"joined": counts.Joined(),
		"counts": counts,
	})
}

// BroadcastMessage godoc
// POST /api/v1/admin/exams/:exam_id/broadcast
// Sends a text message to every connected candidate of the exam.
func (h *AdminHandler) BroadcastMessage(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required,max=1000"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sessions, err := h.engine.SessionsForExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	tokens := make([]uuid.UUID, 0, len(sessions))
	for i := range sessions {
		if sessions[i].Status == model.SessionStatusActive {
			tokens = append(tokens, sessions[i].Token)
		}
	}

	delivered := h.hub.DeliverAll(tokens, broadcast.Command{
		Type:    broadcast.CommandMessage,
		Message: req.Text,
	})

	response.Success(c, http.StatusOK, gin.H{
		"active":    len(tokens),
		"delivered": delivered,
	})
}

// WarmExamCache godoc
// POST /api/v1/admin/exams/:exam_id/warm-cache
// Re-caches the payload and answer key after upstream question changes.
func (h *AdminHandler) WarmExamCache(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	if err := h.examService.WarmExamCache(c.Request.Context(), exam); err != nil {
		h.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Cache warm failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ─── Helpers ────────────────────────────────────────────────────────

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}

func parseSessionToken(c *gin.Context) (uuid.UUID, bool) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return token, true
}

func (h *AdminHandler) failEngine(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, engine.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	default:
		h.log.Error().Err(err).Msg("Engine operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func (h *AdminHandler) failBatch(c *gin.Context, err error) {
	switch {
	case errors.Is(err, batch.ErrInvalidCapacity), errors.Is(err, batch.ErrCapacityTooLarge):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidCapacity)
	case errors.Is(err, batch.ErrNoCandidates):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	case errors.Is(err, batch.ErrBatchAlreadyActive):
		response.Fail(c, http.StatusConflict, response.ErrBatchAlreadyActive)
	case errors.Is(err, batch.ErrNoBatchesRemaining):
		response.Fail(c, http.StatusConflict, response.ErrNoBatchesRemaining)
	case errors.Is(err, batch.ErrNotCompleted):
		response.Fail(c, http.StatusConflict, response.ErrBatchNotCompleted)
	case errors.Is(err, batch.ErrNotActive):
		response.Fail(c, http.StatusConflict, response.ErrBatchNotAdmitting)
	case errors.Is(err, batch.ErrPlanInProgress):
		response.Fail(c, http.StatusConflict, response.ErrBatchPlanInProgress)
	default:
		h.log.Error().Err(err).Msg("Batch operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
