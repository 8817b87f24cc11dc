package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/engine"
	"github.com/invigo/invigo-backend/internal/middleware"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/response"
	"github.com/invigo/invigo-backend/internal/service"
	"github.com/invigo/invigo-backend/internal/validator"
	"github.com/rs/zerolog"
)

// CandidateHandler handles the candidate-facing exam session endpoints.
type CandidateHandler struct {
	engine      *engine.Engine
	examService *service.ExamService
	log         zerolog.Logger
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(eng *engine.Engine, examService *service.ExamService, log zerolog.Logger) *CandidateHandler {
	return &CandidateHandler{
		engine:      eng,
		examService: examService,
		log:         log.With().Str("component", "candidate_handler").Logger(),
	}
}

// hashed returns the hex SHA-256 of s, or "" when s is empty. Raw addresses
// and fingerprints never leave the request scope.
func hashed(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func bindingFromRequest(c *gin.Context, fingerprint string) model.Binding {
	if fingerprint == "" {
		fingerprint = c.GetHeader("X-Client-Fingerprint")
	}
	return model.Binding{
		AddrHash:        hashed(c.ClientIP()),
		FingerprintHash: hashed(fingerprint),
	}
}

// JoinExam godoc
// POST /api/v1/candidate/exams/:exam_id/join
// Admits the candidate into their assigned batch and opens a session.
func (h *CandidateHandler) JoinExam(c *gin.Context) {
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

	var req model.JoinExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if exam.EntryToken != "" && exam.EntryToken != req.EntryToken {
		response.Fail(c, http.StatusForbidden, response.ErrInvalidEntryToken)
		return
	}

	binding := bindingFromRequest(c, req.Fingerprint)
	session, err := h.engine.Admit(c.Request.Context(), claims.UserID, examID, binding)
	if err != nil {
		h.failEngine(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session": session,
		"remaining_seconds": int64(session.Remaining(time.Now()) / time.Second),
	})
}

// GetPaper godoc
// GET /api/v1/candidate/sessions/:token/paper
// Serves the cached question payload (no correct answers) for the session's exam.
func (h *CandidateHandler) GetPaper(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}
	if sess.Status.Terminal() {
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
		return
	}

	payload, err := h.examService.GetExamPayload(c.Request.Context(), sess.ExamID)
	if err != nil {
		if errors.Is(err, service.ErrPayloadNotHot) {
			response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// GetState godoc
// GET /api/v1/candidate/sessions/:token
// Returns the session record and recorded answers for reconnect recovery.
func (h *CandidateHandler) GetState(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	_, answers, err := h.engine.State(c.Request.Context(), sess.Token)
	if err != nil {
		h.failEngine(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session": sess,
		"answers": answers,
		"remaining_seconds": int64(sess.Remaining(time.Now()) / time.Second),
	})
}

// Heartbeat godoc
// POST /api/v1/candidate/sessions/:token/heartbeat
// Resyncs the client clock; a late heartbeat finalizes the session as EXPIRED.
func (h *CandidateHandler) Heartbeat(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	binding := bindingFromRequest(c, "")
	result, err := h.engine.Heartbeat(c.Request.Context(), sess.Token, &binding)
	if err != nil {
		h.failEngine(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// SaveAnswer godoc
// PUT /api/v1/candidate/sessions/:token/answers
// REST fallback for the WebSocket autosave path.
func (h *CandidateHandler) SaveAnswer(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	binding := bindingFromRequest(c, "")
	answer := &model.Answer{
		QuestionID:       questionID,
		Response:         req.Response,
		Flagged:          req.Flagged,
		TimeSpentSeconds: req.TimeSpent,
	}
	remaining, err := h.engine.RecordAnswer(c.Request.Context(), sess.Token, answer, &binding)
	if err != nil {
		h.failEngine(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"remaining_seconds": int64(remaining / time.Second),
	})
}

// ReportViolation godoc
// POST /api/v1/candidate/sessions/:token/violations
func (h *CandidateHandler) ReportViolation(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req model.ReportViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	esc, err := h.engine.RecordViolation(c.Request.Context(), sess.Token,
		model.ViolationType(req.Type), model.ActorCandidate)
	if err != nil {
		h.failEngine(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"count":      esc.Count,
		"warning":    esc.Warn,
		"terminated": esc.Terminate,
		"remaining":  esc.Remaining,
	})
}

// SubmitExam godoc
// POST /api/v1/candidate/sessions/:token/submit
// Idempotent: a repeated submit returns the recorded outcome.
func (h *CandidateHandler) SubmitExam(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	finalized, err := h.engine.Submit(c.Request.Context(), sess.Token, model.ActorCandidate)
	if err != nil {
		h.failEngine(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": finalized})
}

// ownedSession resolves the :token param and enforces that the session belongs
// to the authenticated candidate.
func (h *CandidateHandler) ownedSession(c *gin.Context) (*model.ExamSession, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	sess, err := h.engine.Session(c.Request.Context(), token)
	if err != nil {
		h.failEngine(c, err)
		return nil, false
	}
	if sess.CandidateID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return nil, false
	}
	return sess, true
}

// failEngine maps engine errors onto API error codes.
func (h *CandidateHandler) failEngine(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, engine.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, engine.ErrAlreadyActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionActive)
	case errors.Is(err, engine.ErrAlreadyFinalized):
		response.Fail(c, http.StatusConflict, response.ErrSessionFinalized)
	case errors.Is(err, engine.ErrBatchNotAdmitting):
		response.Fail(c, http.StatusForbidden, response.ErrBatchNotAdmitting)
	case errors.Is(err, engine.ErrCapacityExceeded):
		response.Fail(c, http.StatusConflict, response.ErrBatchCapacity)
	case errors.Is(err, engine.ErrExamNotRunning):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, engine.ErrDeadlinePassed):
		response.Fail(c, http.StatusConflict, response.ErrDeadlinePassed)
	case errors.Is(err, engine.ErrInvalidViolation):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidViolation)
	default:
		h.log.Error().Err(err).Msg("Engine operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
