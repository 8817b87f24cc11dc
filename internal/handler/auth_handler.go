package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invigo/invigo-backend/internal/middleware"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/repository"
	"github.com/invigo/invigo-backend/internal/response"
	"github.com/invigo/invigo-backend/internal/service"
	"github.com/invigo/invigo-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService   *service.AuthService
	candidateRepo *repository.CandidateRepository
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, candidateRepo *repository.CandidateRepository) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		candidateRepo: candidateRepo,
	}
}

// CandidateLogin godoc
// POST /api/v1/auth/candidate/login
// Validates number + password, rejects a second device, returns JWT.
func (h *AuthHandler) CandidateLogin(c *gin.Context) {
	var req model.CandidateLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	candidate, err := h.candidateRepo.GetByNumber(c.Request.Context(), req.Number)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(candidate.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateCandidateToken(c.Request.Context(), candidate.ID)
	if err != nil {
		if errors.Is(err, service.ErrDeviceAlreadyActive) {
			response.Fail(c, http.StatusConflict, response.ErrDeviceActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.CandidateLoginResponse{
		Token:     token,
		Candidate: *candidate,
	})
}

// CandidateLogout godoc
// POST /api/v1/auth/candidate/logout
func (h *AuthHandler) CandidateLogout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.authService.ResetCandidateLogin(c.Request.Context(), claims.UserID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetCandidateProfile godoc
// GET /api/v1/auth/candidate/me
func (h *AuthHandler) GetCandidateProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	candidate, err := h.candidateRepo.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"candidate": candidate})
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	admin, err := h.candidateRepo.GetAdminByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	if err := h.authService.CheckPassword(admin.PasswordHash, req.Password); err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := h.authService.GenerateAdminToken(admin.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.AdminLoginResponse{
		Token: token,
		Admin: *admin,
	})
}
