package router

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/invigo/invigo-backend/internal/config"
	"github.com/invigo/invigo-backend/internal/handler"
	"github.com/invigo/invigo-backend/internal/middleware"
	"github.com/invigo/invigo-backend/internal/response"
	"github.com/invigo/invigo-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Candidate *handler.CandidateHandler
	Admin     *handler.AdminHandler
	Monitor   *handler.MonitorHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	ready *atomic.Bool,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Client-Fingerprint"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check. Reports starting until startup (connections, cache
	// prewarm, sweeps) has finished.
	router.GET("/health", func(c *gin.Context) {
		if ready != nil && !ready.Load() {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrServiceStarting)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/candidate/login", handlers.Auth.CandidateLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/candidate/logout", middleware.RequireCandidateJWT(authService), handlers.Auth.CandidateLogout)
		auth.GET("/candidate/me", middleware.RequireCandidateJWT(authService), handlers.Auth.GetCandidateProfile)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		candidateAPI.POST("/exams/:exam_id/join", handlers.Candidate.JoinExam)
		candidateAPI.GET("/sessions/:token", handlers.Candidate.GetState)
		candidateAPI.GET("/sessions/:token/paper", handlers.Candidate.GetPaper)
		candidateAPI.POST("/sessions/:token/heartbeat", handlers.Candidate.Heartbeat)
		candidateAPI.PUT("/sessions/:token/answers", handlers.Candidate.SaveAnswer)
		candidateAPI.POST("/sessions/:token/violations", handlers.Candidate.ReportViolation)
		candidateAPI.POST("/sessions/:token/submit", handlers.Candidate.SubmitExam)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/candidate/sessions/:token/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Batch control
		adminAPI.GET("/exams/:exam_id/batches", handlers.Admin.BatchStatus)
		adminAPI.POST("/exams/:exam_id/batches", handlers.Admin.GenerateBatches)
		adminAPI.POST("/exams/:exam_id/batches/start", handlers.Admin.StartNextBatch)
		adminAPI.POST("/exams/:exam_id/batches/:number/complete", handlers.Admin.CompleteBatch)
		adminAPI.POST("/exams/:exam_id/batches/:number/lock", handlers.Admin.LockBatch)

		// Session oversight
		adminAPI.GET("/exams/:exam_id/sessions", handlers.Admin.ListSessions)
		adminAPI.GET("/exams/:exam_id/stats", handlers.Admin.ExamStats)
		adminAPI.GET("/sessions/:token", handlers.Admin.GetSession)
		adminAPI.POST("/sessions/:token/force-submit", handlers.Admin.ForceSubmitSession)
		adminAPI.POST("/sessions/:token/terminate", handlers.Admin.TerminateSession)

		// Interventions and housekeeping
		adminAPI.POST("/exams/:exam_id/broadcast", handlers.Admin.BroadcastMessage)
		adminAPI.POST("/exams/:exam_id/warm-cache", handlers.Admin.WarmExamCache)
		adminAPI.POST("/candidates/:id/reset-login", handlers.Admin.ResetCandidateLogin)

		// Live monitor (SSE)
		adminAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)
	}

	return router
}
