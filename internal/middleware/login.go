package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invigo/invigo-backend/internal/response"
	"github.com/invigo/invigo-backend/internal/service"
)

// CheckSingleDeviceLogin validates the JWT's JTI against the active login in Redis.
// If the JTI doesn't match, the request is rejected (the login was reset by a proctor).
func CheckSingleDeviceLogin(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only enforce for candidate tokens.
		if claims.TokenType != service.TokenTypeCandidate {
			c.Next()
			return
		}

		if err := authService.ValidateCandidateLogin(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrLoginInvalidated)
			return
		}

		c.Next()
	}
}
