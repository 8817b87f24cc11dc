// Package middleware holds the Gin middleware shared across route groups.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/invigo/invigo-backend/internal/response"
	"github.com/invigo/invigo-backend/internal/service"
)

// ContextKeyClaims is the Gin context key for validated JWT claims.
const ContextKeyClaims = "claims"

var errNoToken = errors.New("no bearer token supplied")

// RequireCandidateJWT admits only requests carrying a valid candidate token.
func RequireCandidateJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireTokenType(authService, service.TokenTypeCandidate, response.ErrCandidateAccessOnly)
}

// RequireAdminJWT admits only requests carrying a valid admin token.
func RequireAdminJWT(authService *service.AuthService) gin.HandlerFunc {
	return requireTokenType(authService, service.TokenTypeAdmin, response.ErrAdminAccessOnly)
}

func requireTokenType(authService *service.AuthService, want service.TokenType, denied response.ErrCode) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if claims.TokenType != want {
			response.AbortFail(c, http.StatusForbidden, denied)
			return
		}
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireCandidateWSAuth validates a candidate token from the ?token= query
// parameter. Browser WebSocket clients cannot set an Authorization header on
// the upgrade request.
func RequireCandidateWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(raw)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if claims.TokenType != service.TokenTypeCandidate {
			response.AbortFail(c, http.StatusForbidden, response.ErrCandidateAccessOnly)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims returns the validated claims set by one of the Require
// middlewares, or nil outside an authenticated group.
func GetClaims(c *gin.Context) *service.Claims {
	val, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := val.(*service.Claims)
	return claims
}

func extractAndValidateClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	raw := bearerToken(c.GetHeader("Authorization"))

	// EventSource cannot send headers; SSE monitors pass ?token= instead.
	if raw == "" {
		raw = c.Query("token")
	}
	if raw == "" {
		return nil, errNoToken
	}
	return authService.ValidateToken(raw)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
