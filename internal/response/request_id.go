package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID for log and response
// correlation. An X-Request-ID supplied by the caller is kept so the ID stays
// stable across proxies.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
