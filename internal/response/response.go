// Package response shapes every JSON reply of the API: one envelope with
// data, an optional structured error and request metadata.
package response

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the standard API envelope.
type Response struct {
	Data     any        `json:"data"`
	Error    *ErrorBody `json:"error,omitempty"`
	Metadata Metadata   `json:"metadata"`
}

// ErrorBody is a machine-readable error with optional field details.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Metadata carries the request ID and server timestamp.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Success sends data with the given status code.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, envelope(c, data, nil))
}

// Fail sends an error code with its canonical message.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, envelope(c, nil, &ErrorBody{Code: code, Message: GetMessage(code)}))
}

// FailWithFields sends an error code plus per-field validation messages.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, envelope(c, nil, &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields}))
}

// AbortFail sends an error and stops the middleware chain.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, envelope(c, nil, &ErrorBody{Code: code, Message: GetMessage(code)}))
}

func envelope(c *gin.Context, data any, errBody *ErrorBody) Response {
	id, _ := c.Value(ContextKeyRequestID).(string)
	if id == "" {
		// Middleware not applied (tests, stray routes); still trace the reply.
		id = uuid.NewString()
	}
	return Response{
		Data:  data,
		Error: errBody,
		Metadata: Metadata{
			RequestID: id,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}
