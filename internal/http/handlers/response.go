package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-queue-backend/internal/http/middleware"
)

// storeRetryAfter is the Retry-After hint, in seconds, sent with 503s.
const storeRetryAfter = "1"

// ErrorResponse is the envelope of every non-2xx JSON response.
type ErrorResponse struct {
	// Matches the X-Request-ID response header and the access log.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code, one of the ErrCode constants.
	Code string `json:"code" example:"not_found"`
	// Safe to display.
	Message string `json:"message" example:"entry not found"`
}

// fail aborts with an ErrorResponse. A 503 tells the client when to retry;
// any 5xx is also logged through the request-scoped logger, together with
// whatever the handler attached to c.Errors.
func fail(c *gin.Context, status int, code, msg string) {
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", storeRetryAfter)
	}
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code)
		if len(c.Errors) > 0 {
			ev = ev.Str("cause", c.Errors.Last().Error())
		}
		ev.Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router's NoRoute and NoMethod handlers share the envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
