// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. serviceError maps engine errors onto (status, code).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "duplicate_active",
//	  "message": "participant already holds an open entry"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-queue-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeDuplicateActive   = "duplicate_active"
	ErrCodeProviderBusy      = "provider_busy"
	ErrCodeStoreUnavailable  = "store_unavailable"
)

// serviceError writes the envelope matching err. 5xx messages never carry
// the underlying store error; it is attached to c.Errors for the access log.
func serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "entry not found")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "action not allowed in the current state")
	case errors.Is(err, services.ErrDuplicateActive):
		fail(c, http.StatusConflict, ErrCodeDuplicateActive, "participant already holds an open entry")
	case errors.Is(err, services.ErrProviderBusy):
		fail(c, http.StatusConflict, ErrCodeProviderBusy, "another entry is in service")
	case errors.Is(err, services.ErrConcurrencyConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, "concurrent update, retry")
	case errors.Is(err, services.ErrStoreUnavailable):
		_ = c.Error(err)
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "store unavailable")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
