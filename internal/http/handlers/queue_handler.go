// Provider-scoped endpoints:
//   - POST /providers/{provider}/entries       (issue a ticket)
//   - GET  /providers/{provider}/queue         (ordered snapshot, ETag support)
//   - GET  /providers/{provider}/availability
//   - PUT  /providers/{provider}/availability  (start/stop serving)
//   - GET  /providers/{provider}/estimate
package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-queue-backend/internal/domain"
	"github.com/tbourn/go-queue-backend/internal/http/middleware"
	"github.com/tbourn/go-queue-backend/internal/services"
)

// HeaderIdempotencyReplayed marks a response served from an earlier request
// with the same Idempotency-Key.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

//
// DTOs
//

// CreateEntryRequest is the JSON payload for issuing a ticket.
type CreateEntryRequest struct {
	// ParticipantRef identifies the walk-in (phone, card number). Optional for manual entries.
	ParticipantRef string `json:"participant_ref" example:"+44 7700 900123"`
	// Day is the service day (YYYY-MM-DD); only today is accepted, and it is the default.
	Day string `json:"day" example:"2025-06-02"`
	// Manual marks a staff-added walk-in; it skips the duplicate rule.
	Manual bool `json:"manual"`
}

// AvailabilityRequest is the JSON payload for starting or stopping service.
type AvailabilityRequest struct {
	Running *bool `json:"running" binding:"required"`
}

// QueueResponse is an ordered snapshot of one (day, provider) queue.
type QueueResponse struct {
	ProviderKey string              `json:"provider_key"`
	Day         string              `json:"day"`
	Entries     []domain.QueueEntry `json:"entries"`
}

//
// Handlers
//

// CreateEntry godoc
// @ID          createEntry
// @Summary     Issue a ticket
// @Description Allocates the next sequence number of the provider's queue and admits a pending entry. A repeated Idempotency-Key returns the original entry.
// @Tags        Queue
// @Accept      json
// @Produce     json
//
// @Param       provider         path    string  true   "Provider key"  example(desk-1)
// @Param       Idempotency-Key  header  string  false  "Idempotency key"
// @Param       body             body    handlers.CreateEntryRequest  true  "Ticket request"
//
// @Success     201  {object}  domain.QueueEntry
// @Header      201  {string}  Idempotency-Replayed  "true when replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate active entry"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /providers/{provider}/entries [post]
func (h *Handlers) CreateEntry(c *gin.Context) {
	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	e, replayed, err := h.queue.CreateEntry(c.Request.Context(), services.CreateEntryInput{
		ProviderKey:    provider(c),
		Day:            strings.TrimSpace(req.Day),
		ParticipantRef: req.ParticipantRef,
		Manual:         req.Manual,
		IdempotencyKey: key,
	})
	if err != nil {
		serviceError(c, err)
		return
	}
	if replayed {
		c.Header(HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusCreated, e)
}

// GetQueue godoc
// @ID          getQueue
// @Summary     Queue snapshot
// @Description Returns every entry of the provider's queue for a day, ordered by sequence number. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Queue
// @Produce     json
//
// @Param       provider       path    string  true   "Provider key"
// @Param       day            query   string  false  "Service day (YYYY-MM-DD), default today"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.QueueResponse
// @Header      200  {string}  ETag  "Weak ETag for the current snapshot"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /providers/{provider}/queue [get]
func (h *Handlers) GetQueue(c *gin.Context) {
	ctx := c.Request.Context()
	day, valid := queryDay(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "day must be YYYY-MM-DD")
		return
	}
	if day == "" {
		day = h.queue.Today()
	}
	p := provider(c)

	// ETag pre-check (best effort).
	if count, versions, maxTS, err := h.queue.SnapshotVersion(ctx, day, p); err == nil {
		etag := snapshotETag(p, day, count, versions, maxTS)
		c.Header("ETag", etag)
		c.Header("Cache-Control", "no-cache")
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	entries, err := h.queue.Snapshot(ctx, day, p)
	if err != nil {
		serviceError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	ok(c, http.StatusOK, QueueResponse{ProviderKey: p, Day: day, Entries: entries})
}

// GetAvailability godoc
// @ID          getAvailability
// @Summary     Provider availability
// @Description Reports whether the provider is serving. An unknown provider reads as stopped.
// @Tags        Providers
// @Produce     json
// @Param       provider  path  string  true  "Provider key"
// @Success     200  {object}  domain.ServiceAvailability
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /providers/{provider}/availability [get]
func (h *Handlers) GetAvailability(c *gin.Context) {
	av, err := h.queue.GetAvailability(c.Request.Context(), provider(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, av)
}

// SetAvailability godoc
// @ID          setAvailability
// @Summary     Start or stop serving
// @Description Toggles the provider's availability and recomputes the ETAs of its open queues.
// @Tags        Providers
// @Accept      json
// @Produce     json
// @Param       provider  path  string  true  "Provider key"
// @Param       body      body  handlers.AvailabilityRequest  true  "Desired state"
// @Success     200  {object}  domain.ServiceAvailability
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /providers/{provider}/availability [put]
func (h *Handlers) SetAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Running == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "running (bool) required")
		return
	}
	av, err := h.queue.SetAvailability(c.Request.Context(), provider(c), *req.Running)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, av)
}

// GetEstimate godoc
// @ID          getEstimate
// @Summary     Service-time estimate
// @Description Returns the provider's smoothed per-entry service time, smoothing factor and sample count.
// @Tags        Providers
// @Produce     json
// @Param       provider  path  string  true  "Provider key"
// @Success     200  {object}  domain.ServiceTimeEstimate
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /providers/{provider}/estimate [get]
func (h *Handlers) GetEstimate(c *gin.Context) {
	est, err := h.queue.GetEstimate(c.Request.Context(), provider(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, est)
}

//
// Helpers
//

// queryDay returns the ?day= parameter and whether it is absent or well formed.
func queryDay(c *gin.Context) (string, bool) {
	day := strings.TrimSpace(c.Query("day"))
	if day == "" {
		return "", true
	}
	if _, err := time.Parse(domain.DayLayout, day); err != nil {
		return "", false
	}
	return day, true
}

// snapshotETag derives a weak validator from the row count, the version sum
// and the latest update, so ETA-only rewrites change it too.
func snapshotETag(provider, day string, count, versions int64, maxUpdated *time.Time) string {
	var ts int64
	if maxUpdated != nil {
		ts = maxUpdated.UnixNano()
	}
	return fmt.Sprintf(`W/"queue:%s:%s:%d:%d:%d"`, provider, day, count, versions, ts)
}
