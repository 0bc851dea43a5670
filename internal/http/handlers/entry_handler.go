// Entry endpoints:
//   - GET  /entries/{id}
//   - GET  /entries/{id}/eta
//   - POST /entries/{id}/actions/{action}
//   - GET  /participants/{ref}/entries
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-queue-backend/internal/domain"
	"github.com/tbourn/go-queue-backend/internal/utils"
)

// ParticipantEntriesResponse lists a participant's entries, most recent first.
type ParticipantEntriesResponse struct {
	Entries []domain.QueueEntry `json:"entries"`
}

// entryID validates the :id path parameter, writing a 400 when malformed.
func entryID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "entry id must be a UUID")
		return "", false
	}
	return id, true
}

// GetEntry godoc
// @ID          getEntry
// @Summary     Get an entry
// @Tags        Entries
// @Produce     json
// @Param       id  path  string  true  "Entry ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.QueueEntry
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Entry not found"
// @Router      /entries/{id} [get]
func (h *Handlers) GetEntry(c *gin.Context) {
	id, valid := entryID(c)
	if !valid {
		return
	}
	e, err := h.queue.GetEntry(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// GetEntryETA godoc
// @ID          getEntryEta
// @Summary     When will this entry be served
// @Description Returns the number of open entries ahead, the current ETA (null while the provider is stopped or the entry is reserved) and the average it derives from.
// @Tags        Entries
// @Produce     json
// @Param       id  path  string  true  "Entry ID (UUID)"  format(uuid)
// @Success     200  {object}  services.EntryETA
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Entry not found"
// @Router      /entries/{id}/eta [get]
func (h *Handlers) GetEntryETA(c *gin.Context) {
	id, valid := entryID(c)
	if !valid {
		return
	}
	eta, err := h.queue.GetEntryETA(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, eta)
}

// EntryAction godoc
// @ID          entryAction
// @Summary     Apply a lifecycle action
// @Description Moves the entry through its lifecycle. Actions: reserve, cancel_reserve, begin_service, complete, expire, withdraw, reactivate.
// @Tags        Entries
// @Produce     json
// @Param       id      path  string  true  "Entry ID (UUID)"  format(uuid)
// @Param       action  path  string  true  "Lifecycle action"  Enums(reserve, cancel_reserve, begin_service, complete, expire, withdraw, reactivate)
// @Success     200  {object}  domain.QueueEntry
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown action"
// @Failure     404  {object}  handlers.ErrorResponse  "Entry not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Invalid transition or provider busy"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /entries/{id}/actions/{action} [post]
func (h *Handlers) EntryAction(c *gin.Context) {
	id, valid := entryID(c)
	if !valid {
		return
	}
	action, known := domain.ParseAction(c.Param("action"))
	if !known {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown action")
		return
	}
	e, err := h.queue.Transition(c.Request.Context(), id, action)
	if err != nil {
		serviceError(c, err)
		return
	}
	ok(c, http.StatusOK, e)
}

// ListParticipantEntries godoc
// @ID          listParticipantEntries
// @Summary     A participant's entries
// @Description Returns entries held under a participant reference across days and providers, most recent first.
// @Tags        Entries
// @Produce     json
// @Param       ref    path   string  true   "Participant reference"
// @Param       limit  query  int     false  "Maximum entries"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  handlers.ParticipantEntriesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /participants/{ref}/entries [get]
func (h *Handlers) ListParticipantEntries(c *gin.Context) {
	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), 50), 1, 200)
	entries, err := h.queue.ListParticipantEntries(c.Request.Context(), c.Param("ref"), limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	if entries == nil {
		entries = []domain.QueueEntry{}
	}
	ok(c, http.StatusOK, ParticipantEntriesResponse{Entries: entries})
}
