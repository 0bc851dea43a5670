package handlers

import (
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-queue-backend/internal/http/middleware"
	"github.com/tbourn/go-queue-backend/internal/notify"
)

// ConnectedEvent is the handshake written first on every event stream.
type ConnectedEvent struct {
	Kinds       []notify.Kind `json:"kinds"`
	ProviderKey string        `json:"provider_key,omitempty"`
	At          time.Time     `json:"at"`
}

// Events godoc
// @ID          streamEvents
// @Summary     Change event stream
// @Description Server-sent events: a `connected` handshake, then one event per queue change named after its kind (entryCreated, entryUpdated, estimateUpdated, availabilityChanged). Slow readers lose events rather than stall the queue.
// @Tags        Events
// @Produce     text/event-stream
// @Param       kinds     query  string  false  "Comma-separated kinds, default all"
// @Param       provider  query  string  false  "Only events of this provider"
// @Success     200  {string}  string  "event stream"
// @Router      /events [get]
func (h *Handlers) Events(c *gin.Context) {
	f := notify.Filter{
		Kinds:       notify.ParseKinds(c.Query("kinds")),
		ProviderKey: strings.TrimSpace(c.Query("provider")),
	}
	sub := h.events.SubscribeFilter(f)
	defer sub.Close()

	kinds := f.Kinds
	if len(kinds) == 0 {
		kinds = notify.AllKinds
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", ConnectedEvent{Kinds: kinds, ProviderKey: f.ProviderKey, At: time.Now().UTC()})
	c.Writer.Flush()

	var beat <-chan time.Time
	if h.Heartbeat > 0 {
		t := time.NewTicker(h.Heartbeat)
		defer t.Stop()
		beat = t.C
	}

	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c)
	lg.Debug().Str("provider", f.ProviderKey).Msg("event stream opened")

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, open := <-sub.Events():
			if !open {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		case at := <-beat:
			c.SSEvent("heartbeat", gin.H{"at": at.UTC()})
			return true
		}
	})
	lg.Debug().Str("provider", f.ProviderKey).Msg("event stream closed")
}
