// Queue HTTP handlers.
//
// Handlers are transport-thin: they validate input, call the queue engine
// and translate results and sentinel errors into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-queue-backend/internal/domain"
	"github.com/tbourn/go-queue-backend/internal/notify"
	"github.com/tbourn/go-queue-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// QueueService is the engine surface consumed by the handlers.
// *services.QueueService implements it.
type QueueService interface {
	CreateEntry(ctx context.Context, in services.CreateEntryInput) (*domain.QueueEntry, bool, error)
	Transition(ctx context.Context, id string, action domain.Action) (*domain.QueueEntry, error)
	Snapshot(ctx context.Context, day, provider string) ([]domain.QueueEntry, error)
	SnapshotVersion(ctx context.Context, day, provider string) (count, versions int64, maxUpdated *time.Time, err error)
	GetEntry(ctx context.Context, id string) (*domain.QueueEntry, error)
	GetEntryETA(ctx context.Context, id string) (*services.EntryETA, error)
	ListParticipantEntries(ctx context.Context, ref string, limit int) ([]domain.QueueEntry, error)
	SetAvailability(ctx context.Context, provider string, running bool) (*domain.ServiceAvailability, error)
	GetAvailability(ctx context.Context, provider string) (*domain.ServiceAvailability, error)
	GetEstimate(ctx context.Context, provider string) (*domain.ServiceTimeEstimate, error)
	Today() string
}

// EventSource hands out change-event subscriptions. *notify.Hub implements it.
type EventSource interface {
	SubscribeFilter(f notify.Filter) *notify.Subscription
}

//
// Handler wiring
//

// Handlers groups the queue, entry, participant and event endpoints.
type Handlers struct {
	queue  QueueService
	events EventSource

	// Heartbeat is the SSE keep-alive period; zero disables it.
	Heartbeat time.Duration
}

// New constructs Handlers bound to the engine and the event source.
func New(queue QueueService, events EventSource) *Handlers {
	return &Handlers{queue: queue, events: events, Heartbeat: 25 * time.Second}
}

// provider reads the :provider path parameter.
func provider(c *gin.Context) string { return c.Param("provider") }
