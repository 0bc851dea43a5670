package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Forwarder pushes one event to an external system. Implementations may
// block on network I/O; they run on their own subscriber goroutine.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, ev Event) error
}

// Bridge subscribes fw to every event of h and forwards them until ctx is
// cancelled or the hub stops. Forwarding errors are logged and skipped.
// Bridge returns once its subscription is closed.
func Bridge(ctx context.Context, h *Hub, fw Forwarder) {
	sub := h.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := fw.Forward(ctx, ev); err != nil {
				log.Warn().
					Err(err).
					Str("forwarder", fw.Name()).
					Str("kind", string(ev.Kind)).
					Str("provider_key", ev.ProviderKey).
					Str("entry_id", ev.EntryID).
					Msg("notify forward failed")
			}
		}
	}
}
