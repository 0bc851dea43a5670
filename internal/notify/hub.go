// Package notify implements the queue's change-notification fan-out.
//
// Producers call Hub.Publish, which never blocks: events go into a bounded
// inbound channel and are dropped when it is full. A single Run goroutine
// fans events out to subscribers, each with its own bounded channel and a
// configurable overflow policy. Because one goroutine delivers in inbound
// order, every subscriber sees events for the same entry in the order they
// were produced (minus drops).
//
// Forwarders in this package (PubNub, AMQP) are ordinary subscribers that
// push events to external systems.
package notify

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies an event type.
type Kind string

const (
	KindEntryCreated        Kind = "entryCreated"
	KindEntryUpdated        Kind = "entryUpdated"
	KindEstimateUpdated     Kind = "estimateUpdated"
	KindAvailabilityChanged Kind = "availabilityChanged"
)

// AllKinds lists every event kind.
var AllKinds = []Kind{KindEntryCreated, KindEntryUpdated, KindEstimateUpdated, KindAvailabilityChanged}

// ParseKinds parses a comma-separated list of kinds, ignoring unknown and
// blank items. An empty result means "all kinds".
func ParseKinds(csv string) []Kind {
	var out []Kind
	for _, p := range strings.Split(csv, ",") {
		k := Kind(strings.TrimSpace(p))
		for _, known := range AllKinds {
			if k == known {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// Event is one change notification.
type Event struct {
	Kind        Kind      `json:"kind"`
	ProviderKey string    `json:"provider_key"`
	Day         string    `json:"day,omitempty"`
	EntryID     string    `json:"entry_id,omitempty"`
	At          time.Time `json:"at"`
	Payload     any       `json:"payload,omitempty"`
}

// DropPolicy decides which event is lost when a subscriber buffer is full.
type DropPolicy int

const (
	// DropNewest discards the event being delivered.
	DropNewest DropPolicy = iota
	// DropOldest evicts the oldest buffered event to make room.
	DropOldest
)

// ParseDropPolicy maps "drop_newest"/"drop_oldest" to a DropPolicy.
// Unknown values fall back to DropNewest.
func ParseDropPolicy(s string) DropPolicy {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "drop_oldest":
		return DropOldest
	default:
		return DropNewest
	}
}

// Drop reasons passed to Options.OnDrop.
const (
	DropInbound    = "inbound"
	DropSubscriber = "subscriber"
)

// Options configures a Hub.
type Options struct {
	InboundBuffer    int        // producer-side capacity (default 1024)
	SubscriberBuffer int        // per-subscriber capacity (default 64)
	Policy           DropPolicy // subscriber overflow policy
	// OnDrop, when set, is called for every dropped event. It runs on the
	// producer or fan-out goroutine and must not block.
	OnDrop func(ev Event, reason string)
}

// Filter selects the events a subscriber receives. Empty fields match all.
type Filter struct {
	Kinds       []Kind
	ProviderKey string
}

// Hub is the in-process broadcast channel.
type Hub struct {
	opts Options
	in   chan Event

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64

	stopped atomic.Bool
	done    chan struct{}
}

// NewHub returns a hub; call Run to start delivery.
func NewHub(opts Options) *Hub {
	if opts.InboundBuffer <= 0 {
		opts.InboundBuffer = 1024
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 64
	}
	return &Hub{
		opts: opts,
		in:   make(chan Event, opts.InboundBuffer),
		subs: make(map[uint64]*Subscription),
		done: make(chan struct{}),
	}
}

// Publish enqueues ev without blocking. Events published after the hub
// stopped, or while the inbound buffer is full, are dropped.
func (h *Hub) Publish(ev Event) {
	if h.stopped.Load() {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case h.in <- ev:
	default:
		h.dropped(ev, DropInbound)
	}
}

// Run delivers events until ctx is cancelled, then closes every subscription.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.stop()
			return
		case ev := <-h.in:
			h.deliver(ev)
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Subscribe registers a subscriber for the given kinds (all kinds when none
// are given).
func (h *Hub) Subscribe(kinds ...Kind) *Subscription {
	return h.SubscribeFilter(Filter{Kinds: kinds})
}

// SubscribeFilter registers a subscriber for events matching f.
func (h *Hub) SubscribeFilter(f Filter) *Subscription {
	s := &Subscription{
		hub:      h,
		ch:       make(chan Event, h.opts.SubscriberBuffer),
		provider: f.ProviderKey,
	}
	if len(f.Kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(f.Kinds))
		for _, k := range f.Kinds {
			s.kinds[k] = struct{}{}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped.Load() {
		s.closed = true
		close(s.ch)
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	return s
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.matches(ev) {
			continue
		}
		if !s.offer(ev, h.opts.Policy) {
			h.dropped(ev, DropSubscriber)
		}
	}
}

func (h *Hub) stop() {
	h.stopped.Store(true)
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()
	for _, s := range subs {
		s.shut()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (h *Hub) dropped(ev Event, reason string) {
	if h.opts.OnDrop != nil {
		h.opts.OnDrop(ev, reason)
	}
}

// Subscription is one observer's bounded event stream.
type Subscription struct {
	id       uint64
	hub      *Hub
	kinds    map[Kind]struct{}
	provider string

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// Events returns the receive side of the subscription. It is closed by
// Close or when the hub stops.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	if s.hub != nil {
		s.hub.remove(s.id)
	}
	s.shut()
}

func (s *Subscription) matches(ev Event) bool {
	if s.provider != "" && s.provider != ev.ProviderKey {
		return false
	}
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[ev.Kind]
	return ok
}

// offer delivers ev without blocking. It reports false when an event was
// lost (ev itself under DropNewest, the oldest buffered one under DropOldest).
func (s *Subscription) offer(ev Event, policy DropPolicy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
	}
	if policy == DropNewest {
		return false
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
	return false
}

func (s *Subscription) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
