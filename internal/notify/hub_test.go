package notify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	h := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h
}

func recv(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DeliversToAllSubscribers(t *testing.T) {
	h := startHub(t, Options{})
	a := h.Subscribe()
	b := h.Subscribe()

	h.Publish(Event{Kind: KindEntryCreated, ProviderKey: "p", EntryID: "e1"})

	for _, s := range []*Subscription{a, b} {
		ev := recv(t, s)
		assert.Equal(t, KindEntryCreated, ev.Kind)
		assert.Equal(t, "e1", ev.EntryID)
		assert.False(t, ev.At.IsZero(), "At is stamped on publish")
	}
}

func TestHub_FiltersByKindAndProvider(t *testing.T) {
	h := startHub(t, Options{})
	created := h.Subscribe(KindEntryCreated)
	onlyP := h.SubscribeFilter(Filter{ProviderKey: "p"})

	h.Publish(Event{Kind: KindEntryUpdated, ProviderKey: "q"})
	h.Publish(Event{Kind: KindEntryCreated, ProviderKey: "q", EntryID: "q1"})
	h.Publish(Event{Kind: KindAvailabilityChanged, ProviderKey: "p"})

	assert.Equal(t, "q1", recv(t, created).EntryID)
	assertQuiet(t, created)

	assert.Equal(t, KindAvailabilityChanged, recv(t, onlyP).Kind)
	assertQuiet(t, onlyP)
}

func TestHub_PreservesOrderPerEntry(t *testing.T) {
	h := startHub(t, Options{SubscriberBuffer: 256})
	s := h.Subscribe()

	for i := 0; i < 100; i++ {
		h.Publish(Event{Kind: KindEstimateUpdated, ProviderKey: "p", EntryID: "e", Payload: i})
	}
	for i := 0; i < 100; i++ {
		assert.Equal(t, i, recv(t, s).Payload)
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	var drops atomic.Int64
	h := NewHub(Options{InboundBuffer: 1, OnDrop: func(Event, string) { drops.Add(1) }})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(Event{Kind: KindEntryUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no consumer")
	}
	assert.EqualValues(t, 9, drops.Load())
}

func TestSubscription_DropNewest(t *testing.T) {
	s := &Subscription{ch: make(chan Event, 2)}
	assert.True(t, s.offer(Event{Payload: 1}, DropNewest))
	assert.True(t, s.offer(Event{Payload: 2}, DropNewest))
	assert.False(t, s.offer(Event{Payload: 3}, DropNewest))

	assert.Equal(t, 1, (<-s.ch).Payload)
	assert.Equal(t, 2, (<-s.ch).Payload)
}

func TestSubscription_DropOldest(t *testing.T) {
	s := &Subscription{ch: make(chan Event, 2)}
	s.offer(Event{Payload: 1}, DropOldest)
	s.offer(Event{Payload: 2}, DropOldest)
	assert.False(t, s.offer(Event{Payload: 3}, DropOldest))

	assert.Equal(t, 2, (<-s.ch).Payload)
	assert.Equal(t, 3, (<-s.ch).Payload)
}

func TestHub_SlowSubscriberDoesNotStallOthers(t *testing.T) {
	var drops atomic.Int64
	h := startHub(t, Options{SubscriberBuffer: 1, OnDrop: func(_ Event, reason string) {
		if reason == DropSubscriber {
			drops.Add(1)
		}
	}})
	slow := h.Subscribe()
	fast := h.Subscribe()

	for i := 0; i < 5; i++ {
		h.Publish(Event{Kind: KindEntryUpdated, Payload: i})
		assert.Equal(t, i, recv(t, fast).Payload)
	}
	assert.Equal(t, 0, recv(t, slow).Payload)
	assert.Eventually(t, func() bool { return drops.Load() == 4 }, time.Second, 5*time.Millisecond)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	h := startHub(t, Options{})
	s := h.Subscribe()
	require.Equal(t, 1, h.Subscribers())

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Subscribers())

	_, ok := <-s.Events()
	assert.False(t, ok)
}

func TestHub_StopClosesSubscriptions(t *testing.T) {
	h := NewHub(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	s := h.Subscribe()
	cancel()
	<-h.Done()

	_, ok := <-s.Events()
	assert.False(t, ok)

	h.Publish(Event{Kind: KindEntryCreated})
	late := h.Subscribe()
	_, ok = <-late.Events()
	assert.False(t, ok, "subscribing to a stopped hub yields a closed stream")
	assert.Equal(t, 0, h.Subscribers())
}

func TestParseKinds(t *testing.T) {
	assert.Nil(t, ParseKinds(""))
	assert.Equal(t, []Kind{KindEntryCreated, KindAvailabilityChanged},
		ParseKinds(" entryCreated, bogus ,availabilityChanged"))
}

func TestParseDropPolicy(t *testing.T) {
	assert.Equal(t, DropOldest, ParseDropPolicy("drop-oldest"))
	assert.Equal(t, DropOldest, ParseDropPolicy("DROP_OLDEST"))
	assert.Equal(t, DropNewest, ParseDropPolicy("drop_newest"))
	assert.Equal(t, DropNewest, ParseDropPolicy("whatever"))
}
