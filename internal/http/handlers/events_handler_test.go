package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-queue-backend/internal/notify"
	"github.com/tbourn/go-queue-backend/internal/services"
)

// nextEvent returns the name of the next SSE event on the stream.
func nextEvent(t *testing.T, sc *bufio.Scanner) (name, data string) {
	t.Helper()
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && name != "":
			return name, data
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return "", ""
}

func TestEvents_HandshakeThenFilteredChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := notify.NewHub(notify.Options{})
	go hub.Run(ctx)

	engine := newEngine(t, hub)
	h := New(engine, hub)
	h.Heartbeat = 0
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	reqCtx, stop := context.WithTimeout(ctx, 5*time.Second)
	defer stop()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/events?kinds=entryCreated&provider=desk", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type=%q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	name, data := nextEvent(t, sc)
	if name != "connected" || !strings.Contains(data, `"entryCreated"`) {
		t.Fatalf("handshake = %s %s", name, data)
	}

	// Other providers are filtered out; the desk entry comes through.
	if _, _, err := engine.CreateEntry(ctx, services.CreateEntryInput{ProviderKey: "lab", ParticipantRef: "x"}); err != nil {
		t.Fatalf("create lab: %v", err)
	}
	e, _, err := engine.CreateEntry(ctx, services.CreateEntryInput{ProviderKey: "desk", ParticipantRef: "alice"})
	if err != nil {
		t.Fatalf("create desk: %v", err)
	}

	name, data = nextEvent(t, sc)
	if name != string(notify.KindEntryCreated) || !strings.Contains(data, e.ID) {
		t.Fatalf("event = %s %s", name, data)
	}
	if strings.Contains(data, `"provider_key":"lab"`) {
		t.Fatalf("foreign provider leaked: %s", data)
	}
}

func TestEvents_EndsWhenHubStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := notify.NewHub(notify.Options{})
	go hub.Run(ctx)

	h := New(newEngine(t, hub), hub)
	h.Heartbeat = 0
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	sc := bufio.NewScanner(resp.Body)
	if name, _ := nextEvent(t, sc); name != "connected" {
		t.Fatalf("handshake = %s", name)
	}

	cancel()
	<-hub.Done()

	done := make(chan struct{})
	go func() {
		for sc.Scan() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not end after hub stop")
	}
}
