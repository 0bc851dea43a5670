package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

func TestEstimate_RoundTripAndUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetEstimate(ctx, db, "p"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}
	est := &domain.ServiceTimeEstimate{ProviderKey: "p", AverageMs: 600000, SmoothingFactor: 0.2, Samples: 1, UpdatedAt: base}
	if err := SaveEstimate(ctx, db, est); err != nil {
		t.Fatalf("SaveEstimate insert: %v", err)
	}
	est.AverageMs, est.Samples = 720000, 2
	if err := SaveEstimate(ctx, db, est); err != nil {
		t.Fatalf("SaveEstimate update: %v", err)
	}
	got, err := GetEstimate(ctx, db, "p")
	if err != nil {
		t.Fatalf("GetEstimate: %v", err)
	}
	if got.AverageMs != 720000 || got.Samples != 2 || got.SmoothingFactor != 0.2 {
		t.Fatalf("unexpected estimate: %+v", got)
	}
}

func TestAvailability_RoundTripAndUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetAvailability(ctx, db, "p"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	started := base
	av := &domain.ServiceAvailability{ProviderKey: "p", Running: true, StartedAt: &started, UpdatedAt: base}
	if err := SaveAvailability(ctx, db, av); err != nil {
		t.Fatalf("SaveAvailability: %v", err)
	}
	stopped := base.Add(time.Hour)
	av.Running, av.StoppedAt, av.UpdatedAt = false, &stopped, stopped
	if err := SaveAvailability(ctx, db, av); err != nil {
		t.Fatalf("SaveAvailability update: %v", err)
	}
	got, err := GetAvailability(ctx, db, "p")
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if got.Running || got.StartedAt == nil || got.StoppedAt == nil || !got.StoppedAt.Equal(stopped) {
		t.Fatalf("unexpected availability: %+v", got)
	}
}

func TestListProviders_Union(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := CreateEntry(ctx, db, mkEntry("a", 1, "alice", domain.StatusPending)); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if err := SaveAvailability(ctx, db, &domain.ServiceAvailability{ProviderKey: "desk-2", UpdatedAt: base}); err != nil {
		t.Fatalf("seed availability: %v", err)
	}
	if err := SaveEstimate(ctx, db, &domain.ServiceTimeEstimate{ProviderKey: "p", AverageMs: 1, SmoothingFactor: 1, UpdatedAt: base}); err != nil {
		t.Fatalf("seed estimate: %v", err)
	}
	keys, err := ListProviders(ctx, db)
	if err != nil {
		t.Fatalf("ListProviders: %v", err)
	}
	if len(keys) != 2 || keys[0] != "desk-2" || keys[1] != "p" {
		t.Fatalf("unexpected providers: %v", keys)
	}
}
