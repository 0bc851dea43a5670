package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

const day = "2025-06-02"

var base = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func mkEntry(id string, seq int64, ref string, s domain.Status) *domain.QueueEntry {
	created := base.Add(time.Duration(seq) * time.Minute)
	return &domain.QueueEntry{
		ID: id, Day: day, ProviderKey: "p", SequenceNumber: seq, ParticipantRef: ref,
		Status: s, CreatedAt: created, UpdatedAt: created,
	}
}

func TestCreateAndGetEntry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := mkEntry("e1", 1, "alice", domain.StatusPending)
	if err := CreateEntry(ctx, db, e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	got, err := GetEntry(ctx, db, "e1")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.SequenceNumber != 1 || got.Status != domain.StatusPending || got.Version != 1 || !got.CreatedAt.Equal(e.CreatedAt) {
		t.Fatalf("unexpected readback: %+v", got)
	}
	if _, err := GetEntry(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListQueue_ListOpen_Ordering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, e := range []*domain.QueueEntry{
		mkEntry("c", 3, "carol", domain.StatusReserved),
		mkEntry("a", 1, "alice", domain.StatusCompleted),
		mkEntry("b", 2, "bob", domain.StatusInService),
		mkEntry("d", 4, "dave", domain.StatusPending),
	} {
		if err := CreateEntry(ctx, db, e); err != nil {
			t.Fatalf("seed %s: %v", e.ID, err)
		}
	}
	other := mkEntry("x", 1, "xavier", domain.StatusPending)
	other.ProviderKey = "q"
	if err := CreateEntry(ctx, db, other); err != nil {
		t.Fatalf("seed other provider: %v", err)
	}

	all, err := ListQueue(ctx, db, day, "p")
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(all) != 4 || all[0].ID != "a" || all[3].ID != "d" {
		t.Fatalf("ListQueue order unexpected: %+v", ids(all))
	}

	open, err := ListOpen(ctx, db, day, "p")
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if got := ids(open); len(got) != 3 || got[0] != "b" || got[1] != "c" || got[2] != "d" {
		t.Fatalf("ListOpen unexpected: %v", got)
	}

	ahead, err := CountAhead(ctx, db, &open[2])
	if err != nil || ahead != 2 {
		t.Fatalf("CountAhead = %d, %v; want 2", ahead, err)
	}

	svc, err := InService(ctx, db, day, "p")
	if err != nil || svc.ID != "b" {
		t.Fatalf("InService = %+v, %v", svc, err)
	}
	if _, err := InService(ctx, db, day, "q"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for idle provider, got %v", err)
	}

	sweep, err := ListSweepable(ctx, db)
	if err != nil {
		t.Fatalf("ListSweepable: %v", err)
	}
	if got := ids(sweep); len(got) != 3 || got[0] != "c" || got[1] != "d" || got[2] != "x" {
		t.Fatalf("ListSweepable unexpected: %v", got)
	}
}

func TestParticipantQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := mkEntry("old", 1, "alice", domain.StatusCompleted)
	old.Day = "2025-06-01"
	manual := mkEntry("m", 2, "alice", domain.StatusPending)
	manual.Manual = true
	for _, e := range []*domain.QueueEntry{old, manual, mkEntry("b", 3, "bob", domain.StatusPending)} {
		if err := CreateEntry(ctx, db, e); err != nil {
			t.Fatalf("seed %s: %v", e.ID, err)
		}
	}

	has, err := HasOpenForParticipant(ctx, db, day, "p", "alice")
	if err != nil || has {
		t.Fatalf("manual entries do not count: has=%v err=%v", has, err)
	}
	has, err = HasOpenForParticipant(ctx, db, day, "p", "bob")
	if err != nil || !has {
		t.Fatalf("bob holds an open entry: has=%v err=%v", has, err)
	}

	list, err := ListByParticipant(ctx, db, "alice", 0)
	if err != nil {
		t.Fatalf("ListByParticipant: %v", err)
	}
	if got := ids(list); len(got) != 2 || got[0] != "m" || got[1] != "old" {
		t.Fatalf("most recent first expected, got %v", got)
	}
	list, _ = ListByParticipant(ctx, db, "alice", 1)
	if len(list) != 1 {
		t.Fatalf("limit not applied: %d", len(list))
	}
}

func TestUpdateEntry_ConditionalOnVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := mkEntry("e1", 1, "alice", domain.StatusPending)
	if err := CreateEntry(ctx, db, e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	// Two readers of the same version.
	r1, _ := GetEntry(ctx, db, "e1")
	r2, _ := GetEntry(ctx, db, "e1")

	if _, err := domain.Apply(r1, domain.ActionReserve, base.Add(time.Hour)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := UpdateEntry(ctx, db, r1); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	if r1.Version != 2 {
		t.Fatalf("version should advance to 2, got %d", r1.Version)
	}

	if _, err := domain.Apply(r2, domain.ActionExpire, base.Add(time.Hour)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := UpdateEntry(ctx, db, r2); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale for lost race, got %v", err)
	}

	got, _ := GetEntry(ctx, db, "e1")
	if got.Status != domain.StatusReserved || got.ReservedAt == nil || got.ExpiredAt != nil {
		t.Fatalf("winner's write should stand: %+v", got)
	}
}

func TestUpdateEstimatedServiceAt_KeepsUpdatedAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := mkEntry("e1", 1, "alice", domain.StatusPending)
	if err := CreateEntry(ctx, db, e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	eta := base.Add(30 * time.Minute)
	e.EstimatedServiceAt = &eta
	if err := UpdateEstimatedServiceAt(ctx, db, e); err != nil {
		t.Fatalf("UpdateEstimatedServiceAt: %v", err)
	}
	got, _ := GetEntry(ctx, db, "e1")
	if got.EstimatedServiceAt == nil || !got.EstimatedServiceAt.Equal(eta) {
		t.Fatalf("eta not persisted: %+v", got.EstimatedServiceAt)
	}
	if !got.UpdatedAt.Equal(e.UpdatedAt) || got.Version != 2 {
		t.Fatalf("updated_at should stay, version should bump: %+v", got)
	}

	e.EstimatedServiceAt = nil
	if err := UpdateEstimatedServiceAt(ctx, db, e); err != nil {
		t.Fatalf("clear eta: %v", err)
	}
	got, _ = GetEntry(ctx, db, "e1")
	if got.EstimatedServiceAt != nil {
		t.Fatalf("eta should be NULL after clear")
	}
}

func TestRenumber_Densifies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, e := range []*domain.QueueEntry{
		mkEntry("a", 2, "alice", domain.StatusPending),
		mkEntry("b", 5, "bob", domain.StatusPending),
		mkEntry("c", 9, "carol", domain.StatusPending),
	} {
		if err := CreateEntry(ctx, db, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	last, err := Renumber(ctx, db, day, "p", []string{"c", "a", "b"})
	if err != nil || last != 3 {
		t.Fatalf("Renumber = %d, %v", last, err)
	}
	all, _ := ListQueue(ctx, db, day, "p")
	if got := ids(all); got[0] != "c" || got[1] != "a" || got[2] != "b" || all[2].SequenceNumber != 3 {
		t.Fatalf("renumbered order unexpected: %v", got)
	}

	if _, err := Renumber(ctx, db, day, "p", []string{"c", "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func ids(es []domain.QueueEntry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestOpenDays(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	prev := mkEntry("prev", 1, "alice", domain.StatusPending)
	prev.Day = "2025-06-01"
	gone := mkEntry("gone", 1, "bob", domain.StatusCompleted)
	gone.Day = "2025-05-31"
	for _, e := range []*domain.QueueEntry{prev, gone, mkEntry("today", 1, "carol", domain.StatusReserved)} {
		if err := CreateEntry(ctx, db, e); err != nil {
			t.Fatalf("seed %s: %v", e.ID, err)
		}
	}

	days, err := OpenDays(ctx, db, "p")
	if err != nil {
		t.Fatalf("OpenDays: %v", err)
	}
	if len(days) != 2 || days[0] != "2025-06-01" || days[1] != day {
		t.Fatalf("OpenDays = %v", days)
	}
}
