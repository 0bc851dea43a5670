package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		QueueEntry{}.TableName():          "queue_entries",
		ServiceTimeEstimate{}.TableName(): "service_time_estimates",
		ServiceAvailability{}.TableName(): "service_availability",
		SequenceCounter{}.TableName():     "sequence_counters",
		Idempotency{}.TableName():         "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndConstraints(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&QueueEntry{}, &ServiceTimeEstimate{}, &ServiceAvailability{}, &SequenceCounter{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, idx := range []string{"ux_entry_seq", "idx_entry_scope", "idx_entry_participant"} {
		if !m.HasIndex(&QueueEntry{}, idx) {
			t.Fatalf("expected index %s on queue_entries", idx)
		}
	}
	if !m.HasIndex(&Idempotency{}, "ux_provider_key") {
		t.Fatalf("expected unique index ux_provider_key on idempotency")
	}

	now := time.Now().UTC()
	e1 := &QueueEntry{ID: "e1", Day: "2025-01-02", ProviderKey: "p", SequenceNumber: 1, ParticipantRef: "a", Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(e1).Error; err != nil {
		t.Fatalf("insert e1: %v", err)
	}
	// Same (day, provider, seq) must be rejected.
	dup := &QueueEntry{ID: "e2", Day: "2025-01-02", ProviderKey: "p", SequenceNumber: 1, ParticipantRef: "b", Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on (day, provider_key, sequence_number)")
	}
	// Same number on another day is fine.
	other := &QueueEntry{ID: "e3", Day: "2025-01-03", ProviderKey: "p", SequenceNumber: 1, ParticipantRef: "b", Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert e3: %v", err)
	}
	// Unknown status violates the CHECK constraint.
	bad := &QueueEntry{ID: "e4", Day: "2025-01-03", ProviderKey: "p", SequenceNumber: 2, ParticipantRef: "c", Status: Status("waiting"), CreatedAt: now, UpdatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected CHECK violation for unknown status")
	}

	var got QueueEntry
	if err := db.First(&got, "id = ?", "e1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Version != 1 || got.Status != StatusPending || got.EstimatedServiceAt != nil {
		t.Fatalf("unexpected defaults on readback: %+v", got)
	}
}

func TestDayOf_UsesLocation(t *testing.T) {
	ts := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)
	if got := DayOf(ts, nil); got != "2025-03-01" {
		t.Fatalf("DayOf UTC = %q", got)
	}
	east := time.FixedZone("east", 2*60*60)
	if got := DayOf(ts, east); got != "2025-03-02" {
		t.Fatalf("DayOf +02:00 = %q", got)
	}
}

func TestNoShowReference(t *testing.T) {
	created := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	e := &QueueEntry{CreatedAt: created}
	if !e.NoShowReference().Equal(created) {
		t.Fatalf("expected CreatedAt when ReservedAt unset")
	}
	r := created.Add(time.Hour)
	e.ReservedAt = &r
	if !e.NoShowReference().Equal(r) {
		t.Fatalf("expected ReservedAt when set")
	}
}
