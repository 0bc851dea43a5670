package services

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-queue-backend/internal/notify"
	"github.com/tbourn/go-queue-backend/internal/repo"
	"github.com/tbourn/go-queue-backend/internal/sequence"
)

var t0 = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type capture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capture) Publish(ev notify.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *capture) kinds() []notify.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Kind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

func (c *capture) reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

type fixture struct {
	svc    *QueueService
	clock  *clock
	events *capture
	alloc  *sequence.SQLAllocator
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()
	db := newTestDB(t)
	clk := &clock{t: start}

	est := NewEstimator(10*time.Minute, 3*time.Minute, 30*time.Minute, 0.2)
	est.Now = clk.Now
	alloc := sequence.NewSQLAllocator(db)
	alloc.Now = clk.Now
	events := &capture{}

	svc := NewQueueService(db, alloc, est, events)
	svc.Now = clk.Now
	svc.DefaultProvider = "desk"
	return &fixture{svc: svc, clock: clk, events: events, alloc: alloc}
}
