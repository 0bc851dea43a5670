package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-queue-backend/internal/config"
	"github.com/tbourn/go-queue-backend/internal/sequence"
	"github.com/tbourn/go-queue-backend/internal/services"
)

func testConfig(t *testing.T) config.Config {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "app.db"))
	t.Setenv("QUEUE_TIMEZONE", "Europe/London")
	t.Setenv("QUEUE_DEFAULT_PROVIDER", "front-desk")
	t.Setenv("QUEUE_UNIQUE_PARTICIPANT", "false")
	t.Setenv("QUEUE_MAX_RETRIES", "5")
	t.Setenv("IDEMPOTENCY_TTL", "2h")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestOpenStoreAndSQLAllocator(t *testing.T) {
	cfg := testConfig(t)
	db, err := OpenStore(cfg)
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	alloc, closeFn, err := NewAllocator(context.Background(), cfg, db)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.IsType(t, &sequence.SQLAllocator{}, alloc)

	n, err := alloc.Allocate(context.Background(), "2025-06-02", "desk")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpenStore_MissingDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = filepath.Join(t.TempDir(), "nope", "app.db")
	_, err := OpenStore(cfg)
	assert.Error(t, err)
}

func TestNewAllocator_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Queue.SequenceBackend = "redis"
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := NewAllocator(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestNewQueueService_AppliesConfig(t *testing.T) {
	cfg := testConfig(t)
	db, err := OpenStore(cfg)
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc := NewQueueService(cfg, db, sequence.NewSQLAllocator(db), nil)
	assert.Equal(t, "front-desk", svc.DefaultProvider)
	assert.Equal(t, "Europe/London", svc.Location.String())
	assert.False(t, svc.UniqueParticipant)
	assert.Equal(t, 5, svc.MaxRetries)
	assert.Equal(t, 2*time.Hour, svc.IdempotencyTTL)

	// Unique rule is off, so the same participant may hold two tickets.
	ctx := context.Background()
	_, _, err = svc.CreateEntry(ctx, services.CreateEntryInput{ParticipantRef: "alice"})
	require.NoError(t, err)
	e, _, err := svc.CreateEntry(ctx, services.CreateEntryInput{ParticipantRef: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "front-desk", e.ProviderKey)
	assert.Equal(t, int64(2), e.SequenceNumber)
}
