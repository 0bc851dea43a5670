// Package app assembles the queue engine from configuration. Both binaries
// share it so the server and the operator CLI see the same store, counter
// backend and tuning.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-queue-backend/internal/config"
	"github.com/tbourn/go-queue-backend/internal/repo"
	"github.com/tbourn/go-queue-backend/internal/sequence"
	"github.com/tbourn/go-queue-backend/internal/services"
)

// OpenStore opens the SQLite database at cfg.DBPath and migrates the schema.
func OpenStore(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// NewAllocator returns the ticket counter selected by SEQUENCE_BACKEND. The
// returned close func releases the backend's connections.
func NewAllocator(ctx context.Context, cfg config.Config, db *gorm.DB) (sequence.Allocator, func() error, error) {
	switch cfg.Queue.SequenceBackend {
	case "redis":
		client, err := sequence.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("sequence redis: %w", err)
		}
		log.Info().Str("backend", "redis").Msg("sequence allocator ready")
		return sequence.NewRedisAllocator(client), client.Close, nil
	default:
		return sequence.NewSQLAllocator(db), func() error { return nil }, nil
	}
}

// NewQueueService builds the engine over db and alloc, tuned by cfg.Queue.
// pub may be nil.
func NewQueueService(cfg config.Config, db *gorm.DB, alloc sequence.Allocator, pub services.Publisher) *services.QueueService {
	q := cfg.Queue
	est := services.NewEstimator(q.DefaultServiceTime, q.EstimateMin, q.EstimateMax, q.SmoothingFactor)
	svc := services.NewQueueService(db, alloc, est, pub)
	svc.DefaultProvider = q.DefaultProvider
	svc.Location = cfg.Location()
	svc.UniqueParticipant = q.UniqueParticipant
	svc.MaxRetries = q.MaxRetries
	svc.IdempotencyTTL = cfg.IdempotencyTTL
	return svc
}
