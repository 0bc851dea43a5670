package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

// NextSequence atomically increments the (day, provider) counter and returns
// the new value. An absent counter behaves as zero, so the first call of a
// day returns 1. It is a single upsert statement; concurrent callers never
// observe the same value.
func NextSequence(ctx context.Context, db *gorm.DB, day, provider string, now time.Time) (int64, error) {
	var seq int64
	err := db.WithContext(ctx).Raw(
		`INSERT INTO sequence_counters (day, provider_key, seq, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(day, provider_key) DO UPDATE SET seq = seq + 1, updated_at = excluded.updated_at
		 RETURNING seq`,
		day, provider, now.UTC(),
	).Scan(&seq).Error
	return seq, err
}

// CurrentSequence returns the last issued number for (day, provider), or 0.
func CurrentSequence(ctx context.Context, db *gorm.DB, day, provider string) (int64, error) {
	var c domain.SequenceCounter
	err := db.WithContext(ctx).
		Where("day = ? AND provider_key = ?", day, provider).
		Limit(1).
		Find(&c).Error
	return c.Seq, err
}

// SetSequence overwrites the (day, provider) counter. Used after renumbering.
func SetSequence(ctx context.Context, db *gorm.DB, day, provider string, seq int64, now time.Time) error {
	c := domain.SequenceCounter{Day: day, ProviderKey: provider, Seq: seq, UpdatedAt: now.UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}, {Name: "provider_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"seq", "updated_at"}),
	}).Create(&c).Error
}
