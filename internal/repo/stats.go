// Package repo implements the data persistence layer for the queue engine.
// This file provides small aggregate queries used for conditional responses
// (ETag generation) in the HTTP layer and for the queue gauges.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

// QueueStats returns aggregate metadata for the entries of (day, provider):
// the row count, the sum of row versions, and the greatest UpdatedAt.
//
// Every write to an entry (including ETA refreshes) bumps its version, so
// (count, versions) changes whenever the snapshot does. When the scope is
// empty, count and versions are 0 and maxUpdatedAt is nil.
func QueueStats(ctx context.Context, db *gorm.DB, day, provider string) (count, versions int64, maxUpdatedAt *time.Time, err error) {
	q := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.QueueEntry{}).Where("day = ? AND provider_key = ?", day, provider)
	}

	var agg struct {
		N int64
		V int64
	}
	if err = q().Select("COUNT(*) AS n, COALESCE(SUM(version), 0) AS v").Scan(&agg).Error; err != nil {
		return 0, 0, nil, err
	}
	if agg.N == 0 {
		return 0, 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, nil, err
	}
	return agg.N, agg.V, &row.UpdatedAt, nil
}

// CountByStatus returns the number of entries per status in (day, provider).
// Statuses with no rows are absent from the map.
func CountByStatus(ctx context.Context, db *gorm.DB, day, provider string) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Select("status, COUNT(*) AS n").
		Where("day = ? AND provider_key = ?", day, provider).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Status]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
