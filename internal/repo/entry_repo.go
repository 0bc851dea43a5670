// Package repo implements the data persistence layer for the queue engine.
// This file provides repository functions for the QueueEntry model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no lifecycle rules, only persistence and query composition.
//
// Error semantics:
//   - Missing rows return gorm.ErrRecordNotFound (exported as ErrNotFound).
//   - A conditional update that matched no row returns ErrStale.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStale is returned by conditional updates when the row changed (or
// left the expected state) since it was read.
var ErrStale = errors.New("stale write")

var openStatuses = []domain.Status{domain.StatusPending, domain.StatusReserved, domain.StatusInService}

// CreateEntry inserts e as-is. The caller assigns ID, Day, SequenceNumber
// and timestamps.
func CreateEntry(ctx context.Context, db *gorm.DB, e *domain.QueueEntry) error {
	if e.Version == 0 {
		e.Version = 1
	}
	return db.WithContext(ctx).Create(e).Error
}

// GetEntry fetches a single entry by ID, or ErrNotFound.
func GetEntry(ctx context.Context, db *gorm.DB, id string) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListQueue returns every entry of (day, provider), ordered by sequence number.
func ListQueue(ctx context.Context, db *gorm.DB, day, provider string) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	err := db.WithContext(ctx).
		Where("day = ? AND provider_key = ?", day, provider).
		Order("sequence_number asc").
		Find(&out).Error
	return out, err
}

// ListOpen returns the non-terminal entries of (day, provider), ordered by
// sequence number. This is the input of the ETA propagation pass.
func ListOpen(ctx context.Context, db *gorm.DB, day, provider string) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	err := db.WithContext(ctx).
		Where("day = ? AND provider_key = ? AND status IN ?", day, provider, openStatuses).
		Order("sequence_number asc").
		Find(&out).Error
	return out, err
}

// ListSweepable returns pending and reserved entries across all days and
// providers. The no-show cutoff is applied by the caller.
func ListSweepable(ctx context.Context, db *gorm.DB) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	err := db.WithContext(ctx).
		Where("status IN ?", []domain.Status{domain.StatusPending, domain.StatusReserved}).
		Order("day asc, provider_key asc, sequence_number asc").
		Find(&out).Error
	return out, err
}

// ListByParticipant returns a participant's entries, most recent first.
// limit <= 0 means no limit.
func ListByParticipant(ctx context.Context, db *gorm.DB, ref string, limit int) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	q := db.WithContext(ctx).
		Where("participant_ref = ?", ref).
		Order("day desc, sequence_number desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// HasOpenForParticipant reports whether ref already holds a non-terminal,
// non-manual entry in (day, provider).
func HasOpenForParticipant(ctx context.Context, db *gorm.DB, day, provider, ref string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("day = ? AND provider_key = ? AND participant_ref = ? AND manual = ? AND status IN ?",
			day, provider, ref, false, openStatuses).
		Count(&n).Error
	return n > 0, err
}

// CountAhead returns how many open entries of the same scope hold a lower
// sequence number than e.
func CountAhead(ctx context.Context, db *gorm.DB, e *domain.QueueEntry) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("day = ? AND provider_key = ? AND sequence_number < ? AND status IN ?",
			e.Day, e.ProviderKey, e.SequenceNumber, openStatuses).
		Count(&n).Error
	return n, err
}

// InService returns the entry currently in service for (day, provider), or
// ErrNotFound.
func InService(ctx context.Context, db *gorm.DB, day, provider string) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := db.WithContext(ctx).
		Where("day = ? AND provider_key = ? AND status = ?", day, provider, domain.StatusInService).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEntry writes every mutable column of e, conditioned on the version
// it was read at. On success e.Version is advanced. ErrStale means another
// writer got there first.
func UpdateEntry(ctx context.Context, db *gorm.DB, e *domain.QueueEntry) error {
	res := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("id = ? AND version = ?", e.ID, e.Version).
		Updates(map[string]any{
			"status":               e.Status,
			"reserved_at":          e.ReservedAt,
			"service_started_at":   e.ServiceStartedAt,
			"completed_at":         e.CompletedAt,
			"withdrawn_at":         e.WithdrawnAt,
			"expired_at":           e.ExpiredAt,
			"service_duration_ms":  e.ServiceDurationMs,
			"estimated_service_at": e.EstimatedServiceAt,
			"updated_at":           e.UpdatedAt,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	e.Version++
	return nil
}

// UpdateEstimatedServiceAt writes only the ETA column of e, conditioned on
// its version. It deliberately leaves updated_at alone so ETA refreshes do
// not count as lifecycle changes.
func UpdateEstimatedServiceAt(ctx context.Context, db *gorm.DB, e *domain.QueueEntry) error {
	res := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("id = ? AND version = ?", e.ID, e.Version).
		UpdateColumns(map[string]any{
			"estimated_service_at": e.EstimatedServiceAt,
			"version":              gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	e.Version++
	return nil
}

// Renumber re-densifies the sequence numbers of (day, provider) following
// the order of ids, which must list every entry of the scope. It returns the
// highest number assigned. Numbers are first moved out of the way so the
// unique (day, provider, sequence) index never sees a collision.
func Renumber(ctx context.Context, db *gorm.DB, day, provider string, ids []string) (int64, error) {
	tx := db.WithContext(ctx)
	if err := tx.Model(&domain.QueueEntry{}).
		Where("day = ? AND provider_key = ?", day, provider).
		UpdateColumn("sequence_number", gorm.Expr("-sequence_number")).Error; err != nil {
		return 0, err
	}
	var seq int64
	for _, id := range ids {
		seq++
		res := tx.Model(&domain.QueueEntry{}).
			Where("id = ? AND day = ? AND provider_key = ?", id, day, provider).
			UpdateColumns(map[string]any{
				"sequence_number": seq,
				"version":         gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, ErrNotFound
		}
	}
	return seq, nil
}

// OpenDays returns the distinct days on which provider still has open
// entries, oldest first.
func OpenDays(ctx context.Context, db *gorm.DB, provider string) ([]string, error) {
	var days []string
	err := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Distinct("day").
		Where("provider_key = ? AND status IN ?", provider, openStatuses).
		Order("day asc").
		Pluck("day", &days).Error
	return days, err
}
