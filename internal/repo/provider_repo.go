package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

// GetEstimate returns the stored estimate of provider, or ErrNotFound when
// no completion has been observed yet.
func GetEstimate(ctx context.Context, db *gorm.DB, provider string) (*domain.ServiceTimeEstimate, error) {
	var est domain.ServiceTimeEstimate
	if err := db.WithContext(ctx).Where("provider_key = ?", provider).First(&est).Error; err != nil {
		return nil, err
	}
	return &est, nil
}

// SaveEstimate inserts or replaces the estimate of est.ProviderKey.
func SaveEstimate(ctx context.Context, db *gorm.DB, est *domain.ServiceTimeEstimate) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"average_ms", "smoothing_factor", "samples", "updated_at"}),
	}).Create(est).Error
}

// GetAvailability returns the availability record of provider, or ErrNotFound.
func GetAvailability(ctx context.Context, db *gorm.DB, provider string) (*domain.ServiceAvailability, error) {
	var av domain.ServiceAvailability
	if err := db.WithContext(ctx).Where("provider_key = ?", provider).First(&av).Error; err != nil {
		return nil, err
	}
	return &av, nil
}

// SaveAvailability inserts or replaces the availability of av.ProviderKey.
func SaveAvailability(ctx context.Context, db *gorm.DB, av *domain.ServiceAvailability) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"running", "started_at", "stopped_at", "updated_at"}),
	}).Create(av).Error
}

// ListProviders returns every provider key known to the store: those with
// entries, an estimate, or an availability record.
func ListProviders(ctx context.Context, db *gorm.DB) ([]string, error) {
	var keys []string
	err := db.WithContext(ctx).Raw(
		`SELECT provider_key FROM queue_entries
		 UNION SELECT provider_key FROM service_availability
		 UNION SELECT provider_key FROM service_time_estimates
		 ORDER BY provider_key`,
	).Scan(&keys).Error
	return keys, err
}
