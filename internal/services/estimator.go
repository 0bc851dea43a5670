package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-queue-backend/internal/domain"
	"github.com/tbourn/go-queue-backend/internal/eta"
	"github.com/tbourn/go-queue-backend/internal/repo"
)

// Estimator maintains the smoothed per-entry service duration of each
// provider. State lives in the service_time_estimates table so it is shared
// by every request and survives restarts; methods take the *gorm.DB to use
// so they can join a caller's transaction.
type Estimator struct {
	Default time.Duration // used until the first completion
	Min     time.Duration // lower clamp of the smoothed value
	Max     time.Duration // upper clamp of the smoothed value
	Alpha   float64       // weight of the newest observation
	Now     func() time.Time
}

// NewEstimator returns an estimator with the given bounds.
func NewEstimator(def, minD, maxD time.Duration, alpha float64) *Estimator {
	return &Estimator{Default: def, Min: minD, Max: maxD, Alpha: alpha, Now: time.Now}
}

// Current returns the provider's average in milliseconds, or the default
// when no completion has been observed.
func (e *Estimator) Current(ctx context.Context, db *gorm.DB, provider string) (int64, error) {
	est, err := e.Get(ctx, db, provider)
	if err != nil {
		return 0, err
	}
	return est.AverageMs, nil
}

// Get returns the stored estimate, or an unsaved default one (Samples 0).
func (e *Estimator) Get(ctx context.Context, db *gorm.DB, provider string) (*domain.ServiceTimeEstimate, error) {
	est, err := repo.GetEstimate(ctx, db, provider)
	if errors.Is(err, repo.ErrNotFound) {
		return e.fresh(provider), nil
	}
	return est, err
}

// Observe folds one completed service duration into the estimate:
// average = clamp(alpha*observed + (1-alpha)*average).
func (e *Estimator) Observe(ctx context.Context, db *gorm.DB, provider string, durationMs int64) (*domain.ServiceTimeEstimate, error) {
	est, err := e.Get(ctx, db, provider)
	if err != nil {
		return nil, err
	}
	est.AverageMs = eta.Clamp(eta.Smooth(est.AverageMs, durationMs, e.Alpha), e.Min.Milliseconds(), e.Max.Milliseconds())
	est.SmoothingFactor = e.alpha()
	est.Samples++
	est.UpdatedAt = e.now()
	if err := repo.SaveEstimate(ctx, db, est); err != nil {
		return nil, err
	}
	return est, nil
}

// Reset stores the default average for provider and clears its sample count.
func (e *Estimator) Reset(ctx context.Context, db *gorm.DB, provider string) (*domain.ServiceTimeEstimate, error) {
	est := e.fresh(provider)
	if err := repo.SaveEstimate(ctx, db, est); err != nil {
		return nil, err
	}
	return est, nil
}

func (e *Estimator) fresh(provider string) *domain.ServiceTimeEstimate {
	return &domain.ServiceTimeEstimate{
		ProviderKey:     provider,
		AverageMs:       e.Default.Milliseconds(),
		SmoothingFactor: e.alpha(),
		UpdatedAt:       e.now(),
	}
}

func (e *Estimator) alpha() float64 {
	if e.Alpha <= 0 || e.Alpha > 1 {
		return 1
	}
	return e.Alpha
}

func (e *Estimator) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}
