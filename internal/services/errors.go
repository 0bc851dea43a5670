// Package services defines the business logic of the queue engine.
// This file centralizes the service-level error values so that they can be
// consistently returned by service methods and checked by callers with
// errors.Is.
//
// Translation into HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"

	"github.com/tbourn/go-queue-backend/internal/domain"
	"github.com/tbourn/go-queue-backend/internal/repo"
)

var (
	// ErrNotFound indicates an unknown entry or provider.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when an action is not permitted from
	// the entry's current status.
	ErrInvalidTransition = domain.ErrInvalidTransition

	// ErrDuplicateActive is returned when a participant already holds an
	// open entry in the same (day, provider) queue.
	ErrDuplicateActive = errors.New("participant already holds an active entry")

	// ErrProviderBusy is returned when service is begun while another entry
	// of the same queue is in service.
	ErrProviderBusy = errors.New("another entry is in service")

	// ErrConcurrencyConflict is returned once optimistic retries are exhausted.
	ErrConcurrencyConflict = errors.New("concurrent modification")

	// ErrInvalidInput is returned for malformed arguments (bad day, empty
	// participant reference).
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable wraps persistence faults.
	ErrStoreUnavailable = errors.New("store unavailable")
)

var serviceErrors = []error{
	ErrNotFound, ErrInvalidTransition, ErrDuplicateActive, ErrProviderBusy,
	ErrConcurrencyConflict, ErrInvalidInput, ErrStoreUnavailable,
}

// classify maps repository errors onto the service error set. Errors that
// already belong to it pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range serviceErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// retryable reports whether a failed mutation should run again from a
// fresh read.
func retryable(err error) bool {
	return errors.Is(err, repo.ErrStale) ||
		errors.Is(err, repo.ErrDuplicate) ||
		repo.IsBusy(err) ||
		repo.IsUniqueViolation(err)
}

// resultLabel is the metrics label of a transition outcome.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrProviderBusy):
		return "provider_busy"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}
