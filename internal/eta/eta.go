// Package eta holds the pure estimation algorithms of the queue engine:
// exponential smoothing of the per-entry service duration and the anchor
// walk that assigns every waiting entry an absolute estimated service time.
//
// Functions here never touch storage or clocks; callers pass the snapshot,
// the current estimate and "now", and persist whatever Propagate reports as
// changed.
package eta

import (
	"math"
	"time"

	"github.com/tbourn/go-queue-backend/internal/domain"
)

// Smooth applies one EWMA step: round(alpha*observed + (1-alpha)*prev).
// alpha outside (0,1] is treated as 1.
func Smooth(prevMs, observedMs int64, alpha float64) int64 {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return int64(math.Round(alpha*float64(observedMs) + (1-alpha)*float64(prevMs)))
}

// Clamp bounds v into [minMs, maxMs]. A non-positive bound is ignored.
func Clamp(v, minMs, maxMs int64) int64 {
	if minMs > 0 && v < minMs {
		return minMs
	}
	if maxMs > 0 && v > maxMs {
		return maxMs
	}
	return v
}

// Result reports what a propagation pass did.
type Result struct {
	// Changed holds the entries whose EstimatedServiceAt was written,
	// in walk order.
	Changed []*domain.QueueEntry
	// AverageMs is the per-entry estimate the pass used.
	AverageMs int64
	// Anchor is the instant the next appended entry would be assigned.
	// Zero when the provider is not running.
	Anchor time.Time
}

// Propagate recomputes EstimatedServiceAt for the open entries of one
// (day, provider) scope. entries must be ordered by SequenceNumber
// ascending; they are mutated in place.
//
// When running is false every set ETA is cleared. Otherwise the anchor
// starts at now, or at the projected finish of the entry in service, and
// each pending entry takes the anchor and pushes it one average forward.
// A pending entry whose existing ETA is still more than half an average
// away keeps it, and the anchor continues from that kept value.
// The entry in service keeps an ETA pinned to ServiceStartedAt and never
// moves the anchor; the anchor already starts at its projected finish.
func Propagate(entries []*domain.QueueEntry, averageMs int64, running bool, now time.Time) Result {
	res := Result{AverageMs: averageMs}
	avg := time.Duration(averageMs) * time.Millisecond
	half := time.Duration(averageMs/2) * time.Millisecond

	if !running {
		for _, e := range entries {
			if unset(e) {
				res.Changed = append(res.Changed, e)
			}
		}
		return res
	}

	anchor := now
	for _, e := range entries {
		if e.Status == domain.StatusInService && e.ServiceStartedAt != nil {
			left := avg - now.Sub(*e.ServiceStartedAt)
			if left < 0 {
				left = 0
			}
			anchor = now.Add(left)
			break
		}
	}

	for _, e := range entries {
		switch e.Status {
		case domain.StatusInService:
			// Pinned to its start; the anchor already is its projected finish.
			if e.ServiceStartedAt != nil && set(e, *e.ServiceStartedAt) {
				res.Changed = append(res.Changed, e)
			}
		case domain.StatusReserved:
			if unset(e) {
				res.Changed = append(res.Changed, e)
			}
			anchor = anchor.Add(avg)
		case domain.StatusPending:
			if e.EstimatedServiceAt != nil && e.EstimatedServiceAt.Sub(now) > half {
				anchor = e.EstimatedServiceAt.Add(avg)
				continue
			}
			if set(e, anchor) {
				res.Changed = append(res.Changed, e)
			}
			anchor = anchor.Add(avg)
		default:
			if unset(e) {
				res.Changed = append(res.Changed, e)
			}
		}
	}
	res.Anchor = anchor
	return res
}

func set(e *domain.QueueEntry, at time.Time) bool {
	if e.EstimatedServiceAt != nil && e.EstimatedServiceAt.Equal(at) {
		return false
	}
	v := at
	e.EstimatedServiceAt = &v
	return true
}

func unset(e *domain.QueueEntry) bool {
	if e.EstimatedServiceAt == nil {
		return false
	}
	e.EstimatedServiceAt = nil
	return true
}
