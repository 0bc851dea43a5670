package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-queue-backend/internal/domain"
	"github.com/tbourn/go-queue-backend/internal/observability"
	"github.com/tbourn/go-queue-backend/internal/repo"
)

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Scanned  int   `json:"scanned"`
	Expired  int   `json:"expired"`
	Rollover int   `json:"rollover"` // subset of Expired left over from earlier days
	Skipped  int   `json:"skipped"` // stale when listed, served or withdrawn before the write
	Failed   int   `json:"failed"`
	Purged   int64 `json:"purged"` // expired idempotency records removed
}

// Sweeper periodically expires pending and reserved entries that have
// waited longer than Threshold, and entries left open from earlier days.
// Each expiry is an independent conditional transition through the
// QueueService, so a concurrent legitimate transition always wins.
type Sweeper struct {
	Queue     *QueueService
	Interval  time.Duration
	Threshold time.Duration

	// test seam: runs between listing and the guarded expiry of a candidate
	beforeExpire func(ctx context.Context, e *domain.QueueEntry)

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper returns a sweeper; call Start to begin ticking.
func NewSweeper(q *QueueService, interval, threshold time.Duration) *Sweeper {
	return &Sweeper{
		Queue:     q,
		Interval:  interval,
		Threshold: threshold,
		stopChan:  make(chan struct{}),
	}
}

// Start runs a pass every Interval until Stop is called or ctx ends.
func (w *Sweeper) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop halts the ticker and waits for an in-flight pass to finish.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *Sweeper) loop(ctx context.Context) {
	defer w.wg.Done()

	interval := w.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("sweep pass failed")
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single pass. Per-entry failures are logged and
// counted; only a failure to list candidates aborts the pass.
func (w *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	q := w.Queue

	candidates, err := repo.ListSweepable(ctx, q.DB)
	if err != nil {
		return rep, classify(err)
	}
	rep.Scanned = len(candidates)

	now := q.now()
	today := q.Today()
	cutoff := now.Add(-w.Threshold)
	stale := func(e *domain.QueueEntry) bool {
		if e.Status != domain.StatusPending && e.Status != domain.StatusReserved {
			return false
		}
		return e.Day < today || e.NoShowReference().Before(cutoff)
	}

	for i := range candidates {
		c := &candidates[i]
		if !stale(c) {
			continue
		}
		if w.beforeExpire != nil {
			w.beforeExpire(ctx, c)
		}
		e, err := q.transition(ctx, c.ID, domain.ActionExpire, stale)
		observability.RecordTransition(string(domain.ActionExpire), resultLabel(err))
		if err != nil {
			rep.Failed++
			log.Warn().
				Err(err).
				Str("entry_id", c.ID).
				Str("provider_key", c.ProviderKey).
				Str("day", c.Day).
				Msg("sweep: expire failed")
			continue
		}
		if e == nil {
			rep.Skipped++
			continue // changed underneath us
		}
		rep.Expired++
		if c.Day < today {
			rep.Rollover++
		}
	}
	observability.AddSweepExpired(rep.Expired)

	if n, err := repo.PurgeIdempotency(ctx, q.DB, now); err != nil {
		log.Warn().Err(err).Msg("sweep: idempotency purge failed")
	} else {
		rep.Purged = n
	}

	if rep.Expired > 0 || rep.Skipped > 0 || rep.Failed > 0 {
		log.Info().
			Int("scanned", rep.Scanned).
			Int("expired", rep.Expired).
			Int("rollover", rep.Rollover).
			Int("skipped", rep.Skipped).
			Int("failed", rep.Failed).
			Msg("sweep pass")
	}
	return rep, nil
}
