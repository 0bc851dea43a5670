// Package worker runs the no-show sweep as an asynq periodic task, for
// deployments with several queued instances sharing one database: the
// asynq scheduler enqueues a single sweep per interval and exactly one
// instance processes it, instead of every instance ticking on its own.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-queue-backend/internal/services"
)

// TypeSweep is the asynq task type of a sweep pass.
const TypeSweep = "queue:sweep"

// SweepPayload is the task body.
type SweepPayload struct {
	Reason string `json:"reason"`
}

// Sweeper runs one pass; services.Sweeper implements it.
type Sweeper interface {
	RunOnce(ctx context.Context) (services.SweepReport, error)
}

// NewSweepTask builds a sweep task. Sweeps are never retried: the next
// scheduled one picks up whatever this one missed.
func NewSweepTask(reason string, timeout time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(0)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypeSweep, body, opts...), nil
}

// Handler processes sweep tasks.
type Handler struct {
	Sweeper Sweeper
}

// HandleSweep implements asynq.HandlerFunc for TypeSweep.
func (h *Handler) HandleSweep(ctx context.Context, t *asynq.Task) error {
	var p SweepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("sweep payload: %v: %w", err, asynq.SkipRetry)
	}
	rep, err := h.Sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	log.Debug().
		Str("reason", p.Reason).
		Int("expired", rep.Expired).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Msg("asynq sweep done")
	return nil
}

// NewMux routes every task type this package knows.
func NewMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSweep, h.HandleSweep)
	return mux
}

// Runner owns the asynq server and scheduler.
type Runner struct {
	srv   *asynq.Server
	sched *asynq.Scheduler
}

// Start connects to redisURL, registers the sweep every interval and
// starts processing. loc sets the scheduler's clock zone.
func Start(redisURL string, interval time.Duration, loc *time.Location, h *Handler) (*Runner, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq redis url: %w", err)
	}
	logger := zerologAdapter{l: log.With().Str("component", "asynq").Logger()}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
		Logger:      logger,
	})
	sched := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: loc, Logger: logger})

	task, err := NewSweepTask("schedule", interval)
	if err != nil {
		return nil, err
	}
	if _, err := sched.Register(CronSpec(interval), task); err != nil {
		return nil, fmt.Errorf("asynq register sweep: %w", err)
	}

	if err := srv.Start(NewMux(h)); err != nil {
		return nil, fmt.Errorf("asynq server: %w", err)
	}
	if err := sched.Start(); err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("asynq scheduler: %w", err)
	}
	return &Runner{srv: srv, sched: sched}, nil
}

// Shutdown stops scheduling and waits for an in-flight sweep.
func (r *Runner) Shutdown() {
	r.sched.Shutdown()
	r.srv.Shutdown()
}

// CronSpec renders interval as a scheduler spec; sub-second or zero
// intervals fall back to one minute.
func CronSpec(interval time.Duration) string {
	if interval < time.Second {
		interval = time.Minute
	}
	return "@every " + interval.String()
}

// zerologAdapter implements asynq.Logger.
type zerologAdapter struct{ l zerolog.Logger }

func (a zerologAdapter) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a zerologAdapter) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
