package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-queue-backend/internal/services"
)

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) RunOnce(context.Context) (services.SweepReport, error) {
	f.calls++
	return services.SweepReport{Expired: 2}, f.err
}

func TestNewSweepTask(t *testing.T) {
	task, err := NewSweepTask("manual", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, TypeSweep, task.Type())
	assert.JSONEq(t, `{"reason":"manual"}`, string(task.Payload()))
}

func TestHandleSweep(t *testing.T) {
	fs := &fakeSweeper{}
	h := &Handler{Sweeper: fs}
	task, err := NewSweepTask("schedule", 0)
	require.NoError(t, err)

	require.NoError(t, h.HandleSweep(context.Background(), task))
	assert.Equal(t, 1, fs.calls)

	fs.err = errors.New("db down")
	assert.ErrorContains(t, h.HandleSweep(context.Background(), task), "db down")
}

func TestHandleSweep_BadPayloadSkipsRetry(t *testing.T) {
	fs := &fakeSweeper{}
	h := &Handler{Sweeper: fs}

	err := h.HandleSweep(context.Background(), asynq.NewTask(TypeSweep, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, 0, fs.calls)
}

func TestNewMux_RoutesSweep(t *testing.T) {
	fs := &fakeSweeper{}
	mux := NewMux(&Handler{Sweeper: fs})
	task, err := NewSweepTask("mux", 0)
	require.NoError(t, err)

	require.NoError(t, mux.ProcessTask(context.Background(), task))
	assert.Equal(t, 1, fs.calls)
}

func TestCronSpec(t *testing.T) {
	assert.Equal(t, "@every 1m0s", CronSpec(time.Minute))
	assert.Equal(t, "@every 30s", CronSpec(30*time.Second))
	assert.Equal(t, "@every 1m0s", CronSpec(0))
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := zerologAdapter{l: zerolog.New(&buf)}
	a.Info("scheduler ", "started")
	a.Warn("lag")
	assert.Contains(t, buf.String(), `"message":"scheduler started"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}
