// Command queuectl runs operator maintenance against the queue store:
// renumbering a day, resetting a provider's service-time estimate, and
// running one no-show sweep pass.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tbourn/go-queue-backend/internal/app"
	"github.com/tbourn/go-queue-backend/internal/config"
	"github.com/tbourn/go-queue-backend/internal/services"
	"github.com/tbourn/go-queue-backend/internal/sysutil"
)

const usage = `queuectl: maintenance for the walk-in queue store.

Usage:
  queuectl renumber --provider KEY [--day YYYY-MM-DD]
  queuectl reset-estimate --provider KEY
  queuectl sweep [--threshold 30m]
  queuectl providers

Configuration is read from the environment (and .env) exactly as queued
reads it; DB_PATH selects the store.
`

var errUsage = errors.New("usage")

func main() {
	if err := sysutil.LoadDotenv(); err != nil {
		fmt.Fprintln(os.Stderr, "dotenv:", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	fs := pflag.NewFlagSet("queuectl "+cmd, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	provider := fs.StringP("provider", "p", "", "provider key")
	day := fs.StringP("day", "d", "", "service day (YYYY-MM-DD), default today")
	threshold := fs.Duration("threshold", 0, "no-show threshold, default QUEUE_NO_SHOW_THRESHOLD")
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// Keep stdout for results.
	sysutil.ConfigureLogging(cfg.LogLevel, true, os.Stderr)

	db, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	alloc, closeAlloc, err := app.NewAllocator(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer func() { _ = closeAlloc() }()
	svc := app.NewQueueService(cfg, db, alloc, nil)

	switch cmd {
	case "renumber":
		if *provider == "" {
			return fmt.Errorf("%w: --provider is required", errUsage)
		}
		d := *day
		if d == "" {
			d = svc.Today()
		}
		last, err := svc.Renumber(ctx, d, *provider)
		if err != nil {
			return err
		}
		return emit(out, map[string]any{"provider_key": *provider, "day": d, "last_sequence": last})

	case "reset-estimate":
		if *provider == "" {
			return fmt.Errorf("%w: --provider is required", errUsage)
		}
		est, err := svc.ResetEstimate(ctx, *provider)
		if err != nil {
			return err
		}
		return emit(out, est)

	case "sweep":
		th := cfg.Queue.NoShowThreshold
		if *threshold > 0 {
			th = *threshold
		}
		rep, err := services.NewSweeper(svc, cfg.Queue.SweepInterval, th).RunOnce(ctx)
		if err != nil {
			return err
		}
		return emit(out, rep)

	case "providers":
		ps, err := svc.Providers(ctx)
		if err != nil {
			return err
		}
		if ps == nil {
			ps = []string{}
		}
		return emit(out, ps)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func emit(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
