// Command queued serves the walk-in queue HTTP API.
//
// @title          Walk-in Queue API
// @version        1.0
// @description    Ticket issuance, ordered queue snapshots, lifecycle actions and ETAs for walk-in queues.
// @BasePath       /api/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-queue-backend/internal/app"
	"github.com/tbourn/go-queue-backend/internal/config"
	httpapi "github.com/tbourn/go-queue-backend/internal/http"
	"github.com/tbourn/go-queue-backend/internal/notify"
	"github.com/tbourn/go-queue-backend/internal/observability"
	"github.com/tbourn/go-queue-backend/internal/services"
	"github.com/tbourn/go-queue-backend/internal/sysutil"
	"github.com/tbourn/go-queue-backend/internal/worker"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := sysutil.LoadDotenv(); err != nil {
		fmt.Fprintln(os.Stderr, "dotenv:", err)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty, os.Stderr)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("queued stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

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

	// Change notifications
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := notify.NewHub(notify.Options{
		InboundBuffer:    cfg.Notify.InboundBuffer,
		SubscriberBuffer: cfg.Notify.SubscriberBuffer,
		Policy:           notify.ParseDropPolicy(cfg.Notify.DropPolicy),
		OnDrop: func(ev notify.Event, reason string) {
			observability.NotifyDropped(string(ev.Kind))
		},
	})
	go hub.Run(hubCtx)

	var bridges sync.WaitGroup
	startBridge := func(fw notify.Forwarder) {
		bridges.Add(1)
		go func() {
			defer bridges.Done()
			notify.Bridge(hubCtx, hub, fw)
		}()
		log.Info().Str("forwarder", fw.Name()).Msg("notification forwarder started")
	}
	if cfg.Notify.PubNubPublishKey != "" {
		pn, err := notify.NewPubNubForwarder(notify.PubNubConfig{
			PublishKey:   cfg.Notify.PubNubPublishKey,
			SubscribeKey: cfg.Notify.PubNubSubscribeKey,
			SecretKey:    cfg.Notify.PubNubSecretKey,
			UserID:       cfg.Notify.PubNubUserID,
		})
		if err != nil {
			return fmt.Errorf("pubnub: %w", err)
		}
		startBridge(pn)
	}
	if cfg.Notify.AMQPURL != "" {
		mq := notify.NewAMQPForwarder(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange)
		defer func() { _ = mq.Close() }()
		startBridge(mq)
	}

	svc := app.NewQueueService(cfg, db, alloc, hub)

	// No-show sweep
	sweeper := services.NewSweeper(svc, cfg.Queue.SweepInterval, cfg.Queue.NoShowThreshold)
	var runner *worker.Runner
	switch cfg.Queue.SweepBackend {
	case "asynq":
		runner, err = worker.Start(cfg.RedisURL, cfg.Queue.SweepInterval, cfg.Location(), &worker.Handler{Sweeper: sweeper})
		if err != nil {
			return err
		}
	default:
		sweeper.Start(ctx)
	}

	// HTTP
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, hub, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", ver).
			Str("sequence", cfg.Queue.SequenceBackend).
			Str("sweep", cfg.Queue.SweepBackend).
			Msg("queued listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// Event streams end once the hub stops, so stop it before draining HTTP.
	stopHub()
	<-hub.Done()

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	if runner != nil {
		runner.Shutdown()
	} else {
		sweeper.Stop()
	}
	bridges.Wait()
	return nil
}
