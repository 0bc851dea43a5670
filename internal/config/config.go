// Package config loads queued and queuectl settings from the environment.
//
// Every variable has a default. A variable that is set but does not parse
// is an error rather than a silent fallback, and Load reports all problems
// at once so a broken deployment is fixed in one round.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // QUEUE_TIMEZONE must resolve on minimal images
)

// CORSConfig lists the browser origins allowed to call the API; empty allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-queue-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// QueueConfig tunes the ordering and ETA engine.
type QueueConfig struct {
	DefaultProvider    string        // provider key used when none is given
	Timezone           string        // IANA zone that defines the service day
	DefaultServiceTime time.Duration // initial per-entry estimate
	SmoothingFactor    float64       // EWMA alpha in (0,1]
	EstimateMin        time.Duration // lower clamp for the smoothed estimate
	EstimateMax        time.Duration // upper clamp for the smoothed estimate
	SweepInterval      time.Duration // no-show sweep period
	NoShowThreshold    time.Duration // age after which pending/reserved entries expire
	UniqueParticipant  bool          // one open entry per participant per day
	MaxRetries         int           // retries on optimistic write conflicts
	SequenceBackend    string        // sql|redis
	SweepBackend       string        // ticker|asynq
}

// NotifyConfig controls the change-notification hub and its forwarders.
type NotifyConfig struct {
	SubscriberBuffer int    // per-subscriber channel capacity
	InboundBuffer    int    // producer-side channel capacity
	DropPolicy       string // drop_newest|drop_oldest

	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	AMQPURL      string
	AMQPExchange string
}

// Config is the full process configuration.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // 0 disables (required for SSE streams)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	ShutdownTimeout   time.Duration // graceful shutdown budget

	// Logging / Docs
	LogLevel       string // trace|debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBPath   string // SQLite path
	RedisURL string // redis://host:port/db, used by the redis sequence backend and asynq

	// Rate limiting (ticket issuance)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency window for replayed ticket issuance
	IdempotencyTTL time.Duration

	Queue  QueueConfig
	Notify NotifyConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad is Load for tests and tools that cannot continue without config.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, normalizes and validates the result. The
// returned error joins every malformed or out-of-range setting.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 0),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", time.Minute),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),
		ShutdownTimeout:   e.dur("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel:       strings.ToLower(strings.TrimSpace(e.str("LOG_LEVEL", "info"))),
		LogPretty:      e.boolean("LOG_PRETTY", false),
		SwaggerEnabled: e.boolean("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBPath:   e.str("DB_PATH", "queue.db"),
		RedisURL: e.str("REDIS_URL", "redis://localhost:6379/0"),

		RateRPS:   e.float("RATE_RPS", 2),
		RateBurst: e.integer("RATE_BURST", 5),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.boolean("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		Queue: QueueConfig{
			DefaultProvider:    strings.TrimSpace(e.str("QUEUE_DEFAULT_PROVIDER", "global")),
			Timezone:           e.str("QUEUE_TIMEZONE", "UTC"),
			DefaultServiceTime: e.dur("QUEUE_DEFAULT_SERVICE_TIME", 10*time.Minute),
			SmoothingFactor:    e.float("QUEUE_SMOOTHING_FACTOR", 0.2),
			EstimateMin:        e.dur("QUEUE_ESTIMATE_MIN", 3*time.Minute),
			EstimateMax:        e.dur("QUEUE_ESTIMATE_MAX", 30*time.Minute),
			SweepInterval:      e.dur("QUEUE_SWEEP_INTERVAL", time.Minute),
			NoShowThreshold:    e.dur("QUEUE_NO_SHOW_THRESHOLD", 30*time.Minute),
			UniqueParticipant:  e.boolean("QUEUE_UNIQUE_PARTICIPANT", true),
			MaxRetries:         e.integer("QUEUE_MAX_RETRIES", 3),
			SequenceBackend:    strings.ToLower(e.str("SEQUENCE_BACKEND", "sql")),
			SweepBackend:       strings.ToLower(e.str("SWEEP_BACKEND", "ticker")),
		},

		Notify: NotifyConfig{
			SubscriberBuffer: e.integer("NOTIFY_BUFFER", 64),
			InboundBuffer:    e.integer("NOTIFY_INBOUND_BUFFER", 1024),
			DropPolicy:       strings.ReplaceAll(strings.ToLower(e.str("NOTIFY_DROP_POLICY", "drop_newest")), "-", "_"),

			PubNubPublishKey:   e.str("PUBNUB_PUBLISH_KEY", ""),
			PubNubSubscribeKey: e.str("PUBNUB_SUBSCRIBE_KEY", ""),
			PubNubSecretKey:    e.str("PUBNUB_SECRET_KEY", ""),
			PubNubUserID:       e.str("PUBNUB_USER_ID", "queue-backend"),

			AMQPURL:      e.str("AMQP_URL", ""),
			AMQPExchange: e.str("AMQP_EXCHANGE", "queue.events"),
		},

		OTEL: OTELConfig{
			Enabled:     e.boolean("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-queue-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	errs := append(e.errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

// Location resolves Queue.Timezone, falling back to UTC when it cannot be loaded.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Queue.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func (c Config) validate() []error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(c.Port) == "", "PORT must not be empty")
	check(c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.IdleTimeout <= 0, "timeouts must be positive durations")
	check(c.WriteTimeout < 0, "WRITE_TIMEOUT must be >= 0")
	check(c.ShutdownTimeout <= 0, "SHUTDOWN_TIMEOUT must be > 0")
	check(c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0")
	check(strings.TrimSpace(c.DBPath) == "", "DB_PATH must not be empty")
	check(c.RateRPS < 0, "RATE_RPS must be >= 0")
	check(c.RateBurst < 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	q := c.Queue
	check(q.DefaultProvider == "", "QUEUE_DEFAULT_PROVIDER must not be empty")
	if _, err := time.LoadLocation(q.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("QUEUE_TIMEZONE must be a valid IANA zone: %w", err))
	}
	check(q.SmoothingFactor <= 0 || q.SmoothingFactor > 1, "QUEUE_SMOOTHING_FACTOR must be in (0,1]")
	switch {
	case q.EstimateMin <= 0 || q.EstimateMax < q.EstimateMin:
		errs = append(errs, errors.New("QUEUE_ESTIMATE_MIN must be > 0 and <= QUEUE_ESTIMATE_MAX"))
	case q.DefaultServiceTime < q.EstimateMin || q.DefaultServiceTime > q.EstimateMax:
		errs = append(errs, errors.New("QUEUE_DEFAULT_SERVICE_TIME must lie within the estimate bounds"))
	}
	check(q.SweepInterval <= 0 || q.NoShowThreshold <= 0, "QUEUE_SWEEP_INTERVAL and QUEUE_NO_SHOW_THRESHOLD must be positive")
	check(q.MaxRetries < 1, "QUEUE_MAX_RETRIES must be >= 1")
	check(q.SequenceBackend != "sql" && q.SequenceBackend != "redis", "SEQUENCE_BACKEND must be one of: sql, redis")
	check(q.SweepBackend != "ticker" && q.SweepBackend != "asynq", "SWEEP_BACKEND must be one of: ticker, asynq")

	n := c.Notify
	check(n.SubscriberBuffer < 1 || n.InboundBuffer < 1, "NOTIFY_BUFFER and NOTIFY_INBOUND_BUFFER must be >= 1")
	check(n.DropPolicy != "drop_newest" && n.DropPolicy != "drop_oldest", "NOTIFY_DROP_POLICY must be one of: drop_newest, drop_oldest")
	return errs
}

// env reads typed variables, keeping the default for unset or empty ones
// and recording a parse error for anything else that does not parse.
type env struct {
	errs []error
}

func (e *env) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func (e *env) fail(k, v, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%s: %q is not a valid %s", k, v, kind))
}

func (e *env) str(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func (e *env) integer(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, "integer")
		return def
	}
	return i
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(k, v, "number")
		return def
	}
	return f
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, v, "duration")
		return def
	}
	return d
}

func (e *env) boolean(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, "boolean")
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath yields "/" or a path with a leading and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}
