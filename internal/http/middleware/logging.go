// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the correlation and access-log chain:
//
//   - RequestID() reuses a well-formed X-Request-ID or mints a UUID.
//   - Logger() attaches a request-scoped zerolog.Logger and writes one access
//     line per request, with participant references scrubbed by a Redactor.
//   - Recovery() turns panics into a JSON 500 carrying the request id.
//   - LoggerFrom() hands the scoped logger to handlers and services.
//
// Install them in that order so every line, including a panic, carries the
// request id and, when tracing is on, the trace id.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// maxQueryLogLength caps the logged query string, in bytes.
	maxQueryLogLength = 2048
)

// requestIDPattern bounds what a client may supply as a correlation id, so
// a hostile header cannot smuggle newlines or megabytes into our logs.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)

// RequestID stores the correlation id under "requestID" and echoes it in
// X-Request-ID. An absent or malformed inbound id is replaced by a UUIDv4.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !requestIDPattern.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes a structured access line per request.
//
// Request fields: request_id, trace_id (when a span is recording), method,
// route path, provider, remote_ip, user_agent, query, bytes_in. Response
// fields: status, latency, bytes_out, and the redacted headers at debug.
//
// Level follows the outcome: error for 5xx or gin errors, warn for 4xx,
// debug for 304 (display boards revalidate constantly), info otherwise.
// A nil red logs query and path unscrubbed.
func Logger(red *Redactor) gin.HandlerFunc {
	scrub := func(s string) string {
		if red == nil {
			return s
		}
		return red.String(s)
	}
	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = scrub(c.Request.URL.Path)
		}
		rid, _ := c.Get(requestIDKey)

		lc := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(scrub(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength) // -1 when unknown
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			lc = lc.Str("trace_id", sc.TraceID().String())
		}
		if p := c.Param("provider"); p != "" {
			lc = lc.Str("provider", p)
		}
		l := lc.Logger()
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		ec := l.With().
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size())
		if red != nil && zerolog.GlobalLevel() <= zerolog.DebugLevel {
			ec = ec.Interface("headers", red.Headers(c.Request.Header))
		}
		out := ec.Logger()

		switch {
		case len(c.Errors) > 0:
			out.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			out.Error().Msg("request")
		case status >= 400:
			out.Warn().Msg("request")
		case status == http.StatusNotModified:
			out.Debug().Msg("request")
		default:
			out.Info().Msg("request")
		}
	}
}

// Recovery converts a panic into
//
//	500 {"request_id": "...", "code": "internal_error", "message": "internal server error"}
//
// unless the handler already started the response, in which case the
// status is recorded and the connection is left to close. The panic and
// stack go through the request-scoped logger.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := RequestIDFrom(c)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// Logger() did not run. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// RequestIDFrom returns the correlation id set by RequestID, falling back to
// the response header written by an outer proxy layer.
func RequestIDFrom(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s := asString(v); s != "" {
			return s
		}
	}
	return c.Writer.Header().Get(requestIDHeader)
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s to max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
