// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. The Metrics()
// middleware measures request counts, latencies, in-flight concurrency, and
// response sizes with careful attention to label cardinality:
//
//   - method:   HTTP method verb (GET/POST/…)
//   - path:     the registered Gin route (e.g. /api/v1/entries/:id/eta);
//     "unmatched" when no route matched, since raw paths carry entry ids and
//     participant references
//   - status:   numeric status code as a string (e.g. "200", "404")
//
// Long-lived event streams are counted but kept out of the latency and size
// histograms; a separate gauge reports how many are open.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedPath labels requests that matched no route.
const unmatchedPath = "unmatched"

var (
	// httpReqs counts requests by method, route path, and status code.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records request duration in seconds by method and route path.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds (event streams excluded).",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// httpInflight gauges the number of in-flight request/response exchanges.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests (event streams excluded).",
		},
	)

	// httpStreams gauges open server-sent event streams.
	httpStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_event_streams_open",
			Help: "Current number of open event streams.",
		},
	)

	// httpRespSize captures response sizes in bytes by method and route path.
	// Queue snapshots dominate the upper buckets.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes (event streams excluded).",
			Buckets: []float64{
				100, 250, 500, 1 << 10, 4 << 10, // 100B..4KiB
				16 << 10, 64 << 10, 256 << 10, 1 << 20, // 16KiB..1MiB
			},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpStreams, httpRespSize)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
// Routes listed in streamRoutes (registered paths, e.g. "/api/v1/events")
// are treated as event streams.
//
// Usage:
//
//	r := gin.New()
//	r.Use(middleware.Metrics("/api/v1/events"))
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//
// Semantics:
//   - Increments http_requests_total(method, path, status) per request
//   - Observes http_request_duration_seconds(method, path) on completion
//   - Tracks http_requests_inflight, or http_event_streams_open for streams
//   - Observes http_response_size_bytes(method, path) with bytes written
func Metrics(streamRoutes ...string) gin.HandlerFunc {
	streams := make(map[string]struct{}, len(streamRoutes))
	for _, p := range streamRoutes {
		streams[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method

		if _, stream := streams[path]; stream {
			httpStreams.Inc()
			defer httpStreams.Dec()
			c.Next()
			httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
			return
		}

		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written (e.g. 304).
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
