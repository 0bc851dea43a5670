// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the in-memory token-bucket limiter guarding ticket
// issuance. Buckets are keyed per client and provider; reads are never
// limited, and idempotent replays flagged by IdempotencyValidator pass
// without spending a token.
//
// The limiter is process-local. It protects a single node from a runaway
// kiosk or script; it is not an authorization mechanism.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to the identity of its bucket.
type KeyFunc func(*gin.Context) string

// KeyByProviderAndIP buckets by client IP and the :provider path parameter,
// so a kiosk hammering one desk does not starve issuance at another
// (e.g. "ip:203.0.113.7|desk-1").
func KeyByProviderAndIP() KeyFunc {
	return func(c *gin.Context) string {
		key := "ip:" + c.ClientIP()
		if p := c.Param("provider"); p != "" {
			key += "|" + p
		}
		return key
	}
}

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	},
	[]string{"path"},
)

func init() {
	prometheus.MustRegister(rateLimited)
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Buckets idle for longer than
// the TTL are dropped by a sweep that runs at most once per TTL/2, so memory
// stays proportional to recently active clients. Safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int
	keyFn KeyFunc
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst (coerced to >= 1). rps of 0 admits only the initial burst.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		ttl:     10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// limiter returns the bucket for key, creating it on first use.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.ttl/2 {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// size reports the number of live buckets.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as
// a replay that should not consume a token.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the limiting middleware. A rejected request gets
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <seconds until a token is available, at least 1>
//	{"request_id": "...", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		res := rl.limiter(rl.keyFn(c)).ReserveN(now, 1)
		delay := res.DelayFrom(now)
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		rateLimited.WithLabelValues(path).Inc()

		c.Header("Retry-After", strconv.Itoa(retryAfter(res.OK(), delay)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfter rounds delay up to whole seconds. A reservation that can never
// be satisfied (zero refill) advertises one minute.
func retryAfter(ok bool, delay time.Duration) int {
	if !ok || delay == rate.InfDuration {
		return 60
	}
	s := int(math.Ceil(delay.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
