// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file covers the transport half of idempotent ticket issuance. The
// validator checks the Idempotency-Key header and stashes it for the
// handler; the queue service resolves the replay inside its own
// transaction. A lookup hit only marks the request so the rate limiter lets
// a retry through.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's key for a ticket request. A
// retry must reuse the key to receive the original ticket.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// defaultKeyPattern is an RFC 7230 token subset.
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if the request carried one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a live issuance with the same provider and key
// was found.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	MaxLen  int            // <= 0 means 200
	Pattern *regexp.Regexp // nil means defaultKeyPattern
	Now     func() time.Time
}

// IdempotencyLookup reports whether an unexpired issuance exists for
// (provider, key) at now. Errors are logged and treated as a miss.
type IdempotencyLookup func(ctx context.Context, provider, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates Idempotency-Key when present.
//
//   - absent: no-op
//   - malformed or too long: 400 {"code":"bad_idempotency_key"}
//   - valid: stashed for GetIdempotencyKey; when the route has a :provider
//     and lookup reports a hit, the request is marked as a replay and
//     exempt from rate limiting
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		provider := c.Param("provider")
		if lookup != nil && provider != "" {
			exists, err := lookup(c.Request.Context(), provider, key, now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("provider", provider).Msg("idempotency lookup failed")
			case exists:
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
