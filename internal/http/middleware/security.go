// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the response hardening applied to every route, plus
// NoStore for the routes that return participant references.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultHSTSMaxAge is used when SecurityOptions.HSTSMaxAge is unset.
const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
//
// HSTS is sent only for HTTPS requests, directly or via X-Forwarded-Proto,
// and only when EnableHSTS is set. Enable it only when traffic is HTTPS
// end-to-end.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration // <= 0 means 180 days
	EnablePolicy bool          // Permissions-Policy and X-Permitted-Cross-Domain-Policies
	// Expose lists response headers browser clients may read, in addition
	// to X-Request-ID when one was set.
	Expose []string
}

// SecurityHeaders returns a middleware that sets:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//	Permissions-Policy / X-Permitted-Cross-Domain-Policies  (EnablePolicy)
//	Strict-Transport-Security                               (EnableHSTS, HTTPS only)
//	Access-Control-Expose-Headers                           (merged, no duplicates)
//
// Caching is left to the handlers: queue snapshots revalidate through their
// ETag and participant lookups use NoStore.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		expose := opt.Expose
		if h.Get("X-Request-ID") != "" {
			expose = append([]string{"X-Request-ID"}, expose...)
		}
		mergeExpose(h, expose...)

		c.Next()
	}
}

// NoStore marks the response as uncacheable. Use it on routes whose bodies
// carry participant references.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		c.Next()
	}
}

// mergeExpose appends names to Access-Control-Expose-Headers, skipping those
// already listed (case-insensitively).
func mergeExpose(h http.Header, names ...string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	have := map[string]bool{}
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			have[strings.ToLower(p)] = true
		}
	}
	for _, n := range names {
		if n == "" || have[strings.ToLower(n)] {
			continue
		}
		have[strings.ToLower(n)] = true
		if cur == "" {
			cur = n
		} else {
			cur += ", " + n
		}
	}
	if cur != "" {
		h.Set(hdr, cur)
	}
}

// isHTTPS reports whether the request arrived over TLS, directly or through
// a proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
