// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Redactor, which scrubs obvious PII from request
// metadata before it reaches the access log. Participant references are
// usually phone numbers or card numbers and travel in query strings
// (`?provider=…`, `/participants/:ref/entries` is logged by route pattern,
// never by value). Bodies are never logged.
package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits-only phone pattern (prevents matching hex characters from UUIDs).
	// Examples matched: "+44 7700 900123", "212 555 1212", "(212) 555-1212".
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// Redactor masks sensitive headers and pattern-redacts ids, emails and
// phone numbers. The zero value masks only the built-in headers.
type Redactor struct {
	mask map[string]struct{}
}

// NewRedactor returns a Redactor that also fully masks the named headers
// (case-insensitive) on top of Authorization, Cookie and Set-Cookie.
func NewRedactor(maskHeaders ...string) *Redactor {
	r := &Redactor{mask: map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}}
	for _, h := range maskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.mask[h] = struct{}{}
		}
	}
	return r
}

// String redacts s. UUIDs go first so the phone pattern cannot match the
// digit groups inside them.
func (r *Redactor) String(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// Headers returns a flattened, scrubbed copy of h.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, masked := r.mask[strings.ToLower(k)]; masked {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = r.String(strings.Join(vv, ", "))
	}
	return out
}
