package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRedactor_String(t *testing.T) {
	r := NewRedactor()
	got := r.String("email=a.b+tag@example.com&ref=+44 7700 900123&id=123e4567-e89b-12d3-a456-426614174000")
	for _, want := range []string{"[REDACTED:email]", "[REDACTED:phone]", "[REDACTED:id]"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %s in %q", want, got)
		}
	}
	if strings.Contains(got, "7700") || strings.Contains(got, "example.com") {
		t.Fatalf("PII leaked: %q", got)
	}
	if r.String("") != "" {
		t.Fatalf("empty input must stay empty")
	}
}

func TestRedactor_Headers(t *testing.T) {
	r := NewRedactor("X-Api-Key")
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Cookie", "sid=topsecret")
	h.Set("X-Api-Key", "shhh")
	h.Set("X-Custom", "email a@b.com phone 555-123-4567")

	got := r.Headers(h)
	for _, k := range []string{"Authorization", "Cookie", "X-Api-Key"} {
		if got[k] != "[REDACTED]" {
			t.Fatalf("%s must be masked: %q", k, got[k])
		}
	}
	if got["X-Custom"] != "email [REDACTED:email] phone [REDACTED:phone]" {
		t.Fatalf("unexpected X-Custom: %q", got["X-Custom"])
	}
}

func TestLogger_RedactsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t, zerolog.DebugLevel)

	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger(NewRedactor()))
	r.GET("/participants/:ref/entries", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/participants/07700900123/entries?contact=a@b.com", nil)
	req.Header.Set("Authorization", "Bearer secret")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := buf.String()
	if !strings.Contains(logs, `"path":"/participants/:ref/entries"`) {
		t.Fatalf("path must be the route pattern: %s", logs)
	}
	if strings.Contains(logs, "07700900123") || strings.Contains(logs, "a@b.com") || strings.Contains(logs, "Bearer") {
		t.Fatalf("PII leaked: %s", logs)
	}
}
