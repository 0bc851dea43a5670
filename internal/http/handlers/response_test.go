package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-queue-backend/internal/http/middleware"
	"github.com/tbourn/go-queue-backend/internal/services"
)

// envelopeRouter serves GET /x through RequestID and a buffered request logger.
func envelopeRouter(buf *bytes.Buffer, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zerolog.New(buf)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(func(c *gin.Context) {
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/x", h)
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("envelope: %v (%s)", err, w.Body.String())
	}
	return er
}

func TestFail_EnvelopeCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter(&buf, func(c *gin.Context) {
		Fail(c, http.StatusConflict, ErrCodeDuplicateActive, "participant already holds an open entry")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "rid-409")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d", w.Code)
	}
	er := decodeEnvelope(t, w)
	if er.RequestID != "rid-409" || er.Code != ErrCodeDuplicateActive {
		t.Fatalf("envelope = %+v", er)
	}
	if buf.Len() != 0 {
		t.Fatalf("4xx must not log: %s", buf.String())
	}
	if w.Header().Get("Retry-After") != "" {
		t.Fatal("Retry-After on a 409")
	}
}

func TestFail_StoreUnavailableLogsCauseAndRetryAfter(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter(&buf, func(c *gin.Context) {
		serviceError(c, errors.Join(services.ErrStoreUnavailable, errors.New("database is locked")))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusServiceUnavailable || w.Header().Get("Retry-After") != storeRetryAfter {
		t.Fatalf("status=%d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
	er := decodeEnvelope(t, w)
	if er.Message != "store unavailable" || strings.Contains(er.Message, "locked") {
		t.Fatalf("store detail leaked to client: %+v", er)
	}
	if er.RequestID == "" || er.RequestID != w.Header().Get("X-Request-ID") {
		t.Fatalf("request id %q vs header %q", er.RequestID, w.Header().Get("X-Request-ID"))
	}
	logs := buf.String()
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, "database is locked") {
		t.Fatalf("cause not logged: %s", logs)
	}
}

func TestOK_WritesBody(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter(&buf, func(c *gin.Context) {
		ok(c, http.StatusCreated, gin.H{"sequence_number": 1})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusCreated || strings.TrimSpace(w.Body.String()) != `{"sequence_number":1}` {
		t.Fatalf("%d %s", w.Code, w.Body.String())
	}
}
