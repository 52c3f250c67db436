package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := log.Logger
	log.Logger = zerolog.New(buf)
	t.Cleanup(func() { log.Logger = prev })
	return buf
}

func redactRouter(opts RedactOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RedactingLogger(opts))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRedactingLoggerScrubsPhoneAndEmail(t *testing.T) {
	buf := captureLogs(t)
	r := redactRouter(RedactOptions{})

	req := httptest.NewRequest(http.MethodGet, "/ping?to=%2B13125551212&contact=alex%40example.com", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := buf.String()
	if out == "" {
		t.Fatalf("no log emitted")
	}
	if strings.Contains(out, "13125551212") {
		t.Fatalf("raw phone number leaked: %s", out)
	}
	if strings.Contains(out, "alex@example.com") {
		t.Fatalf("raw email leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:phone]") {
		t.Fatalf("phone not redacted: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:email]") {
		t.Fatalf("email not redacted: %s", out)
	}
}

func TestRedactingLoggerMasksHeaders(t *testing.T) {
	buf := captureLogs(t)
	r := redactRouter(RedactOptions{MaskHeaders: []string{"X-Twilio-Signature"}})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	req.Header.Set("X-Twilio-Signature", "abc123sig")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := buf.String()
	if strings.Contains(out, "sekrit") {
		t.Fatalf("authorization value leaked: %s", out)
	}
	if strings.Contains(out, "abc123sig") {
		t.Fatalf("custom masked header leaked: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("no header masking marker: %s", out)
	}
}

func TestRedactingLoggerKeepsRoutePath(t *testing.T) {
	buf := captureLogs(t)
	r := redactRouter(RedactOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if !strings.Contains(buf.String(), `"path":"/ping"`) {
		t.Fatalf("route path missing from log: %s", buf.String())
	}
}
