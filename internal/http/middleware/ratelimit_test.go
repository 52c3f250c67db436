package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rl := NewRateLimiter(0, 2, KeyBySenderOrIP())
	r.Use(rl.Handler())
	r.POST("/hook", func(c *gin.Context) { c.Status(http.StatusOK) })

	form := url.Values{"From": {"+15550001111"}}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, postForm("/hook", form))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", form))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("Retry-After missing")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rl := NewRateLimiter(0, 1, KeyBySenderOrIP())
	r.Use(rl.Handler())
	r.POST("/hook", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{"From": {"+15550001111"}}))
	if w.Code != http.StatusOK {
		t.Fatalf("first sender status = %d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{"From": {"+15550001111"}}))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("exhausted sender status = %d", w.Code)
	}

	// A different sender has its own bucket.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{"From": {"+15550002222"}}))
	if w.Code != http.StatusOK {
		t.Fatalf("other sender status = %d", w.Code)
	}
}

func TestRateLimiter_ReplayBypasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Dedupe middleware flags every SM1 delivery as a replay.
	r.Use(WebhookDedupe(func(context.Context, string, time.Time) (string, bool, error) {
		return "stored", true, nil
	}))
	rl := NewRateLimiter(0, 1, KeyBySenderOrIP())
	r.Use(rl.Handler())
	r.POST("/hook", func(c *gin.Context) { c.Status(http.StatusOK) })

	form := url.Values{"MessageSid": {"SM1"}, "From": {"+15550001111"}}
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, postForm("/hook", form))
		if w.Code != http.StatusOK {
			t.Fatalf("replay %d limited, status = %d", i, w.Code)
		}
	}
}

func TestKeyBySenderOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFn := KeyBySenderOrIP()

	var key string
	r := gin.New()
	r.POST("/hook", func(c *gin.Context) {
		key = keyFn(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{"From": {"+15550001111"}}))
	if key != "sender:+15550001111" {
		t.Fatalf("key = %q", key)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{}))
	if len(key) < 3 || key[:3] != "ip:" {
		t.Fatalf("fallback key = %q", key)
	}
}
