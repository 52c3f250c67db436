package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func postForm(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestWebhookDedupe_FirstDelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WebhookDedupe(func(context.Context, string, time.Time) (string, bool, error) {
		return "", false, nil
	}))

	var sid string
	var sidOK, replay bool
	r.POST("/hook", func(c *gin.Context) {
		sid, sidOK = GetMessageSID(c)
		replay = IsWebhookReplay(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{"MessageSid": {"SM1"}, "From": {"+15550001111"}}))

	if !sidOK || sid != "SM1" {
		t.Fatalf("sid = (%q, %v)", sid, sidOK)
	}
	if replay {
		t.Fatalf("first delivery flagged as replay")
	}
}

func TestWebhookDedupe_Replay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WebhookDedupe(func(_ context.Context, sid string, _ time.Time) (string, bool, error) {
		if sid == "SM1" {
			return "original reply", true, nil
		}
		return "", false, nil
	}))

	var replay bool
	var stored string
	r.POST("/hook", func(c *gin.Context) {
		replay = IsWebhookReplay(c)
		stored = StoredReply(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{"MessageSid": {"SM1"}}))

	if !replay || stored != "original reply" {
		t.Fatalf("replay = %v, stored = %q", replay, stored)
	}
}

func TestWebhookDedupe_NoSIDIsNoop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	lookupCalled := false
	r.Use(WebhookDedupe(func(context.Context, string, time.Time) (string, bool, error) {
		lookupCalled = true
		return "", true, nil
	}))

	var sidOK bool
	r.POST("/hook", func(c *gin.Context) {
		_, sidOK = GetMessageSID(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{"Body": {"hi"}}))

	if lookupCalled {
		t.Fatalf("lookup called without a SID")
	}
	if sidOK {
		t.Fatalf("SID reported present")
	}
}

func TestWebhookDedupe_LookupErrorFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WebhookDedupe(func(context.Context, string, time.Time) (string, bool, error) {
		return "", false, errors.New("db down")
	}))

	var replay bool
	r.POST("/hook", func(c *gin.Context) {
		replay = IsWebhookReplay(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, postForm("/hook", url.Values{"MessageSid": {"SM1"}}))

	if replay {
		t.Fatalf("lookup error treated as replay")
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
