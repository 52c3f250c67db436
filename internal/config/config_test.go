package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.Batch.MaxPerWindow != 10 {
		t.Fatalf("MaxPerWindow = %d", cfg.Batch.MaxPerWindow)
	}
	if cfg.Batch.CancelWindow != 10*time.Minute {
		t.Fatalf("CancelWindow = %v", cfg.Batch.CancelWindow)
	}
	if cfg.Batch.DefaultFeeCents != 200 {
		t.Fatalf("DefaultFeeCents = %d", cfg.Batch.DefaultFeeCents)
	}
	if cfg.Dispatch.Interval != time.Minute || cfg.Dispatch.RetryMax != 3 {
		t.Fatalf("Dispatch = %+v", cfg.Dispatch)
	}
	if cfg.DedupeTTL != 24*time.Hour {
		t.Fatalf("DedupeTTL = %v", cfg.DedupeTTL)
	}
	if !cfg.Uber.TestMode {
		t.Fatalf("Uber.TestMode should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("BATCH_MAX_PER_WINDOW", "25")
	t.Setenv("CANCEL_WINDOW", "5m")
	t.Setenv("DISPATCH_INTERVAL", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("API_BASE_PATH", "webhooks/")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" || cfg.Batch.MaxPerWindow != 25 || cfg.Batch.CancelWindow != 5*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg.Batch)
	}
	if cfg.Dispatch.Interval != 30*time.Second {
		t.Fatalf("Interval = %v", cfg.Dispatch.Interval)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.APIBasePath != "/webhooks" {
		t.Fatalf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warning normalized to warn", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q, want invalid mode normalized", cfg.GinMode)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		key, val string
		want     string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"BATCH_MAX_PER_WINDOW", "0", "BATCH_MAX_PER_WINDOW"},
		{"CANCEL_WINDOW", "-1m", "CANCEL_WINDOW"},
		{"SESSION_TTL", "-1h", "SESSION_TTL"},
		{"BATCH_OPEN_HOUR", "24", "BATCH_OPEN_HOUR"},
		{"DELIVERY_FEE_CENTS", "-5", "DELIVERY_FEE_CENTS"},
		{"DISPATCH_INTERVAL", "-1s", "DISPATCH_INTERVAL"},
		{"DISPATCH_RETRY_MAX", "0", "DISPATCH_RETRY_MAX"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"DEDUPE_TTL", "-1h", "DEDUPE_TTL"},
		{"OTEL_TRACES_SAMPLER_ARG", "2", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestGetBool(t *testing.T) {
	t.Setenv("FLAG", "yes")
	if !getbool("FLAG", false) {
		t.Fatalf("yes not truthy")
	}
	t.Setenv("FLAG", "off")
	if getbool("FLAG", true) {
		t.Fatalf("off not falsy")
	}
	t.Setenv("FLAG", "maybe")
	if !getbool("FLAG", true) {
		t.Fatalf("unparseable value should fall back to default")
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":        "/",
		"/":       "/",
		"api":     "/api",
		"/api/":   "/api",
		"/api/v1": "/api/v1",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
