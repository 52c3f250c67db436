// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, batching windows, dispatch
// retries, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/treehouse/go-batch-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-batch-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TwilioConfig defines outbound messaging credentials. When AccountSID is
// empty the service runs with a log-only message channel (dev mode).
type TwilioConfig struct {
	AccountSID string // TWILIO_ACCOUNT_SID
	AuthToken  string // TWILIO_AUTH_TOKEN
	FromNumber string // TWILIO_FROM_NUMBER
}

// UberConfig defines Uber Direct API credentials and mode.
type UberConfig struct {
	ClientID     string // UBER_CLIENT_ID
	ClientSecret string // UBER_CLIENT_SECRET
	CustomerID   string // UBER_CUSTOMER_ID
	TestMode     bool   // UBER_TEST_MODE (robo courier)
}

// BatchConfig defines ordering-window and capacity settings.
type BatchConfig struct {
	MaxPerWindow    int           // default orders per restaurant per window
	CancelWindow    time.Duration // how long after creation an order may be cancelled
	SessionTTL      time.Duration // idle conversational session eviction
	OpenHour        int           // first hour windows may close (0 disables)
	CloseHour       int           // last hour windows may close (0 disables)
	DefaultFeeCents int64         // per-order delivery fee share, in cents
}

// DispatchConfig defines the dispatcher tick cadence and retry policy for
// external quote/delivery calls.
type DispatchConfig struct {
	Interval    time.Duration // tick period
	RetryMax    int           // max attempts per external call
	RetryBase   time.Duration // backoff base, doubled per attempt
	CallTimeout time.Duration // per external call timeout
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath        string // SQLite path
	CatalogPath   string // restaurant/drop-off catalog JSON
	OperatorPhone string // operator notification number
	PaymentURL    string // base URL for payment links
	ExtractorURL  string // optional remote extractor endpoint ("" = keyword only)

	// Domain
	Batch    BatchConfig
	Dispatch DispatchConfig

	// Providers
	Twilio TwilioConfig
	Uber   UberConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Webhook dedupe
	DedupeTTL time.Duration // how long a provider message SID is remembered

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:        getenv("DB_PATH", "treehouse.db"),
		CatalogPath:   getenv("CATALOG_PATH", "data/catalog.json"),
		OperatorPhone: getenv("OPERATOR_PHONE", ""),
		PaymentURL:    getenv("PAYMENT_URL", "https://pay.example.com/order"),
		ExtractorURL:  getenv("EXTRACTOR_URL", ""),

		// Domain
		Batch: BatchConfig{
			MaxPerWindow:    getint("BATCH_MAX_PER_WINDOW", 10),
			CancelWindow:    getdur("CANCEL_WINDOW", 10*time.Minute),
			SessionTTL:      getdur("SESSION_TTL", 2*time.Hour),
			OpenHour:        getint("BATCH_OPEN_HOUR", 0),
			CloseHour:       getint("BATCH_CLOSE_HOUR", 0),
			DefaultFeeCents: int64(getint("DELIVERY_FEE_CENTS", 200)),
		},
		Dispatch: DispatchConfig{
			Interval:    getdur("DISPATCH_INTERVAL", time.Minute),
			RetryMax:    getint("DISPATCH_RETRY_MAX", 3),
			RetryBase:   getdur("DISPATCH_RETRY_BASE", 2*time.Second),
			CallTimeout: getdur("DISPATCH_CALL_TIMEOUT", 10*time.Second),
		},

		// Providers
		Twilio: TwilioConfig{
			AccountSID: getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getenv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getenv("TWILIO_FROM_NUMBER", ""),
		},
		Uber: UberConfig{
			ClientID:     getenv("UBER_CLIENT_ID", ""),
			ClientSecret: getenv("UBER_CLIENT_SECRET", ""),
			CustomerID:   getenv("UBER_CUSTOMER_ID", ""),
			TestMode:     getbool("UBER_TEST_MODE", true),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Webhook dedupe
		DedupeTTL: getdur("DEDUPE_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-batch-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.CatalogPath) == "" {
		return cfg, errors.New("CATALOG_PATH must not be empty")
	}
	if cfg.Batch.MaxPerWindow < 1 {
		return cfg, errors.New("BATCH_MAX_PER_WINDOW must be >= 1")
	}
	if cfg.Batch.CancelWindow <= 0 {
		return cfg, errors.New("CANCEL_WINDOW must be > 0")
	}
	if cfg.Batch.SessionTTL <= 0 {
		return cfg, errors.New("SESSION_TTL must be > 0")
	}
	if cfg.Batch.OpenHour < 0 || cfg.Batch.OpenHour > 23 || cfg.Batch.CloseHour < 0 || cfg.Batch.CloseHour > 23 {
		return cfg, errors.New("BATCH_OPEN_HOUR and BATCH_CLOSE_HOUR must be in [0,23]")
	}
	if cfg.Batch.DefaultFeeCents < 0 {
		return cfg, errors.New("DELIVERY_FEE_CENTS must be >= 0")
	}
	if cfg.Dispatch.Interval <= 0 {
		return cfg, errors.New("DISPATCH_INTERVAL must be > 0")
	}
	if cfg.Dispatch.RetryMax < 1 {
		return cfg, errors.New("DISPATCH_RETRY_MAX must be >= 1")
	}
	if cfg.Dispatch.RetryBase <= 0 || cfg.Dispatch.CallTimeout <= 0 {
		return cfg, errors.New("dispatch retry/timeout durations must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.DedupeTTL <= 0 {
		return cfg, errors.New("DEDUPE_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- env helpers ----

func getenv(k, def string) string {
	return sysutil.FirstNonEmpty(os.Getenv(k), def)
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if sysutil.IsTruthy(v) {
			return true
		}
		if sysutil.IsFalsy(v) {
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
