// Command server runs the batch-ordering backend: the SMS webhook and
// operator API over HTTP, plus the background dispatcher that consolidates
// closed windows into courier requests.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/treehouse/go-batch-backend/internal/batching"
	"github.com/treehouse/go-batch-backend/internal/catalog"
	"github.com/treehouse/go-batch-backend/internal/config"
	"github.com/treehouse/go-batch-backend/internal/conversation"
	"github.com/treehouse/go-batch-backend/internal/delivery"
	"github.com/treehouse/go-batch-backend/internal/dispatch"
	"github.com/treehouse/go-batch-backend/internal/extract"
	httpapi "github.com/treehouse/go-batch-backend/internal/http"
	"github.com/treehouse/go-batch-backend/internal/msg"
	"github.com/treehouse/go-batch-backend/internal/observability"
	"github.com/treehouse/go-batch-backend/internal/payments"
	"github.com/treehouse/go-batch-backend/internal/repo"
	"github.com/treehouse/go-batch-backend/internal/services"
	"github.com/treehouse/go-batch-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("catalog load failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	// Messaging channel: log-only when no provider credentials are set.
	var channel msg.Channel = msg.NopChannel{}
	if cfg.Twilio.AccountSID != "" {
		channel = msg.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.Dispatch.CallTimeout)
	} else {
		log.Warn().Msg("no messaging credentials, outbound sends disabled")
	}
	notifier := &msg.Notifier{Channel: channel, OperatorPhone: cfg.OperatorPhone}

	// Restaurant extraction: keyword matcher always, remote model when
	// configured; the remote degrades to the keyword matcher on failure.
	keyword := extract.NewKeywordExtractor(cat)
	var extractor extract.Extractor = keyword
	if cfg.ExtractorURL != "" {
		extractor = extract.Fallback{
			Primary:   extract.NewRemoteExtractor(cfg.ExtractorURL, cat, cfg.Dispatch.CallTimeout),
			Secondary: keyword,
		}
	}

	windows := batching.Calculator{OpenHour: cfg.Batch.OpenHour, CloseHour: cfg.Batch.CloseHour}
	registry := batching.NewRegistry(cat, cfg.Batch.MaxPerWindow, cfg.Batch.DefaultFeeCents)

	customers := &services.CustomerService{DB: db}
	orders := &services.OrderService{
		DB:           db,
		Catalog:      cat,
		Registry:     registry,
		Windows:      windows,
		CancelWindow: cfg.Batch.CancelWindow,
	}

	sessions := conversation.NewManager(cfg.Batch.SessionTTL)
	sessions.StartJanitor(ctx, 5*time.Minute)

	machine := &conversation.Machine{
		Sessions:  sessions,
		Customers: customers,
		Orders:    orders,
		Extractor: extractor,
		Payments:  payments.StaticLink{BaseURL: cfg.PaymentURL},
		Notifier:  notifier,
	}

	dispatcher := &dispatch.Dispatcher{
		DB:          db,
		Catalog:     cat,
		Registry:    registry,
		Provider:    delivery.NewUberDirect(cfg.Uber.ClientID, cfg.Uber.ClientSecret, cfg.Uber.CustomerID, cfg.Uber.TestMode, cfg.Dispatch.CallTimeout),
		Channel:     channel,
		Notifier:    notifier,
		Interval:    cfg.Dispatch.Interval,
		RetryMax:    cfg.Dispatch.RetryMax,
		RetryBase:   cfg.Dispatch.RetryBase,
		CallTimeout: cfg.Dispatch.CallTimeout,
	}
	go dispatcher.Run(ctx)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, machine, orders, notifier, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
