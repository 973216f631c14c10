package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/whatsflow/internal/clock"
	"github.com/geocoder89/whatsflow/internal/config"
	"github.com/geocoder89/whatsflow/internal/db"
	"github.com/geocoder89/whatsflow/internal/observability"
	"github.com/geocoder89/whatsflow/internal/queue/outboxworker"
	"github.com/geocoder89/whatsflow/internal/render"
	"github.com/geocoder89/whatsflow/internal/repo/postgres"
	"github.com/geocoder89/whatsflow/internal/senderrouter"
	"github.com/geocoder89/whatsflow/internal/wasend"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func buildProvider(cfg config.Config) wasend.Provider {
	if !cfg.AllowRealSend || cfg.WhatsAppProvider != "meta_cloud" {
		return wasend.DummyProvider{}
	}

	mc, err := wasend.NewMetaCloudProvider(wasend.MetaCloudConfig{
		AccessToken:     cfg.WhatsAppAccessToken,
		PhoneNumberID:   cfg.MetaPhoneNumberID,
		GraphAPIBase:    cfg.WhatsAppGraphURL,
		GraphAPIVersion: cfg.WhatsAppAPIVersion,
	}, &http.Client{Timeout: 20 * time.Second})
	if err != nil {
		slog.Default().Error("outboxworker.provider_config_invalid", "err", err)
		os.Exit(1)
	}

	return wasend.NewCircuitBreaker(mc, wasend.CircuitConfig{Timeout: 20 * time.Second})
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(observability.NewTraceHandler(base)))

	pool, err := db.NewPool(cfg.DBURL, int32(cfg.DBMaxConns))
	if err != nil {
		slog.Default().ErrorContext(ctx, "outboxworker.db_connect_failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	c := clock.System{}
	reg := prometheus.NewRegistry()

	jobsRepo := postgres.NewJobsRepo(pool, nil)
	bookingsRepo := postgres.NewBookingsRepo(pool)
	clientsRepo := postgres.NewClientsRepo(pool)
	outboxRepo := postgres.NewOutboxRepo(pool)
	rateLimitRepo := postgres.NewContactRateLimitRepo(pool)
	templatesRepo := postgres.NewTemplatesRepo(pool)
	sendersRepo := postgres.NewSendersRepo(pool)
	rulesRepo := postgres.NewServiceSenderRulesRepo(pool)

	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		slog.Default().WarnContext(ctx, "outboxworker.bad_timezone_fallback_utc", "tz", cfg.BusinessTimezone, "err", err)
		loc = time.UTC
	}

	router := senderrouter.New(bookingsRepo, rulesRepo, sendersRepo)
	renderer := render.New(templatesRepo, bookingsRepo, router, nil, loc)

	provider := buildProvider(cfg)

	w := outboxworker.New(outboxworker.Config{
		PollInterval:       cfg.OutboxPollInterval,
		BatchSize:          cfg.OutboxBatchSize,
		Concurrency:        cfg.OutboxConcurrency,
		ShutdownGrace:      cfg.OutboxShutdownGrace,
		StaleLeaseTTL:      cfg.OutboxStaleLeaseTTL,
		HealthAddr:         cfg.HealthAddr,
		StopOnTokenExpired: cfg.StopWorkerOnTokenExpired,
	}, pool, c, jobsRepo, bookingsRepo, clientsRepo, outboxRepo, rateLimitRepo, renderer, provider, nil, reg)

	slog.Default().InfoContext(ctx, "outboxworker.start",
		"provider", cfg.WhatsAppProvider,
		"allow_real_send", cfg.AllowRealSend,
		"health_addr", cfg.HealthAddr,
	)

	if err := w.Run(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "outboxworker.run_failed", "err", err)
	}

	slog.Default().InfoContext(context.Background(), "outboxworker.shutdown_complete")
}
