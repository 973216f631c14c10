package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/geocoder89/whatsflow/internal/clock"
	"github.com/geocoder89/whatsflow/internal/config"
	"github.com/geocoder89/whatsflow/internal/db"
	"github.com/geocoder89/whatsflow/internal/observability"
	"github.com/geocoder89/whatsflow/internal/planner"
	"github.com/geocoder89/whatsflow/internal/reconcile"
	"github.com/geocoder89/whatsflow/internal/repo/postgres"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(observability.NewTraceHandler(base)))

	pool, err := db.NewPool(cfg.DBURL, int32(cfg.DBMaxConns))
	if err != nil {
		slog.Default().ErrorContext(ctx, "reconciler.db_connect_failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	c := clock.System{}

	eventsRepo := postgres.NewEventsRepo(pool)
	clientsRepo := postgres.NewClientsRepo(pool)
	bookingsRepo := postgres.NewBookingsRepo(pool)
	jobsRepo := postgres.NewJobsRepo(pool, nil)

	p := planner.New(jobsRepo, c, planner.AlwaysPlan)

	r := reconcile.New(reconcile.Config{
		BatchSize:    cfg.ReconcileBatchSize,
		PollInterval: cfg.ReconcilePollInterval,
	}, pool, c, eventsRepo, clientsRepo, bookingsRepo, p)

	slog.Default().InfoContext(ctx, "reconciler.start",
		"batch_size", cfg.ReconcileBatchSize,
		"poll_interval", cfg.ReconcilePollInterval,
	)

	if err := r.Run(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "reconciler.run_failed", "err", err)
	}

	slog.Default().InfoContext(context.Background(), "reconciler.shutdown_complete")
}
