package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/whatsflow/internal/config"
	"github.com/geocoder89/whatsflow/internal/db"
	httpx "github.com/geocoder89/whatsflow/internal/http"
	"github.com/geocoder89/whatsflow/internal/observability"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := observability.NewLogger(cfg.Env)

	pool, err := db.NewPool(cfg.DBURL, int32(cfg.DBMaxConns))
	if err != nil {
		log.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	router := httpx.NewRouter(pool, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api.start", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api.serve_failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("api.shutdown_signal_received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("api.shutdown_failed", "err", err)
		_ = srv.Close()
	} else {
		log.Info("api.shutdown_complete")
	}
}
