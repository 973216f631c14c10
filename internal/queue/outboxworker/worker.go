// Package outboxworker drains due message jobs, rendering and sending each
// through a WhatsApp provider under per-recipient rate limiting and
// per-job row locks, so multiple worker processes can run concurrently.
package outboxworker

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geocoder89/whatsflow/internal/clock"
	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/client"
	"github.com/geocoder89/whatsflow/internal/domain/job"
	"github.com/geocoder89/whatsflow/internal/domain/outbox"
	"github.com/geocoder89/whatsflow/internal/observability"
	"github.com/geocoder89/whatsflow/internal/render"
	"github.com/geocoder89/whatsflow/internal/wasend"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context) (job.Job, error)
	LockForProcessingTx(ctx context.Context, tx pgx.Tx, id string) (job.Job, bool, error)
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
	RequeueBatch(ctx context.Context, ids []string) error
	MarkDoneTx(ctx context.Context, tx pgx.Tx, id string) error
	MarkFailedTx(ctx context.Context, tx pgx.Tx, id, errMsg string) error
	MarkCanceledTx(ctx context.Context, tx pgx.Tx, id, errMsg string) error
	RescheduleTx(ctx context.Context, tx pgx.Tx, id string, runAt time.Time, errMsg *string, incrementAttempts bool) error
	IncrementAttemptsTx(ctx context.Context, tx pgx.Tx, id string) error
}

type BookingsRepository interface {
	GetByIDTx(ctx context.Context, tx pgx.Tx, id int64) (booking.Booking, error)
}

type ClientsRepository interface {
	GetByIDTx(ctx context.Context, tx pgx.Tx, id int64) (client.Client, error)
}

type OutboxRepository interface {
	HasSuccessTx(ctx context.Context, tx pgx.Tx, jobID string) (bool, error)
	CreateTx(ctx context.Context, tx pgx.Tx, req outbox.CreateRequest) (outbox.Outbox, error)
}

type RateLimitRepository interface {
	AdmitTx(ctx context.Context, tx pgx.Tx, phoneE164 string, now time.Time) (retryAt time.Time, admitted bool, err error)
}

type Config struct {
	PollInterval  time.Duration
	BatchSize     int
	Concurrency   int
	ShutdownGrace time.Duration
	StaleLeaseTTL time.Duration
	HealthAddr    string

	StopOnTokenExpired bool
}

// Worker implements the Outbox Worker's batch loop over §4.E's processJob
// state machine.
type Worker struct {
	cfg   Config
	pool  *pgxpool.Pool
	clock clock.Clock

	jobs      JobsRepository
	bookings  BookingsRepository
	clients   ClientsRepository
	outbox    OutboxRepository
	rateLimit RateLimitRepository

	renderer *render.Renderer
	provider wasend.Provider

	defaultLanguageByCompany map[int64]string

	metrics *observability.JobMetrics
	prom    *prometheus.Registry

	tokenExpired atomic.Bool

	readyMu sync.RWMutex
	ready   bool
}

func New(
	cfg Config,
	pool *pgxpool.Pool,
	c clock.Clock,
	jobs JobsRepository,
	bookings BookingsRepository,
	clients ClientsRepository,
	out OutboxRepository,
	rateLimit RateLimitRepository,
	renderer *render.Renderer,
	provider wasend.Provider,
	defaultLanguageByCompany map[int64]string,
	prom *prometheus.Registry,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.StaleLeaseTTL <= 0 {
		cfg.StaleLeaseTTL = 10 * time.Minute
	}
	if c == nil {
		c = clock.System{}
	}

	return &Worker{
		cfg:                      cfg,
		pool:                     pool,
		clock:                    c,
		jobs:                     jobs,
		bookings:                 bookings,
		clients:                  clients,
		outbox:                   out,
		rateLimit:                rateLimit,
		renderer:                 renderer,
		provider:                 provider,
		defaultLanguageByCompany: defaultLanguageByCompany,
		metrics:                  observability.NewJobMetrics(),
		prom:                     prom,
		ready:                    true,
	}
}

func (w *Worker) markTokenExpired() {
	w.tokenExpired.Store(true)
	log.Printf("outboxworker: token expired flag set")
}

func (w *Worker) requeueLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			n, err := w.jobs.RequeueStaleProcessing(hctx, w.cfg.StaleLeaseTTL)
			cancel()
			if err != nil {
				log.Printf("outboxworker.requeue_stale error=%v", err)
				continue
			}
			if n > 0 {
				log.Printf("outboxworker.requeue_stale count=%d", n)
			}
		}
	}
}

// Run is the main batch loop: stale-lease recovery happens on its own
// ticker (requeueLoop); each tick here leases up to BatchSize due jobs and
// fans them out to worker goroutines.
func (w *Worker) Run(ctx context.Context) error {
	srv := &http.Server{Addr: w.cfg.HealthAddr, Handler: w.healthHandler(w.prom)}
	healthDone := make(chan struct{})

	go func() {
		log.Printf("outboxworker health server starting on %s pid=%d", w.cfg.HealthAddr, os.Getpid())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("outboxworker health server error: %v", err)
		}
		close(healthDone)
	}()

	go func() {
		<-ctx.Done()
		w.readyMu.Lock()
		w.ready = false
		w.readyMu.Unlock()

		time.Sleep(5 * time.Second)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go w.requeueLoop(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("outboxworker: shutdown signal received")
			break loop
		case <-ticker.C:
			if w.tokenExpired.Load() && w.cfg.StopOnTokenExpired {
				log.Println("outboxworker: stopping loop, token expired")
				break loop
			}
			if err := w.runBatch(ctx); err != nil {
				log.Printf("outboxworker: batch error: %v", err)
			}
		}
	}

	select {
	case <-healthDone:
	case <-time.After(w.cfg.ShutdownGrace + 2*time.Second):
	}

	return nil
}

func (w *Worker) runBatch(ctx context.Context) error {
	var leased []job.Job
	for i := 0; i < w.cfg.BatchSize; i++ {
		j, err := w.jobs.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, job.ErrNotFound) {
				break
			}
			return err
		}
		leased = append(leased, j)
	}
	if len(leased) == 0 {
		return nil
	}

	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	var remaining sync.Map

	for _, j := range leased {
		remaining.Store(j.ID, struct{}{})
	}

	for _, j := range leased {
		if w.tokenExpired.Load() && w.cfg.StopOnTokenExpired {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(j job.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			defer remaining.Delete(j.ID)

			outcome, err := w.processJob(ctx, j.ID)
			if err != nil {
				log.Printf("outboxworker: process job=%s error: %v", j.ID, err)
				return
			}
			w.observeOutcome(outcome)
		}(j)
	}

	wg.Wait()

	if w.tokenExpired.Load() && w.cfg.StopOnTokenExpired {
		var stillLeased []string
		remaining.Range(func(k, _ any) bool {
			stillLeased = append(stillLeased, k.(string))
			return true
		})
		if len(stillLeased) > 0 {
			if err := w.jobs.RequeueBatch(ctx, stillLeased); err != nil {
				log.Printf("outboxworker: requeue remaining batch error: %v", err)
			}
		}
	}

	return nil
}

func (w *Worker) observeOutcome(outcome stepOutcome) {
	if w.metrics == nil {
		return
	}
	switch outcome {
	case outcomeDone:
		w.metrics.IncDone()
	case outcomeFailed:
		w.metrics.IncFailed()
	case outcomeRequeued, outcomeTokenExpired:
		w.metrics.IncRetried()
	}
}
