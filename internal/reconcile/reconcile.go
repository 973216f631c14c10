// Package reconcile consumes received webhook events, upserts the
// canonical Client/Booking/BookingService rows, and invokes the Planner.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/geocoder89/whatsflow/internal/clock"
	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/bookingservice"
	"github.com/geocoder89/whatsflow/internal/domain/client"
	"github.com/geocoder89/whatsflow/internal/domain/event"
	"github.com/geocoder89/whatsflow/internal/domain/job"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepo interface {
	LeaseBatchTx(ctx context.Context, tx pgx.Tx, batchSize int) ([]event.Event, error)
	MarkProcessedTx(ctx context.Context, tx pgx.Tx, id string, now time.Time) error
	MarkFailedTx(ctx context.Context, tx pgx.Tx, id string, now time.Time, errMsg string) error
}

type ClientsRepo interface {
	UpsertTx(ctx context.Context, tx pgx.Tx, req client.UpsertRequest) (client.Client, error)
}

type BookingsRepo interface {
	UpsertTx(ctx context.Context, tx pgx.Tx, req booking.UpsertRequest) (booking.Booking, error)
	ReplaceServicesTx(ctx context.Context, tx pgx.Tx, bookingID int64, services []bookingservice.BookingService) error
}

// Planner reacts to a booking transition, planning/canceling jobs.
type Planner interface {
	Plan(ctx context.Context, tx pgx.Tx, b booking.Booking, transition event.Transition) ([]job.Job, error)
}

type Config struct {
	BatchSize    int
	PollInterval time.Duration
}

type Reconciler struct {
	cfg      Config
	pool     *pgxpool.Pool
	clock    clock.Clock
	events   EventsRepo
	clients  ClientsRepo
	bookings BookingsRepo
	planner  Planner
}

func New(cfg Config, pool *pgxpool.Pool, c clock.Clock, events EventsRepo, clients ClientsRepo, bookings BookingsRepo, planner Planner) *Reconciler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if c == nil {
		c = clock.System{}
	}
	return &Reconciler{cfg: cfg, pool: pool, clock: c, events: events, clients: clients, bookings: bookings, planner: planner}
}

// Run leases a batch of received events, marks them processing, then
// reconciles each in its own transaction so one bad event doesn't block
// the rest of the batch.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.runBatch(ctx)
			if err != nil {
				log.Printf("reconcile: batch error: %v", err)
				continue
			}
			if n == 0 {
				continue
			}
		}
	}
}

func (r *Reconciler) runBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}

	events, err := r.events.LeaseBatchTx(ctx, tx, r.cfg.BatchSize)
	if err != nil {
		tx.Rollback(ctx)
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	for _, e := range events {
		if err := r.reconcileOne(ctx, e); err != nil {
			log.Printf("reconcile: event=%s error: %v", e.ID, err)
		}
	}

	return len(events), nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, e event.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := r.clock.Now()

	if procErr := r.process(ctx, tx, e); procErr != nil {
		if err := r.events.MarkFailedTx(ctx, tx, e.ID, now, procErr.Error()); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if err := r.events.MarkProcessedTx(ctx, tx, e.ID, now); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Reconciler) process(ctx context.Context, tx pgx.Tx, e event.Event) error {
	var payload webhookPayload
	if len(e.RawPayload) > 0 {
		if err := json.Unmarshal(e.RawPayload, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}

	resource := payload.Resource
	if e.Resource != nil {
		resource = *e.Resource
	}

	switch resource {
	case "client":
		var cp clientPayload
		if len(payload.Data) > 0 {
			_ = json.Unmarshal(payload.Data, &cp)
		}
		_, err := r.upsertClient(ctx, tx, payload.CompanyID, cp)
		return err

	case "record", "record/booking", "booking":
		var rp recordPayload
		if len(payload.Data) > 0 {
			if err := json.Unmarshal(payload.Data, &rp); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
		}

		var clientID *int64
		if rp.Client != nil {
			c, err := r.upsertClient(ctx, tx, payload.CompanyID, *rp.Client)
			if err != nil {
				return fmt.Errorf("upsert client: %w", err)
			}
			clientID = &c.ID
		} else if rp.ClientID != nil {
			clientID = rp.ClientID
		}

		transition := event.Transition(payload.Status)
		if e.Transition != nil {
			transition = *e.Transition
		}
		isDeleted := transition == event.TransitionDelete

		startsAt := parseDatetime(rp.Datetime)
		var endsAt *time.Time
		var durationSec *int64
		if startsAt != nil && rp.SeanceLength != nil {
			end := startsAt.Add(time.Duration(*rp.SeanceLength) * time.Second)
			endsAt = &end
			durationSec = rp.SeanceLength
		}

		var totalCost *float64
		if len(rp.Services) > 0 {
			var sum float64
			for _, s := range rp.Services {
				if s.CostToPay != nil {
					sum += *s.CostToPay
				}
			}
			totalCost = &sum
		}

		lastChangeAt := parseDatetime(rp.LastChangeDate)

		b, err := r.bookings.UpsertTx(ctx, tx, booking.UpsertRequest{
			CompanyID:         payload.CompanyID,
			ExternalBookingID: rp.ID,
			ClientID:          clientID,
			ExternalClientID:  rp.ClientID,
			StaffID:           rp.StaffID,
			StaffName:         rp.StaffName,
			StartsAt:          startsAt,
			EndsAt:            endsAt,
			DurationSec:       durationSec,
			Comment:           rp.Comment,
			ShortLink:         rp.ShortLink,
			Confirmed:         rp.Confirmed,
			Attendance:        rp.Attendance,
			IsDeleted:         isDeleted,
			TotalCost:         totalCost,
			LastChangeAt:      lastChangeAt,
			Raw:               payload.Data,
		})
		if err != nil {
			return fmt.Errorf("upsert booking: %w", err)
		}

		services := make([]bookingservice.BookingService, 0, len(rp.Services))
		for _, s := range rp.Services {
			services = append(services, bookingservice.BookingService{
				BookingID: b.ID,
				ServiceID: s.ID,
				Title:     s.Title,
				Amount:    s.Amount,
				CostToPay: s.CostToPay,
			})
		}
		if err := r.bookings.ReplaceServicesTx(ctx, tx, b.ID, services); err != nil {
			return fmt.Errorf("replace services: %w", err)
		}

		if r.planner != nil {
			if _, err := r.planner.Plan(ctx, tx, b, transition); err != nil {
				return fmt.Errorf("plan: %w", err)
			}
		}
		return nil

	default:
		return nil
	}
}

func (r *Reconciler) upsertClient(ctx context.Context, tx pgx.Tx, companyID int64, cp clientPayload) (client.Client, error) {
	return r.clients.UpsertTx(ctx, tx, client.UpsertRequest{
		CompanyID:        companyID,
		ExternalClientID: cp.ID,
		PhoneE164:        cp.Phone,
		DisplayName:      cp.Name,
		Email:            cp.Email,
	})
}
