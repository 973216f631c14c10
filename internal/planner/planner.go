// Package planner derives future-dated message jobs from booking state
// transitions, with dedupe and cancellation semantics.
package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/whatsflow/internal/clock"
	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/event"
	"github.com/geocoder89/whatsflow/internal/domain/job"
	"github.com/jackc/pgx/v5"
)

// ShouldPlan gates whether a booking is eligible for planning at all, e.g.
// restricting to specific service categories. The default always returns
// true; see servicefilter and LashesFilter for pluggable alternatives.
type ShouldPlan func(ctx context.Context, b booking.Booking) (bool, error)

func AlwaysPlan(context.Context, booking.Booking) (bool, error) { return true, nil }

type JobsRepo interface {
	EnqueueTx(ctx context.Context, tx pgx.Tx, req job.EnqueueRequest, now time.Time) (job.Job, error)
	CancelQueuedTx(ctx context.Context, tx pgx.Tx, bookingID int64, types []job.Type) (int64, error)
}

type Planner struct {
	jobs       JobsRepo
	clock      clock.Clock
	shouldPlan ShouldPlan
}

func New(jobs JobsRepo, c clock.Clock, shouldPlan ShouldPlan) *Planner {
	if shouldPlan == nil {
		shouldPlan = AlwaysPlan
	}
	return &Planner{jobs: jobs, clock: c, shouldPlan: shouldPlan}
}

// reminderTypes are the types canceled/re-planned on update, and canceled on
// delete, keeping a booking from sending a reminder for a time slot it no
// longer occupies.
var reminderTypes = []job.Type{
	job.TypeReminder24h,
	job.TypeReminder2h,
	job.TypeReview3d,
	job.TypeRepeat10d,
}

// Plan reacts to a booking transition, enqueuing and canceling jobs per the
// scheduling table. It must run inside the same transaction that upserted
// the booking row, so cancellation and (re-)enqueue are atomic with it.
func (p *Planner) Plan(ctx context.Context, tx pgx.Tx, b booking.Booking, transition event.Transition) ([]job.Job, error) {
	now := p.clock.Now()

	switch transition {
	case event.TransitionCreate:
		return p.planCreate(ctx, tx, b, now)
	case event.TransitionUpdate:
		if _, err := p.jobs.CancelQueuedTx(ctx, tx, b.ID, reminderTypes); err != nil {
			return nil, fmt.Errorf("planner: cancel reminders on update: %w", err)
		}
		updated, err := p.planUpdated(ctx, tx, b, now)
		if err != nil {
			return nil, err
		}
		replanned, err := p.planReminders(ctx, tx, b, now)
		if err != nil {
			return nil, err
		}
		return append(updated, replanned...), nil
	case event.TransitionDelete:
		if _, err := p.jobs.CancelQueuedTx(ctx, tx, b.ID, reminderTypes); err != nil {
			return nil, fmt.Errorf("planner: cancel reminders on delete: %w", err)
		}
		return p.planDeleted(ctx, tx, b, now)
	default:
		return nil, fmt.Errorf("planner: unknown transition %q", transition)
	}
}

func (p *Planner) planCreate(ctx context.Context, tx pgx.Tx, b booking.Booking, now time.Time) ([]job.Job, error) {
	ok, err := p.shouldPlan(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("planner: shouldPlan: %w", err)
	}
	if !ok {
		return nil, nil
	}

	created, err := p.enqueue(ctx, tx, b, job.TypeRecordCreated, now, now)
	if err != nil {
		return nil, err
	}

	reminders, err := p.planReminders(ctx, tx, b, now)
	if err != nil {
		return nil, err
	}

	return append([]job.Job{created}, reminders...), nil
}

// planReminders schedules the reminder/review/repeat jobs per the
// boundary table, shared by create (fresh schedule) and update
// (re-plan after the reminder cancellation above).
func (p *Planner) planReminders(ctx context.Context, tx pgx.Tx, b booking.Booking, now time.Time) ([]job.Job, error) {
	if b.StartsAt == nil {
		return nil, nil
	}

	var out []job.Job
	startsAt := *b.StartsAt
	delta := startsAt.Sub(now)

	if delta > 24*time.Hour {
		runAt := startsAt.Add(-24 * time.Hour)
		j, err := p.enqueue(ctx, tx, b, job.TypeReminder24h, runAt, now)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	} else if delta > 2*time.Hour {
		runAt := startsAt.Add(-2 * time.Hour)
		j, err := p.enqueue(ctx, tx, b, job.TypeReminder2h, runAt, now)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}

	review, err := p.enqueue(ctx, tx, b, job.TypeReview3d, startsAt.Add(3*24*time.Hour), now)
	if err != nil {
		return nil, err
	}
	out = append(out, review)

	repeat, err := p.enqueue(ctx, tx, b, job.TypeRepeat10d, startsAt.Add(10*24*time.Hour), now)
	if err != nil {
		return nil, err
	}
	out = append(out, repeat)

	return out, nil
}

func (p *Planner) planUpdated(ctx context.Context, tx pgx.Tx, b booking.Booking, now time.Time) ([]job.Job, error) {
	j, err := p.enqueueDebounced(ctx, tx, b, job.TypeRecordUpdated, now)
	if err != nil {
		return nil, err
	}
	return []job.Job{j}, nil
}

func (p *Planner) planDeleted(ctx context.Context, tx pgx.Tx, b booking.Booking, now time.Time) ([]job.Job, error) {
	canceled, err := p.enqueue(ctx, tx, b, job.TypeRecordCanceled, now, now)
	if err != nil {
		return nil, err
	}
	comeback, err := p.enqueue(ctx, tx, b, job.TypeComeback3d, now.Add(3*24*time.Hour), now)
	if err != nil {
		return nil, err
	}
	return []job.Job{canceled, comeback}, nil
}

func (p *Planner) enqueue(ctx context.Context, tx pgx.Tx, b booking.Booking, jobType job.Type, runAt, now time.Time) (job.Job, error) {
	// dedupeKey is keyed by the external booking id (stable across
	// re-reconciliation), even though the job itself carries internal ids
	// for the outbox worker to resolve booking/client rows by.
	dedupeKey := fmt.Sprintf("%s:%d:%s", jobType, b.ExternalBookingID, runAt.UTC().Format(time.RFC3339Nano))
	return p.jobs.EnqueueTx(ctx, tx, job.EnqueueRequest{
		CompanyID: b.CompanyID,
		BookingID: &b.ID,
		ClientID:  b.ClientID,
		JobType:   jobType,
		DedupeKey: dedupeKey,
		RunAt:     runAt,
	}, now)
}

// enqueueDebounced buckets the dedupe key to the current 60-second window,
// collapsing rapid-fire updates into a single job.
func (p *Planner) enqueueDebounced(ctx context.Context, tx pgx.Tx, b booking.Booking, jobType job.Type, now time.Time) (job.Job, error) {
	bucket := now.Unix() / 60
	dedupeKey := fmt.Sprintf("%s:%d:%d", jobType, b.ExternalBookingID, bucket)
	return p.jobs.EnqueueTx(ctx, tx, job.EnqueueRequest{
		CompanyID: b.CompanyID,
		BookingID: &b.ID,
		ClientID:  b.ClientID,
		JobType:   jobType,
		DedupeKey: dedupeKey,
		RunAt:     now.Add(60 * time.Second),
	}, now)
}
