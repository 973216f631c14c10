package planner

import (
	"context"
	"testing"
	"time"

	"github.com/geocoder89/whatsflow/internal/clock"
	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/event"
	"github.com/geocoder89/whatsflow/internal/domain/job"
	"github.com/jackc/pgx/v5"
)

type fakeJobsRepo struct {
	enqueued []job.EnqueueRequest
	canceled []job.Type
}

func (f *fakeJobsRepo) EnqueueTx(ctx context.Context, tx pgx.Tx, req job.EnqueueRequest, now time.Time) (job.Job, error) {
	f.enqueued = append(f.enqueued, req)
	return job.New(req, now), nil
}

func (f *fakeJobsRepo) CancelQueuedTx(ctx context.Context, tx pgx.Tx, bookingID int64, types []job.Type) (int64, error) {
	f.canceled = append(f.canceled, types...)
	return 0, nil
}

func (f *fakeJobsRepo) typesEnqueued() []job.Type {
	var out []job.Type
	for _, r := range f.enqueued {
		out = append(out, r.JobType)
	}
	return out
}

func TestPlan_Create_ReminderBoundary24h(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	repo := &fakeJobsRepo{}
	p := New(repo, c, nil)

	startsAt := now.Add(25 * time.Hour)
	b := booking.Booking{CompanyID: 1, ExternalBookingID: 100, StartsAt: &startsAt}

	if _, err := p.Plan(context.Background(), nil, b, event.TransitionCreate); err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	types := repo.typesEnqueued()
	wantHas := map[job.Type]bool{
		job.TypeRecordCreated: false, job.TypeReminder24h: false,
		job.TypeReview3d: false, job.TypeRepeat10d: false,
	}
	for _, ty := range types {
		if _, ok := wantHas[ty]; ok {
			wantHas[ty] = true
		}
		if ty == job.TypeReminder2h {
			t.Fatalf("did not expect reminder_2h when delta > 24h, got types=%v", types)
		}
	}
	for ty, found := range wantHas {
		if !found {
			t.Fatalf("expected %s to be enqueued, types=%v", ty, types)
		}
	}
}

func TestPlan_Create_ReminderBoundary2h(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	repo := &fakeJobsRepo{}
	p := New(repo, c, nil)

	startsAt := now.Add(24 * time.Hour)
	b := booking.Booking{CompanyID: 1, ExternalBookingID: 100, StartsAt: &startsAt}

	if _, err := p.Plan(context.Background(), nil, b, event.TransitionCreate); err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	found2h := false
	for _, ty := range repo.typesEnqueued() {
		if ty == job.TypeReminder24h {
			t.Fatalf("did not expect reminder_24h when delta <= 24h")
		}
		if ty == job.TypeReminder2h {
			found2h = true
		}
	}
	if !found2h {
		t.Fatalf("expected reminder_2h to be enqueued")
	}
}

func TestPlan_Create_NoReminderUnderTwoHours(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	repo := &fakeJobsRepo{}
	p := New(repo, c, nil)

	startsAt := now.Add(30 * time.Minute)
	b := booking.Booking{CompanyID: 1, ExternalBookingID: 100, StartsAt: &startsAt}

	if _, err := p.Plan(context.Background(), nil, b, event.TransitionCreate); err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	for _, ty := range repo.typesEnqueued() {
		if ty == job.TypeReminder24h || ty == job.TypeReminder2h {
			t.Fatalf("did not expect a reminder job for a booking starting in 30 minutes, got %s", ty)
		}
	}
}

func TestPlan_Update_CancelsReminders_ThenReplans(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	repo := &fakeJobsRepo{}
	p := New(repo, c, nil)

	startsAt := now.Add(48 * time.Hour)
	b := booking.Booking{CompanyID: 1, ExternalBookingID: 100, StartsAt: &startsAt}

	if _, err := p.Plan(context.Background(), nil, b, event.TransitionUpdate); err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	if len(repo.canceled) != len(reminderTypes) {
		t.Fatalf("expected %d canceled reminder types, got %d", len(reminderTypes), len(repo.canceled))
	}

	foundUpdated, foundCreated := false, false
	for _, ty := range repo.typesEnqueued() {
		if ty == job.TypeRecordUpdated {
			foundUpdated = true
		}
		if ty == job.TypeRecordCreated {
			foundCreated = true
		}
	}
	if !foundUpdated {
		t.Fatalf("expected record_updated to be enqueued on update")
	}
	if foundCreated {
		t.Fatalf("did not expect record_created to be re-enqueued on update, types=%v", repo.typesEnqueued())
	}
}

func TestPlan_Create_EnqueuesInternalIDsNotExternal(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	repo := &fakeJobsRepo{}
	p := New(repo, c, nil)

	clientID := int64(55)
	b := booking.Booking{
		ID: 9001, CompanyID: 1, ExternalBookingID: 100,
		ClientID: &clientID, ExternalClientID: int64Ptr(55000),
	}

	if _, err := p.Plan(context.Background(), nil, b, event.TransitionCreate); err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	if len(repo.enqueued) == 0 {
		t.Fatalf("expected at least one enqueued job")
	}
	for _, req := range repo.enqueued {
		if req.BookingID == nil || *req.BookingID != b.ID {
			t.Fatalf("expected BookingID=%d (internal), got %v", b.ID, req.BookingID)
		}
		if req.ClientID == nil || *req.ClientID != clientID {
			t.Fatalf("expected ClientID=%d (internal), got %v", clientID, req.ClientID)
		}
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestPlan_Delete_CancelsAndSchedulesComeback(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	repo := &fakeJobsRepo{}
	p := New(repo, c, nil)

	b := booking.Booking{CompanyID: 1, ExternalBookingID: 100}

	jobs, err := p.Plan(context.Background(), nil, b, event.TransitionDelete)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs (canceled + comeback), got %d", len(jobs))
	}

	if repo.enqueued[1].RunAt.Sub(now) != 3*24*time.Hour {
		t.Fatalf("expected comeback_3d to run 3 days out, got %v", repo.enqueued[1].RunAt.Sub(now))
	}
}

func TestPlan_ShouldPlanFalse_SkipsCreate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	repo := &fakeJobsRepo{}
	p := New(repo, c, func(context.Context, booking.Booking) (bool, error) { return false, nil })

	b := booking.Booking{CompanyID: 1, ExternalBookingID: 100}

	jobs, err := p.Plan(context.Background(), nil, b, event.TransitionCreate)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs when shouldPlan returns false, got %d", len(jobs))
	}
}
