package reconcile

import (
	"context"
	"testing"

	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/bookingservice"
	"github.com/geocoder89/whatsflow/internal/domain/client"
	"github.com/geocoder89/whatsflow/internal/domain/event"
	"github.com/geocoder89/whatsflow/internal/domain/job"
	"github.com/jackc/pgx/v5"
)

type fakeClientsRepo struct {
	lastReq client.UpsertRequest
	nextID  int64
}

func (f *fakeClientsRepo) UpsertTx(ctx context.Context, tx pgx.Tx, req client.UpsertRequest) (client.Client, error) {
	f.lastReq = req
	f.nextID++
	return client.Client{ID: f.nextID, CompanyID: req.CompanyID, ExternalClientID: req.ExternalClientID}, nil
}

type fakeBookingsRepo struct {
	lastUpsert  booking.UpsertRequest
	lastServices []bookingservice.BookingService
	nextID      int64
}

func (f *fakeBookingsRepo) UpsertTx(ctx context.Context, tx pgx.Tx, req booking.UpsertRequest) (booking.Booking, error) {
	f.lastUpsert = req
	f.nextID++
	return booking.Booking{
		ID: f.nextID, CompanyID: req.CompanyID, ExternalBookingID: req.ExternalBookingID,
		ClientID: req.ClientID, StartsAt: req.StartsAt, IsDeleted: req.IsDeleted,
	}, nil
}

func (f *fakeBookingsRepo) ReplaceServicesTx(ctx context.Context, tx pgx.Tx, bookingID int64, services []bookingservice.BookingService) error {
	f.lastServices = services
	return nil
}

type fakePlanner struct {
	calls      int
	lastTrans  event.Transition
	lastBookingID int64
}

func (f *fakePlanner) Plan(ctx context.Context, tx pgx.Tx, b booking.Booking, transition event.Transition) ([]job.Job, error) {
	f.calls++
	f.lastTrans = transition
	f.lastBookingID = b.ExternalBookingID
	return nil, nil
}

func newTestReconciler(clients *fakeClientsRepo, bookings *fakeBookingsRepo, planner *fakePlanner) *Reconciler {
	return &Reconciler{clients: clients, bookings: bookings, planner: planner}
}

func TestProcess_ClientResourceUpsertsOnly(t *testing.T) {
	clients := &fakeClientsRepo{}
	bookings := &fakeBookingsRepo{}
	planner := &fakePlanner{}
	r := newTestReconciler(clients, bookings, planner)

	payload := []byte(`{"company_id":1,"resource":"client","data":{"id":42,"name":"Anna"}}`)
	e := event.Event{RawPayload: payload}

	if err := r.process(context.Background(), nil, e); err != nil {
		t.Fatalf("process error: %v", err)
	}
	if clients.lastReq.ExternalClientID != 42 {
		t.Fatalf("expected client upsert with external id 42, got %+v", clients.lastReq)
	}
	if planner.calls != 0 {
		t.Fatalf("expected planner not invoked for a client-only event")
	}
}

func TestProcess_RecordResourceUpsertsBookingAndPlans(t *testing.T) {
	clients := &fakeClientsRepo{}
	bookings := &fakeBookingsRepo{}
	planner := &fakePlanner{}
	r := newTestReconciler(clients, bookings, planner)

	payload := []byte(`{"company_id":1,"resource":"record","status":"create","data":{
		"id":100,"client_id":7,"datetime":"2026-03-01 10:00:00",
		"seance_length":3600,"services":[{"id":1,"cost_to_pay":60.0}]
	}}`)
	e := event.Event{RawPayload: payload}

	if err := r.process(context.Background(), nil, e); err != nil {
		t.Fatalf("process error: %v", err)
	}
	if bookings.lastUpsert.ExternalBookingID != 100 {
		t.Fatalf("expected booking external id 100, got %+v", bookings.lastUpsert)
	}
	if bookings.lastUpsert.StartsAt == nil {
		t.Fatalf("expected parsed starts_at")
	}
	if len(bookings.lastServices) != 1 {
		t.Fatalf("expected 1 replaced service, got %d", len(bookings.lastServices))
	}
	if planner.calls != 1 || planner.lastTrans != event.TransitionCreate {
		t.Fatalf("expected planner invoked once with create transition, got calls=%d trans=%s", planner.calls, planner.lastTrans)
	}
}

func TestProcess_DeleteTransitionMarksBookingDeleted(t *testing.T) {
	clients := &fakeClientsRepo{}
	bookings := &fakeBookingsRepo{}
	planner := &fakePlanner{}
	r := newTestReconciler(clients, bookings, planner)

	payload := []byte(`{"company_id":1,"resource":"record","status":"delete","data":{"id":55}}`)
	e := event.Event{RawPayload: payload}

	if err := r.process(context.Background(), nil, e); err != nil {
		t.Fatalf("process error: %v", err)
	}
	if !bookings.lastUpsert.IsDeleted {
		t.Fatalf("expected booking upsert to be marked deleted")
	}
	if planner.lastTrans != event.TransitionDelete {
		t.Fatalf("expected delete transition passed to planner, got %s", planner.lastTrans)
	}
}

func TestProcess_EventTransitionOverridesPayloadStatus(t *testing.T) {
	clients := &fakeClientsRepo{}
	bookings := &fakeBookingsRepo{}
	planner := &fakePlanner{}
	r := newTestReconciler(clients, bookings, planner)

	payload := []byte(`{"company_id":1,"resource":"record","status":"create","data":{"id":9}}`)
	override := event.TransitionUpdate
	e := event.Event{RawPayload: payload, Transition: &override}

	if err := r.process(context.Background(), nil, e); err != nil {
		t.Fatalf("process error: %v", err)
	}
	if planner.lastTrans != event.TransitionUpdate {
		t.Fatalf("expected event.Transition to override payload status, got %s", planner.lastTrans)
	}
}

func TestProcess_UnknownResourceIsANoOp(t *testing.T) {
	clients := &fakeClientsRepo{}
	bookings := &fakeBookingsRepo{}
	planner := &fakePlanner{}
	r := newTestReconciler(clients, bookings, planner)

	payload := []byte(`{"company_id":1,"resource":"staff","data":{}}`)
	e := event.Event{RawPayload: payload}

	if err := r.process(context.Background(), nil, e); err != nil {
		t.Fatalf("process error: %v", err)
	}
	if planner.calls != 0 || bookings.lastUpsert.ExternalBookingID != 0 {
		t.Fatalf("expected no side effects for an unrecognized resource")
	}
}
