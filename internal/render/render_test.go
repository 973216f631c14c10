package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/bookingservice"
	"github.com/geocoder89/whatsflow/internal/domain/client"
	"github.com/geocoder89/whatsflow/internal/domain/template"
)

type fakeTemplates struct {
	byLang map[string]template.Template
}

func (f *fakeTemplates) Resolve(ctx context.Context, companyID int64, code, preferredLanguage string) (template.Template, error) {
	if t, ok := f.byLang[preferredLanguage]; ok {
		return t, nil
	}
	if t, ok := f.byLang[DefaultLanguage]; ok {
		return t, nil
	}
	return template.Template{}, errNotFound
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "template not found" }

type fakeBookings struct {
	services []bookingservice.BookingService
	earlier  bool
}

func (f *fakeBookings) ListServices(ctx context.Context, bookingID int64) ([]bookingservice.BookingService, error) {
	return f.services, nil
}

func (f *fakeBookings) HasEarlierBooking(ctx context.Context, companyID, clientID, excludeBookingID int64, startsAt time.Time) (bool, error) {
	return f.earlier, nil
}

type fakeRouter struct {
	code     string
	senderID int64
}

func (f *fakeRouter) PickSenderCode(ctx context.Context, companyID, bookingID int64) (string, error) {
	return f.code, nil
}

func (f *fakeRouter) PickSenderID(ctx context.Context, companyID int64, senderCode string) (int64, bool, error) {
	return f.senderID, true, nil
}

func TestRender_SubstitutesKnownPlaceholders(t *testing.T) {
	tmpl := template.Template{Code: "record_created", Language: "en", Body: "Hi {client_name}, see you {date} at {time}."}
	templates := &fakeTemplates{byLang: map[string]template.Template{"en": tmpl}}
	bookings := &fakeBookings{earlier: true}
	router := &fakeRouter{code: "default", senderID: 7}
	r := New(templates, bookings, router, nil, time.UTC)

	name := "Anna"
	startsAt := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	b := &booking.Booking{ID: 1, StartsAt: &startsAt}
	c := &client.Client{DisplayName: &name}

	res, err := r.Render(context.Background(), 1, "record_created", "en", b, c)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.Contains(res.Body, "Anna") {
		t.Fatalf("expected body to contain client name, got %q", res.Body)
	}
	if !strings.Contains(res.Body, "04.03.2026") {
		t.Fatalf("expected body to contain formatted date, got %q", res.Body)
	}
	if res.SenderID != 7 {
		t.Fatalf("expected sender id 7, got %d", res.SenderID)
	}
}

func TestRender_LanguageFallback(t *testing.T) {
	tmpl := template.Template{Code: "record_created", Language: DefaultLanguage, Body: "Hallo {client_name}"}
	templates := &fakeTemplates{byLang: map[string]template.Template{DefaultLanguage: tmpl}}
	bookings := &fakeBookings{earlier: true}
	router := &fakeRouter{code: "default", senderID: 1}
	r := New(templates, bookings, router, nil, time.UTC)

	res, err := r.Render(context.Background(), 1, "record_created", "fr", nil, nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if res.Language != DefaultLanguage {
		t.Fatalf("expected fallback to default language, got %q", res.Language)
	}
}

func TestRender_UnknownPlaceholderErrors(t *testing.T) {
	tmpl := template.Template{Code: "record_created", Language: "en", Body: "Hi {nonsense}"}
	templates := &fakeTemplates{byLang: map[string]template.Template{"en": tmpl}}
	bookings := &fakeBookings{}
	router := &fakeRouter{code: "default", senderID: 1}
	r := New(templates, bookings, router, nil, time.UTC)

	if _, err := r.Render(context.Background(), 1, "record_created", "en", nil, nil); err == nil {
		t.Fatalf("expected error for unknown placeholder")
	}
}

func TestRender_PreAppointmentNotes_OnlyForFirstBookingInGerman(t *testing.T) {
	tmpl := template.Template{Code: "record_created", Language: DefaultLanguage, Body: "{pre_appointment_notes}"}
	templates := &fakeTemplates{byLang: map[string]template.Template{DefaultLanguage: tmpl}}
	router := &fakeRouter{code: "default", senderID: 1}

	clientID := int64(42)
	startsAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	b := &booking.Booking{ID: 9, ClientID: &clientID, StartsAt: &startsAt}

	t.Run("no earlier booking includes notes", func(t *testing.T) {
		bookings := &fakeBookings{earlier: false}
		r := New(templates, bookings, router, nil, time.UTC)
		res, err := r.Render(context.Background(), 1, "record_created", DefaultLanguage, b, nil)
		if err != nil {
			t.Fatalf("Render error: %v", err)
		}
		if !strings.Contains(res.Body, "Wichtige Hinweise") {
			t.Fatalf("expected pre-appointment notes for first-time client, got %q", res.Body)
		}
	})

	t.Run("earlier booking excludes notes", func(t *testing.T) {
		bookings := &fakeBookings{earlier: true}
		r := New(templates, bookings, router, nil, time.UTC)
		res, err := r.Render(context.Background(), 1, "record_created", DefaultLanguage, b, nil)
		if err != nil {
			t.Fatalf("Render error: %v", err)
		}
		if strings.TrimSpace(res.Body) != "" {
			t.Fatalf("expected no pre-appointment notes for a returning client, got %q", res.Body)
		}
	})
}

func TestRender_ServiceFieldsSortedByServiceID(t *testing.T) {
	tmpl := template.Template{Code: "record_created", Language: "en", Body: "{services} total {total_cost} first {primary_service}"}
	templates := &fakeTemplates{byLang: map[string]template.Template{"en": tmpl}}
	titleA, titleB := "Lash Fill", "Lash Full Set"
	costA, costB := 60.0, 90.0
	bookings := &fakeBookings{
		earlier: true,
		services: []bookingservice.BookingService{
			{ServiceID: 2, Title: &titleB, CostToPay: &costB},
			{ServiceID: 1, Title: &titleA, CostToPay: &costA},
		},
	}
	router := &fakeRouter{code: "default", senderID: 1}
	r := New(templates, bookings, router, nil, time.UTC)

	b := &booking.Booking{ID: 3}
	res, err := r.Render(context.Background(), 1, "record_created", "en", b, nil)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.Contains(res.Body, "total 150.00") {
		t.Fatalf("expected summed total cost 150.00, got %q", res.Body)
	}
	if !strings.Contains(res.Body, "first Lash Fill") {
		t.Fatalf("expected primary service to be the lowest service id, got %q", res.Body)
	}
}
