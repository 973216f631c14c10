// Package render substitutes a resolved template's named placeholders with
// booking, client, and routing data.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/geocoder89/whatsflow/internal/domain/booking"
	"github.com/geocoder89/whatsflow/internal/domain/bookingservice"
	"github.com/geocoder89/whatsflow/internal/domain/client"
	"github.com/geocoder89/whatsflow/internal/domain/template"
)

const DefaultLanguage = "de"

// preAppointmentNotesDE is appended to record_created messages, in German,
// for clients with no earlier booking in the company.
const preAppointmentNotesDE = "\n\nWichtige Hinweise vor dem Termin:\n" +
	"• Bitte pünktlich kommen — ab 15 Min. Verspätung können wir nicht garantieren, dass der Termin stattfindet.\n" +
	"• Wimpern bitte sauber: ohne Mascara, ohne geklebte Wimpern.\n" +
	"• Falls Sie schon eine Kundenkarte haben, bitte mitbringen.\n" +
	"• Auffüllen: ab 3. Woche 60 €, ab 4. Woche 70 €, ab 5. Woche keine Auffüllung (Neuauflage).\n" +
	"• Zahlung: bar oder mit Karte.\n"

var knownPlaceholders = map[string]struct{}{
	"client_name": {}, "staff_name": {}, "date": {}, "time": {}, "services": {},
	"total_cost": {}, "short_link": {}, "unsubscribe_link": {}, "sender_id": {},
	"sender_code": {}, "pre_appointment_notes": {}, "primary_service": {},
}

type TemplatesRepo interface {
	Resolve(ctx context.Context, companyID int64, code, preferredLanguage string) (template.Template, error)
}

type BookingsRepo interface {
	ListServices(ctx context.Context, bookingID int64) ([]bookingservice.BookingService, error)
	HasEarlierBooking(ctx context.Context, companyID, clientID, excludeBookingID int64, startsAt time.Time) (bool, error)
}

type SenderRouter interface {
	PickSenderCode(ctx context.Context, companyID, bookingID int64) (string, error)
	PickSenderID(ctx context.Context, companyID int64, senderCode string) (int64, bool, error)
}

type Renderer struct {
	templates        TemplatesRepo
	bookings         BookingsRepo
	router           SenderRouter
	unsubscribeLinks map[int64]string
	businessLoc      *time.Location
}

func New(templates TemplatesRepo, bookings BookingsRepo, router SenderRouter, unsubscribeLinks map[int64]string, businessLoc *time.Location) *Renderer {
	if businessLoc == nil {
		businessLoc = time.UTC
	}
	return &Renderer{
		templates:        templates,
		bookings:         bookings,
		router:           router,
		unsubscribeLinks: unsubscribeLinks,
		businessLoc:      businessLoc,
	}
}

type Result struct {
	Body       string
	SenderID   int64
	Language   string
	SenderCode string
}

// Render resolves a template for (companyID, templateCode, preferredLanguage)
// and substitutes its placeholders from booking/client state.
func (r *Renderer) Render(ctx context.Context, companyID int64, templateCode, preferredLanguage string, b *booking.Booking, c *client.Client) (Result, error) {
	tmpl, err := r.templates.Resolve(ctx, companyID, templateCode, preferredLanguage)
	if err != nil {
		return Result{}, fmt.Errorf("render: resolve template: %w", err)
	}

	senderCode := "default"
	var bookingID int64
	if b != nil {
		bookingID = b.ID
		senderCode, err = r.router.PickSenderCode(ctx, companyID, bookingID)
		if err != nil {
			return Result{}, fmt.Errorf("render: pick sender code: %w", err)
		}
	}

	senderID, ok, err := r.router.PickSenderID(ctx, companyID, senderCode)
	if err != nil {
		return Result{}, fmt.Errorf("render: pick sender id: %w", err)
	}
	if !ok {
		return Result{}, fmt.Errorf("render: no active sender for company=%d code=%s", companyID, senderCode)
	}

	servicesText, totalCost, primaryService, err := r.serviceFields(ctx, b)
	if err != nil {
		return Result{}, err
	}

	preAppointmentNotes := ""
	if templateCode == "record_created" && b != nil && tmpl.Language == DefaultLanguage && b.ClientID != nil && b.StartsAt != nil {
		earlier, err := r.bookings.HasEarlierBooking(ctx, companyID, *b.ClientID, b.ID, *b.StartsAt)
		if err != nil {
			return Result{}, fmt.Errorf("render: has earlier booking: %w", err)
		}
		if !earlier {
			preAppointmentNotes = preAppointmentNotesDE
		}
	}

	ctx2 := map[string]string{
		"client_name":           clientName(c),
		"staff_name":            staffName(b),
		"date":                  formatDate(b, r.businessLoc),
		"time":                  formatTime(b, r.businessLoc),
		"services":              servicesText,
		"total_cost":            totalCost,
		"short_link":            shortLink(b),
		"unsubscribe_link":      r.unsubscribeLinks[companyID],
		"sender_id":             fmt.Sprintf("%d", senderID),
		"sender_code":           senderCode,
		"pre_appointment_notes": preAppointmentNotes,
		"primary_service":       primaryService,
	}

	body, err := substitute(tmpl.Body, ctx2)
	if err != nil {
		return Result{}, err
	}

	return Result{Body: body, SenderID: senderID, Language: tmpl.Language, SenderCode: senderCode}, nil
}

func (r *Renderer) serviceFields(ctx context.Context, b *booking.Booking) (servicesText, totalCost, primaryService string, err error) {
	if b == nil {
		return "", "0.00", "", nil
	}

	services, err := r.bookings.ListServices(ctx, b.ID)
	if err != nil {
		return "", "", "", fmt.Errorf("render: list services: %w", err)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ServiceID < services[j].ServiceID })

	var lines []string
	var sum float64
	for i, s := range services {
		title := ""
		if s.Title != nil {
			title = *s.Title
		}
		cost := 0.0
		if s.CostToPay != nil {
			cost = *s.CostToPay
			sum += cost
		}
		lines = append(lines, fmt.Sprintf("%s — %.2f€", title, cost))
		if i == 0 {
			primaryService = title
		}
	}

	return strings.Join(lines, "\n"), fmt.Sprintf("%.2f", sum), primaryService, nil
}

// substitute replaces {placeholder} tokens literally. A placeholder in the
// template body that isn't in the known set is an error.
func substitute(body string, values map[string]string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(body) {
		open := strings.IndexByte(body[i:], '{')
		if open < 0 {
			out.WriteString(body[i:])
			break
		}
		out.WriteString(body[i : i+open])
		start := i + open
		end := strings.IndexByte(body[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("render: unterminated placeholder in template")
		}
		name := body[start+1 : start+end]
		if _, ok := knownPlaceholders[name]; !ok {
			return "", fmt.Errorf("render: unknown placeholder %q", name)
		}
		out.WriteString(values[name])
		i = start + end + 1
	}
	return out.String(), nil
}

func clientName(c *client.Client) string {
	if c == nil || c.DisplayName == nil {
		return ""
	}
	return *c.DisplayName
}

func staffName(b *booking.Booking) string {
	if b == nil || b.StaffName == nil {
		return ""
	}
	return *b.StaffName
}

func shortLink(b *booking.Booking) string {
	if b == nil || b.ShortLink == nil {
		return ""
	}
	return *b.ShortLink
}

func formatDate(b *booking.Booking, loc *time.Location) string {
	if b == nil || b.StartsAt == nil {
		return ""
	}
	return b.StartsAt.In(loc).Format("02.01.2006")
}

func formatTime(b *booking.Booking, loc *time.Location) string {
	if b == nil || b.StartsAt == nil {
		return ""
	}
	return b.StartsAt.In(loc).Format("15:04")
}
