package reconcile

import (
	"encoding/json"
	"time"
)

// webhookPayload is the subset of the Altegio/booking-system webhook body
// the Reconciler needs to upsert the canonical model. Fields are resolved
// leniently: a webhook missing a field simply leaves the corresponding
// booking/client column null.
type webhookPayload struct {
	CompanyID  int64           `json:"company_id"`
	Resource   string          `json:"resource"`
	ResourceID int64           `json:"resource_id"`
	Status     string          `json:"status"`
	Data       json.RawMessage `json:"data"`
}

type clientPayload struct {
	ID    int64   `json:"id"`
	Phone *string `json:"phone"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type servicePayload struct {
	ID        int64    `json:"id"`
	Title     *string  `json:"title"`
	Amount    *float64 `json:"amount"`
	CostToPay *float64 `json:"cost_to_pay"`
}

type recordPayload struct {
	ID             int64            `json:"id"`
	ClientID       *int64           `json:"client_id"`
	Client         *clientPayload   `json:"client"`
	StaffID        *int64           `json:"staff_id"`
	StaffName      *string          `json:"staff_name"`
	Datetime       *string          `json:"datetime"`
	SeanceLength   *int64           `json:"seance_length"`
	Comment        *string          `json:"comment"`
	ShortLink      *string          `json:"short_link"`
	Confirmed      *bool            `json:"confirmed"`
	Attendance     *int             `json:"attendance"`
	LastChangeDate *string          `json:"last_change_date"`
	Services       []servicePayload `json:"services"`
}

const dateLayout = "2006-01-02 15:04:05"

func parseDatetime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, *s); err == nil {
		u := t.UTC()
		return &u
	}
	if t, err := time.Parse(dateLayout, *s); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}
