package booking

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("booking not found")

// Booking is the canonical appointment record reconciled from webhook events.
// Also known in upstream systems as a "record".
type Booking struct {
	ID                int64           `json:"id"`
	CompanyID         int64           `json:"companyId"`
	ExternalBookingID int64           `json:"externalBookingId"`
	ClientID          *int64          `json:"clientId,omitempty"`
	ExternalClientID  *int64          `json:"externalClientId,omitempty"`
	StaffID           *int64          `json:"staffId,omitempty"`
	StaffName         *string         `json:"staffName,omitempty"`
	StartsAt          *time.Time      `json:"startsAt,omitempty"`
	EndsAt            *time.Time      `json:"endsAt,omitempty"`
	DurationSec       *int64          `json:"durationSec,omitempty"`
	Comment           *string         `json:"comment,omitempty"`
	ShortLink         *string         `json:"shortLink,omitempty"`
	Confirmed         *bool           `json:"confirmed,omitempty"`
	Attendance        *int            `json:"attendance,omitempty"`
	IsDeleted         bool            `json:"isDeleted"`
	TotalCost         *float64        `json:"totalCost,omitempty"`
	LastChangeAt      *time.Time      `json:"lastChangeAt,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// UpsertRequest is the input to reconciling a booking from a webhook payload.
type UpsertRequest struct {
	CompanyID         int64
	ExternalBookingID int64
	ClientID          *int64
	ExternalClientID  *int64
	StaffID           *int64
	StaffName         *string
	StartsAt          *time.Time
	EndsAt            *time.Time
	DurationSec       *int64
	Comment           *string
	ShortLink         *string
	Confirmed         *bool
	Attendance        *int
	IsDeleted         bool
	TotalCost         *float64
	LastChangeAt      *time.Time
	Raw               json.RawMessage
}
