package outbox

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// SuccessStatuses are the statuses that satisfy the job's
// exactly-once-business-semantics short-circuit check.
var SuccessStatuses = []Status{StatusSent, StatusDelivered, StatusRead}

// Outbox is one durable record of a send attempt.
type Outbox struct {
	ID                int64           `json:"id"`
	CompanyID         int64           `json:"companyId"`
	ClientID          *int64          `json:"clientId,omitempty"`
	BookingID         *int64          `json:"bookingId,omitempty"`
	JobID             *string         `json:"jobId,omitempty"`
	SenderID          *int64          `json:"senderId,omitempty"`
	PhoneE164         string          `json:"phoneE164"`
	TemplateCode      string          `json:"templateCode"`
	Language          string          `json:"language"`
	Body              string          `json:"body"`
	Status            Status          `json:"status"`
	ProviderMessageID *string         `json:"providerMessageId,omitempty"`
	Error             *string         `json:"error,omitempty"`
	ScheduledAt       time.Time       `json:"scheduledAt"`
	SentAt            *time.Time      `json:"sentAt,omitempty"`
	Meta              json.RawMessage `json:"meta,omitempty"`
}

// CreateRequest is the input to recording a send attempt.
type CreateRequest struct {
	CompanyID         int64
	ClientID          *int64
	BookingID         *int64
	JobID             *string
	SenderID          *int64
	PhoneE164         string
	TemplateCode      string
	Language          string
	Body              string
	Status            Status
	ProviderMessageID *string
	Error             *string
	ScheduledAt       time.Time
	SentAt            *time.Time
}
