package job

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Type is the message job taxonomy the Planner emits.
type Type string

const (
	TypeRecordCreated  Type = "record_created"
	TypeReminder24h    Type = "reminder_24h"
	TypeReminder2h     Type = "reminder_2h"
	TypeReview3d       Type = "review_3d"
	TypeRepeat10d      Type = "repeat_10d"
	TypeRecordUpdated  Type = "record_updated"
	TypeRecordCanceled Type = "record_canceled"
	TypeComeback3d     Type = "comeback_3d"
)

// ReminderTypes lists the two pre-appointment reminder job types. The
// planner's update/delete cancellation uses its own wider list (these plus
// review_3d and repeat_10d), not this one.
var ReminderTypes = []Type{TypeReminder24h, TypeReminder2h}

var (
	ErrNotFound  = errors.New("job not found")
	ErrNotFailed = errors.New("job is not in failed status")
)

const DefaultMaxAttempts = 5

// Job is a scheduled message send, deduped by DedupeKey.
type Job struct {
	ID          string          `json:"id"`
	CompanyID   int64           `json:"companyId"`
	BookingID   *int64          `json:"bookingId,omitempty"`
	ClientID    *int64          `json:"clientId,omitempty"`
	JobType     Type            `json:"jobType"`
	DedupeKey   string          `json:"dedupeKey"`
	RunAt       time.Time       `json:"runAt"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	LockedAt    *time.Time      `json:"lockedAt,omitempty"`
	LastError   *string         `json:"lastError,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// EnqueueRequest is the input to the Planner's conditional-upsert enqueue.
type EnqueueRequest struct {
	CompanyID   int64
	BookingID   *int64
	ClientID    *int64
	JobType     Type
	DedupeKey   string
	RunAt       time.Time
	MaxAttempts int
	Payload     json.RawMessage
}

func New(req EnqueueRequest, now time.Time) Job {
	maxA := req.MaxAttempts
	if maxA <= 0 {
		maxA = DefaultMaxAttempts
	}

	return Job{
		CompanyID:   req.CompanyID,
		BookingID:   req.BookingID,
		ClientID:    req.ClientID,
		JobType:     req.JobType,
		DedupeKey:   req.DedupeKey,
		RunAt:       req.RunAt,
		Status:      StatusQueued,
		Attempts:    0,
		MaxAttempts: maxA,
		Payload:     req.Payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
