package event

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusReceived   Status = "received"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

type Transition string

const (
	TransitionCreate Transition = "create"
	TransitionUpdate Transition = "update"
	TransitionDelete Transition = "delete"
)

var ErrNotFound = errors.New("event not found")

// Event is a raw webhook delivery, deduplicated by Fingerprint.
type Event struct {
	ID          string          `json:"id"`
	Fingerprint string          `json:"fingerprint"`
	ReceivedAt  time.Time       `json:"receivedAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	Status      Status          `json:"status"`
	CompanyID   *int64          `json:"companyId,omitempty"`
	Resource    *string         `json:"resource,omitempty"`
	ResourceID  *int64          `json:"resourceId,omitempty"`
	Transition  *Transition     `json:"transition,omitempty"`
	RawQuery    json.RawMessage `json:"rawQuery,omitempty"`
	RawHeaders  json.RawMessage `json:"rawHeaders,omitempty"`
	RawPayload  json.RawMessage `json:"rawPayload"`
	Error       *string         `json:"error,omitempty"`
}

// CreateRequest is the input to persisting a newly ingested event.
type CreateRequest struct {
	Fingerprint string
	CompanyID   *int64
	Resource    *string
	ResourceID  *int64
	Transition  *Transition
	RawQuery    json.RawMessage
	RawHeaders  json.RawMessage
	RawPayload  json.RawMessage
}
