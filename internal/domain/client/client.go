package client

import (
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("client not found")

// Client is a booking-system contact, keyed per company.
type Client struct {
	ID               int64           `json:"id"`
	CompanyID        int64           `json:"companyId"`
	ExternalClientID int64           `json:"externalClientId"`
	PhoneE164        *string         `json:"phoneE164,omitempty"`
	DisplayName      *string         `json:"displayName,omitempty"`
	Email            *string         `json:"email,omitempty"`
	Raw              json.RawMessage `json:"raw,omitempty"`
}

// UpsertRequest is the input to reconciling a client from a webhook payload.
type UpsertRequest struct {
	CompanyID        int64
	ExternalClientID int64
	PhoneE164        *string
	DisplayName      *string
	Email            *string
	Raw              json.RawMessage
}
