package event

import (
	"time"

	"github.com/google/uuid"
)

func NewFromCreateRequest(req CreateRequest) Event {
	now := time.Now().UTC()

	return Event{
		ID:          uuid.NewString(),
		Fingerprint: req.Fingerprint,
		ReceivedAt:  now,
		Status:      StatusReceived,
		CompanyID:   req.CompanyID,
		Resource:    req.Resource,
		ResourceID:  req.ResourceID,
		Transition:  req.Transition,
		RawQuery:    req.RawQuery,
		RawHeaders:  req.RawHeaders,
		RawPayload:  req.RawPayload,
	}
}
