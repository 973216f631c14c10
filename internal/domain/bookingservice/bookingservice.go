package bookingservice

import "encoding/json"

// BookingService is one line item of a Booking. Primary key (BookingID, ServiceID).
type BookingService struct {
	BookingID int64           `json:"bookingId"`
	ServiceID int64           `json:"serviceId"`
	Title     *string         `json:"title,omitempty"`
	Amount    *float64        `json:"amount,omitempty"`
	CostToPay *float64        `json:"costToPay,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}
