package contactratelimit

import "time"

// ContactRateLimit throttles outbound sends to a single phone number.
type ContactRateLimit struct {
	PhoneE164     string    `json:"phoneE164"`
	NextAllowedAt time.Time `json:"nextAllowedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// MinSecondsBetweenMessages is the admission gap enforced per recipient.
const MinSecondsBetweenMessages = 30
