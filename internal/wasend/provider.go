// Package wasend sends rendered messages over WhatsApp via a pluggable
// provider, with a circuit breaker protecting the outbox worker from a
// provider outage.
package wasend

import "context"

// Provider sends a single text message and returns the provider's message
// id for later delivery-status correlation.
type Provider interface {
	Send(ctx context.Context, senderID int64, phoneE164, text string) (messageID string, err error)
}
