package wasend

import (
	"context"

	"github.com/google/uuid"
)

// DummyProvider never talks to a real WhatsApp endpoint; it's the default
// provider outside production, and the one real sends are gated behind.
type DummyProvider struct{}

func (DummyProvider) Send(_ context.Context, _ int64, _, _ string) (string, error) {
	return "dummy-" + uuid.NewString(), nil
}
