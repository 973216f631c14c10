package senderrouter

import (
	"context"
	"testing"
)

type fakeBookings struct {
	serviceID int64
	ok        bool
}

func (f *fakeBookings) FirstServiceID(ctx context.Context, bookingID int64) (int64, bool, error) {
	return f.serviceID, f.ok, nil
}

type fakeRules struct {
	code string
	err  error
}

func (f *fakeRules) CodeForService(ctx context.Context, companyID, serviceID int64) (string, error) {
	return f.code, f.err
}

type fakeSenders struct {
	active map[string]int64
}

func (f *fakeSenders) ActiveIDByCode(ctx context.Context, companyID int64, senderCode string) (int64, bool, error) {
	id, ok := f.active[senderCode]
	return id, ok, nil
}

func TestPickSenderCode_NoServicesRoutesDefault(t *testing.T) {
	r := New(&fakeBookings{ok: false}, &fakeRules{code: "lashes"}, &fakeSenders{})
	code, err := r.PickSenderCode(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("PickSenderCode error: %v", err)
	}
	if code != "default" {
		t.Fatalf("expected default code for a booking with no services, got %q", code)
	}
}

func TestPickSenderCode_UsesRuleForFirstService(t *testing.T) {
	r := New(&fakeBookings{serviceID: 7, ok: true}, &fakeRules{code: "lashes"}, &fakeSenders{})
	code, err := r.PickSenderCode(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("PickSenderCode error: %v", err)
	}
	if code != "lashes" {
		t.Fatalf("expected rule-resolved code, got %q", code)
	}
}

func TestPickSenderID_ActiveCodeFound(t *testing.T) {
	r := New(&fakeBookings{}, &fakeRules{}, &fakeSenders{active: map[string]int64{"lashes": 5}})
	id, ok, err := r.PickSenderID(context.Background(), 1, "lashes")
	if err != nil {
		t.Fatalf("PickSenderID error: %v", err)
	}
	if !ok || id != 5 {
		t.Fatalf("expected active sender 5, got id=%d ok=%v", id, ok)
	}
}

func TestPickSenderID_FallsBackToDefaultWhenCodeHasNoActiveSender(t *testing.T) {
	r := New(&fakeBookings{}, &fakeRules{}, &fakeSenders{active: map[string]int64{"default": 1}})
	id, ok, err := r.PickSenderID(context.Background(), 1, "lashes")
	if err != nil {
		t.Fatalf("PickSenderID error: %v", err)
	}
	if !ok || id != 1 {
		t.Fatalf("expected fallback to default sender 1, got id=%d ok=%v", id, ok)
	}
}

func TestPickSenderID_NoFallbackLoopForDefaultCodeItself(t *testing.T) {
	r := New(&fakeBookings{}, &fakeRules{}, &fakeSenders{active: map[string]int64{}})
	id, ok, err := r.PickSenderID(context.Background(), 1, "default")
	if err != nil {
		t.Fatalf("PickSenderID error: %v", err)
	}
	if ok {
		t.Fatalf("expected no active sender, got id=%d", id)
	}
}
