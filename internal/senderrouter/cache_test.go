package senderrouter

import (
	"context"
	"testing"
)

func TestCachedSenders_NilRedisFallsThroughToInner(t *testing.T) {
	inner := &fakeSenders{active: map[string]int64{"lashes": 9}}
	c := NewCachedSenders(inner, nil, 0)

	id, ok, err := c.ActiveIDByCode(context.Background(), 1, "lashes")
	if err != nil {
		t.Fatalf("ActiveIDByCode error: %v", err)
	}
	if !ok || id != 9 {
		t.Fatalf("expected id=9 ok=true from inner repo with no redis configured, got id=%d ok=%v", id, ok)
	}
}

func TestCachedSenders_NilRedisMissStillReportsNotFound(t *testing.T) {
	inner := &fakeSenders{active: map[string]int64{}}
	c := NewCachedSenders(inner, nil, 0)

	_, ok, err := c.ActiveIDByCode(context.Background(), 1, "lashes")
	if err != nil {
		t.Fatalf("ActiveIDByCode error: %v", err)
	}
	if ok {
		t.Fatalf("expected not found for an unconfigured code")
	}
}
