package ratelimit

import (
	"testing"
	"time"
)

func TestAllowDrainsAndRefills(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("expected the first two calls to pass")
	}
	if l.Allow("a") {
		t.Fatalf("expected bucket to be empty")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must not share a bucket")
	}

	now = now.Add(1500 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatalf("expected a refilled token")
	}
	if l.Allow("a") {
		t.Fatalf("expected only one token after 1.5s")
	}
}

func TestZeroCapacityDisables(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 10; i++ {
		if !l.Allow("k") {
			t.Fatalf("expected unlimited")
		}
	}
}
