package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type entry struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func TestMemoryCacheTypedRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "dep:1", entry{ID: "1", Score: 0.5}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got entry
	if err := mc.Get(ctx, "dep:1", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "1" || got.Score != 0.5 {
		t.Fatalf("unexpected value %+v", got)
	}

	var s string
	_ = mc.Set(ctx, "plain", "text", 0)
	if err := mc.Get(ctx, "plain", &s); err != nil || s != "text" {
		t.Fatalf("expected plain string, got %q %v", s, err)
	}

	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestMemoryCacheKeysAndMGet(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "dep:b", entry{ID: "b"}, 0)
	_ = mc.Set(ctx, "dep:a", entry{ID: "a"}, 0)
	_ = mc.Set(ctx, "other:c", entry{ID: "c"}, 0)

	keys, err := mc.Keys(ctx, BuildPattern("dep"))
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "dep:a" || keys[1] != "dep:b" {
		t.Fatalf("unexpected keys %v", keys)
	}

	typed, err := MGetTyped[entry](ctx, mc, keys...)
	if err != nil || len(typed) != 2 || typed["dep:b"].ID != "b" {
		t.Fatalf("unexpected typed results %v %v", typed, err)
	}
}

func TestMemoryCacheTryLockExpires(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, _ := mc.TryLock(ctx, "k", 20*time.Millisecond)
	if !ok {
		t.Fatalf("expected first lock to succeed")
	}
	if ok, _ := mc.TryLock(ctx, "k", time.Minute); ok {
		t.Fatalf("expected second lock to fail")
	}
	time.Sleep(30 * time.Millisecond)
	if ok, _ := mc.TryLock(ctx, "k", time.Minute); !ok {
		t.Fatalf("expected lock to be free after ttl")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", "1", 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", "2", 0)
	time.Sleep(time.Millisecond)
	var s string
	_ = mc.Get(ctx, "a", &s)
	_ = mc.Set(ctx, "c", "3", 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok || mc.Len() != 2 {
		t.Fatalf("expected a and c to remain")
	}
}
