package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

func TestMemoryCacheDecodesStructs(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	if err := mc.Set(ctx, "k", point{Symbol: "SPY", Value: 1.5}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got point
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Symbol != "SPY" || got.Value != 1.5 {
		t.Fatalf("unexpected value: %+v", got)
	}

	var s string
	_ = mc.Set(ctx, "s", "plain", 0)
	if err := mc.Get(ctx, "s", &s); err != nil || s != "plain" {
		t.Fatalf("string get = %q, %v", s, err)
	}
}

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	now := time.Date(2024, 8, 12, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	_ = mc.Set(ctx, "a", 1, time.Second)
	now = now.Add(time.Millisecond)
	_ = mc.Set(ctx, "b", 2, time.Minute)
	now = now.Add(time.Millisecond)
	_ = mc.Set(ctx, "c", 3, time.Minute)
	if mc.Len() != 2 {
		t.Fatalf("len = %d, want 2", mc.Len())
	}
	var v int
	if err := mc.Get(ctx, "a", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected a evicted, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("expected b expired")
	}
}

func TestLayeredCacheFillsL1FromRemote(t *testing.T) {
	ctx := context.Background()
	remote := NewMemoryCache()
	lc := NewLayeredCache(remote, WithLayeredMemoryTTL(time.Minute))
	defer lc.Close()

	_ = remote.Set(ctx, "snap", point{Symbol: "QQQ", Value: 2}, time.Hour)
	var got point
	if err := lc.Get(ctx, "snap", &got); err != nil || got.Symbol != "QQQ" {
		t.Fatalf("get = %+v, %v", got, err)
	}
	_ = remote.Delete(ctx, "snap")
	got = point{}
	if err := lc.Get(ctx, "snap", &got); err != nil || got.Symbol != "QQQ" {
		t.Fatalf("expected L1 hit, got %+v, %v", got, err)
	}

	if err := lc.Delete(ctx, "snap"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := lc.Get(ctx, "snap", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	if got := GenerateKey("continuity", "SPY"); got != "continuity:SPY" {
		t.Fatalf("key = %q", got)
	}
}
