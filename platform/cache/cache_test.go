package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/genaicore/ragforge/platform/adapters"
)

func TestKeyIsolationByAttemptedCollision(t *testing.T) {
	// Two tenants caching under the identical logical key must never
	// collide on the underlying KvAdapter key (§8 property 3).
	keyA := Key("tenant-a", "profile")
	keyB := Key("tenant-b", "profile")
	if keyA == keyB {
		t.Fatalf("expected distinct keys for distinct tenants, got %q for both", keyA)
	}
	if !strings.HasPrefix(keyA, "genai:cache:tenant-a:") {
		t.Fatalf("expected tenant-a prefix, got %q", keyA)
	}
}

func TestLongKeyIsHashedButStillPrefixed(t *testing.T) {
	long := strings.Repeat("x", 500)
	key := Key("tenant-a", long)
	if len(key) > MaxKeyLength+len("genai:cache:tenant-a:")+64 {
		t.Fatalf("expected hashed key to be bounded in length, got len=%d", len(key))
	}
	if !strings.HasPrefix(key, Prefix("tenant-a")) {
		t.Fatalf("expected hashed key to retain tenant prefix, got %q", key)
	}
}

func TestCacheGetSetRoundTrip(t *testing.T) {
	c := New(adapters.NewMemoryKV())
	ctx := context.Background()

	if err := c.Set(ctx, "tenant-a", "k1", "v1", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := c.Get(ctx, "tenant-a", "k1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if v != "v1" {
		t.Fatalf("expected v1, got %s", v)
	}

	// Another tenant must not see tenant-a's value under the same logical key.
	_, ok, err = c.Get(ctx, "tenant-b", "k1")
	if err != nil {
		t.Fatalf("get tenant-b: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss for a different tenant under the same logical key")
	}
}

func TestClearTenantOnlyDeletesThatTenant(t *testing.T) {
	kv := adapters.NewMemoryKV()
	c := New(kv)
	ctx := context.Background()

	_ = c.Set(ctx, "tenant-a", "k1", "v1", time.Minute)
	_ = c.Set(ctx, "tenant-a", "k2", "v2", time.Minute)
	_ = c.Set(ctx, "tenant-b", "k1", "v1", time.Minute)

	n, err := c.ClearTenant(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("clear tenant: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 keys cleared, got %d", n)
	}

	if _, ok, _ := c.Get(ctx, "tenant-a", "k1"); ok {
		t.Fatal("expected tenant-a's keys to be gone")
	}
	if _, ok, _ := c.Get(ctx, "tenant-b", "k1"); !ok {
		t.Fatal("expected tenant-b's key to survive tenant-a's clear")
	}
}
