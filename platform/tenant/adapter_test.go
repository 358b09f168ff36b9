package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestStaticAdapterResolvesSeededTenant(t *testing.T) {
	ctx := context.Background()
	a := NewStaticAdapter(Config{TenantID: "t1", Tier: TierEnterprise})

	cfg, err := a.GetTenant(ctx, "t1")
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if cfg.Tier != TierEnterprise {
		t.Fatalf("tier: got %s", cfg.Tier)
	}
}

func TestStaticAdapterRejectsUnknownTenant(t *testing.T) {
	ctx := context.Background()
	a := NewStaticAdapter()

	_, err := a.GetTenant(ctx, "ghost")
	if !errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("expected ErrUnknownTenant, got %v", err)
	}
}

func TestStaticAdapterPutReplacesExisting(t *testing.T) {
	ctx := context.Background()
	a := NewStaticAdapter(Config{TenantID: "t1", Tier: TierFree})

	a.Put(Config{TenantID: "t1", Tier: TierEnterprise})

	cfg, err := a.GetTenant(ctx, "t1")
	if err != nil {
		t.Fatalf("get tenant: %v", err)
	}
	if cfg.Tier != TierEnterprise {
		t.Fatalf("expected Put to replace tier, got %s", cfg.Tier)
	}
}

func TestTierPriorityOrdering(t *testing.T) {
	prev := -1
	for _, tier := range Tiers {
		if tier.Priority() <= prev {
			t.Fatalf("expected strictly increasing priority numbers across %v", Tiers)
		}
		prev = tier.Priority()
	}
}
