package rag

import (
	"context"
	"testing"

	"github.com/genaicore/ragforge/platform/adapters"
)

func TestCheckIsolationAllowsMatchingTenant(t *testing.T) {
	docs := []adapters.Document{{DocID: "d1", TenantID: "t1"}}
	if err := CheckIsolation(context.Background(), docs, "t1", nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCheckIsolationRejectsMismatchedTenant(t *testing.T) {
	docs := []adapters.Document{{DocID: "d1", TenantID: "other"}}
	if err := CheckIsolation(context.Background(), docs, "t1", nil); err != ErrCrossTenantLeakage {
		t.Fatalf("expected ErrCrossTenantLeakage, got %v", err)
	}
}

func TestCheckIsolationRejectsEmptyTenantID(t *testing.T) {
	// A document with no tenant_id at all must not get a free pass: §4.6
	// step 2 asserts doc.tenant_id == request.tenant_id unconditionally,
	// so an unstamped document is as much a leak as a mismatched one.
	docs := []adapters.Document{{DocID: "d1", TenantID: ""}}
	if err := CheckIsolation(context.Background(), docs, "t1", nil); err != ErrCrossTenantLeakage {
		t.Fatalf("expected ErrCrossTenantLeakage for unstamped document, got %v", err)
	}
}
