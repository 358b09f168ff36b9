package rag

import (
	"context"
	"errors"
	"time"

	"github.com/genaicore/ragforge/platform/accounting"
	"github.com/genaicore/ragforge/platform/adapters"
	"github.com/genaicore/ragforge/platform/observability"
)

// ErrCrossTenantLeakage is returned when a retrieved document's tenant_id
// does not match the requesting tenant (§4.6 step 2, §7 error taxonomy).
var ErrCrossTenantLeakage = errors.New("rag: cross_tenant_leakage")

// CheckIsolation asserts doc.TenantID == tenantID for every document,
// grounded on governance_service.py::check_cross_tenant_leakage. Any
// mismatch increments the leakage counter, emits a security event through
// sink, and aborts the whole batch — a single leaked document fails the
// request per §4.6's "aborts the request with a 403-equivalent".
func CheckIsolation(ctx context.Context, docs []adapters.Document, tenantID string, sink accounting.Sink) error {
	for _, d := range docs {
		if d.TenantID != tenantID {
			observability.CrossTenantLeakage.WithLabelValues(tenantID).Inc()
			if sink != nil {
				sink.SecurityEvent(ctx, accounting.SecurityEvent{
					TenantID:  tenantID,
					Kind:      "cross_tenant_leakage",
					Detail:    "document " + d.DocID + " belongs to tenant " + d.TenantID,
					Timestamp: time.Now(),
				})
			}
			return ErrCrossTenantLeakage
		}
	}
	return nil
}
