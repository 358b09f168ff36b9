// Package middleware implements the HTTP-layer cross-cutting concerns
// (§6 external interfaces) over the admission gate: tenant resolution from
// the request, CORS, and pass-through authentication. Adapted from
// control_plane/middleware's context-key pattern.
package middleware

import (
	"context"
	"fmt"
	"net/http"
)

// ContextKey is a strict type for context keys to prevent collisions with
// keys set by other packages.
type ContextKey string

const (
	// TenantKey is the context key holding the resolved tenant_id.
	TenantKey ContextKey = "tenant_id"
	// TenantHeader is the header the gateway expects tenant_id on.
	TenantHeader = "X-Tenant-ID"
)

// Tenant extracts the header and injects it into the request context,
// rejecting with 400 if absent. Unlike the admission gate's tenant lookup,
// this only checks the header is present — unknown-tenant resolution
// happens later in admission.Gate.Admit, which is what (§7) maps to the
// unauthenticated rejection.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get(TenantHeader)
		if tenantID == "" {
			http.Error(w, fmt.Sprintf("missing required header: %s", TenantHeader), http.StatusBadRequest)
			return
		}
		ctx := context.WithValue(r.Context(), TenantKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantFromContext retrieves the tenant_id stamped by Tenant.
func TenantFromContext(ctx context.Context) (string, error) {
	v := ctx.Value(TenantKey)
	if v == nil {
		return "", fmt.Errorf("middleware: tenant_id not found in context")
	}
	tenantID, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("middleware: tenant_id in context is not a string")
	}
	return tenantID, nil
}
