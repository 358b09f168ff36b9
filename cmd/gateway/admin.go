package main

import (
	"encoding/json"
	"net/http"

	"github.com/genaicore/ragforge/platform/middleware"
)

// handleClearTenantCache implements §4.7's clear_tenant admin operation,
// grounded on the teacher's /admin/admission-mode handler shape (a POST-only
// admin action scoped to the caller's tenant via the same middleware every
// other route uses).
func (s *gatewayServer) handleClearTenantCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID, err := middleware.TenantFromContext(r.Context())
	if err != nil {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}

	cleared, err := s.rt.Cache.ClearTenant(r.Context(), tenantID)
	if err != nil {
		http.Error(w, "failed to clear cache", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"tenant_id":    tenantID,
		"keys_cleared": cleared,
	})
}
