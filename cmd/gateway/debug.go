package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/genaicore/ragforge/platform/timeline"
)

// debugSnapshot is the operator-facing point-in-time view served at
// /debug/snapshot, adapted from the teacher's
// /scheduler/debug/snapshot endpoint.
type debugSnapshot struct {
	LocalDepth   int              `json:"local_depth"`
	GlobalDepth  int64            `json:"global_depth"`
	InFlight     int              `json:"in_flight"`
	PoolSize     int              `json:"pool_size"`
	ShedState    string           `json:"shed_state"`
	DeadLettered []string         `json:"dead_lettered"`
	RecentEvents []timeline.Event `json:"recent_events"`
}

// handleDebugSnapshot reports current queue depth, in-flight count, shed
// state, the most recently dead-lettered request IDs, and the tail of the
// dispatch timeline, grounded on control_plane/main.go's
// "/scheduler/debug/snapshot" handler.
func (s *gatewayServer) handleDebugSnapshot(w http.ResponseWriter, r *http.Request) {
	local, global, err := s.rt.Queue.Depth(r.Context())
	if err != nil {
		http.Error(w, "failed to read queue depth", http.StatusInternalServerError)
		return
	}
	inFlight, _ := s.rt.Fair.Snapshot()

	deadLettered, err := s.rt.Queue.DeadLettered(r.Context(), 50)
	if err != nil {
		http.Error(w, "failed to read dead letter queue", http.StatusInternalServerError)
		return
	}

	snapshot := debugSnapshot{
		LocalDepth:   local,
		GlobalDepth:  global,
		InFlight:     inFlight,
		PoolSize:     s.rt.Pool.Size(),
		ShedState:    s.rt.Shedder.State().String(),
		DeadLettered: deadLettered,
		RecentEvents: s.rt.Timeline.Recent(100),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// handleTimelineForRequest is the dashboard's per-request drill-down:
// GET /debug/timeline/{request_id} returns every recorded dispatch-decision
// checkpoint for that request, in order.
func (s *gatewayServer) handleTimelineForRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")
	if requestID == "" {
		http.Error(w, "missing request_id", http.StatusBadRequest)
		return
	}
	events := s.rt.Timeline.ForRequest(requestID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(events)
}
