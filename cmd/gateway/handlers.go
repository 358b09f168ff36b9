package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/genaicore/ragforge/platform/admission"
	"github.com/genaicore/ragforge/platform/middleware"
	"github.com/genaicore/ragforge/platform/rag"
	"github.com/genaicore/ragforge/platform/runtime"
)

// queryRequest is the §6 wire contract request body.
type queryRequest struct {
	Query        string  `json:"query"`
	TopK         int     `json:"top_k"`
	BM25Weight   float64 `json:"bm25_weight"`
	VectorWeight float64 `json:"vector_weight"`
	UseLLM       bool    `json:"use_llm"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

// queryResponse is the §6 wire contract success response.
type queryResponse struct {
	RequestID  string             `json:"request_id"`
	TenantID   string             `json:"tenant_id"`
	Answer     string             `json:"answer"`
	Sources    []sourceDoc        `json:"sources"`
	CostDollars float64           `json:"cost_dollars"`
	TokensUsed int                `json:"tokens_used"`
	LatencyMs  int64              `json:"latency_ms"`
}

type sourceDoc struct {
	DocID   string  `json:"doc_id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// errorResponse is the §6 wire contract error response.
type errorResponse struct {
	RequestID  string `json:"request_id"`
	Error      string `json:"error"`
	ErrorCode  string `json:"error_code"`
	HTTPStatus int    `json:"http_status"`
}

// gatewayServer holds the wired runtime and the handlers that drive it.
type gatewayServer struct {
	rt *runtime.Runtime
}

func newGatewayServer(rt *runtime.Runtime) *gatewayServer {
	return &gatewayServer{rt: rt}
}

// handleQuery implements the synchronous admit -> enqueue -> dispatch
// path for deployments that want request/response semantics over the
// async queue (the §6 wire contract describes this shape; the worker pool
// is still what actually executes the pipeline, just with the caller
// blocked on completion via the timeline).
func (s *gatewayServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	tenantID, err := middleware.TenantFromContext(r.Context())
	if err != nil {
		writeError(w, "", "unauthenticated", http.StatusUnauthorized)
		return
	}
	userID, _ := middleware.UserFromContext(r.Context())

	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "", "invalid_request", http.StatusBadRequest)
		return
	}

	start := time.Now()
	accepted, err := s.rt.Submit(r.Context(), admission.Request{
		TenantID: tenantID,
		UserID:   userID,
		Payload:  body.Query,
	})
	if err != nil {
		s.writeAdmissionError(w, err)
		return
	}

	fallback := false
	if cfg, err := s.rt.Tenants.GetTenant(r.Context(), accepted.TenantID); err == nil {
		fallback = cfg.FallbackToSearchEnabled
	}

	resp, err := s.rt.Pipeline.Run(r.Context(), rag.Request{
		RequestID: accepted.RequestID,
		TenantID:  accepted.TenantID,
		UserID:    accepted.UserID,
		Query:     body.Query,
		Params: rag.RetrievalParams{
			TopK:         body.TopK,
			BM25Weight:   body.BM25Weight,
			VectorWeight: body.VectorWeight,
		},
		DeadlineAt:       accepted.DeadlineAt,
		FallbackToSearch: fallback,
	})
	if err != nil {
		s.writePipelineError(w, accepted.RequestID, err)
		return
	}

	sources := make([]sourceDoc, 0, len(resp.Sources))
	for _, d := range resp.Sources {
		sources = append(sources, sourceDoc{DocID: d.DocID, Content: d.Content, Score: d.Score})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(queryResponse{
		RequestID:  accepted.RequestID,
		TenantID:   accepted.TenantID,
		Answer:     resp.Answer,
		Sources:    sources,
		TokensUsed: resp.Tokens,
		LatencyMs:  time.Since(start).Milliseconds(),
	})
}

// writeAdmissionError maps an admission.Rejection to its §7 HTTP status.
func (s *gatewayServer) writeAdmissionError(w http.ResponseWriter, err error) {
	var rej *admission.Rejection
	if !errors.As(err, &rej) {
		writeError(w, "", "internal", http.StatusInternalServerError)
		return
	}
	status := map[admission.RejectionReason]int{
		admission.RejectUnauthenticated: http.StatusUnauthorized,
		admission.RejectRateLimited:     http.StatusTooManyRequests,
		admission.RejectQuotaExhausted:  http.StatusTooManyRequests,
		admission.RejectInjection:       http.StatusBadRequest,
		admission.RejectQueueOverflow:   http.StatusServiceUnavailable,
		admission.RejectDuplicate:       http.StatusConflict,
	}[rej.Reason]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeError(w, "", string(rej.Reason), status)
}

// writePipelineError maps a RAG pipeline error to its §7 HTTP status.
func (s *gatewayServer) writePipelineError(w http.ResponseWriter, requestID string, err error) {
	switch {
	case errors.Is(err, rag.ErrCrossTenantLeakage):
		writeError(w, requestID, "cross_tenant_leakage", http.StatusForbidden)
	case errors.Is(err, rag.ErrNoLLM):
		writeError(w, requestID, "llm_unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, requestID, "deadline_exceeded", http.StatusGatewayTimeout)
	default:
		writeError(w, requestID, "internal", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, requestID, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{
		RequestID:  requestID,
		Error:      code,
		ErrorCode:  code,
		HTTPStatus: status,
	})
}

func (s *gatewayServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleStream upgrades to WebSocket and registers the connection on the
// dispatch-snapshot hub for the caller's tenant.
func (s *gatewayServer) handleStream(w http.ResponseWriter, r *http.Request) {
	tenantID, err := middleware.TenantFromContext(r.Context())
	if err != nil {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.rt.Hub.Register(conn, tenantID)
}
