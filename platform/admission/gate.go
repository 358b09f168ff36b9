// Package admission implements the per-tenant admission gate of spec.md
// §4.1: tenant resolution, prompt-injection screening, token-bucket rate
// limiting, daily quota enforcement, and priority/deadline stamping.
package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/genaicore/ragforge/platform/accounting"
	"github.com/genaicore/ragforge/platform/observability"
	"github.com/genaicore/ragforge/platform/tenant"
)

// RejectionReason enumerates the caller-visible admission rejections of
// spec.md §4.1/§7.
type RejectionReason string

const (
	RejectUnauthenticated RejectionReason = "unauthenticated"
	RejectQuotaExhausted  RejectionReason = "quota_exhausted"
	RejectRateLimited     RejectionReason = "rate_limited"
	RejectInjection       RejectionReason = "injection_suspected"
	RejectQueueOverflow   RejectionReason = "queue_overflow"
	RejectDuplicate       RejectionReason = "duplicate_request"
)

// Rejection is the error type returned for a rejected admission.
type Rejection struct {
	Reason  RejectionReason
	Detail  string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Request is an inbound admission request before it is stamped.
type Request struct {
	RequestID string // generated if empty
	TenantID  string
	UserID    string
	Payload   string // the raw query text, screened for injection
	ArrivedAt time.Time
}

// Accepted is the stamped verdict handed off to the queue.
type Accepted struct {
	RequestID    string
	TenantID     string
	UserID       string
	Payload      string
	Tier         tenant.Tier
	TierPriority int
	SubmittedAt  time.Time
	DeadlineAt   time.Time
}

// QuotaCounter is the external daily-quota boundary (§6 KvAdapter
// incr_with_expiry). It must be atomic across instances.
type QuotaCounter interface {
	// IncrementAndCheck atomically increments today's counter for tenantID
	// and returns the new value and whether it is within limit.
	IncrementAndCheck(ctx context.Context, tenantID string, limit int64) (newValue int64, withinLimit bool, err error)
}

// QueueTimeout is the default time budget a request gets once admitted,
// after which the two-level queue moves it to the dead-letter queue.
const QueueTimeout = 30 * time.Second

// Gate is the admission gate.
type Gate struct {
	Tenants      tenant.Adapter
	Quota        QuotaCounter
	Buckets      *TokenBuckets
	Idempotency  *IdempotencyGuard
	Sink         accounting.Sink
}

// NewGate constructs a Gate. quota may be nil for single-instance/test
// deployments that don't need cross-instance quota accuracy. Idempotency
// defaults to an in-process guard; callers may replace it with a
// KV-backed guard, or set it to nil to disable retry dedup.
func NewGate(tenants tenant.Adapter, quota QuotaCounter, sink accounting.Sink) *Gate {
	return &Gate{
		Tenants:     tenants,
		Quota:       quota,
		Buckets:     NewTokenBuckets(),
		Idempotency: NewIdempotencyGuard(nil, 0),
		Sink:        sink,
	}
}

// Admit runs the full §4.1 algorithm and returns either an Accepted verdict
// or a *Rejection error.
func (g *Gate) Admit(ctx context.Context, req Request) (Accepted, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.ArrivedAt.IsZero() {
		req.ArrivedAt = time.Now()
	}

	// Idempotent retry of an already-admitted request_id: reject immediately
	// as a duplicate delivery rather than falling through to re-spend rate
	// limit/quota budget a second time.
	if g.Idempotency != nil && !g.Idempotency.MarkIfFirst(ctx, req.RequestID) {
		observability.AdmissionRejections.WithLabelValues(string(RejectDuplicate)).Inc()
		return Accepted{}, &Rejection{Reason: RejectDuplicate, Detail: req.RequestID}
	}

	// 1. Resolve tenant config.
	cfg, err := g.Tenants.GetTenant(ctx, req.TenantID)
	if err != nil {
		observability.AdmissionRejections.WithLabelValues(string(RejectUnauthenticated)).Inc()
		return Accepted{}, &Rejection{Reason: RejectUnauthenticated, Detail: err.Error()}
	}

	// 2. Prompt-injection screen.
	if pattern, hit := ScreenForInjection(req.Payload); hit {
		observability.AdmissionRejections.WithLabelValues(string(RejectInjection)).Inc()
		if g.Sink != nil {
			g.Sink.SecurityEvent(ctx, accounting.SecurityEvent{
				TenantID:  req.TenantID,
				Kind:      "prompt_injection",
				Detail:    fmt.Sprintf("matched pattern %q", pattern),
				Timestamp: time.Now(),
			})
		}
		return Accepted{}, &Rejection{Reason: RejectInjection, Detail: pattern}
	}

	// 3. Per-tenant token bucket.
	if !g.Buckets.Allow(req.TenantID, "query", cfg.BurstQPS, cfg.QPSLimit) {
		observability.AdmissionRejections.WithLabelValues(string(RejectRateLimited)).Inc()
		return Accepted{}, &Rejection{Reason: RejectRateLimited}
	}

	// 4. Daily quota, atomic in the external KV.
	if g.Quota != nil {
		_, withinLimit, err := g.Quota.IncrementAndCheck(ctx, req.TenantID, cfg.DailyQuota)
		if err != nil {
			// The quota store is unavailable. Fail closed would violate
			// availability for every tenant on a single dependency outage;
			// fail open here and rely on the rate limiter + fair scheduler
			// as the remaining backpressure.
			observability.AdmissionQuotaErrors.Inc()
		} else if !withinLimit {
			observability.AdmissionRejections.WithLabelValues(string(RejectQuotaExhausted)).Inc()
			return Accepted{}, &Rejection{Reason: RejectQuotaExhausted}
		}
	}

	// 5. Stamp priority + deadline.
	accepted := Accepted{
		RequestID:    req.RequestID,
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		Payload:      req.Payload,
		Tier:         cfg.Tier,
		TierPriority: cfg.Tier.Priority(),
		SubmittedAt:  req.ArrivedAt,
		DeadlineAt:   req.ArrivedAt.Add(QueueTimeout),
	}
	observability.AdmissionAccepted.WithLabelValues(string(cfg.Tier)).Inc()
	return accepted, nil
}
