package admission

import (
	"context"
	"sync"
	"time"
)

// IdempotencyBackend is the minimal durable-store boundary idempotency
// needs; the KV adapter (§6) satisfies it. Adapted from the teacher's
// idempotency.Backend interface, narrowed to Get/Set-with-TTL.
type IdempotencyBackend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// IdempotencyGuard prevents a retried admission call (same request_id,
// e.g. a client retry after a dropped response) from being admitted twice.
// It is consulted before the rate limiter and quota so a duplicate never
// consumes a second token. Adapted from control_plane/idempotency.Store,
// generalized from HTTP response caching to a plain seen-before check with
// an in-memory fallback when the backend is unavailable.
type IdempotencyGuard struct {
	backend IdempotencyBackend
	ttl     time.Duration
	seen    sync.Map // fallback when backend is nil or errors
}

// NewIdempotencyGuard builds a guard. backend may be nil, in which case
// only the in-process fallback applies (single-instance deployments).
func NewIdempotencyGuard(backend IdempotencyBackend, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IdempotencyGuard{backend: backend, ttl: ttl}
}

// MarkIfFirst records request_id as seen and reports whether this is the
// first time it has been observed within the TTL window.
func (g *IdempotencyGuard) MarkIfFirst(ctx context.Context, requestID string) bool {
	if g.backend != nil {
		first, err := g.backend.SetNX(ctx, "idem:"+requestID, "1", g.ttl)
		if err == nil {
			return first
		}
		// Backend error: fall through to the in-memory guard rather than
		// fail the whole admission path on a cache outage.
	}

	_, loaded := g.seen.LoadOrStore(requestID, time.Now().Add(g.ttl))
	return !loaded
}
