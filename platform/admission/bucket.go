package admission

import (
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// TokenBuckets is a per-tenant registry of continuous-refill token buckets,
// one per (tenant, operation-class) as the Data Model (§3) requires. It
// wraps golang.org/x/time/rate the way the teacher's
// scheduler.TokenBucketLimiter wraps it per-key, rather than hand-rolling
// refill arithmetic: rate.Limiter already does fractional-token continuous
// refill capped at burst, which is exactly the §8 property-5 semantics
// (tokens_after - tokens_before == min(capacity - tokens_before, refill*dt)).
type TokenBuckets struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTokenBuckets creates an empty bucket registry.
func NewTokenBuckets() *TokenBuckets {
	return &TokenBuckets{limiters: make(map[string]*rate.Limiter)}
}

// key combines tenant and operation class so a tenant can have independent
// buckets for, say, "query" and "ingest" traffic.
func key(tenantID, opClass string) string {
	return tenantID + "|" + opClass
}

// Allow attempts to consume one token from the (tenant, opClass) bucket,
// creating it on first use with the given capacity and refill rate
// (tokens/sec). Returns false when the bucket is empty — the caller
// surfaces rate_limited.
func (b *TokenBuckets) Allow(tenantID, opClass string, capacity int, refillPerSec float64) bool {
	return b.limiterFor(tenantID, opClass, capacity, refillPerSec).Allow()
}

func (b *TokenBuckets) limiterFor(tenantID, opClass string, capacity int, refillPerSec float64) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key(tenantID, opClass)
	lim, ok := b.limiters[k]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(refillPerSec), capacity)
		b.limiters[k] = lim
	}
	return lim
}

// Tokens reports the current (possibly fractional) token count for a
// bucket, for observability and for the S2 rate-limit-trip test scenario.
// It does not consume a token.
func (b *TokenBuckets) Tokens(tenantID, opClass string, capacity int, refillPerSec float64) float64 {
	lim := b.limiterFor(tenantID, opClass, capacity, refillPerSec)
	return lim.Tokens()
}

// Reset drops a tenant's buckets, e.g. when a tenant is deprovisioned.
func (b *TokenBuckets) Reset(tenantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prefix := tenantID + "|"
	for k := range b.limiters {
		if strings.HasPrefix(k, prefix) {
			delete(b.limiters, k)
		}
	}
}
