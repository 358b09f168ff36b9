// Package adapters defines the external-collaborator boundaries of spec.md
// §6 (TenantAdapter lives in platform/tenant; the rest live here) plus the
// concrete reference implementations the rest of the repo wires against
// those boundaries: Redis for the KV adapter, pgx for a vector-store
// adapter and the durable accounting sink, and the Anthropic SDK for the
// LLM adapter. The core packages (queue, sched, rag, cache) only ever
// depend on the interfaces in this file.
package adapters

import (
	"context"
	"time"
)

// Document is a retrieval hit, always carrying the tenant_id it was
// indexed under so the isolation checker (§4.6 step 2) can verify it.
type Document struct {
	DocID    string
	Content  string
	Score    float64
	TenantID string
}

// RetrievalAdapter is the §6 boundary over the BM25 and vector search
// backends. Both methods are external collaborators — the actual ranking
// algorithms live outside the core.
type RetrievalAdapter interface {
	BM25(ctx context.Context, tenantID, query string) ([]Document, error)
	Vector(ctx context.Context, tenantID string, embedding []float32) ([]Document, error)
}

// ErrorClass lets the resilience adapters (§4.5) distinguish retryable
// failures from permanent ones without parsing error strings.
type ErrorClass int

const (
	ErrorUnclassified ErrorClass = iota
	ErrorTransient
	ErrorPermanent
)

// ClassifiedError is an error an adapter can tag with its retry class.
// Adapters that don't implement this are treated as permanent by default
// (spec.md §7 propagation policy).
type ClassifiedError interface {
	error
	Class() ErrorClass
}

// LlmAdapter is the §6 boundary over the LLM backend.
type LlmAdapter interface {
	Complete(ctx context.Context, tenantID, prompt string, deadline time.Time) (text string, tokensUsed int, err error)
}

// KvAdapter is the §6 boundary over the shared external key-value store:
// atomic ordered-set operations for the global priority queue, list
// operations for the DLQ, and incr-with-expiry for daily quota counters.
type KvAdapter interface {
	// ZAdd inserts member with the given score into the ordered set key.
	ZAdd(ctx context.Context, key string, score float64, member string) error
	// ZPopMin atomically removes and returns the lowest-score member, or
	// ok=false if the set is empty. Must be atomic (no read-then-remove
	// race) per Design Notes §9 / Open Question 3.
	ZPopMin(ctx context.Context, key string) (member string, ok bool, err error)
	// ZCard returns the number of members in the ordered set.
	ZCard(ctx context.Context, key string) (int64, error)
	// ZScan returns every member of the ordered set, for sweep_expired.
	ZScan(ctx context.Context, key string) ([]string, error)
	// ZRem removes a specific member from the ordered set.
	ZRem(ctx context.Context, key string, member string) error

	// LPush pushes a value onto the head of a list (used for the DLQ).
	LPush(ctx context.Context, key string, value string) error
	// LRange returns list elements [start, stop].
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// IncrWithExpiry atomically increments key, setting its TTL when the
	// increment creates the counter (an existing counter keeps its TTL),
	// and returns the post-increment value. Used for the daily quota
	// counter at genai:quota:<tenant>:<YYYYMMDD>.
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get/Set/SetNX back the tenant-isolated cache (§4.7) and the
	// idempotency guard (admission.IdempotencyGuard).
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}
