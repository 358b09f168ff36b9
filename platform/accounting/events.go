// Package accounting implements the cost, token, and anomaly accounting
// hooks of spec.md §3/§4.6/§6: CostEvent emission on every dispatch, and
// the BehaviorCounter-based scraping/mass-export detector described in
// SPEC_FULL.md §12.
package accounting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// CostKind enumerates the accounting dimensions tracked per request.
type CostKind string

const (
	CostCompute   CostKind = "compute"
	CostLLMTokens CostKind = "llm_tokens"
	CostRetrieval CostKind = "retrieval"
)

// CostEvent is an append-only accounting record (§3 Data Model).
type CostEvent struct {
	TenantID  string
	RequestID string
	Kind      CostKind
	Amount    float64
	Timestamp time.Time
}

// SecurityEvent records a security-relevant detection: prompt injection,
// cross-tenant leakage, or a noisy-neighbour alert.
type SecurityEvent struct {
	TenantID  string
	RequestID string
	Kind      string
	Detail    string
	Timestamp time.Time
}

// Sink is the §6 "Audit/Metrics Sink" boundary: fire-and-forget event
// ingestion. Methods return no error, so a sink failure never fails the
// caller; each call runs on the caller's goroutine.
type Sink interface {
	CostEvent(ctx context.Context, ev CostEvent)
	SecurityEvent(ctx context.Context, ev SecurityEvent)
	Query(ctx context.Context, tenantID, userID, query, status string)
}

// BehaviorWindowSize is the number of recent query hashes retained per
// (tenant, user) for the scraping/mass-export detector.
const BehaviorWindowSize = 64

// BehaviorCounter is the §3 Data Model entity tracking a rolling window of
// recent query hashes per (tenant_id, user_id), used to flag scraping or
// mass-export behavior: a high ratio of distinct hashes in a short window
// indicates systematic enumeration rather than organic querying.
type BehaviorCounter struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	hashes    []string
	queries   int
	windowEnd time.Time
}

// NewBehaviorCounter creates an empty counter registry.
func NewBehaviorCounter() *BehaviorCounter {
	return &BehaviorCounter{windows: make(map[string]*window)}
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:8])
}

// Record registers a query for (tenantID, userID) and returns the number of
// distinct query hashes currently in the rolling window plus the total
// query count in the window, for the caller to compare against a
// scraping-detection threshold.
func (b *BehaviorCounter) Record(tenantID, userID, query string, now time.Time) (distinct int, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := tenantID + "|" + userID
	w, ok := b.windows[key]
	if !ok || now.After(w.windowEnd) {
		w = &window{windowEnd: now.Add(5 * time.Minute)}
		b.windows[key] = w
	}

	h := hashQuery(query)
	w.hashes = append(w.hashes, h)
	if len(w.hashes) > BehaviorWindowSize {
		w.hashes = w.hashes[len(w.hashes)-BehaviorWindowSize:]
	}
	w.queries++

	seen := make(map[string]struct{}, len(w.hashes))
	for _, h := range w.hashes {
		seen[h] = struct{}{}
	}
	return len(seen), w.queries
}

// IsScraping reports whether the (tenant,user) window looks like
// scraping/mass-export: a high volume of queries where most are distinct
// (i.e. systematic enumeration rather than the same question repeated).
func IsScraping(distinct, total int) bool {
	return total >= BehaviorWindowSize && distinct >= int(0.9*float64(BehaviorWindowSize))
}
