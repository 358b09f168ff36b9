// Package queue implements the two-level priority queue of spec.md §4.2:
// a bounded per-instance local FIFO backed by a shared global priority
// ordered-set in the external KV, with sweep-to-DLQ for expired items.
package queue

import (
	"encoding/json"
	"time"
)

// Request is the queued unit of work (§3 Data Model "QueuedRequest"),
// independent of the admission package's Accepted type so this package has
// no dependency on admission — the gate hands off a converted Request.
type Request struct {
	RequestID    string
	TenantID     string
	UserID       string
	Payload      string
	TierPriority int
	SubmittedAt  time.Time
	DeadlineAt   time.Time
}

// Expired reports whether the request's deadline has passed as of now.
func (r Request) Expired(now time.Time) bool {
	return now.After(r.DeadlineAt)
}

// score is the global-queue ordering key from §4.2: tier_priority * 1e9 +
// submitted_at_seconds, so tier strictly dominates, and within a tier FIFO
// order falls out of the timestamp component.
func (r Request) score() float64 {
	return float64(r.TierPriority)*1e9 + float64(r.SubmittedAt.Unix())
}

func (r Request) marshal() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalRequest(s string) (Request, error) {
	var r Request
	err := json.Unmarshal([]byte(s), &r)
	return r, err
}

// Outcome is the result of an Enqueue call.
type Outcome int

const (
	Enqueued Outcome = iota
	Overflow
)
