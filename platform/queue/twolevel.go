package queue

import (
	"context"
	"time"

	"github.com/genaicore/ragforge/platform/adapters"
	"github.com/genaicore/ragforge/platform/observability"
)

const (
	globalQueueKey = "genai:queue:global:priority"
	dlqKey         = "genai:queue:dlq"

	// DefaultLocalDepth bounds the per-instance FIFO before overflow spills
	// to the global queue (§4.2).
	DefaultLocalDepth = 256
)

// TwoLevelQueue is the public queue type of §4.2: a bounded local FIFO in
// front of a shared global priority ordered-set, with expired items swept
// into a dead-letter queue. Dequeue always drains local before touching
// the global queue — local admission is cheaper and, being strict FIFO,
// self-limiting in how much unfairness it can introduce.
type TwoLevelQueue struct {
	local  *localQueue
	global *globalQueue
	dlq    *deadLetterQueue
}

// NewTwoLevelQueue builds a queue with the given local depth over kv for
// the shared global tier and DLQ.
func NewTwoLevelQueue(kv adapters.KvAdapter, localDepth int) *TwoLevelQueue {
	if localDepth <= 0 {
		localDepth = DefaultLocalDepth
	}
	return &TwoLevelQueue{
		local:  newLocalQueue(localDepth),
		global: newGlobalQueue(kv, globalQueueKey),
		dlq:    newDeadLetterQueue(kv, dlqKey),
	}
}

// Enqueue tries the local queue first; on overflow it falls through to the
// global queue, which has no hard depth cap of its own (§4.2 — the bound
// lives in admission's daily quota and rate limiting, not here).
func (q *TwoLevelQueue) Enqueue(ctx context.Context, r Request) (Outcome, error) {
	if q.local.push(r) {
		observability.QueueDepth.WithLabelValues("local").Set(float64(q.local.len()))
		return Enqueued, nil
	}
	if err := q.global.push(ctx, r); err != nil {
		observability.QueueOverflows.Inc()
		return Overflow, err
	}
	return Enqueued, nil
}

// Dequeue pops from local first, falling back to global when local is
// empty. The bool return is false only when both tiers are empty.
func (q *TwoLevelQueue) Dequeue(ctx context.Context) (Request, bool, error) {
	if r, ok := q.local.pop(); ok {
		observability.QueueDepth.WithLabelValues("local").Set(float64(q.local.len()))
		return r, true, nil
	}
	r, ok, err := q.global.pop(ctx)
	if err != nil {
		return Request{}, false, err
	}
	return r, ok, nil
}

// Depth reports the current local and global queue sizes.
func (q *TwoLevelQueue) Depth(ctx context.Context) (local int, global int64, err error) {
	global, err = q.global.len(ctx)
	return q.local.len(), global, err
}

// SweepExpired walks both tiers, moving every request whose deadline has
// passed into the DLQ, and returns their request IDs.
func (q *TwoLevelQueue) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	isExpired := func(r Request) bool { return r.Expired(now) }

	var ids []string

	for _, r := range q.local.sweepExpired(isExpired) {
		if err := q.dlq.push(ctx, DeadLetter{Request: r, ExpiredAt: now, Source: "local"}); err != nil {
			return ids, err
		}
		ids = append(ids, r.RequestID)
		observability.QueueExpired.WithLabelValues("local").Inc()
	}

	payloads, reqs, err := q.global.expired(ctx, isExpired)
	if err != nil {
		return ids, err
	}
	for i, payload := range payloads {
		if err := q.global.remove(ctx, payload); err != nil {
			return ids, err
		}
		r := reqs[i]
		if err := q.dlq.push(ctx, DeadLetter{Request: r, ExpiredAt: now, Source: "global"}); err != nil {
			return ids, err
		}
		ids = append(ids, r.RequestID)
		observability.QueueExpired.WithLabelValues("global").Inc()
	}

	return ids, nil
}

// DeadLettered returns up to limit of the most recently dead-lettered
// request payloads, for inspection/replay tooling.
func (q *TwoLevelQueue) DeadLettered(ctx context.Context, limit int64) ([]string, error) {
	return q.dlq.recent(ctx, limit)
}

// DeadLetter records a request that aged out after being dequeued but
// before dispatch (e.g. while staged in the scheduler), so it is
// accounted for the same way a sweep_expired hit is.
func (q *TwoLevelQueue) DeadLetter(ctx context.Context, r Request, now time.Time, source string) error {
	observability.QueueExpired.WithLabelValues(source).Inc()
	return q.dlq.push(ctx, DeadLetter{Request: r, ExpiredAt: now, Source: source})
}
