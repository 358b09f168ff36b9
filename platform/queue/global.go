package queue

import (
	"context"

	"github.com/genaicore/ragforge/platform/adapters"
)

// globalQueue is the shared priority ordered-set in the external KV (§4.2,
// §6 persisted-state layout genai:queue:global:priority). Pop uses the
// adapter's atomic ZPOPMIN so two instances racing to dequeue can never
// both receive the same request — the non-atomic zrange-then-zrem
// sequence the original implementation used is exactly the race
// Design Notes §9 / Open Question 3 calls out.
type globalQueue struct {
	kv  adapters.KvAdapter
	key string
}

func newGlobalQueue(kv adapters.KvAdapter, key string) *globalQueue {
	return &globalQueue{kv: kv, key: key}
}

func (g *globalQueue) push(ctx context.Context, r Request) error {
	payload, err := r.marshal()
	if err != nil {
		return err
	}
	return g.kv.ZAdd(ctx, g.key, r.score(), payload)
}

func (g *globalQueue) pop(ctx context.Context) (Request, bool, error) {
	payload, ok, err := g.kv.ZPopMin(ctx, g.key)
	if err != nil || !ok {
		return Request{}, ok, err
	}
	r, err := unmarshalRequest(payload)
	if err != nil {
		return Request{}, false, err
	}
	return r, true, nil
}

func (g *globalQueue) len(ctx context.Context) (int64, error) {
	return g.kv.ZCard(ctx, g.key)
}

// expired returns every member whose deadline has passed, for sweep_expired,
// along with the raw payload so the caller can remove it precisely.
func (g *globalQueue) expired(ctx context.Context, isExpired func(Request) bool) ([]string, []Request, error) {
	members, err := g.kv.ZScan(ctx, g.key)
	if err != nil {
		return nil, nil, err
	}
	var payloads []string
	var reqs []Request
	for _, m := range members {
		r, err := unmarshalRequest(m)
		if err != nil {
			continue
		}
		if isExpired(r) {
			payloads = append(payloads, m)
			reqs = append(reqs, r)
		}
	}
	return payloads, reqs, nil
}

func (g *globalQueue) remove(ctx context.Context, payload string) error {
	return g.kv.ZRem(ctx, g.key, payload)
}
