package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/genaicore/ragforge/platform/adapters"
)

// DeadLetter is a request that aged out of the queue before dispatch,
// retained for inspection/replay per §4.2's sweep_expired contract.
type DeadLetter struct {
	Request   Request
	ExpiredAt time.Time
	Source    string // "local" or "global"
}

func (d DeadLetter) marshal() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// deadLetterQueue is an append-only list in the KV, genai:queue:dlq, built
// on LPush/LRange the same way control_plane used Redis lists for its
// event timeline rather than a dedicated stream type.
type deadLetterQueue struct {
	kv  adapters.KvAdapter
	key string
}

func newDeadLetterQueue(kv adapters.KvAdapter, key string) *deadLetterQueue {
	return &deadLetterQueue{kv: kv, key: key}
}

func (d *deadLetterQueue) push(ctx context.Context, dl DeadLetter) error {
	payload, err := dl.marshal()
	if err != nil {
		return err
	}
	return d.kv.LPush(ctx, d.key, payload)
}

// recent returns up to limit of the most recently dead-lettered requests.
func (d *deadLetterQueue) recent(ctx context.Context, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	return d.kv.LRange(ctx, d.key, 0, limit-1)
}
