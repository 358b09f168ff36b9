package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/genaicore/ragforge/platform/observability"
	"github.com/genaicore/ragforge/platform/streaming"
)

// LogSink is a fire-and-forget Sink that both records Prometheus metrics
// and publishes a structured JSON line through a streaming.Publisher.
// Adapted from control_plane/streaming's LogPublisher pattern
// ("[STREAMING] PUBLISH topic: payload" one-liners) generalized from a
// single log destination to any Publisher, so a durable sink (Postgres,
// NATS) can be swapped in without changing callers.
type LogSink struct {
	publisher streaming.Publisher
}

// NewLogSink wraps a streaming.Publisher as a Sink. publisher may be nil,
// in which case nothing is published: cost events are only counted,
// security events are counted and logged, and Query is a no-op.
func NewLogSink(publisher streaming.Publisher) *LogSink {
	return &LogSink{publisher: publisher}
}

func (s *LogSink) CostEvent(ctx context.Context, ev CostEvent) {
	observability.CostEventAmount.WithLabelValues(ev.TenantID, string(ev.Kind)).Add(ev.Amount)
	s.publish(ctx, "accounting.cost", ev)
}

func (s *LogSink) SecurityEvent(ctx context.Context, ev SecurityEvent) {
	observability.SecurityEvents.WithLabelValues(ev.TenantID, ev.Kind).Inc()
	log.Printf("[SECURITY] tenant=%s kind=%s detail=%s", ev.TenantID, ev.Kind, ev.Detail)
	s.publish(ctx, "accounting.security", ev)
}

// NoisyNeighborAlert records a tenant crossing ALERT_THRESHOLD share of
// instance in-flight capacity (§4.3) as a security event. Implements
// sched.SecuritySink without the scheduler importing this package.
func (s *LogSink) NoisyNeighborAlert(tenantID string, fraction float64) {
	s.SecurityEvent(context.Background(), SecurityEvent{
		TenantID:  tenantID,
		Kind:      "noisy_neighbor",
		Detail:    fmt.Sprintf("in-flight share %.2f exceeded alert threshold", fraction),
		Timestamp: time.Now(),
	})
}

func (s *LogSink) Query(ctx context.Context, tenantID, userID, query, status string) {
	s.publish(ctx, "accounting.query", map[string]string{
		"tenant_id": tenantID,
		"user_id":   userID,
		"status":    status,
	})
}

func (s *LogSink) publish(ctx context.Context, topic string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		b, _ := json.Marshal(payload)
		log.Printf("[ACCOUNTING] publish failed topic=%s err=%v payload=%s", topic, err, b)
	}
}
