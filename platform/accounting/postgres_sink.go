package accounting

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink is a durable Sink backing the append-only cost/security
// event log, for deployments that need queryable accounting history
// beyond what Prometheus counters retain. Connection pooling follows
// control_plane/store/postgres.go's PostgresStore sizing, scaled down
// since this pool only ever takes inserts.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to connString and verifies the connection.
func NewPostgresSink(ctx context.Context, connString string) (*PostgresSink, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresSink{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

// CostEvent implements Sink. The insert runs synchronously on the
// caller's goroutine; insert failures are logged rather than surfaced to
// the caller.
func (s *PostgresSink) CostEvent(ctx context.Context, ev CostEvent) {
	const q = `INSERT INTO cost_events (tenant_id, request_id, kind, amount, occurred_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, ev.TenantID, ev.RequestID, string(ev.Kind), ev.Amount, ev.Timestamp); err != nil {
		log.Printf("accounting: cost event insert failed: %v", err)
	}
}

// SecurityEvent implements Sink.
func (s *PostgresSink) SecurityEvent(ctx context.Context, ev SecurityEvent) {
	const q = `INSERT INTO security_events (tenant_id, request_id, kind, detail, occurred_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, ev.TenantID, ev.RequestID, ev.Kind, ev.Detail, ev.Timestamp); err != nil {
		log.Printf("accounting: security event insert failed: %v", err)
	}
}

// NoisyNeighborAlert implements sched.SecuritySink, mirroring LogSink's
// translation into a SecurityEvent.
func (s *PostgresSink) NoisyNeighborAlert(tenantID string, fraction float64) {
	s.SecurityEvent(context.Background(), SecurityEvent{
		TenantID:  tenantID,
		Kind:      "noisy_neighbor",
		Detail:    fmt.Sprintf("in-flight share %.2f exceeded alert threshold", fraction),
		Timestamp: time.Now(),
	})
}

// Query implements Sink. Query audit records are high-volume and
// low-value for long-term durable storage, so this sink only logs them;
// a deployment wanting durable query audit can wrap this with a
// LogSink-style streaming.Publisher.
func (s *PostgresSink) Query(_ context.Context, tenantID, userID, query, status string) {
	log.Printf("[QUERY] tenant=%s user=%s status=%s len=%d", tenantID, userID, status, len(query))
}
