package adapters

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxRetrieval implements RetrievalAdapter over a Postgres document store:
// BM25 via the built-in full-text search (ts_rank/plainto_tsquery) and
// vector similarity via pgvector's <-> distance operator, both scoped by
// tenant_id on every query so no cross-tenant row is ever fetched, not
// merely filtered afterwards. Connection pooling follows
// control_plane/store/postgres.go's PostgresStore sizing.
type PgxRetrieval struct {
	pool *pgxpool.Pool
}

// NewPgxRetrieval connects to connString and verifies the connection.
func NewPgxRetrieval(ctx context.Context, connString string) (*PgxRetrieval, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PgxRetrieval{pool: pool}, nil
}

// Close releases the connection pool.
func (r *PgxRetrieval) Close() {
	r.pool.Close()
}

// BM25 ranks documents by Postgres full-text search relevance, scoped to
// tenantID.
func (r *PgxRetrieval) BM25(ctx context.Context, tenantID, query string) ([]Document, error) {
	const q = `
		SELECT doc_id, content, tenant_id,
		       ts_rank(search_vector, plainto_tsquery('english', $2)) AS score
		FROM documents
		WHERE tenant_id = $1 AND search_vector @@ plainto_tsquery('english', $2)
		ORDER BY score DESC
		LIMIT 20
	`
	rows, err := r.pool.Query(ctx, q, tenantID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.DocID, &d.Content, &d.TenantID, &d.Score); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Vector ranks documents by embedding distance (pgvector <-> operator),
// scoped to tenantID. Distance is converted to a similarity score
// (1 / (1 + distance)) so it composes with BM25's score on the same
// higher-is-better scale.
func (r *PgxRetrieval) Vector(ctx context.Context, tenantID string, embedding []float32) ([]Document, error) {
	const q = `
		SELECT doc_id, content, tenant_id, embedding <-> $2 AS distance
		FROM documents
		WHERE tenant_id = $1
		ORDER BY distance ASC
		LIMIT 20
	`
	rows, err := r.pool.Query(ctx, q, tenantID, pgvectorLiteral(embedding))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var distance float64
		if err := rows.Scan(&d.DocID, &d.Content, &d.TenantID, &distance); err != nil {
			return nil, err
		}
		d.Score = 1.0 / (1.0 + distance)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// pgvectorLiteral formats an embedding as the text literal pgvector's
// input parser expects ("[0.1,0.2,...]").
func pgvectorLiteral(embedding []float32) string {
	s := make([]byte, 0, len(embedding)*8+2)
	s = append(s, '[')
	for i, v := range embedding {
		if i > 0 {
			s = append(s, ',')
		}
		s = strconv.AppendFloat(s, float64(v), 'f', -1, 32)
	}
	s = append(s, ']')
	return string(s)
}
