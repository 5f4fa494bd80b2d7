package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL creates the metadata tables. Chunk vectors live in Qdrant;
// Postgres holds the document registry, query logs, and audit trail.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    id UUID PRIMARY KEY,
    filename VARCHAR(500) NOT NULL,
    file_type VARCHAR(50) NOT NULL,
    file_size BIGINT DEFAULT 0,
    content_hash VARCHAR(64),
    security_level VARCHAR(50) DEFAULT 'PUBLIC',
    domain VARCHAR(100) DEFAULT '',
    source VARCHAR(500) DEFAULT '',
    chunk_count INTEGER DEFAULT 0,
    metadata JSONB DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS query_history (
    id UUID PRIMARY KEY,
    query_text TEXT NOT NULL,
    response_text TEXT,
    sources JSONB DEFAULT '[]',
    language VARCHAR(10) DEFAULT 'en',
    fast_mode BOOLEAN DEFAULT TRUE,
    security_clearance VARCHAR(50) DEFAULT 'PUBLIC',
    security_level VARCHAR(50) DEFAULT 'PUBLIC',
    access_allowed BOOLEAN DEFAULT TRUE,
    retrieval_time_ms DOUBLE PRECISION DEFAULT 0,
    generation_time_ms DOUBLE PRECISION DEFAULT 0,
    total_time_ms DOUBLE PRECISION DEFAULT 0,
    chunks_retrieved INTEGER DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_log (
    id UUID PRIMARY KEY,
    action VARCHAR(100) NOT NULL,
    resource_type VARCHAR(100) DEFAULT '',
    resource_id VARCHAR(100) DEFAULT '',
    security_level VARCHAR(50) DEFAULT 'PUBLIC',
    access_allowed BOOLEAN DEFAULT TRUE,
    details JSONB DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_documents_security ON documents(security_level);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
CREATE INDEX IF NOT EXISTS idx_query_history_created ON query_history(created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at);
`

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new PostgreSQL connection pool
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (db *DB) Close() {
	db.Pool.Close()
}
