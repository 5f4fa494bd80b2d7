// Package repository defines domain models and data access interfaces for
// documents, query logs, and audit events.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/intellecta/rag/internal/security"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Document represents an ingested document's metadata.
// Chunk text and vectors live in the vector store; this table is the registry.
type Document struct {
	ID            uuid.UUID
	Filename      string
	FileType      string
	FileSize      int64
	ContentHash   string
	SecurityLevel security.Level
	Domain        string
	Source        string
	ChunkCount    int
	Metadata      map[string]string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// QueryLog is one processed query recorded for analytics.
type QueryLog struct {
	ID               uuid.UUID      `json:"id"`
	QueryText        string         `json:"query_text"`
	ResponseText     string         `json:"response_text"`
	Sources          []string       `json:"sources"`
	Language         string         `json:"language"`
	FastMode         bool           `json:"fast_mode"`
	Clearance        security.Level `json:"clearance"`
	SecurityLevel    security.Level `json:"security_level"`
	AccessAllowed    bool           `json:"access_allowed"`
	RetrievalTimeMs  float64        `json:"retrieval_time_ms"`
	GenerationTimeMs float64        `json:"generation_time_ms"`
	TotalTimeMs      float64        `json:"total_time_ms"`
	ChunksRetrieved  int            `json:"chunks_retrieved"`
	CreatedAt        time.Time      `json:"created_at"`
}

// QueryStats aggregates query logs over the last 24 hours.
type QueryStats struct {
	TotalQueries      int64   `json:"total_queries"`
	FastQueries       int64   `json:"fast_queries"`
	QualityQueries    int64   `json:"quality_queries"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	AllowedQueries    int64   `json:"allowed_queries"`
	BlockedQueries    int64   `json:"blocked_queries"`
}

// AuditEvent is a security-relevant action recorded for review.
type AuditEvent struct {
	ID            uuid.UUID         `json:"id"`
	Action        string            `json:"action"`
	ResourceType  string            `json:"resource_type"`
	ResourceID    string            `json:"resource_id"`
	SecurityLevel security.Level    `json:"security_level"`
	AccessAllowed bool              `json:"access_allowed"`
	Details       map[string]string `json:"details,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// DocumentRepository defines operations for document metadata persistence
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	GetByHash(ctx context.Context, hash string) (*Document, error)
	List(ctx context.Context, securityLevel string, limit, offset int) ([]*Document, int, error)
	UpdateChunkCount(ctx context.Context, id uuid.UUID, count int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// QueryLogRepository defines operations for query log persistence
type QueryLogRepository interface {
	Insert(ctx context.Context, log *QueryLog) error
	Recent(ctx context.Context, limit, offset int) ([]*QueryLog, error)
	Stats(ctx context.Context) (QueryStats, error)
}

// AuditRepository defines operations for audit log persistence
type AuditRepository interface {
	Insert(ctx context.Context, event *AuditEvent) error
	Recent(ctx context.Context, action string, limit int) ([]*AuditEvent, error)
}
