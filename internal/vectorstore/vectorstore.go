// Package vectorstore provides interfaces and implementations for vector similarity search.
package vectorstore

import (
	"context"

	"github.com/intellecta/rag/internal/security"
)

// Payload carries the chunk fields persisted alongside each vector. The
// security level is stored as its name so index-level filtering can match on
// the allowed-level set.
type Payload struct {
	Text          string
	DocID         string
	ChunkIndex    int
	TotalChunks   int
	SecurityLevel security.Level
	Domain        string
	FileType      string
	Filename      string
	Source        string
}

// Point is a vector plus its payload, keyed by chunk UUID.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Filter restricts a query to specific documents and to the security levels
// the caller is cleared for. Empty DocIDs means all documents; SecurityLevels
// must always be set by callers serving user queries.
type Filter struct {
	DocIDs         []string
	SecurityLevels []string
}

// Result is one nearest-neighbor hit. Score is cosine similarity, higher
// better; callers derive distance as 1 - Score.
type Result struct {
	ID      string
	Score   float32
	Payload Payload
}

// CollectionStats summarizes the backing collection.
type CollectionStats struct {
	PointsCount  uint64
	VectorSize   int
	DistanceName string
	CollectionOK bool
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// EnsureCollection creates the collection and its payload indexes if
	// they do not exist yet.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates points.
	Upsert(ctx context.Context, points []Point) error

	// Query returns the k nearest neighbors of vector among points matching
	// the filter.
	Query(ctx context.Context, vector []float32, filter Filter, k int) ([]Result, error)

	// DeleteByDocID removes every point belonging to a document.
	DeleteByDocID(ctx context.Context, docID string) error

	// Count returns the exact number of points matching the filter.
	Count(ctx context.Context, filter Filter) (uint64, error)

	// CountByField scrolls the collection and tallies points per distinct
	// string value of the given payload field.
	CountByField(ctx context.Context, field string) (map[string]uint64, error)

	// Stats reports collection-level statistics.
	Stats(ctx context.Context) (CollectionStats, error)

	// Close releases the underlying connection.
	Close() error
}
