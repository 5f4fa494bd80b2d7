package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/intellecta/rag/internal/repository"
	"github.com/intellecta/rag/internal/security"
)

// DocumentRepo implements repository.DocumentRepository
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new document repository
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Create creates a new document record
func (r *DocumentRepo) Create(ctx context.Context, doc *repository.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO documents (id, filename, file_type, file_size, content_hash, security_level, domain, source, chunk_count, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		doc.ID, doc.Filename, doc.FileType, doc.FileSize, doc.ContentHash,
		doc.SecurityLevel.String(), doc.Domain, doc.Source, doc.ChunkCount,
		metadataJSON, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Document, error) {
	query := `
		SELECT id, filename, file_type, file_size, content_hash, security_level, domain, source, chunk_count, metadata, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	return r.scanDocument(ctx, query, id)
}

// GetByHash retrieves the most recent document with the given content hash
func (r *DocumentRepo) GetByHash(ctx context.Context, hash string) (*repository.Document, error) {
	query := `
		SELECT id, filename, file_type, file_size, content_hash, security_level, domain, source, chunk_count, metadata, created_at, updated_at
		FROM documents
		WHERE content_hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanDocument(ctx, query, hash)
}

func (r *DocumentRepo) scanDocument(ctx context.Context, query string, args ...any) (*repository.Document, error) {
	var doc repository.Document
	var levelName string
	var metadataJSON []byte

	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&doc.ID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.ContentHash,
		&levelName, &doc.Domain, &doc.Source, &doc.ChunkCount, &metadataJSON,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.SecurityLevel = security.ParseLevel(levelName)
	doc.Metadata = make(map[string]string)
	if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &doc, nil
}

// List retrieves documents with an optional security level filter and pagination
func (r *DocumentRepo) List(ctx context.Context, securityLevel string, limit, offset int) ([]*repository.Document, int, error) {
	countQuery := `SELECT COUNT(*) FROM documents`
	listQuery := `
		SELECT id, filename, file_type, file_size, content_hash, security_level, domain, source, chunk_count, metadata, created_at, updated_at
		FROM documents
	`
	var args []any

	if securityLevel != "" {
		countQuery += ` WHERE security_level = $1`
		listQuery += ` WHERE security_level = $1`
		args = append(args, securityLevel)
	}

	listQuery += ` ORDER BY created_at DESC LIMIT $` + fmt.Sprintf("%d", len(args)+1) + ` OFFSET $` + fmt.Sprintf("%d", len(args)+2)

	var total int
	err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.db.Pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*repository.Document
	for rows.Next() {
		var doc repository.Document
		var levelName string
		var metadataJSON []byte
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.FileSize, &doc.ContentHash,
			&levelName, &doc.Domain, &doc.Source, &doc.ChunkCount, &metadataJSON,
			&doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.SecurityLevel = security.ParseLevel(levelName)
		doc.Metadata = make(map[string]string)
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		docs = append(docs, &doc)
	}

	return docs, total, nil
}

// UpdateChunkCount sets the indexed chunk count for a document
func (r *DocumentRepo) UpdateChunkCount(ctx context.Context, id uuid.UUID, count int) error {
	query := `UPDATE documents SET chunk_count = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Pool.Exec(ctx, query, id, count)
	if err != nil {
		return fmt.Errorf("failed to update chunk count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete deletes a document record
func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure DocumentRepo implements the interface
var _ repository.DocumentRepository = (*DocumentRepo)(nil)
