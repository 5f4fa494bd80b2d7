package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/intellecta/rag/internal/repository"
	"github.com/intellecta/rag/internal/security"
)

// AuditRepo implements repository.AuditRepository
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new audit log repository
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert records an audit event
func (r *AuditRepo) Insert(ctx context.Context, event *repository.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	detailsJSON, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, action, resource_type, resource_id, security_level, access_allowed, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err = r.db.Pool.Exec(ctx, query,
		event.ID, event.Action, event.ResourceType, event.ResourceID,
		event.SecurityLevel.String(), event.AccessAllowed, detailsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Recent retrieves audit events, newest first, optionally filtered by action
func (r *AuditRepo) Recent(ctx context.Context, action string, limit int) ([]*repository.AuditEvent, error) {
	query := `
		SELECT id, action, resource_type, resource_id, security_level, access_allowed, details, created_at
		FROM audit_log
	`
	var args []any
	if action != "" {
		query += ` WHERE action = $1`
		args = append(args, action)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + fmt.Sprintf("%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []*repository.AuditEvent
	for rows.Next() {
		var event repository.AuditEvent
		var levelName string
		var detailsJSON []byte
		if err := rows.Scan(&event.ID, &event.Action, &event.ResourceType, &event.ResourceID,
			&levelName, &event.AccessAllowed, &detailsJSON, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.SecurityLevel = security.ParseLevel(levelName)
		event.Details = make(map[string]string)
		if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
		events = append(events, &event)
	}

	return events, nil
}

// Ensure AuditRepo implements the interface
var _ repository.AuditRepository = (*AuditRepo)(nil)
