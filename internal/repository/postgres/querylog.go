package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/intellecta/rag/internal/repository"
	"github.com/intellecta/rag/internal/security"
)

// QueryLogRepo implements repository.QueryLogRepository
type QueryLogRepo struct {
	db *DB
}

// NewQueryLogRepo creates a new query log repository
func NewQueryLogRepo(db *DB) *QueryLogRepo {
	return &QueryLogRepo{db: db}
}

// Insert records a processed query
func (r *QueryLogRepo) Insert(ctx context.Context, log *repository.QueryLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	sourcesJSON, err := json.Marshal(log.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := `
		INSERT INTO query_history (id, query_text, response_text, sources, language, fast_mode, security_clearance, security_level, access_allowed, retrieval_time_ms, generation_time_ms, total_time_ms, chunks_retrieved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
	`
	_, err = r.db.Pool.Exec(ctx, query,
		log.ID, log.QueryText, log.ResponseText, sourcesJSON, log.Language,
		log.FastMode, log.Clearance.String(), log.SecurityLevel.String(),
		log.AccessAllowed, log.RetrievalTimeMs, log.GenerationTimeMs,
		log.TotalTimeMs, log.ChunksRetrieved)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}
	return nil
}

// Recent retrieves query logs ordered newest first
func (r *QueryLogRepo) Recent(ctx context.Context, limit, offset int) ([]*repository.QueryLog, error) {
	query := `
		SELECT id, query_text, response_text, sources, language, fast_mode, security_clearance, security_level, access_allowed, retrieval_time_ms, generation_time_ms, total_time_ms, chunks_retrieved, created_at
		FROM query_history
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list query logs: %w", err)
	}
	defer rows.Close()

	var logs []*repository.QueryLog
	for rows.Next() {
		var log repository.QueryLog
		var clearanceName, levelName string
		var sourcesJSON []byte
		if err := rows.Scan(&log.ID, &log.QueryText, &log.ResponseText, &sourcesJSON,
			&log.Language, &log.FastMode, &clearanceName, &levelName, &log.AccessAllowed,
			&log.RetrievalTimeMs, &log.GenerationTimeMs, &log.TotalTimeMs,
			&log.ChunksRetrieved, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan query log: %w", err)
		}
		log.Clearance = security.ParseLevel(clearanceName)
		log.SecurityLevel = security.ParseLevel(levelName)
		if err := json.Unmarshal(sourcesJSON, &log.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, nil
}

// Stats aggregates query logs over the last 24 hours
func (r *QueryLogRepo) Stats(ctx context.Context) (repository.QueryStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN fast_mode THEN 1 END),
			COUNT(CASE WHEN NOT fast_mode THEN 1 END),
			COALESCE(AVG(total_time_ms), 0),
			COUNT(CASE WHEN access_allowed THEN 1 END),
			COUNT(CASE WHEN NOT access_allowed THEN 1 END)
		FROM query_history
		WHERE created_at > NOW() - INTERVAL '24 hours'
	`
	var stats repository.QueryStats
	err := r.db.Pool.QueryRow(ctx, query).Scan(
		&stats.TotalQueries, &stats.FastQueries, &stats.QualityQueries,
		&stats.AvgResponseTimeMs, &stats.AllowedQueries, &stats.BlockedQueries,
	)
	if err != nil {
		return repository.QueryStats{}, fmt.Errorf("failed to aggregate query stats: %w", err)
	}
	return stats, nil
}

// Ensure QueryLogRepo implements the interface
var _ repository.QueryLogRepository = (*QueryLogRepo)(nil)
