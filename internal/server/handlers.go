package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/intellecta/rag/internal/auth"
	"github.com/intellecta/rag/internal/config"
	"github.com/intellecta/rag/internal/engine"
	"github.com/intellecta/rag/internal/ingestion"
	"github.com/intellecta/rag/internal/metrics"
	"github.com/intellecta/rag/internal/repository"
	"github.com/intellecta/rag/internal/security"
	"github.com/intellecta/rag/internal/vectorstore"
)

// QueryEngine processes RAG queries.
type QueryEngine interface {
	Process(ctx context.Context, req engine.Request) (*engine.Response, error)
}

// Ingestor runs the document ingestion pipeline.
type Ingestor interface {
	Process(ctx context.Context, input ingestion.Input) (*ingestion.Result, error)
	Delete(ctx context.Context, docID string) error
}

// Handlers implements the HTTP API endpoints.
// The Postgres repositories may be nil; persistence is then skipped and the
// in-memory history window serves all history reads.
type Handlers struct {
	engine    QueryEngine
	pipeline  Ingestor
	store     vectorstore.VectorStore
	docs      repository.DocumentRepository
	queryLogs repository.QueryLogRepository
	audit     repository.AuditRepository
	history   *metrics.History
	checker   *security.Checker
	cfg       *config.Config
	state     *appState
	logger    *slog.Logger
}

// HandlersConfig wires the handler dependencies.
type HandlersConfig struct {
	Engine    QueryEngine
	Pipeline  Ingestor
	Store     vectorstore.VectorStore
	Documents repository.DocumentRepository
	QueryLogs repository.QueryLogRepository
	Audit     repository.AuditRepository
	History   *metrics.History
	Checker   *security.Checker
	Config    *config.Config
	Logger    *slog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(cfg HandlersConfig) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	history := cfg.History
	if history == nil {
		history = metrics.DefaultHistory()
	}
	return &Handlers{
		engine:    cfg.Engine,
		pipeline:  cfg.Pipeline,
		store:     cfg.Store,
		docs:      cfg.Documents,
		queryLogs: cfg.QueryLogs,
		audit:     cfg.Audit,
		history:   history,
		checker:   cfg.Checker,
		cfg:       cfg.Config,
		state:     newAppState(),
		logger:    logger,
	}
}

// SetConnectivity records collaborator reachability reported at startup.
func (h *Handlers) SetConnectivity(qdrantOK, ollamaOK, modelsOK bool) {
	h.state.setConnectivity(qdrantOK, ollamaOK, modelsOK)
}

// Health reports liveness plus collaborator connectivity.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := h.state.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"qdrant":        status.QdrantConnected,
		"ollama":        status.OllamaConnected,
		"models_loaded": status.ModelsLoaded,
	})
}

// Status reports subsystem states.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.snapshot())
}

// SystemConfig reports the static model and chunking configuration.
func (h *Handlers) SystemConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"embedding_model":      h.cfg.OllamaEmbeddingModel,
		"language_models":      []string{h.cfg.OllamaLLMModel},
		"vector_database":      "Qdrant",
		"chunk_size":           h.cfg.ChunkTargetTokens,
		"chunk_overlap":        h.cfg.ChunkOverlapTokens,
		"storage_path":         "qdrant://" + h.cfg.QdrantGRPCURL,
		"embedding_dimensions": h.cfg.EmbeddingDimension,
	})
}

// Query processes a RAG query and records it in history.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Language == "" {
		req.Language = engine.LanguageEnglish
	}
	req.Clearance = auth.CapClearance(r.Context(), req.Clearance)

	h.state.setQueryProgress(StatusSearching)

	resp, err := h.engine.Process(r.Context(), req)
	if err != nil {
		h.state.setQueryProgress(StatusError)
		writeError(w, http.StatusInternalServerError, "query processing failed")
		return
	}

	h.state.recordQueryTimes(resp.RetrievalTimeMs, resp.GenerationTimeMs)
	h.recordQuery(r.Context(), req, resp)

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) recordQuery(ctx context.Context, req engine.Request, resp *engine.Response) {
	h.history.RecordQuery(metrics.QueryEntry{
		Query:            req.Query,
		Language:         string(req.Language),
		Answer:           resp.Answer,
		Sources:          resp.Sources,
		RetrievalTimeMs:  resp.RetrievalTimeMs,
		GenerationTimeMs: resp.GenerationTimeMs,
		FastMode:         resp.FastMode,
		SecurityLevel:    req.Clearance.String(),
	})
	h.history.RecordMetrics(metrics.MetricsEntry{
		Accuracy:   resp.Metrics.Accuracy,
		Precision:  resp.Metrics.Precision,
		Efficiency: resp.Metrics.Efficiency,
		Throughput: resp.Metrics.Throughput,
	})

	if h.queryLogs != nil {
		log := &repository.QueryLog{
			QueryText:        req.Query,
			ResponseText:     resp.Answer,
			Sources:          resp.Sources,
			Language:         string(req.Language),
			FastMode:         resp.FastMode,
			Clearance:        req.Clearance,
			SecurityLevel:    resp.Security.Level,
			AccessAllowed:    resp.Security.AccessAllowed,
			RetrievalTimeMs:  resp.RetrievalTimeMs,
			GenerationTimeMs: resp.GenerationTimeMs,
			TotalTimeMs:      resp.RetrievalTimeMs + resp.GenerationTimeMs,
			ChunksRetrieved:  resp.ChunksUsed,
		}
		if err := h.queryLogs.Insert(ctx, log); err != nil {
			h.logger.Warn("failed to persist query log", "error", err)
		}
	}
}

// QueryHistory returns recent query history entries. The in-memory window
// answers by default; persistent=true reads the durable log instead, when
// the database is configured.
func (h *Handlers) QueryHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", metrics.DefaultRecentLimit)

	if h.queryLogs != nil && r.URL.Query().Get("persistent") == "true" {
		logs, err := h.queryLogs.Recent(r.Context(), limit, queryInt(r, "offset", 0))
		if err != nil {
			h.logger.Error("failed to read query log", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read query history")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"history": logs,
			"total":   len(logs),
		})
		return
	}

	entries, total := h.history.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"total":   total,
	})
}

// ClearQueryHistory drops all history entries.
func (h *Handlers) ClearQueryHistory(w http.ResponseWriter, r *http.Request) {
	h.history.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}

// DeleteQueryHistoryEntry removes a single history entry.
func (h *Handlers) DeleteQueryHistoryEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entry_id")
	if !h.history.Delete(entryID) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Entry deleted"})
}

// QueryMetrics returns aggregated retrieval quality metrics.
func (h *Handlers) QueryMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.history.Aggregate())
}

// QueryStats returns 24-hour query statistics from the database.
func (h *Handlers) QueryStats(w http.ResponseWriter, r *http.Request) {
	if h.queryLogs == nil {
		writeError(w, http.StatusServiceUnavailable, "query log storage not configured")
		return
	}
	stats, err := h.queryLogs.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to aggregate query stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to aggregate query stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// IngestRequest is the POST /ingest body: already-extracted document text.
type IngestRequest struct {
	Content       string         `json:"content"`
	Filename      string         `json:"filename"`
	Source        string         `json:"source,omitempty"`
	FileType      string         `json:"file_type,omitempty"`
	SecurityLevel security.Level `json:"security_level"`
}

// IngestResponse reports the outcome of ingesting one document.
type IngestResponse struct {
	DocumentID       string         `json:"document_id"`
	Filename         string         `json:"filename"`
	ChunksCreated    int            `json:"chunks_created"`
	ChunksIndexed    int            `json:"chunks_indexed"`
	SecurityLevel    security.Level `json:"security_level"`
	Domain           string         `json:"domain,omitempty"`
	AutoEscalated    bool           `json:"auto_escalated"`
	Duplicate        bool           `json:"duplicate,omitempty"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
	Error            string         `json:"error,omitempty"`
}

// Ingest processes one document through the ingestion pipeline.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}
	req.SecurityLevel = auth.CapClearance(r.Context(), req.SecurityLevel)

	h.state.setIngestion(StatusProcessing, req.Filename)
	resp, status := h.ingestOne(r.Context(), req)
	if status != http.StatusOK {
		h.state.setIngestion(StatusError, "")
	} else {
		h.state.setIngestion(StatusComplete, "")
	}
	writeJSON(w, status, resp)
}

func (h *Handlers) ingestOne(ctx context.Context, req IngestRequest) (IngestResponse, int) {
	if resp, ok := h.dedupeIngest(ctx, req); ok {
		return resp, http.StatusOK
	}

	result, err := h.pipeline.Process(ctx, ingestion.Input{
		Content:       req.Content,
		Filename:      req.Filename,
		Source:        req.Source,
		FileType:      req.FileType,
		SecurityLevel: req.SecurityLevel,
	})
	if err != nil {
		if errors.Is(err, ingestion.ErrNoContent) {
			return IngestResponse{Filename: req.Filename, Error: err.Error()}, http.StatusUnprocessableEntity
		}
		h.logger.Error("ingestion failed", "filename", req.Filename, "error", err)
		return IngestResponse{Filename: req.Filename, Error: "ingestion failed"}, http.StatusInternalServerError
	}

	h.persistDocument(ctx, req, result)
	h.recordAudit(ctx, "ingest", "document", result.DocID, result.SecurityLevel, true)

	return IngestResponse{
		DocumentID:       result.DocID,
		Filename:         req.Filename,
		ChunksCreated:    len(result.Chunks),
		ChunksIndexed:    result.ChunksIndexed,
		SecurityLevel:    result.SecurityLevel,
		Domain:           result.Domain,
		AutoEscalated:    result.AutoEscalated,
		ProcessingTimeMs: float64(result.ProcessingTime.Milliseconds()),
	}, http.StatusOK
}

// dedupeIngest reports whether the registry already holds a document with
// the same content hash. A duplicate is answered from the existing record
// without re-embedding; its stored chunk count is resynced with the live
// index first, since a partial failure on the original ingest can leave the
// two apart.
func (h *Handlers) dedupeIngest(ctx context.Context, req IngestRequest) (IngestResponse, bool) {
	if h.docs == nil {
		return IngestResponse{}, false
	}

	existing, err := h.docs.GetByHash(ctx, ingestion.HashContent(req.Content))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Warn("duplicate check failed", "filename", req.Filename, "error", err)
		}
		return IngestResponse{}, false
	}

	docID := existing.ID.String()
	live, err := h.store.Count(ctx, vectorstore.Filter{DocIDs: []string{docID}})
	if err == nil && int(live) != existing.ChunkCount {
		if err := h.docs.UpdateChunkCount(ctx, existing.ID, int(live)); err != nil {
			h.logger.Warn("failed to resync chunk count", "doc_id", docID, "error", err)
		} else {
			existing.ChunkCount = int(live)
		}
	}

	h.logger.Info("duplicate document skipped", "filename", req.Filename, "doc_id", docID)
	return IngestResponse{
		DocumentID:    docID,
		Filename:      existing.Filename,
		ChunksCreated: existing.ChunkCount,
		ChunksIndexed: existing.ChunkCount,
		SecurityLevel: existing.SecurityLevel,
		Domain:        existing.Domain,
		Duplicate:     true,
	}, true
}

// IngestBatch processes multiple documents, skipping empty ones.
func (h *Handlers) IngestBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Documents []IngestRequest `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents are required")
		return
	}

	results := make([]IngestResponse, 0, len(req.Documents))
	successful := 0
	for _, doc := range req.Documents {
		doc.SecurityLevel = auth.CapClearance(r.Context(), doc.SecurityLevel)
		h.state.setIngestion(StatusProcessing, doc.Filename)
		resp, status := h.ingestOne(r.Context(), doc)
		if status == http.StatusOK {
			successful++
			h.state.setIngestion(StatusComplete, "")
		} else {
			h.state.setIngestion(StatusError, "")
		}
		results = append(results, resp)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":      len(req.Documents),
		"successful": successful,
		"failed":     len(req.Documents) - successful,
		"results":    results,
	})
}

func (h *Handlers) persistDocument(ctx context.Context, req IngestRequest, result *ingestion.Result) {
	if h.docs == nil {
		return
	}
	id, err := uuid.Parse(result.DocID)
	if err != nil {
		h.logger.Warn("unparseable document ID", "doc_id", result.DocID)
		return
	}
	now := time.Now().UTC()
	doc := &repository.Document{
		ID:            id,
		Filename:      req.Filename,
		FileType:      req.FileType,
		FileSize:      int64(len(req.Content)),
		ContentHash:   result.ContentHash,
		SecurityLevel: result.SecurityLevel,
		Domain:        result.Domain,
		Source:        req.Source,
		ChunkCount:    result.ChunksIndexed,
		Metadata:      map[string]string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.docs.Create(ctx, doc); err != nil {
		h.logger.Warn("failed to persist document record", "doc_id", result.DocID, "error", err)
	}
}

func (h *Handlers) recordAudit(ctx context.Context, action, resourceType, resourceID string, level security.Level, allowed bool) {
	if h.audit == nil {
		return
	}
	event := &repository.AuditEvent{
		Action:        action,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		SecurityLevel: level,
		AccessAllowed: allowed,
		Details:       map[string]string{},
	}
	if err := h.audit.Insert(ctx, event); err != nil {
		h.logger.Warn("failed to record audit event", "action", action, "error", err)
	}
}

// ListDocuments returns the document registry.
func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"documents": []any{}, "total": 0})
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	level := r.URL.Query().Get("security_level")

	docs, total, err := h.docs.List(r.Context(), level, limit, offset)
	if err != nil {
		h.logger.Error("failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentJSON(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out, "total": total})
}

func documentJSON(doc *repository.Document) map[string]any {
	return map[string]any{
		"id":             doc.ID.String(),
		"filename":       doc.Filename,
		"file_type":      doc.FileType,
		"size":           doc.FileSize,
		"security_level": doc.SecurityLevel.String(),
		"domain":         doc.Domain,
		"source":         doc.Source,
		"chunks":         doc.ChunkCount,
		"ingested_at":    doc.CreatedAt.Format(time.RFC3339),
	}
}

// DeleteDocument removes a document from the vector store and the registry.
func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "doc_id")

	if err := h.pipeline.Delete(r.Context(), docID); err != nil {
		h.logger.Error("failed to delete document chunks", "doc_id", docID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	// The audit trail records the deleted document's classification, not
	// the caller's. Unregistered documents fall back to PUBLIC.
	level := security.LevelPublic
	if h.docs != nil {
		if id, err := uuid.Parse(docID); err == nil {
			if doc, err := h.docs.GetByID(r.Context(), id); err == nil {
				level = doc.SecurityLevel
			}
			if err := h.docs.Delete(r.Context(), id); err != nil && !errors.Is(err, repository.ErrNotFound) {
				h.logger.Warn("failed to delete document record", "doc_id", docID, "error", err)
			}
		}
	}

	h.recordAudit(r.Context(), "delete_document", "document", docID, level, true)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Document deleted", "success": true})
}

// AutoDetectSecurity classifies raw text and recommends a security level.
func (h *Handlers) AutoDetectSecurity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string `json:"content"`
		Filename string `json:"filename,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	detection := h.checker.AutoDetect(req.Content)
	writeJSON(w, http.StatusOK, detection)
}

// AuditLog returns recent audit events, optionally filtered by action.
func (h *Handlers) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit storage not configured")
		return
	}
	action := r.URL.Query().Get("action")
	limit := queryInt(r, "limit", 100)

	events, err := h.audit.Recent(r.Context(), action, limit)
	if err != nil {
		h.logger.Error("failed to list audit events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}

// fieldCount is one entry of a grouped chunk tally.
type fieldCount struct {
	Key    string `json:"key"`
	Chunks uint64 `json:"chunks"`
}

// Stats aggregates chunk counts across the vector store and the registry.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	totalChunks, err := h.store.Count(r.Context(), vectorstore.Filter{})
	if err != nil {
		h.logger.Error("failed to count chunks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to aggregate statistics")
		return
	}

	bySource := h.countByField(r.Context(), "source")
	byDomain := h.countByField(r.Context(), "domain")
	byType := h.countByField(r.Context(), "file_type")

	stats := map[string]any{
		"total_chunks":       totalChunks,
		"chunks_by_source":   bySource,
		"chunks_by_domain":   byDomain,
		"chunks_by_type":     byType,
		"total_documents":    0,
		"chunks_by_document": []map[string]any{},
	}

	if h.docs != nil {
		docs, total, err := h.docs.List(r.Context(), "", 1000, 0)
		if err != nil {
			h.logger.Warn("failed to list documents for stats", "error", err)
		} else {
			stats["total_documents"] = total
			byDoc := make([]map[string]any, 0, len(docs))
			var earliest, latest time.Time
			for _, doc := range docs {
				byDoc = append(byDoc, map[string]any{
					"document_id": doc.ID.String(),
					"filename":    doc.Filename,
					"chunks":      doc.ChunkCount,
				})
				if earliest.IsZero() || doc.CreatedAt.Before(earliest) {
					earliest = doc.CreatedAt
				}
				if doc.CreatedAt.After(latest) {
					latest = doc.CreatedAt
				}
			}
			stats["chunks_by_document"] = byDoc
			if !earliest.IsZero() {
				stats["date_range"] = map[string]string{
					"earliest": earliest.Format(time.RFC3339),
					"latest":   latest.Format(time.RFC3339),
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) countByField(ctx context.Context, field string) []fieldCount {
	counts, err := h.store.CountByField(ctx, field)
	if err != nil {
		h.logger.Warn("failed to count chunks by field", "field", field, "error", err)
		return []fieldCount{}
	}
	out := make([]fieldCount, 0, len(counts))
	for key, chunks := range counts {
		out = append(out, fieldCount{Key: key, Chunks: chunks})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
