package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intellecta/rag/internal/embedder"
	"github.com/intellecta/rag/internal/security"
	"github.com/intellecta/rag/internal/vectorstore"
)

// ErrNoContent is returned when a document yields zero chunks, either because
// it is empty or because all of it fell below the minimum chunk size.
var ErrNoContent = errors.New("no content extracted from document")

// Input describes one document to ingest. SecurityLevel is the uploader's
// declared classification; when it is PUBLIC the pipeline may escalate it
// based on content scanning.
type Input struct {
	Content       string
	Filename      string
	Source        string
	FileType      string
	SecurityLevel security.Level
}

// Result reports what happened to one ingested document.
type Result struct {
	DocID             string
	Chunks            []Chunk
	ChunksIndexed     int
	EmbeddingFailures int
	Domain            string
	SecurityLevel     security.Level
	AutoEscalated     bool
	ContentHash       string
	ProcessingTime    time.Duration
}

// Pipeline orchestrates ingestion: preprocess, classify, chunk, embed, upsert.
type Pipeline struct {
	chunker  *Chunker
	checker  *security.Checker
	embedder embedder.Embedder
	store    vectorstore.VectorStore
	logger   *slog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(chunker *Chunker, checker *security.Checker, emb embedder.Embedder, store vectorstore.VectorStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:  chunker,
		checker:  checker,
		embedder: emb,
		store:    store,
		logger:   logger,
	}
}

// Process runs one document through the pipeline. Chunking and classification
// never fail on odd input; only an effectively empty document or a collaborator
// outage produce an error. Individual embedding failures are counted and the
// remaining chunks are still indexed.
func (p *Pipeline) Process(ctx context.Context, input Input) (*Result, error) {
	startTime := time.Now()

	content := Preprocess(input.Content)
	if content == "" {
		return nil, ErrNoContent
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docID := uuid.New().String()
	domain := DetectDomain(content)

	level := input.SecurityLevel
	autoEscalated := false
	if level == security.LevelPublic {
		detection := p.checker.AutoDetect(content)
		if detection.Level > level {
			level = detection.Level
			autoEscalated = true
			p.logger.Warn("security level escalated by content scan",
				"doc_id", docID,
				"detected_level", detection.Level.String(),
				"confidence", detection.Confidence,
				"findings", detection.FindingsCount)
		}
	}

	chunks := p.chunker.Chunk(content)
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}

	now := time.Now().UTC()
	for i := range chunks {
		chunks[i].ID = uuid.New().String()
		chunks[i].DocID = docID
		chunks[i].SecurityLevel = level
		chunks[i].Domain = domain
		chunks[i].FileType = input.FileType
		chunks[i].Filename = input.Filename
		chunks[i].Source = firstNonEmpty(input.Source, input.Filename)
		chunks[i].CreatedAt = now
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts, embedder.RolePassage)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	var points []vectorstore.Point
	failures := 0
	for i, vector := range vectors {
		if vector == nil {
			failures++
			continue
		}
		points = append(points, vectorstore.Point{
			ID:     chunks[i].ID,
			Vector: vector,
			Payload: vectorstore.Payload{
				Text:          chunks[i].Text,
				DocID:         chunks[i].DocID,
				ChunkIndex:    chunks[i].ChunkIndex,
				TotalChunks:   chunks[i].TotalChunks,
				SecurityLevel: chunks[i].SecurityLevel,
				Domain:        chunks[i].Domain,
				FileType:      chunks[i].FileType,
				Filename:      chunks[i].Filename,
				Source:        chunks[i].Source,
			},
		})
	}

	if err := p.store.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}

	result := &Result{
		DocID:             docID,
		Chunks:            chunks,
		ChunksIndexed:     len(points),
		EmbeddingFailures: failures,
		Domain:            domain,
		SecurityLevel:     level,
		AutoEscalated:     autoEscalated,
		ContentHash:       HashContent(input.Content),
		ProcessingTime:    time.Since(startTime),
	}

	p.logger.Info("document ingested",
		"doc_id", docID,
		"chunks", len(chunks),
		"indexed", result.ChunksIndexed,
		"embedding_failures", failures,
		"security_level", level.String(),
		"domain", domain,
		"duration", result.ProcessingTime)

	return result, nil
}

// ProcessBatch processes multiple documents, skipping empty ones. Any other
// failure aborts with the results accumulated so far.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []Input) ([]*Result, error) {
	results := make([]*Result, 0, len(inputs))

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := p.Process(ctx, input)
		if err != nil {
			if errors.Is(err, ErrNoContent) {
				p.logger.Warn("skipping empty document", "filename", input.Filename)
				continue
			}
			return results, fmt.Errorf("failed to process %q: %w", input.Filename, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// Delete removes a document's chunks from the index.
func (p *Pipeline) Delete(ctx context.Context, docID string) error {
	if err := p.store.DeleteByDocID(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	p.logger.Info("document deleted", "doc_id", docID)
	return nil
}

// HashContent returns the hex SHA-256 of the raw document content, the
// dedup key used across the pipeline and the document registry.
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
