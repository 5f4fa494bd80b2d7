// Package retriever implements two-stage dense retrieval: filtered
// nearest-neighbor search against the vector index, distance thresholding,
// and an optional rerank stage. Security filtering happens at the index
// layer; callers apply their own post-hoc checks on top.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/intellecta/rag/internal/embedder"
	"github.com/intellecta/rag/internal/security"
	"github.com/intellecta/rag/internal/vectorstore"
)

const (
	// DefaultTopK is the production result count for quality mode.
	DefaultTopK = 10

	// FastTopK is the result count for fast mode, which skips reranking.
	FastTopK = 5

	// ExpansionTopK is the first-pass result count used to mine expansion terms.
	ExpansionTopK = 15

	// RerankCandidates is how many neighbors the first stage fetches when a
	// rerank stage will narrow them down.
	RerankCandidates = 30

	// DefaultMaxDistance is the cosine distance relevance cutoff.
	DefaultMaxDistance = 0.35

	// docScopedMaxDistance is the looser cutoff used when the caller scoped
	// the search to explicit documents. Scoping signals intent; topical
	// distance should not veto it.
	docScopedMaxDistance = 0.7
)

// Candidate is one retrieval hit. Score is cosine similarity; Distance is
// its complement and is the thresholding and quality currency everywhere.
type Candidate struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	Score         float64        `json:"score"`
	RerankScore   float64        `json:"rerank_score,omitempty"`
	Distance      float64        `json:"distance"`
	DocID         string         `json:"doc_id"`
	Filename      string         `json:"filename,omitempty"`
	Source        string         `json:"source"`
	ChunkIndex    int            `json:"chunk_index"`
	SecurityLevel security.Level `json:"security_level"`
	Domain        string         `json:"domain,omitempty"`
	FileType      string         `json:"file_type"`
}

// Reranker reorders candidates by relevance to the query and truncates to
// topK. Implementations must fall back to the original order on internal
// failure rather than erroring the whole search.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Candidate, error)
}

// Options control a single search call.
type Options struct {
	TopK        int
	DocumentIDs []string
	Clearance   security.Level
	UseReranker bool

	// MaxDistance overrides the default cutoff when > 0. Ignored when the
	// search is document-scoped.
	MaxDistance float64
}

// Searcher runs the retrieval pipeline against an embedder and vector store.
type Searcher struct {
	embedder embedder.Embedder
	store    vectorstore.VectorStore
	reranker Reranker
	logger   *slog.Logger
}

// NewSearcher creates a Searcher. The reranker may be nil, in which case
// UseReranker requests degrade to plain truncation.
func NewSearcher(emb embedder.Embedder, store vectorstore.VectorStore, reranker Reranker, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		embedder: emb,
		store:    store,
		reranker: reranker,
		logger:   logger,
	}
}

// Search embeds the query, runs a filtered nearest-neighbor search, drops
// candidates beyond the distance cutoff, optionally reranks, and computes
// metrics over the final result set. Zero candidates after thresholding is a
// normal outcome: empty slice, zero-valued metrics, no error.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Candidate, Metrics, error) {
	startTime := time.Now()

	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	queryVector, err := s.embedder.Embed(ctx, query, embedder.RoleQuery)
	if err != nil {
		return nil, EmptyMetrics(), fmt.Errorf("failed to embed query: %w", err)
	}

	filter := vectorstore.Filter{
		DocIDs:         opts.DocumentIDs,
		SecurityLevels: security.AllowedLevelNames(opts.Clearance),
	}

	candidatesCount := opts.TopK
	if opts.UseReranker {
		candidatesCount = RerankCandidates
	}

	hits, err := s.store.Query(ctx, queryVector, filter, candidatesCount)
	if err != nil {
		return nil, EmptyMetrics(), fmt.Errorf("index query failed: %w", err)
	}
	analyzed := len(hits)

	maxDistance := opts.MaxDistance
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	if len(opts.DocumentIDs) > 0 {
		maxDistance = docScopedMaxDistance
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		score := float64(hit.Score)
		distance := 1 - score
		if distance > maxDistance {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:            hit.ID,
			Text:          hit.Payload.Text,
			Score:         score,
			Distance:      distance,
			DocID:         hit.Payload.DocID,
			Filename:      hit.Payload.Filename,
			Source:        hit.Payload.Source,
			ChunkIndex:    hit.Payload.ChunkIndex,
			SecurityLevel: hit.Payload.SecurityLevel,
			Domain:        hit.Payload.Domain,
			FileType:      hit.Payload.FileType,
		})
	}

	s.logger.Debug("dense retrieval",
		"hits", analyzed,
		"after_threshold", len(candidates),
		"max_distance", maxDistance)

	if opts.UseReranker && s.reranker != nil && len(candidates) > 0 {
		reranked, err := s.reranker.Rerank(ctx, query, candidates, opts.TopK)
		if err != nil {
			// Rerank failure degrades to dense-only ordering.
			s.logger.Warn("rerank failed, keeping dense order", "error", err)
			candidates = truncate(candidates, opts.TopK)
		} else {
			candidates = reranked
		}
	} else {
		candidates = truncate(candidates, opts.TopK)
	}

	distances := make([]float64, len(candidates))
	for i, c := range candidates {
		distances[i] = c.Distance
	}

	return candidates, computeMetrics(distances, time.Since(startTime), analyzed), nil
}

// FastSearch is the single-pass low-latency mode: small topK, no reranking.
func (s *Searcher) FastSearch(ctx context.Context, query string, clearance security.Level, docIDs []string) ([]Candidate, Metrics, error) {
	return s.Search(ctx, query, Options{
		TopK:        FastTopK,
		DocumentIDs: docIDs,
		Clearance:   clearance,
		UseReranker: false,
	})
}

// QualitySearch runs the two-pass pipeline: a wide unreranked search mines
// expansion terms from the top results, and a second search with the expanded
// query and reranking produces the final set. When the first pass comes back
// empty the original query is searched as-is.
func (s *Searcher) QualitySearch(ctx context.Context, query string, clearance security.Level, docIDs []string) ([]Candidate, Metrics, string, error) {
	initial, _, err := s.Search(ctx, query, Options{
		TopK:        ExpansionTopK,
		DocumentIDs: docIDs,
		Clearance:   clearance,
		UseReranker: false,
	})
	if err != nil {
		return nil, EmptyMetrics(), query, err
	}

	expandedQuery := query
	if len(initial) > 0 {
		if terms := extractExpansionTerms(initial); len(terms) > 0 {
			expandedQuery = query + " " + joinTerms(terms)
			s.logger.Debug("expanded query", "terms", terms)
		}
	}

	candidates, metrics, err := s.Search(ctx, expandedQuery, Options{
		TopK:        DefaultTopK,
		DocumentIDs: docIDs,
		Clearance:   clearance,
		UseReranker: true,
	})
	return candidates, metrics, expandedQuery, err
}

func truncate(candidates []Candidate, topK int) []Candidate {
	if len(candidates) > topK {
		return candidates[:topK]
	}
	return candidates
}
