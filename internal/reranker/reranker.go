// Package reranker provides a second-stage scorer for retrieval candidates.
//
// The dense first stage ranks passages independently of each other; the
// reranker re-scores each query-passage pair and blends that score with the
// original similarity. This trades one extra embedding round-trip per result
// set for noticeably better ordering when the top candidates are close.
package reranker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/intellecta/rag/internal/embedder"
	"github.com/intellecta/rag/internal/retriever"
)

// Score blend weights. The rerank score dominates; the original similarity
// keeps a vote so a wildly off-topic passage cannot be rescued by one lucky
// pairwise score.
const (
	originalWeight = 0.3
	rerankWeight   = 0.7
)

// EmbeddingReranker scores query-passage pairs by cosine similarity of their
// embeddings and reorders candidates by the blended score.
type EmbeddingReranker struct {
	embedder embedder.Embedder
	logger   *slog.Logger
}

// NewEmbeddingReranker creates a reranker backed by the given embedder.
func NewEmbeddingReranker(emb embedder.Embedder, logger *slog.Logger) *EmbeddingReranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingReranker{embedder: emb, logger: logger}
}

// Rerank re-scores candidates against the query and returns them sorted by
// blended score, truncated to topK. A passage whose embedding fails keeps a
// zero rerank score rather than aborting the set.
func (r *EmbeddingReranker) Rerank(ctx context.Context, query string, candidates []retriever.Candidate, topK int) ([]retriever.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	queryVector, err := r.embedder.Embed(ctx, query, embedder.RoleQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query for rerank: %w", err)
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	passageVectors, err := r.embedder.EmbedBatch(ctx, texts, embedder.RolePassage)
	if err != nil {
		return nil, fmt.Errorf("failed to embed passages for rerank: %w", err)
	}

	reranked := make([]retriever.Candidate, len(candidates))
	copy(reranked, candidates)
	for i := range reranked {
		rerankScore := 0.0
		if passageVectors[i] != nil {
			rerankScore = cosineSimilarity(queryVector, passageVectors[i])
		} else {
			r.logger.Warn("passage embedding failed during rerank", "chunk_id", reranked[i].ID)
		}
		reranked[i].RerankScore = rerankScore
		reranked[i].Score = originalWeight*reranked[i].Score + rerankWeight*rerankScore
		reranked[i].Distance = 1 - reranked[i].Score
	}

	sort.SliceStable(reranked, func(a, b int) bool {
		return reranked[a].Score > reranked[b].Score
	})

	if len(reranked) > topK {
		reranked = reranked[:topK]
	}
	return reranked, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Ensure EmbeddingReranker implements the retriever's contract.
var _ retriever.Reranker = (*EmbeddingReranker)(nil)
