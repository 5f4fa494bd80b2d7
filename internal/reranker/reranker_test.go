package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellecta/rag/internal/embedder"
	"github.com/intellecta/rag/internal/retriever"
)

// vectorEmbedder returns a canned vector per text and a fixed query vector.
type vectorEmbedder struct {
	queryVector []float32
	byText      map[string][]float32
}

func (v *vectorEmbedder) Embed(_ context.Context, text string, role embedder.Role) ([]float32, error) {
	if role == embedder.RoleQuery {
		return v.queryVector, nil
	}
	return v.byText[text], nil
}

func (v *vectorEmbedder) EmbedBatch(ctx context.Context, texts []string, role embedder.Role) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = v.byText[text]
	}
	return results, nil
}

func (v *vectorEmbedder) Dimension() int    { return 2 }
func (v *vectorEmbedder) ModelName() string { return "canned" }

func TestRerank_ReordersByBlendedScore(t *testing.T) {
	// Query points along the x axis. "aligned" matches it exactly,
	// "orthogonal" not at all, despite the dense stage preferring it.
	emb := &vectorEmbedder{
		queryVector: []float32{1, 0},
		byText: map[string][]float32{
			"orthogonal": {0, 1},
			"aligned":    {1, 0},
		},
	}
	reranker := NewEmbeddingReranker(emb, nil)

	candidates := []retriever.Candidate{
		{ID: "1", Text: "orthogonal", Score: 0.9, Distance: 0.1},
		{ID: "2", Text: "aligned", Score: 0.8, Distance: 0.2},
	}

	reranked, err := reranker.Rerank(context.Background(), "query", candidates, 10)
	require.NoError(t, err)
	require.Len(t, reranked, 2)

	assert.Equal(t, "2", reranked[0].ID)
	// 0.3*0.8 + 0.7*1.0
	assert.InDelta(t, 0.94, reranked[0].Score, 1e-6)
	assert.InDelta(t, 1.0, reranked[0].RerankScore, 1e-6)
	assert.InDelta(t, 0.06, reranked[0].Distance, 1e-6)

	// 0.3*0.9 + 0.7*0.0
	assert.Equal(t, "1", reranked[1].ID)
	assert.InDelta(t, 0.27, reranked[1].Score, 1e-6)
}

func TestRerank_TruncatesToTopK(t *testing.T) {
	emb := &vectorEmbedder{
		queryVector: []float32{1, 0},
		byText: map[string][]float32{
			"a": {1, 0},
			"b": {1, 0},
			"c": {1, 0},
		},
	}
	reranker := NewEmbeddingReranker(emb, nil)

	candidates := []retriever.Candidate{
		{ID: "1", Text: "a", Score: 0.9},
		{ID: "2", Text: "b", Score: 0.8},
		{ID: "3", Text: "c", Score: 0.7},
	}

	reranked, err := reranker.Rerank(context.Background(), "query", candidates, 2)
	require.NoError(t, err)
	assert.Len(t, reranked, 2)
}

func TestRerank_FailedPassageEmbeddingScoresZero(t *testing.T) {
	emb := &vectorEmbedder{
		queryVector: []float32{1, 0},
		byText: map[string][]float32{
			"known": {1, 0},
			// "unknown" is absent, its batch entry comes back nil.
		},
	}
	reranker := NewEmbeddingReranker(emb, nil)

	candidates := []retriever.Candidate{
		{ID: "1", Text: "unknown", Score: 0.9},
		{ID: "2", Text: "known", Score: 0.5},
	}

	reranked, err := reranker.Rerank(context.Background(), "query", candidates, 10)
	require.NoError(t, err)
	require.Len(t, reranked, 2)

	assert.Equal(t, "2", reranked[0].ID)
	assert.Equal(t, "1", reranked[1].ID)
	assert.Equal(t, 0.0, reranked[1].RerankScore)
}

func TestRerank_EmptyInput(t *testing.T) {
	reranker := NewEmbeddingReranker(&vectorEmbedder{queryVector: []float32{1, 0}}, nil)

	reranked, err := reranker.Rerank(context.Background(), "query", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, reranked)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 3}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
