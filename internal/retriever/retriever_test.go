package retriever

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellecta/rag/internal/embedder"
	"github.com/intellecta/rag/internal/security"
	"github.com/intellecta/rag/internal/vectorstore"
)

type stubEmbedder struct {
	queries []string
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, text string, _ embedder.Role) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.queries = append(s.queries, text)
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string, _ embedder.Role) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i := range texts {
		results[i] = []float32{1, 0, 0}
	}
	return results, nil
}

func (s *stubEmbedder) Dimension() int    { return 3 }
func (s *stubEmbedder) ModelName() string { return "stub" }

type stubStore struct {
	hits    []vectorstore.Result
	filters []vectorstore.Filter
	limits  []int
}

func (s *stubStore) EnsureCollection(context.Context, int) error       { return nil }
func (s *stubStore) Upsert(context.Context, []vectorstore.Point) error { return nil }
func (s *stubStore) DeleteByDocID(context.Context, string) error       { return nil }
func (s *stubStore) Count(context.Context, vectorstore.Filter) (uint64, error) {
	return uint64(len(s.hits)), nil
}
func (s *stubStore) Stats(context.Context) (vectorstore.CollectionStats, error) {
	return vectorstore.CollectionStats{}, nil
}
func (s *stubStore) CountByField(context.Context, string) (map[string]uint64, error) {
	return nil, nil
}
func (s *stubStore) Close() error { return nil }

func (s *stubStore) Query(_ context.Context, _ []float32, filter vectorstore.Filter, k int) ([]vectorstore.Result, error) {
	s.filters = append(s.filters, filter)
	s.limits = append(s.limits, k)
	return s.hits, nil
}

func hit(id string, score float32, text string) vectorstore.Result {
	return vectorstore.Result{
		ID:    id,
		Score: score,
		Payload: vectorstore.Payload{
			Text:          text,
			DocID:         "doc-" + id,
			Source:        id + ".txt",
			SecurityLevel: security.LevelPublic,
		},
	}
}

func TestSearch_DistanceThreshold(t *testing.T) {
	store := &stubStore{hits: []vectorstore.Result{
		hit("a", 0.9, "closest"),
		hit("b", 0.7, "close enough"),
		hit("c", 0.5, "too far"),
	}}
	searcher := NewSearcher(&stubEmbedder{}, store, nil, nil)

	candidates, metrics, err := searcher.Search(context.Background(), "query", Options{TopK: 10})
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, "a", candidates[0].ID)
	assert.InDelta(t, 0.1, candidates[0].Distance, 1e-6)
	assert.Equal(t, "b", candidates[1].ID)
	assert.Equal(t, 3, metrics.ChunksAnalyzed)
}

func TestSearch_DocScopedUsesLooserThreshold(t *testing.T) {
	store := &stubStore{hits: []vectorstore.Result{
		hit("a", 0.5, "distance 0.5 passes the scoped cutoff"),
	}}
	searcher := NewSearcher(&stubEmbedder{}, store, nil, nil)

	candidates, _, err := searcher.Search(context.Background(), "query", Options{
		TopK:        10,
		DocumentIDs: []string{"doc-a"},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	// The doc filter must reach the index.
	require.Len(t, store.filters, 1)
	assert.Equal(t, []string{"doc-a"}, store.filters[0].DocIDs)
}

func TestSearch_SecurityFilterAtIndexLayer(t *testing.T) {
	store := &stubStore{}
	searcher := NewSearcher(&stubEmbedder{}, store, nil, nil)

	_, _, err := searcher.Search(context.Background(), "query", Options{
		TopK:      10,
		Clearance: security.LevelInternal,
	})
	require.NoError(t, err)

	require.Len(t, store.filters, 1)
	assert.Equal(t, []string{"PUBLIC", "INTERNAL"}, store.filters[0].SecurityLevels)
}

func TestSearch_EmptyResultsIsNotAnError(t *testing.T) {
	searcher := NewSearcher(&stubEmbedder{}, &stubStore{}, nil, nil)

	candidates, metrics, err := searcher.Search(context.Background(), "query", Options{TopK: 10})
	require.NoError(t, err)

	assert.Empty(t, candidates)
	assert.Equal(t, 1.0, metrics.AvgDistance)
	assert.Equal(t, 1.0, metrics.MinDistance)
	assert.Equal(t, 0.0, metrics.Accuracy)
	assert.Equal(t, 0, metrics.ChunksAnalyzed)
}

func TestSearch_EmbedFailure(t *testing.T) {
	searcher := NewSearcher(&stubEmbedder{err: errors.New("oracle down")}, &stubStore{}, nil, nil)

	_, _, err := searcher.Search(context.Background(), "query", Options{TopK: 10})
	assert.Error(t, err)
}

type scriptedReranker struct {
	topK int
	err  error
}

func (r *scriptedReranker) Rerank(_ context.Context, _ string, candidates []Candidate, topK int) ([]Candidate, error) {
	r.topK = topK
	if r.err != nil {
		return nil, r.err
	}
	// Reverse order to prove the rerank result is what comes back.
	reversed := make([]Candidate, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		reversed = append(reversed, candidates[i])
	}
	if len(reversed) > topK {
		reversed = reversed[:topK]
	}
	return reversed, nil
}

func TestSearch_RerankerWidensFirstStage(t *testing.T) {
	store := &stubStore{hits: []vectorstore.Result{
		hit("a", 0.9, "first"),
		hit("b", 0.8, "second"),
	}}
	reranker := &scriptedReranker{}
	searcher := NewSearcher(&stubEmbedder{}, store, reranker, nil)

	candidates, _, err := searcher.Search(context.Background(), "query", Options{
		TopK:        1,
		UseReranker: true,
	})
	require.NoError(t, err)

	// First stage fetches the wide candidate pool, rerank narrows to topK.
	assert.Equal(t, []int{RerankCandidates}, store.limits)
	assert.Equal(t, 1, reranker.topK)
	require.Len(t, candidates, 1)
	assert.Equal(t, "b", candidates[0].ID)
}

func TestSearch_RerankFailureFallsBackToDenseOrder(t *testing.T) {
	store := &stubStore{hits: []vectorstore.Result{
		hit("a", 0.9, "first"),
		hit("b", 0.8, "second"),
	}}
	searcher := NewSearcher(&stubEmbedder{}, store, &scriptedReranker{err: errors.New("boom")}, nil)

	candidates, _, err := searcher.Search(context.Background(), "query", Options{
		TopK:        1,
		UseReranker: true,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "a", candidates[0].ID)
}

func TestQualitySearch_ExpandsQuery(t *testing.T) {
	store := &stubStore{hits: []vectorstore.Result{
		hit("a", 0.9, "The Solar Plant generates 500 MW at 60 Hz."),
	}}
	emb := &stubEmbedder{}
	searcher := NewSearcher(emb, store, &scriptedReranker{}, nil)

	_, _, expandedQuery, err := searcher.QualitySearch(context.Background(), "plant output", security.LevelPublic, nil)
	require.NoError(t, err)

	assert.NotEqual(t, "plant output", expandedQuery)
	assert.Contains(t, expandedQuery, "500 MW")

	// Two passes: expansion pass without rerank, final pass with it.
	require.Len(t, store.limits, 2)
	assert.Equal(t, ExpansionTopK, store.limits[0])
	assert.Equal(t, RerankCandidates, store.limits[1])
	require.Len(t, emb.queries, 2)
	assert.Equal(t, "plant output", emb.queries[0])
	assert.Equal(t, expandedQuery, emb.queries[1])
}

func TestQualitySearch_EmptyFirstPassSkipsExpansion(t *testing.T) {
	store := &stubStore{}
	emb := &stubEmbedder{}
	searcher := NewSearcher(emb, store, nil, nil)

	_, _, expandedQuery, err := searcher.QualitySearch(context.Background(), "plant output", security.LevelPublic, nil)
	require.NoError(t, err)
	assert.Equal(t, "plant output", expandedQuery)
}

func TestExtractExpansionTerms(t *testing.T) {
	terms := extractExpansionTerms([]Candidate{
		{Text: "The Solar Plant generates 500 MW at 60 Hz near Green Valley."},
	})

	require.NotEmpty(t, terms)
	assert.LessOrEqual(t, len(terms), 5)
	assert.Contains(t, terms, "500 MW")
	assert.Contains(t, terms, "60 Hz")
}

func TestComputeMetrics(t *testing.T) {
	metrics := computeMetrics([]float64{0.1, 0.2, 0.3}, time.Second, 10)

	assert.InDelta(t, 0.2, metrics.AvgDistance, 1e-9)
	assert.Equal(t, 0.1, metrics.MinDistance)
	assert.Equal(t, 0.3, metrics.MaxDistance)
	assert.Equal(t, 92.0, metrics.Accuracy)
	assert.Equal(t, 95.5, metrics.Precision)
	assert.Equal(t, 96.7, metrics.Efficiency)
	assert.Equal(t, 100.0, metrics.Throughput)
	assert.Equal(t, 0.67, metrics.HighQualityRatio)
	assert.Equal(t, 10, metrics.ChunksAnalyzed)
	assert.Equal(t, 10.0, metrics.ChunksPerSecond)
}
