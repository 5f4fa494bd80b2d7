package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellecta/rag/internal/embedder"
	"github.com/intellecta/rag/internal/ingestion"
	"github.com/intellecta/rag/internal/retriever"
	"github.com/intellecta/rag/internal/security"
	"github.com/intellecta/rag/internal/tokenizer"
	"github.com/intellecta/rag/internal/vectorstore"
)

// termEmbedder maps text to a unit vector over a small term vocabulary. The
// anchor dimension keeps any two texts loosely similar so retrieval exercises
// ranking rather than the distance cutoff; shared vocabulary terms pull
// related texts closer.
type termEmbedder struct {
	vocab []string
}

func newTermEmbedder() *termEmbedder {
	return &termEmbedder{vocab: []string{"voltage", "transformer", "substation", "grid", "credit", "card"}}
}

func (e *termEmbedder) Embed(_ context.Context, text string, _ embedder.Role) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.vocab)+1)
	vec[0] = 3
	for i, term := range e.vocab {
		if strings.Contains(lower, term) {
			vec[i+1] = 1
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (e *termEmbedder) EmbedBatch(ctx context.Context, texts []string, role embedder.Role) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text, role)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (e *termEmbedder) Dimension() int    { return len(e.vocab) + 1 }
func (e *termEmbedder) ModelName() string { return "term-presence" }

// memoryStore is an in-memory vector index with exact cosine scoring.
type memoryStore struct {
	points []vectorstore.Point
}

func (s *memoryStore) EnsureCollection(context.Context, int) error { return nil }

func (s *memoryStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	s.points = append(s.points, points...)
	return nil
}

func (s *memoryStore) Query(_ context.Context, vector []float32, filter vectorstore.Filter, k int) ([]vectorstore.Result, error) {
	var hits []vectorstore.Result
	for _, p := range s.points {
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		hits = append(hits, vectorstore.Result{ID: p.ID, Score: dot(vector, p.Vector), Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *memoryStore) DeleteByDocID(_ context.Context, docID string) error {
	kept := s.points[:0]
	for _, p := range s.points {
		if p.Payload.DocID != docID {
			kept = append(kept, p)
		}
	}
	s.points = kept
	return nil
}

func (s *memoryStore) Count(_ context.Context, filter vectorstore.Filter) (uint64, error) {
	var n uint64
	for _, p := range s.points {
		if matchesFilter(p.Payload, filter) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) CountByField(_ context.Context, field string) (map[string]uint64, error) {
	counts := make(map[string]uint64)
	for _, p := range s.points {
		switch field {
		case "domain":
			counts[p.Payload.Domain]++
		case "source":
			counts[p.Payload.Source]++
		case "file_type":
			counts[p.Payload.FileType]++
		}
	}
	return counts, nil
}

func (s *memoryStore) Stats(context.Context) (vectorstore.CollectionStats, error) {
	return vectorstore.CollectionStats{PointsCount: uint64(len(s.points)), CollectionOK: true}, nil
}

func (s *memoryStore) Close() error { return nil }

func matchesFilter(p vectorstore.Payload, filter vectorstore.Filter) bool {
	if len(filter.SecurityLevels) > 0 && !containsString(filter.SecurityLevels, p.SecurityLevel.String()) {
		return false
	}
	if len(filter.DocIDs) > 0 && !containsString(filter.DocIDs, p.DocID) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func newFlowFixture() (*ingestion.Pipeline, *Engine) {
	store := &memoryStore{}
	emb := newTermEmbedder()
	chunker := ingestion.NewChunker(ingestion.ChunkerConfig{}, tokenizer.NewApproximate())
	pipe := ingestion.NewPipeline(chunker, security.NewChecker(), emb, store, nil)
	searcher := retriever.NewSearcher(emb, store, nil, nil)
	eng := New(searcher, security.NewChecker(), &scriptedLLM{}, nil)
	return pipe, eng
}

func gridDocument() string {
	var b strings.Builder
	for i := 0; i < 64; i++ {
		fmt.Fprintf(&b, "Feeder %d on the grid ties the substation transformer to the 345kV transmission line and steps the voltage down for distribution. ", i)
	}
	return b.String()
}

func TestFlow_GridDocumentAnswersPublicQuery(t *testing.T) {
	ctx := context.Background()
	pipe, eng := newFlowFixture()

	result, err := pipe.Process(ctx, ingestion.Input{
		Content:  gridDocument(),
		Filename: "grid-overview.txt",
		FileType: "txt",
	})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(result.Chunks), 3)
	assert.Equal(t, security.LevelPublic, result.SecurityLevel)
	assert.Equal(t, "grid", result.Domain)
	for _, chunk := range result.Chunks {
		assert.Equal(t, "grid", chunk.Domain)
	}

	resp, err := eng.Process(ctx, Request{
		Query:     "What voltage level?",
		Clearance: security.LevelPublic,
		FastMode:  boolPtr(true),
	})
	require.NoError(t, err)

	assert.True(t, resp.Security.AccessAllowed)
	assert.GreaterOrEqual(t, resp.ChunksUsed, 1)
	assert.Equal(t, 0, resp.ChunksBlocked)
	assert.Contains(t, resp.Sources, "grid-overview.txt")
}

func TestFlow_CreditCardDocumentDeniedForPublic(t *testing.T) {
	ctx := context.Background()
	pipe, eng := newFlowFixture()

	var b strings.Builder
	b.WriteString("Billing records for the retail settlement runs. The card on file is 4111-1111-1111-1111 and covers the recurring invoices. ")
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&b, "Settlement run %d reconciled the retail invoices without exceptions and the receipts were archived for review. ", i)
	}

	result, err := pipe.Process(ctx, ingestion.Input{
		Content:  b.String(),
		Filename: "billing.txt",
		FileType: "txt",
	})
	require.NoError(t, err)
	assert.Equal(t, security.LevelRestricted, result.SecurityLevel)
	assert.True(t, result.AutoEscalated)

	resp, err := eng.Process(ctx, Request{
		Query:     "What is the credit card number on file?",
		Clearance: security.LevelPublic,
		FastMode:  boolPtr(true),
	})
	require.NoError(t, err)

	assert.False(t, resp.Security.AccessAllowed)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, 0, resp.ChunksUsed)

	// A sufficiently cleared caller reaches the same content.
	resp, err = eng.Process(ctx, Request{
		Query:     "What is the credit card number on file?",
		Clearance: security.LevelRestricted,
		FastMode:  boolPtr(true),
	})
	require.NoError(t, err)

	assert.True(t, resp.Security.AccessAllowed)
	assert.GreaterOrEqual(t, resp.ChunksUsed, 1)
	assert.Contains(t, resp.Sources, "billing.txt")
}
