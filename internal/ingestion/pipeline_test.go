package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellecta/rag/internal/embedder"
	"github.com/intellecta/rag/internal/security"
	"github.com/intellecta/rag/internal/tokenizer"
	"github.com/intellecta/rag/internal/vectorstore"
)

// fakeEmbedder returns fixed-size vectors and can be told to fail specific
// batch positions.
type fakeEmbedder struct {
	failIndexes map[int]bool
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, _ embedder.Role) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string, _ embedder.Role) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i := range texts {
		if f.failIndexes[i] {
			continue
		}
		results[i] = []float32{1, 0, 0}
	}
	return results, nil
}

func (f *fakeEmbedder) Dimension() int    { return 3 }
func (f *fakeEmbedder) ModelName() string { return "fake" }

// fakeStore records upserted points.
type fakeStore struct {
	points  []vectorstore.Point
	deleted []string
}

func (f *fakeStore) EnsureCollection(context.Context, int) error { return nil }

func (f *fakeStore) Upsert(_ context.Context, points []vectorstore.Point) error {
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeStore) Query(context.Context, []float32, vectorstore.Filter, int) ([]vectorstore.Result, error) {
	return nil, nil
}

func (f *fakeStore) DeleteByDocID(_ context.Context, docID string) error {
	f.deleted = append(f.deleted, docID)
	return nil
}

func (f *fakeStore) Count(context.Context, vectorstore.Filter) (uint64, error) {
	return uint64(len(f.points)), nil
}

func (f *fakeStore) Stats(context.Context) (vectorstore.CollectionStats, error) {
	return vectorstore.CollectionStats{}, nil
}

func (f *fakeStore) CountByField(context.Context, string) (map[string]uint64, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

func testPipeline(emb embedder.Embedder, store vectorstore.VectorStore) *Pipeline {
	chunker := NewChunker(ChunkerConfig{
		TargetTokens:  50,
		OverlapTokens: 5,
		MinTokens:     10,
	}, tokenizer.NewApproximate())
	return NewPipeline(chunker, security.NewChecker(), emb, store, nil)
}

func publicContent() string {
	return strings.TrimSpace(strings.Repeat("The solar panel output grew steadily all year. ", 12))
}

func TestPipeline_Process(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(&fakeEmbedder{}, store)

	result, err := pipeline.Process(context.Background(), Input{
		Content:  publicContent(),
		Filename: "report.txt",
		FileType: "txt",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.DocID)
	assert.Greater(t, len(result.Chunks), 0)
	assert.Equal(t, len(result.Chunks), result.ChunksIndexed)
	assert.Equal(t, 0, result.EmbeddingFailures)
	assert.Equal(t, security.LevelPublic, result.SecurityLevel)
	assert.Equal(t, "solar", result.Domain)
	assert.Len(t, store.points, len(result.Chunks))

	for _, point := range store.points {
		assert.Equal(t, result.DocID, point.Payload.DocID)
		assert.Equal(t, "report.txt", point.Payload.Filename)
		assert.Equal(t, "report.txt", point.Payload.Source)
		assert.Equal(t, len(result.Chunks), point.Payload.TotalChunks)
	}
}

func TestPipeline_KeepsFilenameAndSourceSeparate(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(&fakeEmbedder{}, store)

	_, err := pipeline.Process(context.Background(), Input{
		Content:  publicContent(),
		Filename: "q3-report.txt",
		Source:   "energy-dataset",
		FileType: "txt",
	})
	require.NoError(t, err)
	require.NotEmpty(t, store.points)

	for _, point := range store.points {
		assert.Equal(t, "q3-report.txt", point.Payload.Filename)
		assert.Equal(t, "energy-dataset", point.Payload.Source)
	}
}

func TestPipeline_AutoEscalatesSecurityLevel(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(&fakeEmbedder{}, store)

	content := strings.TrimSpace(strings.Repeat(
		"The reactor enrichment process at the facility is documented here. ", 10))

	result, err := pipeline.Process(context.Background(), Input{
		Content:       content,
		Filename:      "reactor.txt",
		FileType:      "txt",
		SecurityLevel: security.LevelPublic,
	})
	require.NoError(t, err)

	assert.Equal(t, security.LevelTopSecret, result.SecurityLevel)
	assert.True(t, result.AutoEscalated)
	for _, point := range store.points {
		assert.Equal(t, security.LevelTopSecret, point.Payload.SecurityLevel)
	}
}

func TestPipeline_DeclaredLevelNotDowngraded(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(&fakeEmbedder{}, store)

	result, err := pipeline.Process(context.Background(), Input{
		Content:       publicContent(),
		Filename:      "internal.txt",
		FileType:      "txt",
		SecurityLevel: security.LevelConfidential,
	})
	require.NoError(t, err)

	assert.Equal(t, security.LevelConfidential, result.SecurityLevel)
	assert.False(t, result.AutoEscalated)
}

func TestPipeline_EmptyContent(t *testing.T) {
	pipeline := testPipeline(&fakeEmbedder{}, &fakeStore{})

	_, err := pipeline.Process(context.Background(), Input{Content: "   "})
	assert.ErrorIs(t, err, ErrNoContent)

	// All content below the minimum chunk size also yields nothing.
	_, err = pipeline.Process(context.Background(), Input{Content: "tiny"})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestPipeline_PartialEmbeddingFailure(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(&fakeEmbedder{failIndexes: map[int]bool{0: true}}, store)

	result, err := pipeline.Process(context.Background(), Input{
		Content:  publicContent(),
		Filename: "partial.txt",
		FileType: "txt",
	})
	require.NoError(t, err)
	require.Greater(t, len(result.Chunks), 1)

	assert.Equal(t, 1, result.EmbeddingFailures)
	assert.Equal(t, len(result.Chunks)-1, result.ChunksIndexed)
	assert.Len(t, store.points, len(result.Chunks)-1)
}

func TestPipeline_ProcessBatchSkipsEmpty(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(&fakeEmbedder{}, store)

	results, err := pipeline.ProcessBatch(context.Background(), []Input{
		{Content: publicContent(), Filename: "a.txt", FileType: "txt"},
		{Content: "", Filename: "empty.txt", FileType: "txt"},
		{Content: publicContent(), Filename: "b.txt", FileType: "txt"},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPipeline_Delete(t *testing.T) {
	store := &fakeStore{}
	pipeline := testPipeline(&fakeEmbedder{}, store)

	require.NoError(t, pipeline.Delete(context.Background(), "doc-1"))
	assert.Equal(t, []string{"doc-1"}, store.deleted)
}
