package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellecta/rag/internal/tokenizer"
)

// testChunker returns a chunker with small, deterministic limits. The
// approximate tokenizer makes token counts a pure function of byte length.
func testChunker() *Chunker {
	return NewChunker(ChunkerConfig{
		TargetTokens:  50,
		OverlapTokens: 5,
		MinTokens:     10,
	}, tokenizer.NewApproximate())
}

func TestNewChunker_Defaults(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{}, tokenizer.NewApproximate())

	assert.Equal(t, 512, chunker.config.TargetTokens)
	assert.Equal(t, 50, chunker.config.OverlapTokens)
	assert.Equal(t, 100, chunker.config.MinTokens)
}

func TestChunker_EmptyContent(t *testing.T) {
	chunker := testChunker()

	assert.Nil(t, chunker.Chunk(""))
	assert.Nil(t, chunker.Chunk("   \n\n  "))
}

func TestChunker_BelowMinimumDropped(t *testing.T) {
	chunker := testChunker()

	// 10 token minimum is 40 characters for the approximate tokenizer.
	chunks := chunker.Chunk("Too short to keep.")
	assert.Empty(t, chunks)
}

func TestChunker_IndexingAndTotalChunks(t *testing.T) {
	chunker := testChunker()

	paragraphs := []string{
		strings.TrimSpace(strings.Repeat("alpha generation data ", 9)),
		strings.TrimSpace(strings.Repeat("bravo turbine output ", 9)),
		strings.TrimSpace(strings.Repeat("charlie voltage reading ", 9)),
	}
	chunks := chunker.Chunk(strings.Join(paragraphs, "\n\n"))
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, len(chunks), chunk.TotalChunks)
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestChunker_OverlapSeedsNextChunk(t *testing.T) {
	chunker := testChunker()

	para1 := strings.TrimSpace(strings.Repeat("alpha ", 30))
	para2 := strings.TrimSpace(strings.Repeat("bravo ", 30))

	chunks := chunker.Chunk(para1 + "\n\n" + para2)
	require.Len(t, chunks, 2)

	assert.Equal(t, para1, chunks[0].Text)

	// The second chunk starts with the overlap suffix of the first:
	// 5 tokens is 20 trailing characters under the approximate tokenizer.
	overlap := strings.TrimSpace(para1[len(para1)-20:])
	assert.True(t, strings.HasPrefix(chunks[1].Text, overlap))
	assert.Contains(t, chunks[1].Text, "bravo")
}

func TestChunker_OversizedParagraphPackedBySentence(t *testing.T) {
	chunker := testChunker()

	sentence := "The grid frequency stays near fifty hertz under normal load."
	para := strings.Repeat(sentence+" ", 20)

	chunks := chunker.Chunk(para)
	require.Greater(t, len(chunks), 1)

	tok := tokenizer.NewApproximate()
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.LessOrEqual(t, tok.Count(chunk.Text), 50)
	}
}

func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("The inverter failed. It was replaced! Was downtime logged?")
	require.Len(t, sentences, 3)
	assert.Equal(t, "The inverter failed.", sentences[0])

	// Abbreviations do not end a sentence.
	sentences = splitSentences("Dr. Smith inspected the site. All clear.")
	require.Len(t, sentences, 2)
	assert.Equal(t, "Dr. Smith inspected the site.", sentences[0])
}

func TestPreprocess_NormalizesUnits(t *testing.T) {
	out := Preprocess("The plant produces 500MW and 2  GW at 60Hz over a 230kV line.")

	assert.Contains(t, out, "500 MW")
	assert.Contains(t, out, "2 GW")
	assert.Contains(t, out, "60 Hz")
	assert.Contains(t, out, "230 kV")
}

func TestPreprocess_PreservesParagraphBoundaries(t *testing.T) {
	out := Preprocess("first   paragraph here.\n\n\n\nsecond  paragraph here.")

	assert.Equal(t, "first paragraph here.\n\nsecond paragraph here.", out)
}

func TestDetectDomain(t *testing.T) {
	assert.Equal(t, "solar", DetectDomain("Solar photovoltaic panel output depends on irradiance."))
	assert.Equal(t, "wind", DetectDomain("The offshore wind turbine nacelle houses the rotor shaft."))
	assert.Equal(t, "", DetectDomain("Completely unrelated text about cooking."))
}
