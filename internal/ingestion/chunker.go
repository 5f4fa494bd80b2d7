// Package ingestion handles document processing: preprocessing, chunking,
// security detection, and pipeline orchestration.
package ingestion

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/intellecta/rag/internal/security"
	"github.com/intellecta/rag/internal/tokenizer"
)

// Chunk is one token-bounded segment of a document. ChunkIndex is 0-based and
// strictly increasing within a document; TotalChunks is backfilled once the
// whole document has been chunked.
type Chunk struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	DocID         string         `json:"doc_id"`
	ChunkIndex    int            `json:"chunk_index"`
	TotalChunks   int            `json:"total_chunks"`
	SecurityLevel security.Level `json:"security_level"`
	Domain        string         `json:"domain,omitempty"`
	FileType      string         `json:"file_type"`
	Filename      string         `json:"filename,omitempty"`
	Source        string         `json:"source,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ChunkerConfig bounds chunk sizes in tokens.
type ChunkerConfig struct {
	TargetTokens  int
	OverlapTokens int
	MinTokens     int
}

// Chunker splits normalized text into overlapping token-bounded chunks.
type Chunker struct {
	config    ChunkerConfig
	tokenizer tokenizer.Tokenizer
}

// NewChunker creates a Chunker with the given configuration, applying
// defaults for unset fields.
func NewChunker(config ChunkerConfig, tok tokenizer.Tokenizer) *Chunker {
	if config.TargetTokens <= 0 {
		config.TargetTokens = 512
	}
	if config.OverlapTokens < 0 {
		config.OverlapTokens = 50
	}
	if config.MinTokens <= 0 {
		config.MinTokens = 100
	}
	if tok == nil {
		tok = tokenizer.New()
	}
	return &Chunker{config: config, tokenizer: tok}
}

var paragraphBoundary = regexp.MustCompile(`\n\s*\n`)

// Chunk splits content on paragraph boundaries, accumulating paragraphs into
// a buffer up to the target token count. Oversized paragraphs are packed
// sentence by sentence. Each flushed buffer seeds the next with its trailing
// overlap tokens so adjacent chunks share context. Buffers below the minimum
// token floor are dropped rather than emitted; a document made entirely of
// such fragments yields zero chunks, which the pipeline reports as an error.
func (c *Chunker) Chunk(content string) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var chunks []Chunk
	emit := func(buffer string) {
		buffer = strings.TrimSpace(buffer)
		if buffer == "" || c.tokenizer.Count(buffer) < c.config.MinTokens {
			return
		}
		chunks = append(chunks, Chunk{Text: buffer, ChunkIndex: len(chunks)})
	}

	buffer := ""
	for _, para := range paragraphBoundary.Split(content, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		switch {
		case c.tokenizer.Count(para) > c.config.TargetTokens:
			emit(buffer)
			buffer = c.packSentences(para, emit)

		case buffer == "":
			buffer = para

		case c.tokenizer.Count(buffer+"\n\n"+para) <= c.config.TargetTokens:
			buffer = buffer + "\n\n" + para

		default:
			emit(buffer)
			buffer = strings.TrimSpace(c.overlapSuffix(buffer) + "\n\n" + para)
		}
	}
	emit(buffer)

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// packSentences greedily packs the sentences of an oversized paragraph into
// buffers up to the target size, emitting each full buffer and carrying its
// overlap suffix into the next. The trailing partial buffer is returned so
// the caller can continue accumulating into it.
func (c *Chunker) packSentences(para string, emit func(string)) string {
	buffer := ""
	for _, sentence := range splitSentences(para) {
		if buffer == "" {
			buffer = sentence
			continue
		}
		joined := buffer + " " + sentence
		if c.tokenizer.Count(joined) > c.config.TargetTokens {
			emit(buffer)
			buffer = strings.TrimSpace(c.overlapSuffix(buffer) + " " + sentence)
			continue
		}
		buffer = joined
	}
	return buffer
}

// overlapSuffix returns the trailing overlap window of a flushed buffer.
func (c *Chunker) overlapSuffix(buffer string) string {
	if c.config.OverlapTokens <= 0 {
		return ""
	}
	return c.tokenizer.Suffix(buffer, c.config.OverlapTokens)
}

// splitSentences splits text on . ! ? followed by whitespace, keeping common
// abbreviations attached to their sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				sentence := strings.TrimSpace(current.String())
				if sentence != "" && !isAbbreviation(sentence) {
					sentences = append(sentences, sentence)
					current.Reset()
				}
			}
		}
	}

	remaining := strings.TrimSpace(current.String())
	if remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}

// isAbbreviation checks if a sentence ends with a common abbreviation.
func isAbbreviation(text string) bool {
	abbreviations := []string{
		"mr.", "mrs.", "ms.", "dr.", "prof.",
		"inc.", "ltd.", "corp.",
		"etc.", "e.g.", "i.e.",
		"vs.", "v.",
		"st.", "ave.", "blvd.",
		"no.", "vol.", "pg.",
	}

	lower := strings.ToLower(text)
	for _, abbr := range abbreviations {
		if strings.HasSuffix(lower, abbr) {
			return true
		}
	}
	return false
}
