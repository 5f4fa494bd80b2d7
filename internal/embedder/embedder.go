// Package embedder provides interfaces and implementations for text embedding.
package embedder

import "context"

// Role selects the encoding side of an asymmetric retrieval model. Queries
// and passages are never embedded identically: query text is wrapped in an
// instruction prefix, passage text is embedded as-is.
type Role string

const (
	RoleQuery   Role = "query"
	RolePassage Role = "passage"
)

// queryInstruction is the prefix applied to query-role embeddings.
const queryInstruction = "Instruct: Retrieve relevant passages that answer the query\nQuery: "

// Prefix returns the text as the model should see it for this role.
func (r Role) Prefix(text string) string {
	if r == RoleQuery {
		return queryInstruction + text
	}
	return text
}

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates a normalized embedding vector for a single text input.
	Embed(ctx context.Context, text string, role Role) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs, in
	// input order. Individual failures surface as nil entries rather than
	// aborting the batch; an error is returned only when every input failed.
	EmbedBatch(ctx context.Context, texts []string, role Role) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// ModelConfig holds configuration for a specific embedding model.
type ModelConfig struct {
	Dimension     int // Embedding dimension
	ContextLength int // Max tokens the model can process
}

// KnownModels maps embedding model names to their configurations.
var KnownModels = map[string]ModelConfig{
	"qwen3-embedding:0.6b": {
		Dimension:     1024,
		ContextLength: 32768,
	},
	"nomic-embed-text": {
		Dimension:     768,
		ContextLength: 8192,
	},
	"mxbai-embed-large": {
		Dimension:     1024,
		ContextLength: 512,
	},
	"all-minilm": {
		Dimension:     384,
		ContextLength: 256,
	},
	"snowflake-arctic-embed": {
		Dimension:     1024,
		ContextLength: 8192,
	},
}

// GetModelConfig returns the configuration for a model, or defaults if unknown.
func GetModelConfig(modelName string) ModelConfig {
	if cfg, ok := KnownModels[modelName]; ok {
		return cfg
	}
	return ModelConfig{
		Dimension:     768,
		ContextLength: 2048,
	}
}
