// Package llm provides interfaces and implementations for Large Language Model clients.
package llm

import (
	"context"
)

// GenerateOptions configures the LLM generation request.
type GenerateOptions struct {
	// Model specifies the LLM model to use (e.g., "llama3.2", "mistral").
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (0.0 = deterministic, 1.0 = creative).
	Temperature float32

	// TopP is the nucleus sampling cutoff.
	TopP float32

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// ContextWindow sets the model context size in tokens.
	ContextWindow int
}

// LLM defines the interface for Large Language Model clients.
type LLM interface {
	// Generate sends a prompt to the LLM and returns the complete response.
	// It blocks until the full response is received or an error occurs.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Warmup asks the backend to load the model and keep it resident so the
	// first real query does not pay cold-start latency. Correctness never
	// depends on it; failures are advisory.
	Warmup(ctx context.Context) error

	// ModelName returns the default model this client generates with.
	ModelName() string
}
