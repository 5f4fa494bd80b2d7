package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaBaseURL is the default Ollama API endpoint.
	DefaultOllamaBaseURL = "http://localhost:11434"

	// DefaultModel is the default LLM model to use.
	DefaultModel = "llama3.2"

	// DefaultTemperature is the default generation temperature.
	// Lower temperature (0.3) for more deterministic, factual responses in RAG.
	DefaultTemperature = 0.3

	// keepAliveForever tells Ollama to keep the model resident indefinitely.
	keepAliveForever = -1
)

// OllamaClient implements the LLM interface using the Ollama API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

// OllamaOption is a functional option for configuring OllamaClient.
type OllamaOption func(*OllamaClient)

// WithBaseURL sets a custom base URL for the Ollama API.
func WithBaseURL(url string) OllamaOption {
	return func(c *OllamaClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OllamaOption {
	return func(c *OllamaClient) {
		c.httpClient = client
	}
}

// WithModel sets the default model for the client.
func WithModel(model string) OllamaOption {
	return func(c *OllamaClient) {
		c.model = model
	}
}

// NewOllamaClient creates a new Ollama LLM client with the given options.
func NewOllamaClient(opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL: DefaultOllamaBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for generation
		},
		model: DefaultModel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ollamaRequest represents the request body for Ollama's generate API.
type ollamaRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive int            `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// ollamaResponse represents the response from Ollama's generate API.
type ollamaResponse struct {
	Model           string    `json:"model"`
	CreatedAt       time.Time `json:"created_at"`
	Response        string    `json:"response"`
	Done            bool      `json:"done"`
	DoneReason      string    `json:"done_reason,omitempty"`
	TotalDuration   int64     `json:"total_duration,omitempty"`
	LoadDuration    int64     `json:"load_duration,omitempty"`
	PromptEvalCount int       `json:"prompt_eval_count,omitempty"`
	EvalCount       int       `json:"eval_count,omitempty"`
}

// Generate sends a prompt to Ollama and returns the complete response.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	req, err := c.buildRequest(ctx, prompt, opts)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	return result.Response, nil
}

// Warmup issues a minimal generation with an unbounded keep-alive so the
// model sits loaded before the first user query arrives.
func (c *OllamaClient) Warmup(ctx context.Context) error {
	_, err := c.Generate(ctx, "Hello", GenerateOptions{MaxTokens: 1})
	if err != nil {
		return fmt.Errorf("warmup generation failed: %w", err)
	}
	return nil
}

// ModelName returns the default model this client generates with.
func (c *OllamaClient) ModelName() string {
	return c.model
}

// buildRequest constructs the HTTP request for the Ollama API.
func (c *OllamaClient) buildRequest(ctx context.Context, prompt string, opts GenerateOptions) (*http.Request, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	reqBody := ollamaRequest{
		Model:     model,
		Prompt:    prompt,
		System:    opts.SystemPrompt,
		Stream:    false,
		KeepAlive: keepAliveForever,
	}

	options := make(map[string]any)
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.ContextWindow > 0 {
		options["num_ctx"] = opts.ContextWindow
	}
	if len(options) > 0 {
		reqBody.Options = options
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// Ensure OllamaClient implements LLM interface.
var _ LLM = (*OllamaClient)(nil)
