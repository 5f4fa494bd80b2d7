// Package engine orchestrates a query end to end: keyword extraction,
// security checks, retrieval, post-hoc clearance filtering, generation, and
// translation. Each query is an independent unit of work; the engine holds
// no per-query state beyond a coarse stage indicator used by the status
// endpoint.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/intellecta/rag/internal/llm"
	"github.com/intellecta/rag/internal/retriever"
	"github.com/intellecta/rag/internal/security"
)

// Language selects query/answer translation. English is the retrieval
// language; anything else is translated in on the way down and back out on
// the way up.
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageKorean     Language = "ko"
	LanguageVietnamese Language = "vi"
)

// displayName returns the prompt-facing language name.
func (l Language) displayName() string {
	switch l {
	case LanguageKorean:
		return "Korean"
	case LanguageVietnamese:
		return "Vietnamese"
	default:
		return "English"
	}
}

// Stage is the engine's coarse processing state.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageRetrieving        Stage = "searching"
	StageSecurityFiltering Stage = "filtering"
	StageGenerating        Stage = "generating"
	StageComplete          Stage = "complete"
	StageError             Stage = "error"
)

// Retriever is the slice of the search pipeline the engine drives.
type Retriever interface {
	FastSearch(ctx context.Context, query string, clearance security.Level, docIDs []string) ([]retriever.Candidate, retriever.Metrics, error)
	QualitySearch(ctx context.Context, query string, clearance security.Level, docIDs []string) ([]retriever.Candidate, retriever.Metrics, string, error)
}

// Request is one user query.
type Request struct {
	Query       string         `json:"query"`
	Language    Language       `json:"language"`
	Clearance   security.Level `json:"security_clearance"`
	DocumentIDs []string       `json:"document_ids,omitempty"`

	// FastMode defaults to true when unset.
	FastMode *bool `json:"fast_mode,omitempty"`
}

// Response is the full answer record for one query.
type Response struct {
	Answer           string            `json:"answer"`
	Sources          []string          `json:"sources"`
	RetrievalTimeMs  float64           `json:"retrieval_time_ms"`
	GenerationTimeMs float64           `json:"generation_time_ms"`
	FastMode         bool              `json:"fast_mode"`
	ModelUsed        string            `json:"model_used"`
	Security         security.Decision `json:"security"`
	Keywords         []string          `json:"keywords"`
	ChunksUsed       int               `json:"chunks_used"`
	ChunksBlocked    int               `json:"chunks_blocked"`
	Metrics          retriever.Metrics `json:"metrics"`
}

// Engine wires retrieval, security, and generation together.
type Engine struct {
	retriever Retriever
	checker   *security.Checker
	llm       llm.LLM
	logger    *slog.Logger

	mu    sync.Mutex
	stage Stage
}

// New creates an Engine.
func New(ret Retriever, checker *security.Checker, generator llm.LLM, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		retriever: ret,
		checker:   checker,
		llm:       generator,
		logger:    logger,
		stage:     StageIdle,
	}
}

// Stage reports the engine's current processing stage.
func (e *Engine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

func (e *Engine) setStage(stage Stage) {
	e.mu.Lock()
	e.stage = stage
	e.mu.Unlock()
}

// Warmup delegates the keep-warm hint to the generation backend.
func (e *Engine) Warmup(ctx context.Context) error {
	return e.llm.Warmup(ctx)
}

// Process answers one query. Collaborator outages degrade the answer rather
// than failing the call; only context cancellation aborts with an error.
func (e *Engine) Process(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	fastMode := true
	if req.FastMode != nil {
		fastMode = *req.FastMode
	}

	e.logger.Info("processing query",
		"fast_mode", fastMode,
		"language", string(req.Language),
		"clearance", req.Clearance.String())

	keywords := extractKeywords(req.Query)
	queryLevel, matchedKeyword := e.checker.ClassifyQuery(req.Query)

	searchQuery := req.Query
	if req.Language != "" && req.Language != LanguageEnglish {
		searchQuery = e.translateToEnglish(ctx, req.Query)
	}

	e.setStage(StageRetrieving)
	candidates, metrics, err := e.retrieve(ctx, searchQuery, req, fastMode)
	if err != nil {
		if ctx.Err() != nil {
			e.setStage(StageError)
			return nil, ctx.Err()
		}
		// Retrieval outage degrades to a no-results answer.
		e.logger.Error("retrieval failed", "error", err)
		candidates = nil
		metrics = retriever.EmptyMetrics()
	}
	retrievalMs := roundMs(time.Since(startTime))

	e.setStage(StageSecurityFiltering)
	allowed, blocked := partitionByClearance(candidates, req.Clearance)

	// The dual check runs against the original query: translation must not
	// change the security outcome.
	var decision security.Decision
	if len(allowed) > 0 {
		decision = e.checker.DualCheck(req.Query, topText(allowed, 3), req.Clearance)
	} else {
		// Nothing retrieved; the query-side classification alone decides
		// whether access would have been allowed.
		decision = security.Decision{
			Level:          queryLevel,
			LevelValue:     queryLevel.Value(),
			MatchedKeyword: matchedKeyword,
			AccessAllowed:  req.Clearance.Allows(queryLevel),
		}
	}

	genStart := time.Now()
	var answer string
	var sources []string

	switch {
	case !decision.AccessAllowed:
		answer = fmt.Sprintf("Access denied. The requested information requires %s clearance level.", decision.Level)
	case len(allowed) == 0:
		answer = "No relevant information found in the available documents for your query."
	default:
		e.setStage(StageGenerating)
		answer = e.generate(ctx, req.Query, allowed, fastMode)
		if ctx.Err() != nil {
			e.setStage(StageError)
			return nil, ctx.Err()
		}
		sources = dedupeSources(allowed)
	}
	generationMs := roundMs(time.Since(genStart))

	if req.Language != "" && req.Language != LanguageEnglish && answer != "" && decision.AccessAllowed {
		answer = e.translateResponse(ctx, answer, req.Language)
	}

	e.setStage(StageComplete)

	return &Response{
		Answer:           answer,
		Sources:          sources,
		RetrievalTimeMs:  retrievalMs,
		GenerationTimeMs: generationMs,
		FastMode:         fastMode,
		ModelUsed:        e.llm.ModelName(),
		Security:         decision,
		Keywords:         keywords,
		ChunksUsed:       len(allowed),
		ChunksBlocked:    blocked,
		Metrics:          metrics,
	}, nil
}

func (e *Engine) retrieve(ctx context.Context, query string, req Request, fastMode bool) ([]retriever.Candidate, retriever.Metrics, error) {
	if fastMode {
		return e.retriever.FastSearch(ctx, query, req.Clearance, req.DocumentIDs)
	}
	candidates, metrics, _, err := e.retriever.QualitySearch(ctx, query, req.Clearance, req.DocumentIDs)
	return candidates, metrics, err
}

// partitionByClearance re-checks every candidate's recorded level against the
// caller's clearance. The index filter already did this, but payloads can be
// stale or missing; blocked counts are reported, never silently dropped.
func partitionByClearance(candidates []retriever.Candidate, clearance security.Level) ([]retriever.Candidate, int) {
	var allowed []retriever.Candidate
	blocked := 0
	for _, c := range candidates {
		if clearance.Allows(c.SecurityLevel) {
			allowed = append(allowed, c)
		} else {
			blocked++
		}
	}
	return allowed, blocked
}

// generate produces the answer text; any LLM-side failure comes back as a
// user-facing degraded message, matching the collaborator failure policy.
func (e *Engine) generate(ctx context.Context, query string, passages []retriever.Candidate, fastMode bool) string {
	if fastMode {
		return e.callLLM(ctx, fastPrompt(query, passages), fastModeOptions)
	}
	response := e.callLLM(ctx, qualityPrompt(query, passages), qualityModeOptions)
	return extractFinalAnswer(response)
}

func (e *Engine) callLLM(ctx context.Context, prompt string, opts llm.GenerateOptions) string {
	response, err := e.llm.Generate(ctx, prompt, opts)
	if err != nil {
		if ctx.Err() != nil {
			return ""
		}
		e.logger.Error("generation failed", "error", err)
		if strings.Contains(err.Error(), "deadline exceeded") || strings.Contains(err.Error(), "timeout") {
			return "Request timed out. Please try again with a simpler query."
		}
		return "Error generating response. Please try again."
	}
	return strings.TrimSpace(response)
}

func (e *Engine) translateToEnglish(ctx context.Context, text string) string {
	translated := e.callLLM(ctx, translateToEnglishPrompt(text), translateOptions)
	if translated == "" || strings.HasPrefix(translated, "Error") || strings.HasPrefix(translated, "Request timed out") {
		return text
	}
	e.logger.Info("translated query", "translated", translated)
	return translated
}

func (e *Engine) translateResponse(ctx context.Context, text string, language Language) string {
	opts := qualityModeOptions
	opts.MaxTokens = 2048
	translated := e.callLLM(ctx, translateResponsePrompt(text, language.displayName()), opts)
	if translated == "" || strings.HasPrefix(translated, "Error") || strings.HasPrefix(translated, "Request timed out") {
		return text
	}
	return translated
}

// topText joins the text of the first n candidates for the content-side
// security check.
func topText(candidates []retriever.Candidate, n int) string {
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

// dedupeSources returns the distinct source filenames in result order.
// Candidates without a recorded filename fall back to their dataset source.
func dedupeSources(candidates []retriever.Candidate) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, c := range candidates {
		source := c.Filename
		if source == "" {
			source = c.Source
		}
		if source == "" {
			source = "Unknown"
		}
		if seen[source] {
			continue
		}
		seen[source] = true
		sources = append(sources, source)
	}
	return sources
}

func roundMs(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000*100) / 100
}
