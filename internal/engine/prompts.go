package engine

import (
	"fmt"
	"strings"

	"github.com/intellecta/rag/internal/llm"
	"github.com/intellecta/rag/internal/retriever"
)

// Generation settings per mode. Fast mode favors latency, quality mode
// favors determinism and room for the reasoning scaffold.
var (
	fastModeOptions = llm.GenerateOptions{
		Temperature:   0.7,
		TopP:          0.9,
		MaxTokens:     1024,
		ContextWindow: 4096,
	}

	qualityModeOptions = llm.GenerateOptions{
		Temperature:   0.3,
		TopP:          0.95,
		MaxTokens:     2048,
		ContextWindow: 8192,
	}

	translateOptions = llm.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   256,
	}
)

const fastPromptTemplate = `You are an expert assistant for energy sector document analysis. Answer the question based on the provided context.

Context:
%s

Question: %s

Instructions:
- Answer concisely and accurately based on the context
- If the answer is not in the context, say so
- Include specific data points when available

Answer:`

const qualityPromptTemplate = `You are an expert assistant for energy sector document analysis. Use chain-of-thought reasoning to provide a comprehensive answer.

Context Documents:
%s

Question: %s

Instructions - Follow these steps:

Step 1: UNDERSTAND
- Identify the key aspects of the question
- Note any specific data, timeframes, or entities being asked about

Step 2: ANALYZE
- Review each relevant piece of context
- Identify connections between different pieces of information
- Note any patterns, trends, or significant findings

Step 3: SYNTHESIZE
- Combine information from multiple sources
- Draw logical conclusions based on the evidence
- Address all aspects of the question

Step 4: RESPOND
- Provide a clear, well-structured answer
- Include specific numbers, dates, and sources when available
- Acknowledge any limitations or uncertainties

Now, let's work through this step by step:

**Understanding the Question:**
`

func fastPrompt(query string, context []retriever.Candidate) string {
	return fmt.Sprintf(fastPromptTemplate, formatContext(context), query)
}

func qualityPrompt(query string, context []retriever.Candidate) string {
	return fmt.Sprintf(qualityPromptTemplate, formatContext(context), query)
}

// formatContext renders candidates as numbered, source-attributed blocks.
func formatContext(results []retriever.Candidate) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		source := r.Source
		if source == "" {
			source = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("[Source %d: %s]\n%s\n", i+1, source, r.Text))
	}
	return strings.Join(parts, "\n---\n")
}

// answerMarkers are the section headers the quality prompt tends to produce.
// The final answer is whatever follows the first marker present.
var answerMarkers = []string{"**Response:**", "**Answer:**", "**Final Answer:**", "**Conclusion:**"}

// extractFinalAnswer strips the chain-of-thought scaffolding from a quality
// mode response, falling back to the full text when no marker is found.
func extractFinalAnswer(response string) string {
	for _, marker := range answerMarkers {
		if _, after, found := strings.Cut(response, marker); found {
			return strings.TrimSpace(after)
		}
	}
	return strings.TrimSpace(response)
}

const translateToEnglishTemplate = `Translate the following text to English. Only output the translation, nothing else.

Text: %s

English translation:`

const translateResponseTemplate = `Translate the following text to %s. Maintain the same meaning and tone. Only output the translation.

Text: %s

%s translation:`

func translateToEnglishPrompt(text string) string {
	return fmt.Sprintf(translateToEnglishTemplate, text)
}

func translateResponsePrompt(text, targetLanguage string) string {
	return fmt.Sprintf(translateResponseTemplate, targetLanguage, text, targetLanguage)
}
