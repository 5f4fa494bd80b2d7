package retriever

import (
	"regexp"
	"strings"
)

const (
	expansionSourceResults = 3
	expansionSourceChars   = 500
	maxTermsPerPattern     = 3
	maxExpansionTerms      = 5
)

// Expansion term patterns: magnitude-plus-unit tokens and capitalized
// one-or-two-word phrases (a cheap proper-noun heuristic).
var expansionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d+\s*(?:MW|GW|kW|MWh|kV|Hz))\b`),
	regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`),
}

// extractExpansionTerms mines up to 5 distinct terms from the leading text of
// the top results. Order is deterministic: pattern order, then match order.
func extractExpansionTerms(results []Candidate) []string {
	var parts []string
	for i, result := range results {
		if i >= expansionSourceResults {
			break
		}
		text := result.Text
		if len(text) > expansionSourceChars {
			text = text[:expansionSourceChars]
		}
		parts = append(parts, text)
	}
	text := strings.Join(parts, " ")

	seen := make(map[string]bool)
	var terms []string
	for _, pattern := range expansionPatterns {
		matches := pattern.FindAllStringSubmatch(text, -1)
		taken := 0
		for _, match := range matches {
			if taken >= maxTermsPerPattern {
				break
			}
			term := match[1]
			taken++
			if seen[term] {
				continue
			}
			seen[term] = true
			terms = append(terms, term)
			if len(terms) >= maxExpansionTerms {
				return terms
			}
		}
	}
	return terms
}

func joinTerms(terms []string) string {
	return strings.Join(terms, " ")
}
