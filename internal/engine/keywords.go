package engine

import (
	"regexp"
	"strings"
)

const maxKeywords = 10

var stopWords = map[string]bool{
	"what": true, "where": true, "when": true, "how": true, "why": true,
	"who": true, "which": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "into": true,
	"can": true, "could": true, "will": true, "would": true, "should": true,
	"may": true, "might": true,
	"this": true, "that": true, "these": true, "those": true, "it": true, "its": true,
}

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// extractKeywords pulls the significant words out of a query: lowercase,
// stop words removed, short tokens removed, capped at 10.
func extractKeywords(query string) []string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)

	keywords := make([]string, 0, maxKeywords)
	for _, word := range words {
		if stopWords[word] || len(word) <= 2 {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) >= maxKeywords {
			break
		}
	}
	return keywords
}
