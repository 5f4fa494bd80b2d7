// Package tokenizer provides token counting and overlap slicing for the
// chunker. Two strategies implement the same interface: an exact tiktoken
// encoder and a character-based approximation used when the encoder is
// unavailable. Call sites depend only on the interface; whichever strategy is
// active applies to both size decisions and overlap sizing so the two never
// drift apart.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the approximation ratio used by the fallback strategy.
const charsPerToken = 4

// Tokenizer counts tokens and extracts token-bounded suffixes. Both
// operations must be deterministic for a given text.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) int

	// Suffix returns the text covered by the last n tokens.
	Suffix(text string, n int) string

	// Name identifies the active strategy.
	Name() string
}

// Tiktoken counts with the cl100k_base encoding.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken creates the exact tokenizer. The encoding data is bundled with
// the library, so this fails only on an unknown encoding name.
func NewTiktoken() (*Tiktoken, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &Tiktoken{encoding: encoding}, nil
}

// Count returns the exact token count.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// Suffix decodes the last n tokens back to text.
func (t *Tiktoken) Suffix(text string, n int) string {
	if text == "" || n <= 0 {
		return ""
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= n {
		return text
	}
	return t.encoding.Decode(tokens[len(tokens)-n:])
}

// Name identifies the strategy.
func (t *Tiktoken) Name() string { return "cl100k_base" }

// Approximate estimates tokens as len(text)/4. It is the fallback when the
// exact encoder cannot be constructed.
type Approximate struct{}

// NewApproximate creates the character-based tokenizer.
func NewApproximate() *Approximate { return &Approximate{} }

// Count estimates the token count from the byte length.
func (a *Approximate) Count(text string) int {
	return len(text) / charsPerToken
}

// Suffix returns the trailing n*4 characters as the overlap estimate.
func (a *Approximate) Suffix(text string, n int) string {
	if text == "" || n <= 0 {
		return ""
	}
	chars := n * charsPerToken
	if len(text) <= chars {
		return text
	}
	return text[len(text)-chars:]
}

// Name identifies the strategy.
func (a *Approximate) Name() string { return "approximate" }

// New returns the exact tokenizer when available and the approximation
// otherwise. The selection happens once, at construction.
func New() Tokenizer {
	if t, err := NewTiktoken(); err == nil {
		return t
	}
	return NewApproximate()
}

var (
	_ Tokenizer = (*Tiktoken)(nil)
	_ Tokenizer = (*Approximate)(nil)
)
