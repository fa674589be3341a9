// Package tokenizer estimates prompt sizes with tiktoken.
package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens for a model's encoding. It falls back to a
// four-characters-per-token estimate when no encoding is loaded.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter loads the encoding used by model.
func NewCounter(model string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("loading encoding for %s: %w", model, err)
	}
	return &Counter{encoding: enc}, nil
}

// NewEstimator returns a Counter that only estimates.
func NewEstimator() *Counter {
	return &Counter{}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c.encoding == nil {
		return Estimate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Estimate approximates a token count from the character count.
func Estimate(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
