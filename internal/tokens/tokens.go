// Package tokens provides token counting for sizing decisions.
//
// Every component that makes a token-budget decision (schema chunking,
// document chunking, per-request caps) takes a Counter rather than calling a
// tokenizer directly, so the estimator can be swapped for a model-exact one.
package tokens

import "strings"

// Counter returns the token count for a piece of text.
// Implementations must be pure and total: same input, same output, no errors.
type Counter func(text string) int

// Estimate is the default heuristic Counter. It approximates tokens from the
// word count at roughly 1.33 tokens per English word. Exact tokenization is
// not required for chunking decisions; callers that need precision inject a
// model-specific Counter instead.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	n := int(float64(words) * 1.33)
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateBytes estimates tokens for content where word boundaries are not
// meaningful (serialized JSON, schemas) using the ~4 chars/token heuristic.
func EstimateBytes(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := len(b) / 4
	if n < 1 {
		n = 1
	}
	return n
}
