// Package llm exposes language-model completion behind a single narrow
// interface so handlers and extractors never touch provider plumbing.
package llm

import "context"

// Size selects the model tier for a completion. Small is used for cheap
// single-field extraction, Large for analysis-style prompts.
type Size string

const (
	SizeSmall Size = "small"
	SizeLarge Size = "large"
)

type Completer interface {
	Complete(ctx context.Context, prompt string, size Size) (string, error)
}
