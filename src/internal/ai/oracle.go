package ai

import "context"

// Request is one completion call. Zero Temperature/MaxTokens defer to the
// task configuration.
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Oracle is the single seam between the deterministic pipeline and any
// language model. Everything above this interface treats completions as an
// untrusted text source.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Close() error
}
