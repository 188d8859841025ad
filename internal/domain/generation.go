package domain

import "context"

// Generator is the narrow contract for the generative capability:
// system+user prompt in, text out. The synthesizer owns everything else.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// GenerationRequest carries the prompts and sampling settings for one call.
type GenerationRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// GenerationResult carries the generated text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
