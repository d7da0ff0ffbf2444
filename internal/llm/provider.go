// Package llm sends the review prompt to a model provider and parses the
// structured response.
package llm

import (
	"context"
)

// Usage reports token consumption for one completion, when the provider
// returns it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Provider produces one completion for a prompt.
type Provider interface {
	// Name identifies the provider in logs and stored runs.
	Name() string
	// Complete returns the raw model output for the prompt.
	Complete(ctx context.Context, prompt string) (string, Usage, error)
}

const (
	// defaultTemperature keeps review output stable across runs.
	defaultTemperature = 0.2
	// defaultMaxTokens bounds the completion length.
	defaultMaxTokens = 8192
)

// systemPrompt is sent to providers that take a separate system message.
const systemPrompt = "You are a senior software engineer performing a thorough code review. " +
	"Always respond with valid JSON only, no markdown fences."
