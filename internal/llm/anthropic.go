package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicProvider completes prompts with Claude models.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// NewAnthropicProvider returns a provider for the given model. An empty
// model selects the default.
func NewAnthropicProvider(apiKey, model string, logger *slog.Logger) *AnthropicProvider {
	if model == "" {
		model = defaultAnthropicModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete sends the prompt and returns the text of the first completion,
// retrying transient failures with exponential backoff.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	p.logger.Info("calling anthropic", "model", p.model, "prompt_chars", len(prompt))

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   defaultMaxTokens,
		Temperature: anthropic.Float(defaultTemperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	msg, err := retryWithBackoff(ctx, p.logger, "anthropic completion", func() (*anthropic.Message, error) {
		return p.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var content string
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}
	usage := Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}
	p.logger.Debug("anthropic response", "chars", len(content),
		"prompt_tokens", usage.PromptTokens, "completion_tokens", usage.CompletionTokens)
	return content, usage, nil
}
