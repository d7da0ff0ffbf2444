package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// openAICompatTimeout allows for slow generation on free-tier providers.
const openAICompatTimeout = 5 * time.Minute

// OpenAICompatProvider talks to any Chat Completions endpoint. It covers
// DeepSeek, OpenRouter, and Groq.
type OpenAICompatProvider struct {
	name         string
	baseURL      string
	apiKey       string
	model        string
	jsonMode     bool
	extraHeaders map[string]string
	http         *http.Client
	logger       *slog.Logger
}

// NewDeepSeekProvider targets platform.deepseek.com.
func NewDeepSeekProvider(apiKey, model string, logger *slog.Logger) *OpenAICompatProvider {
	if model == "" {
		model = "deepseek-chat"
	}
	return newOpenAICompat("deepseek", "https://api.deepseek.com/v1", apiKey, model, true, nil, logger)
}

// NewOpenRouterProvider targets openrouter.ai. Free-tier models there do
// not support JSON response mode.
func NewOpenRouterProvider(apiKey, model string, logger *slog.Logger) *OpenAICompatProvider {
	if model == "" {
		model = "deepseek/deepseek-chat:free"
	}
	headers := map[string]string{
		"HTTP-Referer": "https://github.com/mrlead/mrlead",
		"X-Title":      "mrlead",
	}
	return newOpenAICompat("openrouter", "https://openrouter.ai/api/v1", apiKey, model, false, headers, logger)
}

// NewGroqProvider targets api.groq.com.
func NewGroqProvider(apiKey, model string, logger *slog.Logger) *OpenAICompatProvider {
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	return newOpenAICompat("groq", "https://api.groq.com/openai/v1", apiKey, model, true, nil, logger)
}

func newOpenAICompat(name, baseURL, apiKey, model string, jsonMode bool, extraHeaders map[string]string, logger *slog.Logger) *OpenAICompatProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAICompatProvider{
		name:         name,
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        model,
		jsonMode:     jsonMode,
		extraHeaders: extraHeaders,
		http:         &http.Client{Timeout: openAICompatTimeout},
		logger:       logger,
	}
}

// WithBaseURL overrides the endpoint; used by tests and self-hosted
// gateways.
func (p *OpenAICompatProvider) WithBaseURL(baseURL string) *OpenAICompatProvider {
	p.baseURL = strings.TrimRight(baseURL, "/")
	return p
}

func (p *OpenAICompatProvider) Name() string { return p.name }

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete posts the prompt to the chat-completions endpoint, retrying
// rate limits and server errors.
func (p *OpenAICompatProvider) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	p.logger.Info("calling provider", "provider", p.name, "model", p.model, "prompt_chars", len(prompt))

	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	if p.jsonMode {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, err
	}

	resp, err := retryWithBackoff(ctx, p.logger, p.name+" completion", func() (*chatResponse, error) {
		return p.post(ctx, payload)
	})
	if err != nil {
		return "", Usage{}, err
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("%s returned no choices", p.name)
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	content := resp.Choices[0].Message.Content
	p.logger.Debug("provider response", "provider", p.name, "chars", len(content),
		"prompt_tokens", usage.PromptTokens, "completion_tokens", usage.CompletionTokens)
	return content, usage, nil
}

func (p *OpenAICompatProvider) post(ctx context.Context, payload []byte) (*chatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1000))
		return nil, fmt.Errorf("%s api error: %d %s", p.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", p.name, err)
	}
	return &out, nil
}
