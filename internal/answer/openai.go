package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig configures an OpenAIAnswerer. BaseURL may point at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// OpenAIAnswerer answers through the chat completions API.
type OpenAIAnswerer struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAIAnswerer creates an answerer. Requests are not retried.
func NewOpenAIAnswerer(cfg OpenAIConfig, opts ...option.RequestOption) (*OpenAIAnswerer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai answerer: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai answerer: model is required")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAIAnswerer{
		client:      openai.NewClient(reqOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Answer sends the system prompt for contextText and the question, returning the reply text.
func (a *OpenAIAnswerer) Answer(ctx context.Context, question, contextText string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(contextText)),
			openai.UserMessage(question),
		},
		Temperature: openai.Float(a.temperature),
	}
	if a.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(a.maxTokens))
	}
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
