package answer

import (
	"fmt"

	"github.com/hyperjump/tutorly/internal/config"
)

// NewAnswerer builds the chat answerer from cfg, reading the API key from the environment.
func NewAnswerer(cfg config.ChatConfig) (Answerer, error) {
	key, err := config.Secret(cfg.APIKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return NewOpenAIAnswerer(OpenAIConfig{
		APIKey:      key,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.TemperatureOrDefault(),
		MaxTokens:   cfg.MaxTokens,
	})
}
