package embedding

import (
	"fmt"

	"github.com/hyperjump/tutorly/internal/config"
)

// Provider names accepted in embedding.provider.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// NewEmbedder creates the configured embedder, wrapped in a cache when cache_size > 0.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	var e Embedder
	switch cfg.Provider {
	case ProviderOpenAI, "":
		key, err := config.Secret(cfg.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("embedding api key: %w", err)
		}
		oe, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     key,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		e = oe
	case ProviderMock:
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, mock)", cfg.Provider)
	}
	return WithCache(e, cfg.CacheSize), nil
}
