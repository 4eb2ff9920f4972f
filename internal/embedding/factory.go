package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/models"
)

// New creates the embedder selected by cfg.Provider. Remote providers are rate limited;
// every provider is fronted by an LRU cache of cfg.CacheSize entries.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		base   Embedder
		remote bool
		err    error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		base, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
			MaxRetries: 2,
		})
		remote = true
	case config.ProviderGemini:
		base, err = NewGeminiEmbedder(ctx, GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		remote = true
	case config.ProviderONNX:
		base, err = NewONNXEmbedder(ONNXConfig{
			ModelPath:  cfg.ModelPath,
			VocabPath:  cfg.VocabPath,
			Lowercase:  cfg.LowercaseOrDefault(),
			Dimensions: cfg.Dimensions,
			MaxTokens:  cfg.MaxTokens,
		})
	case config.ProviderMock:
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", models.ErrConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if remote {
		base = NewRateLimitedEmbedder(base, cfg.RequestsPerSecond)
	}
	return NewCachedEmbedder(base, cfg.CacheSize), nil
}
