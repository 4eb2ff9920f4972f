package llm

import (
	"context"
	"fmt"

	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/models"
)

// New creates the client selected by cfg.Provider. The mock provider answers with
// respond, which must then be non-nil.
func New(ctx context.Context, cfg config.LLMConfig, respond Responder) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.TemperatureOrDefault(),
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetriesOrDefault(),
		})
	case config.ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.TemperatureOrDefault(),
		})
	case config.ProviderMock:
		if respond == nil {
			return nil, fmt.Errorf("%w: mock llm provider needs a responder", models.ErrConfig)
		}
		return NewMockClient(respond), nil
	default:
		return nil, fmt.Errorf("%w: unsupported llm provider %q", models.ErrConfig, cfg.Provider)
	}
}
