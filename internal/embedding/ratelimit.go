package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder spaces out provider calls. Each Embed or EmbedBatch call
// consumes one token.
type RateLimitedEmbedder struct {
	Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps inner with a limiter allowing requestsPerSecond calls.
// A non-positive rate returns inner unchanged.
func NewRateLimitedEmbedder(inner Embedder, requestsPerSecond float64) Embedder {
	if requestsPerSecond <= 0 {
		return inner
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		Embedder: inner,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Embed waits for the limiter, then embeds text.
func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, wrapErr("rate limit", err)
	}
	return e.Embedder.Embed(ctx, text)
}

// EmbedBatch waits for the limiter, then embeds texts in one call.
func (e *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, wrapErr("rate limit", err)
	}
	return e.Embedder.EmbedBatch(ctx, texts)
}
