// Package embedding provides text embedding providers, caching and rate limiting.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/faqrag/internal/models"
)

// Embedder produces vector embeddings for text. Vectors from one Embedder share a
// dimensionality and an embedding space; Model identifies that space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
	Close() error
}

// wrapErr tags err as an embedding failure unless it already is one.
func wrapErr(op string, err error) error {
	if errors.Is(err, models.ErrEmbedding) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", models.ErrEmbedding, op, err)
}

// checkBatch verifies a provider returned one vector of the expected size per input.
func checkBatch(vectors [][]float32, n, dims int) error {
	if len(vectors) != n {
		return fmt.Errorf("%w: got %d vectors for %d inputs", models.ErrEmbedding, len(vectors), n)
	}
	for i, v := range vectors {
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", models.ErrEmbedding, i, len(v), dims)
		}
	}
	return nil
}
