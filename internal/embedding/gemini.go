package embedding

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig holds configuration for the Gemini embedding provider.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
}

// GeminiEmbedder calls the Gemini embedding API.
type GeminiEmbedder struct {
	client     *genai.Client
	em         *genai.EmbeddingModel
	model      string
	dimensions int
}

// NewGeminiEmbedder creates an embedder for the Gemini API.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini embedder: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, wrapErr("gemini client", err)
	}
	return &GeminiEmbedder{
		client:     client,
		em:         client.EmbeddingModel(cfg.Model),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, wrapErr("gemini embed", err)
	}
	if res.Embedding == nil {
		return nil, wrapErr("gemini embed", errors.New("empty embedding"))
	}
	if err := checkBatch([][]float32{res.Embedding.Values}, 1, e.dimensions); err != nil {
		return nil, err
	}
	return res.Embedding.Values, nil
}

// EmbedBatch embeds texts with one batch request.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := e.em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	res, err := e.em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, wrapErr("gemini batch embed", err)
	}
	out := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		if emb == nil {
			return nil, wrapErr("gemini batch embed", errors.New("empty embedding"))
		}
		out = append(out, emb.Values)
	}
	if err := checkBatch(out, len(texts), e.dimensions); err != nil {
		return nil, err
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the embedding space identifier.
func (e *GeminiEmbedder) Model() string {
	return "gemini/" + e.model
}

// Close releases the client connection.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
