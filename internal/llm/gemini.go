package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig holds configuration for the Gemini chat client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient creates a chat client for the Gemini API.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini client: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, wrapErr("gemini client", err)
	}
	return &GeminiClient{client: client, model: cfg.Model, temperature: float32(cfg.Temperature)}, nil
}

// Complete sends messages and returns the text of the first candidate.
func (c *GeminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, rest := split(messages)
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	parts := make([]genai.Part, 0, len(rest))
	for _, m := range rest {
		parts = append(parts, genai.Text(m.Content))
	}
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", wrapErr("gemini generate", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", wrapErr("gemini generate", errors.New("no candidates returned"))
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", wrapErr("gemini generate", errors.New("empty reply"))
	}
	return text, nil
}

// Model returns the model identifier.
func (c *GeminiClient) Model() string {
	return "gemini/" + c.model
}

// Close releases the client connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
