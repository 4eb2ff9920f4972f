package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL overrides the API base URL for compatible endpoints.
	BaseURL string

	// Model is the chat model (default: gpt-4.1-mini).
	Model string

	// Temperature is the sampling temperature.
	Temperature float64

	// Timeout bounds each request.
	Timeout time.Duration

	// MaxRetries is the SDK retry count for transient failures; 0 disables retries.
	MaxRetries int
}

// OpenAIClient calls the OpenAI chat completions endpoint.
type OpenAIClient struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIClient creates a chat client for the OpenAI API.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai client: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends messages and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapErr("openai chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", wrapErr("openai chat completion", errors.New("no choices returned"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", wrapErr("openai chat completion", fmt.Errorf("empty reply (finish reason %q)", resp.Choices[0].FinishReason))
	}
	return text, nil
}

// Model returns the model identifier.
func (c *OpenAIClient) Model() string {
	return "openai/" + c.model
}

// Close is a no-op; the HTTP client needs no teardown.
func (c *OpenAIClient) Close() error {
	return nil
}
