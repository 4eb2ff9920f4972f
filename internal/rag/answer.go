package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/llm"
	"github.com/hyperjump/faqrag/internal/models"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 60 * time.Second

// Retriever returns the segments most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (models.RetrievedResult, error)
}

// Composer runs retrieval, context assembly and the model call for one query.
type Composer struct {
	retriever Retriever
	client    llm.Client
	defaultK  int
	timeout   time.Duration
	logger    *zap.Logger
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ComposerOption {
	return func(c *Composer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout bounds each model call. Non-positive values keep the default.
func WithTimeout(d time.Duration) ComposerOption {
	return func(c *Composer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDefaultK sets the number of segments retrieved when a call passes k <= 0.
func WithDefaultK(k int) ComposerOption {
	return func(c *Composer) {
		if k > 0 {
			c.defaultK = k
		}
	}
}

// NewComposer creates a Composer.
func NewComposer(retriever Retriever, client llm.Client, opts ...ComposerOption) *Composer {
	c := &Composer{
		retriever: retriever,
		client:    client,
		defaultK:  6,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Answer retrieves up to k segments for query and asks the model to answer from them.
// The citation is the first-ranked segment. With nothing retrieved the answer is
// EscalationMessage and the model is not called.
func (c *Composer) Answer(ctx context.Context, query string, k int) (*models.Answer, error) {
	if k <= 0 {
		k = c.defaultK
	}
	result, err := c.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	ans := &models.Answer{Citations: []models.Citation{}}
	top, ok := result.Top()
	if !ok {
		ans.Text = EscalationMessage
		ans.Escalated = true
		return ans, nil
	}
	ans.Citations = append(ans.Citations, models.Citation{
		Question: top.Segment.Metadata.Question,
		URL:      top.Segment.Metadata.URL,
	})

	messages := BuildMessages(Assemble(result), query)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	text, err := c.client.Complete(callCtx, messages)
	if err != nil {
		if !errors.Is(err, models.ErrGeneration) {
			err = fmt.Errorf("%w: %w", models.ErrGeneration, err)
		}
		return nil, err
	}
	c.logger.Debug("model replied",
		zap.String("model", c.client.Model()),
		zap.Int("segments", len(result)),
		zap.Duration("duration", time.Since(start)))

	ans.Text = strings.TrimSpace(text)
	if ans.Text == "" {
		return nil, fmt.Errorf("%w: empty reply", models.ErrGeneration)
	}
	if strings.Contains(ans.Text, EscalationMessage) {
		ans.Text = EscalationMessage
		ans.Escalated = true
	}
	return ans, nil
}
