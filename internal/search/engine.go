// Package search provides the retriever that maps a query to the most similar segments.
package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/vector"
)

// Engine embeds queries and searches the current index. The index can be swapped
// while queries run; each query uses the index it started with.
type Engine struct {
	embedder embedding.Embedder
	index    atomic.Pointer[current]
	defaultK int
	logger   *zap.Logger
}

type current struct {
	idx vector.Index
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for index swaps.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a retriever over idx. The index must have been built with an
// embedder producing the same embedding space as embedder.
func NewEngine(embedder embedding.Embedder, idx vector.Index, defaultK int, opts ...EngineOption) (*Engine, error) {
	if defaultK <= 0 {
		defaultK = 6
	}
	e := &Engine{embedder: embedder, defaultK: defaultK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Swap(idx); err != nil {
		return nil, err
	}
	return e, nil
}

// DefaultK returns the k used when a request does not set one.
func (e *Engine) DefaultK() int {
	return e.defaultK
}

// Index returns the index currently served.
func (e *Engine) Index() vector.Index {
	return e.index.Load().idx
}

// Swap replaces the served index after checking it matches the embedder.
func (e *Engine) Swap(idx vector.Index) error {
	if err := CheckCompatible(e.embedder, idx); err != nil {
		return err
	}
	prev := e.index.Swap(&current{idx: idx})
	if prev != nil {
		e.logger.Info("index swapped",
			zap.String("from_generation", prev.idx.Manifest().Generation),
			zap.String("to_generation", idx.Manifest().Generation),
			zap.Int("segments", idx.Size()))
	}
	return nil
}

// Reload loads the index persisted at location and swaps to it.
func (e *Engine) Reload(location string) error {
	idx, err := vector.Open(location)
	if err != nil {
		return err
	}
	if cur := e.index.Load(); cur != nil && cur.idx.Manifest().Generation == idx.Manifest().Generation {
		return nil
	}
	return e.Swap(idx)
}

// CheckCompatible reports whether queries embedded by embedder can be compared with
// the vectors in idx.
func CheckCompatible(embedder embedding.Embedder, idx vector.Index) error {
	if idx == nil {
		return fmt.Errorf("%w: no index", models.ErrLoad)
	}
	m := idx.Manifest()
	if m.EmbeddingModel != "" && m.EmbeddingModel != embedder.Model() {
		return fmt.Errorf("%w: index was built with embedding model %q but queries use %q",
			models.ErrConfig, m.EmbeddingModel, embedder.Model())
	}
	if d := embedder.Dimensions(); d > 0 && d != idx.Dimensions() {
		return fmt.Errorf("%w: index has %d dimensions but the embedder produces %d",
			models.ErrConfig, idx.Dimensions(), d)
	}
	return nil
}

// Retrieve returns up to k segments most similar to query, most similar first.
// k must be positive; values above the index size are clamped.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) (models.RetrievedResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	idx := e.Index()
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return results, nil
}

// RetrieveRequest validates req and retrieves segments for it.
func (e *Engine) RetrieveRequest(ctx context.Context, req *models.QueryRequest) (*models.RetrieveResponse, error) {
	start := time.Now()
	if err := ProcessQuery(req, e.defaultK); err != nil {
		return nil, err
	}
	results, err := e.Retrieve(ctx, req.Query, req.K)
	if err != nil {
		return nil, err
	}
	return &models.RetrieveResponse{
		Query:     req.Query,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}
