package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/kb"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/vector"
)

const defaultBatchSize = 64

// Builder runs the offline pipeline: records to documents to segments to embeddings
// to a persisted index. The previously persisted index is only replaced once the new
// one is complete.
type Builder struct {
	chunker   *Chunker
	embedder  embedding.Embedder
	store     vector.Store
	loader    *kb.Loader
	batchSize int
	logger    *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for build progress.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithBatchSize sets how many segments are embedded per provider call.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// NewBuilder creates a builder with the given dependencies.
func NewBuilder(chunker *Chunker, embedder embedding.Embedder, store vector.Store, opts ...BuilderOption) *Builder {
	b := &Builder{
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		batchSize: defaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.loader = kb.NewLoader(kb.WithLogger(b.logger))
	return b
}

// BuildReport summarizes a completed build.
type BuildReport struct {
	Location   string        `json:"location"`
	Generation string        `json:"generation"`
	Backend    string        `json:"backend"`
	Records    int           `json:"records"`
	Documents  int           `json:"documents"`
	Segments   int           `json:"segments"`
	Dimensions int           `json:"dimensions"`
	Duration   time.Duration `json:"duration"`
}

// BuildFromFile loads records from source and builds the index at location.
// A source that cannot be parsed fails with models.ErrLoad before anything is written.
func (b *Builder) BuildFromFile(ctx context.Context, source, location string) (*BuildReport, error) {
	records, err := b.loader.Load(source)
	if err != nil {
		return nil, err
	}
	b.logger.Info("knowledge records loaded", zap.String("source", source), zap.Int("records", len(records)))
	return b.BuildIndex(ctx, records, location)
}

// BuildIndex builds and persists an index from records.
func (b *Builder) BuildIndex(ctx context.Context, records []models.RawRecord, location string) (*BuildReport, error) {
	start := time.Now()
	docs := BuildDocuments(records)
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: none of %d records has a non-empty answer", models.ErrEmptyKnowledgeBase, len(records))
	}
	segments := b.chunker.SplitDocuments(docs)
	b.logger.Info("documents chunked",
		zap.Int("records", len(records)),
		zap.Int("documents", len(docs)),
		zap.Int("segments", len(segments)))

	entries, err := b.embedSegments(ctx, segments)
	if err != nil {
		return nil, err
	}

	idx, err := b.store.Build(ctx, entries, vector.BuildInfo{
		EmbeddingModel: b.embedder.Model(),
		ChunkSize:      b.chunker.chunkSize,
		ChunkOverlap:   b.chunker.chunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.store.Persist(idx, location); err != nil {
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}

	m := idx.Manifest()
	report := &BuildReport{
		Location:   location,
		Generation: m.Generation,
		Backend:    b.store.Type(),
		Records:    len(records),
		Documents:  len(docs),
		Segments:   idx.Size(),
		Dimensions: idx.Dimensions(),
		Duration:   time.Since(start),
	}
	b.logger.Info("index persisted",
		zap.String("location", location),
		zap.String("generation", report.Generation),
		zap.Int("segments", report.Segments),
		zap.Int("dimensions", report.Dimensions),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// embedSegments embeds segment content in batches. Any failure aborts the build.
func (b *Builder) embedSegments(ctx context.Context, segments []models.Segment) ([]models.IndexEntry, error) {
	entries := make([]models.IndexEntry, 0, len(segments))
	for start := 0; start < len(segments); start += b.batchSize {
		end := start + b.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		texts := make([]string, 0, end-start)
		for _, seg := range segments[start:end] {
			texts = append(texts, seg.Content)
		}
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if !errors.Is(err, models.ErrEmbedding) {
				err = fmt.Errorf("%w: %w", models.ErrEmbedding, err)
			}
			return nil, fmt.Errorf("embed segments %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: embed segments %d-%d: got %d vectors", models.ErrEmbedding, start, end-1, len(vectors))
		}
		for i, vec := range vectors {
			entries = append(entries, models.IndexEntry{Segment: segments[start+i], Embedding: vec})
		}
		b.logger.Debug("segments embedded", zap.Int("done", end), zap.Int("total", len(segments)))
	}
	return entries, nil
}
