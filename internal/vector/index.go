// Package vector stores segment embeddings and answers nearest-neighbour queries.
package vector

import (
	"context"

	"github.com/hyperjump/faqrag/internal/models"
)

// Index is a read-only, searchable set of segments. Implementations are safe for
// concurrent use.
type Index interface {
	// Search returns the k segments most similar to query, most similar first.
	// k larger than Size is clamped; ties keep insertion order.
	Search(ctx context.Context, query []float32, k int) (models.RetrievedResult, error)
	Size() int
	Dimensions() int
	Manifest() Manifest
	// Entries returns the segments and their normalized vectors in insertion order.
	Entries() []models.IndexEntry
}

// Store builds, persists and loads indexes in one on-disk layout.
type Store interface {
	Type() string
	// Build creates an index from embedded segments. An empty input fails with
	// models.ErrEmptyKnowledgeBase.
	Build(ctx context.Context, entries []models.IndexEntry, info BuildInfo) (Index, error)
	// Persist writes idx to location, replacing any previous index there atomically.
	Persist(idx Index, location string) error
	// Load reads the index at location. Missing or invalid data fails with models.ErrLoad.
	Load(location string) (Index, error)
}

// BuildInfo describes how the entries passed to Build were produced.
type BuildInfo struct {
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
}
