package vector

import (
	"fmt"

	"github.com/hyperjump/faqrag/internal/models"
)

// IndexType names a persistence layout.
type IndexType string

const (
	// IndexTypeMemory persists to flat files and searches in memory.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeSQLite persists to one SQLite database and searches in memory.
	IndexTypeSQLite IndexType = "sqlite"
)

// NewStore returns the store for indexType. Supported types: "memory" (default), "sqlite".
func NewStore(indexType string) (Store, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryStore(), nil
	case IndexTypeSQLite:
		return NewSQLiteStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown index type: %s (supported: memory, sqlite)", models.ErrConfig, indexType)
	}
}

// Open loads the index at location with the store recorded in its manifest.
func Open(location string) (Index, error) {
	m, err := ReadManifest(location)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(m.Backend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLoad, err)
	}
	return store.Load(location)
}
