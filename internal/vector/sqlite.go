package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/faqrag/internal/models"
)

const sqliteFile = "index.db"

// SQLiteStore persists indexes as a single SQLite database per generation, with
// vectors stored as little-endian float32 blobs. Loaded indexes are searched in memory.
type SQLiteStore struct{}

// NewSQLiteStore returns a store using the SQLite layout.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Type returns the store type identifier.
func (s *SQLiteStore) Type() string {
	return string(IndexTypeSQLite)
}

// Build creates an in-memory index from entries.
func (s *SQLiteStore) Build(ctx context.Context, entries []models.IndexEntry, info BuildInfo) (Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewMemoryIndex(entries, newManifest(s.Type(), info))
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS segments (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		content TEXT NOT NULL,
		question TEXT NOT NULL,
		url TEXT NOT NULL,
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_segments_document_id ON segments(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Persist writes idx as a new generation and swaps location to it.
func (s *SQLiteStore) Persist(idx Index, location string) error {
	m := idx.Manifest()
	m.Backend = s.Type()
	return publish(location, m.Generation, func(dir string) error {
		if err := writeSQLite(filepath.Join(dir, sqliteFile), idx); err != nil {
			return err
		}
		return writeManifest(dir, m)
	})
}

func writeSQLite(path string, idx Index) (err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open index database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close index database: %w", cerr)
		}
	}()
	if _, err := db.Exec("PRAGMA synchronous=FULL"); err != nil {
		return fmt.Errorf("failed to set synchronous: %w", err)
	}
	if err := initSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.Prepare(`INSERT INTO segments (position, id, document_id, ordinal, content, question, url, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, e := range idx.Entries() {
		seg := e.Segment
		if _, err := stmt.Exec(i, seg.ID, seg.DocumentID, seg.Ordinal, seg.Content,
			seg.Metadata.Question, seg.Metadata.URL, float32SliceToBytes(e.Embedding)); err != nil {
			return fmt.Errorf("failed to insert segment %s: %w", seg.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Load reads the generation at location.
func (s *SQLiteStore) Load(location string) (Index, error) {
	dir, err := resolve(location)
	if err != nil {
		return nil, err
	}
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, sqliteFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLoad, err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: open index database: %w", models.ErrLoad, err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, document_id, ordinal, content, question, url, embedding
		FROM segments ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: query segments: %w", models.ErrLoad, err)
	}
	defer rows.Close()

	entries := make([]models.IndexEntry, 0, m.Segments)
	for rows.Next() {
		var (
			seg  models.Segment
			blob []byte
		)
		if err := rows.Scan(&seg.ID, &seg.DocumentID, &seg.Ordinal, &seg.Content,
			&seg.Metadata.Question, &seg.Metadata.URL, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan segment: %w", models.ErrLoad, err)
		}
		if len(blob) != m.Dimensions*4 {
			return nil, fmt.Errorf("%w: segment %s has a %d-byte vector, want %d", models.ErrLoad, seg.ID, len(blob), m.Dimensions*4)
		}
		entries = append(entries, models.IndexEntry{Segment: seg, Embedding: bytesToFloat32Slice(blob)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read segments: %w", models.ErrLoad, err)
	}
	if len(entries) != m.Segments {
		return nil, fmt.Errorf("%w: manifest lists %d segments, database has %d", models.ErrLoad, m.Segments, len(entries))
	}
	idx, err := NewMemoryIndex(entries, m)
	if err != nil {
		if errors.Is(err, models.ErrLoad) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrLoad, err)
	}
	return idx, nil
}
