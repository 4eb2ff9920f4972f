package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/faqrag/internal/models"
)

// FormatVersion is bumped whenever the persisted layout changes incompatibly.
const FormatVersion = 1

// MetricCosine is the only similarity metric: inner product of unit vectors.
const MetricCosine = "cosine"

const manifestFile = "manifest.json"

// Manifest describes a persisted index generation.
type Manifest struct {
	FormatVersion  int       `json:"format_version"`
	Backend        string    `json:"backend"`
	Generation     string    `json:"generation"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	Metric         string    `json:"metric"`
	Segments       int       `json:"segments"`
	Documents      int       `json:"documents"`
	ChunkSize      int       `json:"chunk_size,omitempty"`
	ChunkOverlap   int       `json:"chunk_overlap,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func writeManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFileSync(filepath.Join(dir, manifestFile), data)
}

// ReadManifest reads the manifest of the index persisted at location.
func ReadManifest(location string) (Manifest, error) {
	dir, err := resolve(location)
	if err != nil {
		return Manifest{}, err
	}
	return readManifest(dir)
}

func readManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m, fmt.Errorf("%w: read manifest: %w", models.ErrLoad, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%w: parse manifest: %w", models.ErrLoad, err)
	}
	if m.FormatVersion != FormatVersion {
		return m, fmt.Errorf("%w: unsupported index format version %d (want %d)", models.ErrLoad, m.FormatVersion, FormatVersion)
	}
	if m.Dimensions <= 0 || m.Segments <= 0 {
		return m, fmt.Errorf("%w: manifest has %d dimensions and %d segments", models.ErrLoad, m.Dimensions, m.Segments)
	}
	if m.Metric != MetricCosine {
		return m, fmt.Errorf("%w: unsupported metric %q", models.ErrLoad, m.Metric)
	}
	return m, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
