package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/faqrag/internal/models"
)

// MemoryIndex is an immutable in-memory index using brute-force inner product search
// over unit vectors. It is safe for concurrent use.
type MemoryIndex struct {
	dimensions int
	entries    []models.IndexEntry
	manifest   Manifest
}

// NewMemoryIndex builds an index from entries. Vectors are normalized on a copy.
// All vectors must share one positive dimension.
func NewMemoryIndex(entries []models.IndexEntry, manifest Manifest) (*MemoryIndex, error) {
	if len(entries) == 0 {
		return nil, models.ErrEmptyKnowledgeBase
	}
	dims := len(entries[0].Embedding)
	if dims == 0 {
		return nil, fmt.Errorf("%w: entry 0 has an empty vector", models.ErrEmbedding)
	}
	normalized := make([]models.IndexEntry, len(entries))
	docs := make(map[string]struct{})
	for i, e := range entries {
		if len(e.Embedding) != dims {
			return nil, fmt.Errorf("%w: vector dimension mismatch at entry %d: got %d, expected %d",
				models.ErrEmbedding, i, len(e.Embedding), dims)
		}
		normalized[i] = models.IndexEntry{Segment: e.Segment, Embedding: Normalized(e.Embedding)}
		docs[e.Segment.DocumentID] = struct{}{}
	}
	manifest.FormatVersion = FormatVersion
	manifest.Metric = MetricCosine
	manifest.Dimensions = dims
	manifest.Segments = len(entries)
	manifest.Documents = len(docs)
	return &MemoryIndex{dimensions: dims, entries: normalized, manifest: manifest}, nil
}

// Search returns the top-k segments by cosine similarity. Equal scores keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) (models.RetrievedResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query dimension mismatch: got %d, expected %d", models.ErrEmbedding, len(query), m.dimensions)
	}
	q := Normalized(query)
	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(m.entries))
	for i, e := range m.entries {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scores[i] = scored{pos: i, score: InnerProduct(q, e.Embedding)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}
	result := make(models.RetrievedResult, k)
	for i := 0; i < k; i++ {
		result[i] = models.RetrievedSegment{
			Segment: m.entries[scores[i].pos].Segment,
			Score:   scores[i].score,
			Rank:    i + 1,
		}
	}
	return result, nil
}

// Size returns the number of segments in the index.
func (m *MemoryIndex) Size() int {
	return len(m.entries)
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Manifest returns the index description.
func (m *MemoryIndex) Manifest() Manifest {
	return m.manifest
}

// Entries returns the indexed entries. The slice must not be modified.
func (m *MemoryIndex) Entries() []models.IndexEntry {
	return m.entries
}

func newManifest(backend string, info BuildInfo) Manifest {
	return Manifest{
		Backend:        backend,
		Generation:     uuid.NewString(),
		EmbeddingModel: info.EmbeddingModel,
		ChunkSize:      info.ChunkSize,
		ChunkOverlap:   info.ChunkOverlap,
		CreatedAt:      time.Now().UTC(),
	}
}

const (
	vectorsFile  = "vectors.bin"
	segmentsFile = "segments.json"
)

// MemoryStore persists indexes as a manifest, a little-endian vector file and a
// JSON segment file.
type MemoryStore struct{}

// NewMemoryStore returns a store using the file layout.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Type returns the store type identifier.
func (s *MemoryStore) Type() string {
	return string(IndexTypeMemory)
}

// Build creates an in-memory index from entries.
func (s *MemoryStore) Build(ctx context.Context, entries []models.IndexEntry, info BuildInfo) (Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewMemoryIndex(entries, newManifest(s.Type(), info))
}

// Persist writes idx as a new generation and swaps location to it.
func (s *MemoryStore) Persist(idx Index, location string) error {
	m := idx.Manifest()
	m.Backend = s.Type()
	return publish(location, m.Generation, func(dir string) error {
		if err := writeVectors(filepath.Join(dir, vectorsFile), idx); err != nil {
			return err
		}
		segments := make([]models.Segment, 0, idx.Size())
		for _, e := range idx.Entries() {
			segments = append(segments, e.Segment)
		}
		data, err := json.Marshal(segments)
		if err != nil {
			return fmt.Errorf("marshal segments: %w", err)
		}
		if err := writeFileSync(filepath.Join(dir, segmentsFile), data); err != nil {
			return err
		}
		return writeManifest(dir, m)
	})
}

// writeVectors writes dimension (4), n (4), then per vector: idLen (4), id bytes,
// vector (dimension*4 bytes).
func writeVectors(path string, idx Index) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.Dimensions())); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(idx.Size())); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, e := range idx.Entries() {
		id := []byte(e.Segment.ID)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := w.Write(id); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(e.Embedding)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush vector file: %w", err)
	}
	return f.Sync()
}

// Load reads the generation at location.
func (s *MemoryStore) Load(location string) (Index, error) {
	dir, err := resolve(location)
	if err != nil {
		return nil, err
	}
	m, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, segmentsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read segments: %w", models.ErrLoad, err)
	}
	var segments []models.Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("%w: parse segments: %w", models.ErrLoad, err)
	}
	ids, vectors, err := readVectors(filepath.Join(dir, vectorsFile), m.Dimensions)
	if err != nil {
		return nil, err
	}
	if len(segments) != len(vectors) || len(vectors) != m.Segments {
		return nil, fmt.Errorf("%w: manifest lists %d segments, found %d segments and %d vectors",
			models.ErrLoad, m.Segments, len(segments), len(vectors))
	}
	entries := make([]models.IndexEntry, len(segments))
	for i := range segments {
		if segments[i].ID != ids[i] {
			return nil, fmt.Errorf("%w: segment %d id %q does not match vector id %q", models.ErrLoad, i, segments[i].ID, ids[i])
		}
		entries[i] = models.IndexEntry{Segment: segments[i], Embedding: vectors[i]}
	}
	idx, err := NewMemoryIndex(entries, m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrLoad, err)
	}
	return idx, nil
}

func readVectors(path string, wantDims int) ([]string, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open vector file: %w", models.ErrLoad, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, nil, fmt.Errorf("%w: read dimensions: %w", models.ErrLoad, err)
	}
	if int(dim) != wantDims {
		return nil, nil, fmt.Errorf("%w: dimension mismatch: file has %d, manifest says %d", models.ErrLoad, dim, wantDims)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, nil, fmt.Errorf("%w: read count: %w", models.ErrLoad, err)
	}
	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	buf := make([]byte, int(dim)*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, nil, fmt.Errorf("%w: read id len: %w", models.ErrLoad, err)
		}
		if idLen > 1<<16 {
			return nil, nil, fmt.Errorf("%w: id length %d out of range", models.ErrLoad, idLen)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, nil, fmt.Errorf("%w: read id: %w", models.ErrLoad, err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, nil, fmt.Errorf("%w: read vector: %w", models.ErrLoad, err)
		}
		ids = append(ids, string(id))
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return ids, vectors, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
