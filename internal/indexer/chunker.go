// Package indexer turns knowledge records into documents and segments and builds the
// persisted vector index from them.
package indexer

import (
	"fmt"

	"github.com/hyperjump/faqrag/internal/docid"
	"github.com/hyperjump/faqrag/internal/models"
)

// Boundary is a place where content may be cut. The cut falls Offset runes after the
// start of Text, so "\n## " with offset 1 starts the next segment at the heading marker.
type Boundary struct {
	Text   string
	Offset int
}

// DefaultBoundaries lists cut points from highest to lowest priority: paragraph break,
// sub-heading marker, sentence terminators, clause punctuation, whitespace.
var DefaultBoundaries = [][]Boundary{
	{{"\n\n", 2}},
	{{"\n## ", 1}, {"\n### ", 1}},
	{{". ", 2}, {"! ", 2}, {"? ", 2}, {"!\n", 2}, {"?\n", 2}, {".\n", 2}, {"। ", 2}, {"؟ ", 2}},
	{{"; ", 2}, {", ", 2}, {": ", 2}},
	{{"\n", 1}, {" ", 1}, {"\t", 1}},
}

// Chunker splits content into overlapping segments of at most chunkSize characters.
// Characters are Unicode code points.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	levels       [][][]rune
	offsets      [][]int
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithBoundaries replaces the default boundary priority list.
func WithBoundaries(levels [][]Boundary) ChunkerOption {
	return func(c *Chunker) {
		c.setBoundaries(levels)
	}
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// chunkSize must exceed chunkOverlap, and chunkOverlap must not be negative.
func NewChunker(chunkSize, chunkOverlap int, opts ...ChunkerOption) (*Chunker, error) {
	if chunkOverlap < 0 || chunkSize <= chunkOverlap {
		return nil, fmt.Errorf("%w: chunk size %d must exceed overlap %d >= 0", models.ErrConfig, chunkSize, chunkOverlap)
	}
	c := &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
	c.setBoundaries(DefaultBoundaries)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Chunker) setBoundaries(levels [][]Boundary) {
	c.levels = make([][][]rune, len(levels))
	c.offsets = make([][]int, len(levels))
	for i, level := range levels {
		for _, b := range level {
			c.levels[i] = append(c.levels[i], []rune(b.Text))
			c.offsets[i] = append(c.offsets[i], b.Offset)
		}
	}
}

// Split cuts text into pieces. Consecutive pieces share exactly chunkOverlap characters,
// so dropping the first chunkOverlap characters of every piece after the first and
// concatenating yields text again. Text no longer than chunkSize is returned as one piece.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= c.chunkSize {
		return []string{text}
	}

	// Cuts closer to the window start than this would make degenerate segments,
	// and at or before the overlap would not advance.
	minCut := c.chunkSize / 2
	if minCut <= c.chunkOverlap {
		minCut = c.chunkOverlap + 1
	}

	var pieces []string
	start := 0
	for len(runes)-start > c.chunkSize {
		window := runes[start : start+c.chunkSize]
		end := start + c.findCut(window, minCut)
		pieces = append(pieces, string(runes[start:end]))
		start = end - c.chunkOverlap
	}
	return append(pieces, string(runes[start:]))
}

// findCut returns the cut position inside window for the highest-priority boundary
// that leaves at least minCut characters, or len(window) when none matches.
func (c *Chunker) findCut(window []rune, minCut int) int {
	for li, level := range c.levels {
		best := -1
		for bi, sep := range level {
			if cut := lastCut(window, sep, c.offsets[li][bi], minCut); cut > best {
				best = cut
			}
		}
		if best >= minCut {
			return best
		}
	}
	return len(window)
}

func lastCut(window, sep []rune, offset, minCut int) int {
	if len(sep) == 0 {
		return -1
	}
	for i := len(window) - len(sep); i >= 0; i-- {
		cut := i + offset
		if cut < minCut {
			return -1
		}
		if runesEqual(window[i:i+len(sep)], sep) {
			return cut
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Chunk splits one document into segments that inherit its metadata.
func (c *Chunker) Chunk(doc models.Document) []models.Segment {
	pieces := c.Split(doc.Content)
	segments := make([]models.Segment, 0, len(pieces))
	for i, piece := range pieces {
		segments = append(segments, models.Segment{
			ID:         docid.SegmentID(doc.ID, i),
			DocumentID: doc.ID,
			Ordinal:    i,
			Content:    piece,
			Metadata:   doc.Metadata,
		})
	}
	return segments
}

// SplitDocuments chunks every document, keeping document order and in-document order.
func (c *Chunker) SplitDocuments(docs []models.Document) []models.Segment {
	var segments []models.Segment
	for _, doc := range docs {
		segments = append(segments, c.Chunk(doc)...)
	}
	return segments
}
