package search

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/indexer"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/vector"
)

var faq = []models.RawRecord{
	{Question: "What are your opening hours?", Answer: "We are open from 9 to 18 on weekdays.", URL: "https://x/hours"},
	{Question: "How do refunds work?", Answer: "Refunds are issued within 14 days of the return.", URL: "https://x/refunds"},
	{Question: "How long does delivery take?", Answer: "Delivery takes 3 to 5 working days.", URL: "https://x/delivery"},
	{Question: "Which payment methods are accepted?", Answer: "We accept cards and bank transfers.", URL: "https://x/payment"},
}

func buildIndex(t *testing.T, embedder embedding.Embedder, records []models.RawRecord) vector.Index {
	t.Helper()
	chunker, err := indexer.NewChunker(1200, 150)
	if err != nil {
		t.Fatal(err)
	}
	var entries []models.IndexEntry
	for _, seg := range chunker.SplitDocuments(indexer.BuildDocuments(records)) {
		vec, err := embedder.Embed(context.Background(), seg.Content)
		if err != nil {
			t.Fatal(err)
		}
		entries = append(entries, models.IndexEntry{Segment: seg, Embedding: vec})
	}
	idx, err := vector.NewMemoryStore().Build(context.Background(), entries, vector.BuildInfo{EmbeddingModel: embedder.Model()})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	embedder := embedding.NewMockEmbedder(256)
	e, err := NewEngine(embedder, buildIndex(t, embedder, faq), 6)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestEngine_Retrieve(t *testing.T) {
	e := newEngine(t)
	results, err := e.Retrieve(context.Background(), "refunds return days", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Segment.Metadata.URL != "https://x/refunds" {
		t.Errorf("top result = %s", results[0].Segment.Metadata.URL)
	}
	if results[0].Score < results[1].Score {
		t.Error("results should be ordered by descending score")
	}
}

func TestEngine_RetrieveClampsK(t *testing.T) {
	e := newEngine(t)
	results, err := e.Retrieve(context.Background(), "anything", 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(faq) {
		t.Errorf("k above index size should clamp to %d, got %d", len(faq), len(results))
	}
	if _, err := e.Retrieve(context.Background(), "anything", 0); err == nil {
		t.Error("k=0 should fail")
	}
}

func TestEngine_RetrieveDeterministicUnderConcurrency(t *testing.T) {
	e := newEngine(t)
	want, err := e.Retrieve(context.Background(), "delivery days", 4)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Retrieve(context.Background(), "delivery days", 4)
			if err != nil {
				errs <- err
				return
			}
			for j := range want {
				if got[j].Segment.ID != want[j].Segment.ID {
					errs <- fmt.Errorf("position %d: %s != %s", j, got[j].Segment.ID, want[j].Segment.ID)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// brokenEmbedder embeds documents fine but fails on queries.
type brokenEmbedder struct{ *embedding.MockEmbedder }

func (b brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: provider down", models.ErrEmbedding)
}

func TestEngine_RetrieveEmbeddingError(t *testing.T) {
	mock := embedding.NewMockEmbedder(16)
	idx := buildIndex(t, mock, faq)
	e, err := NewEngine(brokenEmbedder{mock}, idx, 6)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Retrieve(context.Background(), "hours", 3); !errors.Is(err, models.ErrEmbedding) {
		t.Errorf("expected ErrEmbedding, got %v", err)
	}
}

func TestNewEngine_rejectsIncompatibleIndex(t *testing.T) {
	idx := buildIndex(t, embedding.NewMockEmbedder(16), faq)
	if _, err := NewEngine(embedding.NewMockEmbedder(32), idx, 6); !errors.Is(err, models.ErrConfig) {
		t.Errorf("dimension mismatch should be ErrConfig, got %v", err)
	}
}

func TestEngine_RetrieveRequest(t *testing.T) {
	e := newEngine(t)
	resp, err := e.RetrieveRequest(context.Background(), &models.QueryRequest{Query: "  opening hours  "})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "opening hours" || len(resp.Results) != len(faq) {
		t.Errorf("unexpected response %+v", resp)
	}
	if _, err := e.RetrieveRequest(context.Background(), &models.QueryRequest{Query: ""}); err == nil {
		t.Error("empty query should fail")
	}
}

func TestEngine_Reload(t *testing.T) {
	embedder := embedding.NewMockEmbedder(64)
	e, err := NewEngine(embedder, buildIndex(t, embedder, faq[:1]), 6)
	if err != nil {
		t.Fatal(err)
	}
	location := filepath.Join(t.TempDir(), "index")
	store := vector.NewMemoryStore()
	next := buildIndex(t, embedder, faq)
	if err := store.Persist(next, location); err != nil {
		t.Fatal(err)
	}
	if err := e.Reload(location); err != nil {
		t.Fatal(err)
	}
	if e.Index().Size() != len(faq) {
		t.Errorf("reloaded index size = %d", e.Index().Size())
	}
	if err := e.Reload(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, models.ErrLoad) {
		t.Errorf("missing location should be ErrLoad, got %v", err)
	}
	if e.Index().Size() != len(faq) {
		t.Error("failed reload should keep the current index")
	}
}
