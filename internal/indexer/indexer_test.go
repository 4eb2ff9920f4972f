package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/vector"
)

// failingEmbedder fails on the call numbered failOn (1-based).
type failingEmbedder struct {
	*embedding.MockEmbedder
	calls  int
	failOn int
}

func (f *failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, errors.New("provider unavailable")
	}
	return f.MockEmbedder.EmbedBatch(ctx, texts)
}

func testBuilder(t *testing.T, embedder embedding.Embedder, opts ...BuilderOption) *Builder {
	t.Helper()
	chunker, err := NewChunker(1200, 150)
	if err != nil {
		t.Fatal(err)
	}
	return NewBuilder(chunker, embedder, vector.NewMemoryStore(), opts...)
}

func TestBuildIndex_singleRecord(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	b := testBuilder(t, embedding.NewMockEmbedder(32))
	report, err := b.BuildIndex(context.Background(), []models.RawRecord{
		{Question: "Hours", Answer: "9-18", URL: "https://x/1"},
	}, location)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 1 || report.Segments != 1 || report.Dimensions != 32 {
		t.Errorf("unexpected report %+v", report)
	}

	idx, err := vector.Open(location)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Fatalf("Size=%d", idx.Size())
	}
	seg := idx.Entries()[0].Segment
	if seg.Content != "Вопрос: Hours\n\nОтвет:\n9-18" || seg.Metadata.URL != "https://x/1" {
		t.Errorf("unexpected segment %+v", seg)
	}
	if idx.Manifest().EmbeddingModel != "mock/bag-of-words" {
		t.Errorf("manifest embedding model = %q", idx.Manifest().EmbeddingModel)
	}
}

func TestBuildIndex_emptyKnowledgeBase(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	b := testBuilder(t, embedding.NewMockEmbedder(8))
	_, err := b.BuildIndex(context.Background(), []models.RawRecord{{Question: "q"}, {Question: "q2", Answer: " \n "}}, location)
	if !errors.Is(err, models.ErrEmptyKnowledgeBase) {
		t.Errorf("expected ErrEmptyKnowledgeBase, got %v", err)
	}
	if _, err := os.Lstat(location); !os.IsNotExist(err) {
		t.Error("nothing should be written for an empty knowledge base")
	}
}

func TestBuildIndex_emptyQuestionIndexed(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	b := testBuilder(t, embedding.NewMockEmbedder(32))
	report, err := b.BuildIndex(context.Background(), []models.RawRecord{
		{Question: "", Answer: "Offices open 9 to 18", URL: "https://x/1"},
	}, location)
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 1 {
		t.Fatalf("documents = %d, want 1", report.Documents)
	}
	idx, err := vector.Open(location)
	if err != nil {
		t.Fatal(err)
	}
	seg := idx.Entries()[0].Segment
	if seg.Metadata.Question != "" || seg.Content != "Вопрос: \n\nОтвет:\nOffices open 9 to 18" {
		t.Errorf("unexpected segment %+v", seg)
	}
}

func TestBuildFromFile_malformedSourceLeavesTargetUntouched(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "raw_faq.json")
	if err := os.WriteFile(source, []byte(`[{"question": "Hours", "answer": `), 0600); err != nil {
		t.Fatal(err)
	}
	location := filepath.Join(dir, "index")
	_, err := testBuilder(t, embedding.NewMockEmbedder(8)).BuildFromFile(context.Background(), source, location)
	if !errors.Is(err, models.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
	if _, err := os.Lstat(location); !os.IsNotExist(err) {
		t.Error("target location should not be created")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("only the source file should exist, found %d entries", len(entries))
	}
}

func TestBuildIndex_embeddingFailureKeepsPreviousIndex(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	records := []models.RawRecord{
		{Question: "Hours", Answer: "9-18"},
		{Question: "Refunds", Answer: "14 days"},
		{Question: "Delivery", Answer: "3 days"},
	}
	good := testBuilder(t, embedding.NewMockEmbedder(8))
	first, err := good.BuildIndex(context.Background(), records[:1], location)
	if err != nil {
		t.Fatal(err)
	}

	bad := testBuilder(t, &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(8), failOn: 2}, WithBatchSize(1))
	_, err = bad.BuildIndex(context.Background(), records, location)
	if !errors.Is(err, models.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}

	idx, err := vector.Open(location)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Manifest().Generation != first.Generation || idx.Size() != 1 {
		t.Error("failed build should leave the previous index in place")
	}
}

func TestBuildIndex_batches(t *testing.T) {
	counter := &failingEmbedder{MockEmbedder: embedding.NewMockEmbedder(8)}
	b := testBuilder(t, counter, WithBatchSize(2))
	records := make([]models.RawRecord, 5)
	for i := range records {
		records[i] = models.RawRecord{Question: string(rune('A' + i)), Answer: "answer"}
	}
	report, err := b.BuildIndex(context.Background(), records, filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatal(err)
	}
	if counter.calls != 3 {
		t.Errorf("expected 3 batch calls for 5 segments, got %d", counter.calls)
	}
	if report.Segments != 5 {
		t.Errorf("Segments=%d", report.Segments)
	}
}

func TestBuildIndex_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	location := filepath.Join(t.TempDir(), "index")
	_, err := testBuilder(t, embedding.NewMockEmbedder(8)).BuildIndex(ctx, []models.RawRecord{{Question: "q", Answer: "a"}}, location)
	if err == nil {
		t.Fatal("expected error for cancelled build")
	}
	if _, err := os.Lstat(location); !os.IsNotExist(err) {
		t.Error("cancelled build should not write the target")
	}
}
