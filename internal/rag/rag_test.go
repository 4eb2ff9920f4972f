package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/indexer"
	"github.com/hyperjump/faqrag/internal/llm"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/search"
	"github.com/hyperjump/faqrag/internal/vector"
)

type stubRetriever struct {
	result models.RetrievedResult
	err    error
	calls  int
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string, k int) (models.RetrievedResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.result) {
		return s.result[:k], nil
	}
	return s.result, nil
}

func segment(q, url, content string) models.RetrievedSegment {
	return models.RetrievedSegment{Segment: models.Segment{
		ID:       "doc:" + q + "#0",
		Content:  content,
		Metadata: models.Metadata{Question: q, URL: url},
	}}
}

func fixed(text string) llm.Responder {
	return func([]llm.Message) (string, error) { return text, nil }
}

func TestAssemble(t *testing.T) {
	assert.Equal(t, "", Assemble(nil))

	out := Assemble(models.RetrievedResult{
		segment("Hours", "https://x/1", "Offices open 9 to 18"),
		segment("Refunds", "https://x/2", "Within 14 days"),
	})
	assert.True(t, strings.HasPrefix(out, "[Фрагмент 1] Вопрос: Hours\nИсточник: https://x/1\n\nOffices open 9 to 18"))
	assert.Contains(t, out, "[Фрагмент 2] Вопрос: Refunds\nИсточник: https://x/2")
	assert.Equal(t, 1, strings.Count(out, FragmentSeparator))
	assert.Less(t, strings.Index(out, "Hours"), strings.Index(out, "Refunds"))
}

func TestAssemble_escapesSeparatorLines(t *testing.T) {
	out := Assemble(models.RetrievedResult{
		segment("A", "", "before\n\n---\n\nafter"),
		segment("B", "", "x"),
	})
	assert.Equal(t, 1, strings.Count(out, FragmentSeparator))
	assert.Contains(t, out, "before\n\n- - -\n\nafter")
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("CTX", "когда открыто?")
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, EscalationMessage)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.True(t, strings.HasSuffix(msgs[1].Content, "когда открыто?"))
	assert.Less(t, strings.Index(msgs[1].Content, "CTX"), strings.Index(msgs[1].Content, "когда открыто?"))
}

func TestExtractiveResponse(t *testing.T) {
	ctxText := Assemble(models.RetrievedResult{
		segment("Hours", "https://x/1", indexer.FormatContent("Hours", "Offices open 9 to 18")),
		segment("Other", "", "ignored"),
	})
	reply, err := ExtractiveResponse(BuildMessages(ctxText, "when?"))
	require.NoError(t, err)
	assert.Equal(t, "Offices open 9 to 18", reply)

	reply, err = ExtractiveResponse(BuildMessages("", "when?"))
	require.NoError(t, err)
	assert.Equal(t, EscalationMessage, reply)
}

func TestComposer_Answer(t *testing.T) {
	retriever := &stubRetriever{result: models.RetrievedResult{
		segment("Hours", "https://x/1", "Offices open 9 to 18"),
		segment("Refunds", "https://x/2", "Within 14 days"),
	}}
	client := llm.NewMockClient(fixed("  We open at 9.  "))
	c := NewComposer(retriever, client)

	ans, err := c.Answer(context.Background(), "when do you open", 0)
	require.NoError(t, err)
	assert.Equal(t, "We open at 9.", ans.Text)
	assert.Equal(t, []models.Citation{{Question: "Hours", URL: "https://x/1"}}, ans.Citations)
	assert.False(t, ans.Escalated)

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Contains(t, calls[0][1].Content, "Источник: https://x/2")
}

func TestComposer_AbstentionContract(t *testing.T) {
	t.Run("empty retrieval", func(t *testing.T) {
		client := llm.NewMockClient(fixed("should not be called"))
		c := NewComposer(&stubRetriever{}, client)
		ans, err := c.Answer(context.Background(), "anything", 6)
		require.NoError(t, err)
		assert.Equal(t, EscalationMessage, ans.Text)
		assert.True(t, ans.Escalated)
		assert.Empty(t, ans.Citations)
		assert.Empty(t, client.Calls())
	})

	t.Run("irrelevant context", func(t *testing.T) {
		retriever := &stubRetriever{result: models.RetrievedResult{segment("Hours", "https://x/1", "Offices open 9 to 18")}}
		client := llm.NewMockClient(fixed("Извините. " + EscalationMessage))
		ans, err := NewComposer(retriever, client).Answer(context.Background(), "how to fly to the moon", 6)
		require.NoError(t, err)
		assert.Equal(t, EscalationMessage, ans.Text)
		assert.True(t, ans.Escalated)
		assert.Len(t, ans.Citations, 1)
	})
}

func TestComposer_AnswerErrors(t *testing.T) {
	result := models.RetrievedResult{segment("Hours", "https://x/1", "c")}

	t.Run("embedding", func(t *testing.T) {
		retriever := &stubRetriever{err: fmt.Errorf("%w: network down", models.ErrEmbedding)}
		_, err := NewComposer(retriever, llm.NewMockClient(fixed("x"))).Answer(context.Background(), "q", 6)
		assert.ErrorIs(t, err, models.ErrEmbedding)
	})

	t.Run("generation", func(t *testing.T) {
		client := llm.NewMockClient(func([]llm.Message) (string, error) { return "", errors.New("boom") })
		_, err := NewComposer(&stubRetriever{result: result}, client).Answer(context.Background(), "q", 6)
		assert.ErrorIs(t, err, models.ErrGeneration)
	})

	t.Run("empty reply", func(t *testing.T) {
		_, err := NewComposer(&stubRetriever{result: result}, llm.NewMockClient(fixed("   "))).Answer(context.Background(), "q", 6)
		assert.ErrorIs(t, err, models.ErrGeneration)
	})

	t.Run("timeout", func(t *testing.T) {
		client := &slowClient{delay: time.Second}
		c := NewComposer(&stubRetriever{result: result}, client, WithTimeout(20*time.Millisecond))
		start := time.Now()
		_, err := c.Answer(context.Background(), "q", 6)
		assert.ErrorIs(t, err, models.ErrGeneration)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

// slowClient blocks until its delay passes or the context ends.
type slowClient struct{ delay time.Duration }

func (s *slowClient) Complete(ctx context.Context, _ []llm.Message) (string, error) {
	select {
	case <-time.After(s.delay):
		return "late", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *slowClient) Model() string { return "slow" }
func (s *slowClient) Close() error  { return nil }

type memoryDialogLog struct {
	recs []*models.DialogRecord
}

func (m *memoryDialogLog) LogDialog(_ context.Context, rec *models.DialogRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memoryDialogLog) ListDialogs(context.Context, int, int) ([]*models.DialogRecord, error) {
	return m.recs, nil
}

func (m *memoryDialogLog) CountDialogs(context.Context) (models.DialogCounts, error) {
	return models.DialogCounts{Total: int64(len(m.recs))}, nil
}

func (m *memoryDialogLog) Close() error { return nil }

func TestService_AskRecoversFromFailures(t *testing.T) {
	retriever := &stubRetriever{err: fmt.Errorf("%w: network down", models.ErrEmbedding)}
	dialogs := &memoryDialogLog{}
	svc := NewService(NewComposer(retriever, llm.NewMockClient(fixed("ok"))), dialogs, nil)

	ans := svc.Ask(context.Background(), &models.QueryRequest{Query: "q1", UserID: "7"}, "cli")
	assert.Equal(t, FailureNotice, ans.Text)
	assert.True(t, ans.Failed)

	// The next query is served normally.
	retriever.err = nil
	retriever.result = models.RetrievedResult{segment("Hours", "https://x/1", "c")}
	ans = svc.Ask(context.Background(), &models.QueryRequest{Query: "q2"}, "cli")
	assert.Equal(t, "ok", ans.Text)
	assert.False(t, ans.Failed)

	require.Len(t, dialogs.recs, 2)
	assert.True(t, dialogs.recs[0].Failed)
	assert.Equal(t, "7", dialogs.recs[0].UserID)
	assert.Equal(t, "Hours", dialogs.recs[1].TopQuestion)
	assert.Equal(t, "https://x/1", dialogs.recs[1].TopURL)
}

func TestService_AskEmptyQuery(t *testing.T) {
	retriever := &stubRetriever{}
	dialogs := &memoryDialogLog{}
	svc := NewService(NewComposer(retriever, llm.NewMockClient(fixed("ok"))), dialogs, nil)
	ans := svc.Ask(context.Background(), &models.QueryRequest{Query: "   "}, "http")
	assert.True(t, ans.Failed)
	assert.Zero(t, retriever.calls)
	assert.Empty(t, dialogs.recs)
}

func TestPipeline_ScenarioA(t *testing.T) {
	embedder := embedding.NewMockEmbedder(128)
	chunker, err := indexer.NewChunker(1200, 150)
	require.NoError(t, err)
	location := filepath.Join(t.TempDir(), "index")
	builder := indexer.NewBuilder(chunker, embedder, vector.NewMemoryStore())
	_, err = builder.BuildIndex(context.Background(), []models.RawRecord{
		{Question: "Hours", Answer: "Offices open 9 to 18", URL: "https://x/1"},
	}, location)
	require.NoError(t, err)

	idx, err := vector.Open(location)
	require.NoError(t, err)
	engine, err := search.NewEngine(embedder, idx, 6)
	require.NoError(t, err)

	result, err := engine.Retrieve(context.Background(), "when does the office open", 6)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "https://x/1", result[0].Segment.Metadata.URL)

	ctxText := Assemble(result)
	assert.Contains(t, ctxText, "Вопрос: Hours")
	assert.Contains(t, ctxText, "Источник: https://x/1")

	svc := NewService(NewComposer(engine, llm.NewMockClient(ExtractiveResponse)), nil, nil)
	ans := svc.Ask(context.Background(), &models.QueryRequest{Query: "when does the office open"}, "test")
	assert.Equal(t, "Offices open 9 to 18", ans.Text)
	assert.Equal(t, []models.Citation{{Question: "Hours", URL: "https://x/1"}}, ans.Citations)
}
