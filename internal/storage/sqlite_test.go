package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/faqrag/internal/models"
)

func TestSQLiteDialogLog_LogAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dialogs.db")
	log, err := NewSQLiteDialogLog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	ctx := context.Background()

	first := &models.DialogRecord{
		UserID:      "42",
		Username:    "alice",
		Channel:     "cli",
		Question:    "Часы работы?",
		Answer:      "С 9 до 18.",
		TopQuestion: "Часы работы офисов",
		TopURL:      "https://x/hours",
		CreatedAt:   time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := log.LogDialog(ctx, first); err != nil {
		t.Fatal(err)
	}
	if first.ID == "" {
		t.Error("ID should be assigned")
	}

	second := &models.DialogRecord{Channel: "http", Question: "q2", Answer: "fail", Failed: true}
	if err := log.LogDialog(ctx, second); err != nil {
		t.Fatal(err)
	}
	if second.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	list, err := log.ListDialogs(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0].ID != second.ID {
		t.Errorf("newest record should come first, got %s", list[0].Question)
	}
	got := list[1]
	if got.Username != "alice" || got.TopURL != "https://x/hours" || got.Question != "Часы работы?" {
		t.Errorf("got %+v", got)
	}
	if !list[0].Failed || got.Failed {
		t.Error("failed flag not round-tripped")
	}

	page, err := log.ListDialogs(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != first.ID {
		t.Errorf("offset page = %+v", page)
	}
}

func TestSQLiteDialogLog_Counts(t *testing.T) {
	log, err := NewSQLiteDialogLog(filepath.Join(t.TempDir(), "count.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	ctx := context.Background()

	c, err := log.CountDialogs(ctx)
	if err != nil || c.Total != 0 || c.Failed != 0 {
		t.Errorf("CountDialogs on empty log: %v, %+v", err, c)
	}
	_ = log.LogDialog(ctx, &models.DialogRecord{Channel: "cli", Question: "a", Answer: "b"})
	_ = log.LogDialog(ctx, &models.DialogRecord{Channel: "cli", Question: "c", Answer: "d", Failed: true})
	c, _ = log.CountDialogs(ctx)
	if c.Total != 2 || c.Failed != 1 {
		t.Errorf("expected 2 total / 1 failed, got %+v", c)
	}
}

func TestSQLiteDialogLog_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	log, err := NewSQLiteDialogLog(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = log.LogDialog(context.Background(), &models.DialogRecord{Channel: "cli", Question: "a", Answer: "b"})
	log.Close()

	log, err = NewSQLiteDialogLog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	c, _ := log.CountDialogs(context.Background())
	if c.Total != 1 {
		t.Errorf("expected record to survive reopen, got %d", c.Total)
	}
}
