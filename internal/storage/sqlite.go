package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/faqrag/internal/models"
)

// SQLiteDialogLog implements DialogLog using SQLite.
type SQLiteDialogLog struct {
	db *sql.DB
}

// NewSQLiteDialogLog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteDialogLog(dbPath string) (*SQLiteDialogLog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteDialogLog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS dialog_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		username TEXT,
		channel TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		top_question TEXT,
		top_url TEXT,
		failed INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dialog_logs_created_at ON dialog_logs(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// LogDialog inserts a record.
func (s *SQLiteDialogLog) LogDialog(ctx context.Context, rec *models.DialogRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dialog_logs (id, user_id, username, channel, question, answer, top_question, top_url, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Username, rec.Channel, rec.Question, rec.Answer,
		rec.TopQuestion, rec.TopURL, rec.Failed, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log dialog: %w", err)
	}
	return nil
}

// ListDialogs returns records with offset and limit, newest first.
func (s *SQLiteDialogLog) ListDialogs(ctx context.Context, offset, limit int) ([]*models.DialogRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, username, channel, question, answer, top_question, top_url, failed, created_at
		 FROM dialog_logs ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.DialogRecord
	for rows.Next() {
		var rec models.DialogRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.Channel, &rec.Question, &rec.Answer,
			&rec.TopQuestion, &rec.TopURL, &rec.Failed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// CountDialogs returns the number of logged dialogs and how many of them failed.
func (s *SQLiteDialogLog) CountDialogs(ctx context.Context) (models.DialogCounts, error) {
	var c models.DialogCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(failed), 0) FROM dialog_logs`,
	).Scan(&c.Total, &c.Failed)
	return c, err
}

// Close closes the database connection.
func (s *SQLiteDialogLog) Close() error {
	return s.db.Close()
}
