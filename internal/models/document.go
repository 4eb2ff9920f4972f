// Package models defines core data structures for knowledge records, segments, and answers.
package models

import "time"

// RawRecord is one question/answer entry from the knowledge source. Fields may be empty.
type RawRecord struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	URL      string `json:"url" yaml:"url"`
}

// Metadata is carried from a Document to every Segment derived from it.
type Metadata struct {
	Question string `json:"question"`
	URL      string `json:"url"`
}

// Document is a normalized knowledge unit ready for chunking.
type Document struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Segment is a contiguous slice of a Document's content.
type Segment struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	Ordinal    int      `json:"ordinal"`
	Content    string   `json:"content"`
	Metadata   Metadata `json:"metadata"`
}

// IndexEntry pairs a Segment with its embedding vector.
type IndexEntry struct {
	Segment   Segment   `json:"segment"`
	Embedding []float32 `json:"-"`
}

// DialogRecord is one served query/answer pair kept for auditing.
type DialogRecord struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id,omitempty" db:"user_id"`
	Username    string    `json:"username,omitempty" db:"username"`
	Channel     string    `json:"channel" db:"channel"`
	Question    string    `json:"question" db:"question"`
	Answer      string    `json:"answer" db:"answer"`
	TopQuestion string    `json:"top_question,omitempty" db:"top_question"`
	TopURL      string    `json:"top_url,omitempty" db:"top_url"`
	Failed      bool      `json:"failed" db:"failed"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
