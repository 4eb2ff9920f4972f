package models

import "time"

// DialogCounts summarizes the dialog log.
type DialogCounts struct {
	Total  int64 `json:"total"`
	Failed int64 `json:"failed"`
}

// IndexStatus describes the index being served.
type IndexStatus struct {
	Location       string    `json:"location"`
	Backend        string    `json:"backend"`
	Generation     string    `json:"generation"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	Segments       int       `json:"segments"`
	Documents      int       `json:"documents"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	CreatedAt      time.Time `json:"created_at"`
}

// Status is reported by the status command and endpoint.
type Status struct {
	Index          IndexStatus   `json:"index"`
	LLMProvider    string        `json:"llm_provider"`
	LLMModel       string        `json:"llm_model"`
	DefaultK       int           `json:"default_k"`
	Dialogs        *DialogCounts `json:"dialogs,omitempty"`
	DiskUsageBytes int64         `json:"disk_usage_bytes"`
}
