package models

import (
	"fmt"
	"strings"
)

// QueryRequest is an answer or retrieval request from an outer surface.
type QueryRequest struct {
	Query    string `json:"query"`
	K        int    `json:"k,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Validate trims the query and rejects empty input. A zero K is replaced by defaultK;
// a negative K is rejected.
func (q *QueryRequest) Validate(defaultK int) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K < 0 {
		return fmt.Errorf("k must be positive, got %d", q.K)
	}
	if q.K == 0 {
		q.K = defaultK
	}
	return nil
}
