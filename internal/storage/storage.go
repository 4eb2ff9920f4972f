// Package storage persists the dialog audit log.
package storage

import (
	"context"

	"github.com/hyperjump/faqrag/internal/models"
)

// DialogLog records served answers for later review.
type DialogLog interface {
	// LogDialog stores rec. Empty ID and zero CreatedAt are filled in.
	LogDialog(ctx context.Context, rec *models.DialogRecord) error
	// ListDialogs returns records newest first.
	ListDialogs(ctx context.Context, offset, limit int) ([]*models.DialogRecord, error)
	CountDialogs(ctx context.Context) (models.DialogCounts, error)
	Close() error
}
