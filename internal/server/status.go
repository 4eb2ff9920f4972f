package server

import (
	"context"

	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/storage"
	"github.com/hyperjump/faqrag/internal/vector"
)

// CollectStatus reports the served index, model settings and dialog log counts.
// dialogs may be nil.
func CollectStatus(ctx context.Context, cfg *config.Config, idx vector.Index, defaultK int, dialogs storage.DialogLog) (*models.Status, error) {
	m := idx.Manifest()
	status := &models.Status{
		Index: models.IndexStatus{
			Location:       cfg.Storage.IndexPath,
			Backend:        m.Backend,
			Generation:     m.Generation,
			EmbeddingModel: m.EmbeddingModel,
			Dimensions:     idx.Dimensions(),
			Segments:       idx.Size(),
			Documents:      m.Documents,
			ChunkSize:      m.ChunkSize,
			ChunkOverlap:   m.ChunkOverlap,
			CreatedAt:      m.CreatedAt,
		},
		LLMProvider: cfg.LLM.Provider,
		LLMModel:    cfg.LLM.Model,
		DefaultK:    defaultK,
	}
	if dialogs != nil {
		counts, err := dialogs.CountDialogs(ctx)
		if err != nil {
			return nil, err
		}
		status.Dialogs = &counts
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.IndexPath, cfg.Storage.DialogDBPath); err == nil {
		status.DiskUsageBytes = n
	}
	return status, nil
}
