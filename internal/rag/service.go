package rag

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/storage"
)

// Service is the query boundary used by the CLI and the HTTP server. It never fails:
// errors are logged and the user gets FailureNotice.
type Service struct {
	composer *Composer
	dialogs  storage.DialogLog
	logger   *zap.Logger
}

// NewService wraps composer. dialogs may be nil to disable the audit log.
func NewService(composer *Composer, dialogs storage.DialogLog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{composer: composer, dialogs: dialogs, logger: logger}
}

// Ask answers req. channel names the caller ("cli", "http") in the dialog log.
func (s *Service) Ask(ctx context.Context, req *models.QueryRequest, channel string) *models.Answer {
	start := time.Now()
	ans, err := s.answer(ctx, req)
	if err != nil {
		s.logger.Error("answer failed",
			zap.String("query", req.Query),
			zap.String("error_kind", models.ErrorKind(err)),
			zap.Error(err))
		ans = &models.Answer{Text: FailureNotice, Citations: []models.Citation{}, Failed: true}
	} else {
		s.logger.Info("answered",
			zap.String("query", req.Query),
			zap.Bool("escalated", ans.Escalated),
			zap.Duration("duration", time.Since(start)))
	}
	s.record(ctx, req, channel, ans)
	return ans
}

func (s *Service) answer(ctx context.Context, req *models.QueryRequest) (*models.Answer, error) {
	if err := req.Validate(s.composer.defaultK); err != nil {
		return nil, err
	}
	return s.composer.Answer(ctx, req.Query, req.K)
}

func (s *Service) record(ctx context.Context, req *models.QueryRequest, channel string, ans *models.Answer) {
	if s.dialogs == nil || req.Query == "" {
		return
	}
	rec := &models.DialogRecord{
		UserID:   req.UserID,
		Username: req.Username,
		Channel:  channel,
		Question: req.Query,
		Answer:   ans.Text,
		Failed:   ans.Failed,
	}
	if len(ans.Citations) > 0 {
		rec.TopQuestion = ans.Citations[0].Question
		rec.TopURL = ans.Citations[0].URL
	}
	// The answer is already produced; a cancelled request should not lose its log entry.
	if err := s.dialogs.LogDialog(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("failed to log dialog", zap.Error(err))
	}
}
