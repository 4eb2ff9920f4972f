package models

import "errors"

// Error kinds shared across the pipeline. Components wrap them with %w so
// callers can classify failures with errors.Is.
var (
	ErrLoad               = errors.New("load error")
	ErrEmptyKnowledgeBase = errors.New("empty knowledge base")
	ErrEmbedding          = errors.New("embedding error")
	ErrGeneration         = errors.New("generation error")
	ErrConfig             = errors.New("config error")
)

// ErrorKind returns a short name for the kind of err, for logging.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLoad):
		return "load"
	case errors.Is(err, ErrEmptyKnowledgeBase):
		return "empty_knowledge_base"
	case errors.Is(err, ErrEmbedding):
		return "embedding"
	case errors.Is(err, ErrGeneration):
		return "generation"
	case errors.Is(err, ErrConfig):
		return "config"
	default:
		return "unknown"
	}
}
