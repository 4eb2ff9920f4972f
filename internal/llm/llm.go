// Package llm provides chat-completion clients for the answer composer.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/faqrag/internal/models"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Client completes a conversation with a single assistant reply.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
	Close() error
}

// wrapErr tags err as a generation failure unless it already is one.
func wrapErr(op string, err error) error {
	if errors.Is(err, models.ErrGeneration) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", models.ErrGeneration, op, err)
}

// split separates system instructions from the remaining conversation.
func split(messages []Message) (system string, rest []Message) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
