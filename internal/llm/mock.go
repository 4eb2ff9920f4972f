package llm

import (
	"context"
	"sync"
)

// Responder produces a reply for a conversation.
type Responder func(messages []Message) (string, error)

// MockClient answers with a Responder and records every conversation it receives.
type MockClient struct {
	respond Responder
	mu      sync.Mutex
	calls   [][]Message
}

// NewMockClient returns a client that delegates to respond.
func NewMockClient(respond Responder) *MockClient {
	return &MockClient{respond: respond}
}

// Complete records messages and returns the responder's reply. It honours ctx so
// timeouts can be exercised.
func (c *MockClient) Complete(ctx context.Context, messages []Message) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, append([]Message(nil), messages...))
	c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", wrapErr("mock complete", err)
	}
	text, err := c.respond(messages)
	if err != nil {
		return "", wrapErr("mock complete", err)
	}
	return text, nil
}

// Calls returns the conversations received so far.
func (c *MockClient) Calls() [][]Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]Message(nil), c.calls...)
}

// Model returns the model identifier.
func (c *MockClient) Model() string {
	return "mock"
}

// Close is a no-op.
func (c *MockClient) Close() error {
	return nil
}
