// Package chat defines the completion provider contract used by the call
// orchestrator and the mentor endpoint.
package chat

import (
	"context"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request carries everything a completion call needs.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Stream yields assistant text incrementally. Next returns io.EOF when the
// stream is done; Close releases the underlying connection and is safe to
// call more than once.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Provider produces assistant replies. Implementations classify upstream
// failures into core error types at this boundary.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	CompleteStream(ctx context.Context, req Request) (Stream, error)
}
