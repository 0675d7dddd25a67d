// Package store persists practice conversations and mentor chats.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
)

// ConversationStatus tracks how a practice call ended.
type ConversationStatus string

const (
	StatusUnfinished ConversationStatus = "UNFINISHED"
	StatusClosed     ConversationStatus = "CLOSED"
	StatusNotClosed  ConversationStatus = "NOT_CLOSED"
)

// Outcome is the termination result detected in an assistant reply.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeClosed
	OutcomeNotClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeClosed:
		return "CLOSED"
	case OutcomeNotClosed:
		return "NOT_CLOSED"
	default:
		return "NONE"
	}
}

// Status maps an outcome onto the stored conversation status.
func (o Outcome) Status() ConversationStatus {
	switch o {
	case OutcomeClosed:
		return StatusClosed
	case OutcomeNotClosed:
		return StatusNotClosed
	default:
		return StatusUnfinished
	}
}

// Conversation is one practice call.
type Conversation struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	LessonID  int                `json:"lessonId"`
	Status    ConversationStatus `json:"status"`
	Messages  []chat.Message     `json:"messages"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// MentorChat is one mentor conversation thread.
type MentorChat struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Messages  []chat.Message `json:"messages"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("store: not found")

// ConversationStore is the persistence gateway for practice calls.
//
// GetOrCreate is idempotent while a conversation for (user, lesson) is
// still UNFINISHED: it returns the existing conversation instead of
// creating a new one. AppendTurn appends the user and assistant messages
// in that order and sets the status derived from outcome in one atomic
// operation; per-conversation serialization keeps turns in emission order.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, userID string, lessonID int) (*Conversation, error)
	AppendTurn(ctx context.Context, conversationID, userText, assistantText string, outcome Outcome) (*Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
}

// MentorChatStore persists mentor threads. AppendMentorMessages with an
// empty chatID creates a new thread and returns it.
type MentorChatStore interface {
	AppendMentorMessages(ctx context.Context, userID, chatID string, messages []chat.Message) (*MentorChat, error)
	GetMentorChat(ctx context.Context, userID, chatID string) (*MentorChat, error)
	ListMentorChats(ctx context.Context, userID string) ([]MentorChat, error)
}

// Store bundles both persistence surfaces.
type Store interface {
	ConversationStore
	MentorChatStore
}
