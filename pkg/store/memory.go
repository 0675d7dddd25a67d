package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
)

// MemoryStore is an in-process Store used by tests and keyless local runs.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	mentorChats   map[string]*MentorChat
	now           func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		mentorChats:   make(map[string]*MentorChat),
		now:           time.Now,
	}
}

// SetNow overrides the clock. Used by tests.
func (s *MemoryStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Ping always succeeds; the memory store has no backend to lose.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, userID string, lessonID int) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *Conversation
	for _, c := range s.conversations {
		if c.UserID != userID || c.LessonID != lessonID || c.Status != StatusUnfinished {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest != nil {
		return cloneConversation(newest), nil
	}

	now := s.now()
	conv := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		LessonID:  lessonID,
		Status:    StatusUnfinished,
		Messages:  []chat.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv
	return cloneConversation(conv), nil
}

func (s *MemoryStore) AppendTurn(ctx context.Context, conversationID, userText, assistantText string, outcome Outcome) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	conv.Messages = append(conv.Messages,
		chat.Message{Role: chat.RoleUser, Content: userText},
		chat.Message{Role: chat.RoleAssistant, Content: assistantText},
	)
	conv.Status = outcome.Status()
	conv.UpdatedAt = s.now()
	return cloneConversation(conv), nil
}

func (s *MemoryStore) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, *cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendMentorMessages(ctx context.Context, userID, chatID string, messages []chat.Message) (*MentorChat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if chatID == "" {
		mc := &MentorChat{
			ID:        uuid.NewString(),
			UserID:    userID,
			Messages:  append([]chat.Message(nil), messages...),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.mentorChats[mc.ID] = mc
		return cloneMentorChat(mc), nil
	}

	mc, ok := s.mentorChats[chatID]
	if !ok || mc.UserID != userID {
		return nil, ErrNotFound
	}
	mc.Messages = append(mc.Messages, messages...)
	mc.UpdatedAt = now
	return cloneMentorChat(mc), nil
}

func (s *MemoryStore) GetMentorChat(ctx context.Context, userID, chatID string) (*MentorChat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mc, ok := s.mentorChats[chatID]
	if !ok || mc.UserID != userID {
		return nil, ErrNotFound
	}
	return cloneMentorChat(mc), nil
}

func (s *MemoryStore) ListMentorChats(ctx context.Context, userID string) ([]MentorChat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []MentorChat
	for _, mc := range s.mentorChats {
		if mc.UserID == userID {
			out = append(out, *cloneMentorChat(mc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func cloneConversation(c *Conversation) *Conversation {
	out := *c
	out.Messages = append([]chat.Message(nil), c.Messages...)
	return &out
}

func cloneMentorChat(mc *MentorChat) *MentorChat {
	out := *mc
	out.Messages = append([]chat.Message(nil), mc.Messages...)
	return &out
}
