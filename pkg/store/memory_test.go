package store

import (
	"context"
	"testing"
	"time"

	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
)

func TestGetOrCreateReusesUnfinished(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	second, err := s.GetOrCreate(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same conversation, got %s and %s", first.ID, second.ID)
	}

	other, err := s.GetOrCreate(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("different lesson reused the same conversation")
	}
}

func TestGetOrCreateSkipsFinished(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, _ := s.GetOrCreate(ctx, "user-1", 1)
	if _, err := s.AppendTurn(ctx, first.ID, "bye", "goodbye", OutcomeClosed); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	second, err := s.GetOrCreate(ctx, "user-1", 1)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("closed conversation was reused")
	}
	if second.Status != StatusUnfinished {
		t.Fatalf("status=%s", second.Status)
	}
}

func TestAppendTurnOrderingAndStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	conv, _ := s.GetOrCreate(ctx, "user-1", 3)
	if _, err := s.AppendTurn(ctx, conv.ID, "hello", "who is this", OutcomeNone); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	got, err := s.AppendTurn(ctx, conv.ID, "it's me", "not interested", OutcomeNotClosed)
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	if got.Status != StatusNotClosed {
		t.Fatalf("status=%s", got.Status)
	}
	want := []chat.Message{
		{Role: chat.RoleUser, Content: "hello"},
		{Role: chat.RoleAssistant, Content: "who is this"},
		{Role: chat.RoleUser, Content: "it's me"},
		{Role: chat.RoleAssistant, Content: "not interested"},
	}
	if len(got.Messages) != len(want) {
		t.Fatalf("messages=%d want %d", len(got.Messages), len(want))
	}
	for i := range want {
		if got.Messages[i] != want[i] {
			t.Fatalf("message %d = %+v want %+v", i, got.Messages[i], want[i])
		}
	}
}

func TestAppendTurnUnknownConversation(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.AppendTurn(context.Background(), "missing", "a", "b", OutcomeNone); err != ErrNotFound {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestMentorChatCreateAndAppend(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.AppendMentorMessages(ctx, "user-1", "", []chat.Message{
		{Role: chat.RoleUser, Content: "how did I do?"},
		{Role: chat.RoleAssistant, Content: "let's look at your last call"},
	})
	if err != nil {
		t.Fatalf("AppendMentorMessages: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("empty chat id")
	}

	updated, err := s.AppendMentorMessages(ctx, "user-1", created.ID, []chat.Message{
		{Role: chat.RoleUser, Content: "what next?"},
		{Role: chat.RoleAssistant, Content: "try lesson two"},
	})
	if err != nil {
		t.Fatalf("AppendMentorMessages: %v", err)
	}
	if len(updated.Messages) != 4 {
		t.Fatalf("messages=%d want 4", len(updated.Messages))
	}

	if _, err := s.AppendMentorMessages(ctx, "user-2", created.ID, nil); err != ErrNotFound {
		t.Fatalf("cross-user append err=%v want ErrNotFound", err)
	}
}

func TestListConversationsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.SetNow(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	a, _ := s.GetOrCreate(ctx, "user-1", 1)
	_, _ = s.AppendTurn(ctx, a.ID, "x", "y", OutcomeClosed)
	b, _ := s.GetOrCreate(ctx, "user-1", 1)

	list, err := s.ListConversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len=%d", len(list))
	}
	if list[0].ID != b.ID {
		t.Fatalf("expected newest first")
	}
}
