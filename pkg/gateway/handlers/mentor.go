package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pitchdrill/pitchdrill/pkg/core"
	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/config"
	"github.com/pitchdrill/pitchdrill/pkg/lessons"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

// chatIDMarker trails the streamed mentor reply so the client learns the
// thread id without a second request.
const chatIDMarker = "\n__CHAT_ID__:"

type mentorRequest struct {
	ChatID   string         `json:"chatId"`
	Messages []chat.Message `json:"messages"`
}

// MentorHandler serves the sales-coach chat: POST streams a reply, GET
// lists the caller's threads.
type MentorHandler struct {
	Config config.Config
	Logger *slog.Logger
	Chat   chat.Provider
	Store  store.Store
}

func (h MentorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.post(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

func (h MentorHandler) post(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	body := io.Reader(r.Body)
	if h.Config.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.Config.MaxBodyBytes)
	}
	var req mentorRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, r, core.NewValidationError("invalid json body", ""))
		return
	}
	if err := validateMentorMessages(req.Messages); err != nil {
		writeError(w, r, err)
		return
	}

	convs, err := h.Store.ListConversations(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	system := lessons.MentorPrompt(mentorHistory(convs))
	stream, err := h.Chat.CompleteStream(r.Context(), chat.Request{
		Model:       h.Config.MentorModel,
		System:      system,
		Messages:    req.Messages,
		MaxTokens:   h.Config.MentorMaxTokens,
		Temperature: h.Config.MentorTemperature,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	var reply strings.Builder
	for {
		chunk, err := stream.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger().Error("mentor stream aborted", "error", err)
				return
			}
			break
		}
		if chunk == "" {
			continue
		}
		reply.WriteString(chunk)
		if _, err := io.WriteString(w, chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	thread, err := h.persistThread(r, principal.UserID, req, reply.String())
	if err != nil {
		h.logger().Error("mentor thread not persisted", "error", err)
		return
	}

	_, _ = io.WriteString(w, chatIDMarker+thread.ID)
	if flusher != nil {
		flusher.Flush()
	}
}

// persistThread appends the exchange. A new thread keeps the full client
// history; an existing one only gains the latest user turn plus the reply.
func (h MentorHandler) persistThread(r *http.Request, userID string, req mentorRequest, reply string) (*store.MentorChat, error) {
	appended := req.Messages
	if req.ChatID != "" {
		appended = req.Messages[len(req.Messages)-1:]
	}
	appended = append(append([]chat.Message(nil), appended...), chat.Message{
		Role:    chat.RoleAssistant,
		Content: reply,
	})
	return h.Store.AppendMentorMessages(r.Context(), userID, req.ChatID, appended)
}

func (h MentorHandler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	chats, err := h.Store.ListMentorChats(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
}

func (h MentorHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func validateMentorMessages(messages []chat.Message) error {
	if len(messages) == 0 {
		return core.NewValidationError("messages must not be empty", "messages")
	}
	for _, m := range messages {
		if m.Role != chat.RoleUser && m.Role != chat.RoleAssistant {
			return core.NewValidationError("messages may only use user and assistant roles", "messages")
		}
		if strings.TrimSpace(m.Content) == "" {
			return core.NewValidationError("messages must have content", "messages")
		}
	}
	if messages[len(messages)-1].Role != chat.RoleUser {
		return core.NewValidationError("last message must be from the user", "messages")
	}
	return nil
}

func mentorHistory(convs []store.Conversation) []lessons.MentorConversation {
	out := make([]lessons.MentorConversation, 0, len(convs))
	for _, c := range convs {
		if len(c.Messages) == 0 {
			continue
		}
		out = append(out, lessons.MentorConversation{
			ID:        c.ID,
			LessonID:  c.LessonID,
			CreatedAt: c.CreatedAt,
			Messages:  c.Messages,
		})
	}
	return out
}
