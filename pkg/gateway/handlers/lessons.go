package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pitchdrill/pitchdrill/pkg/core"
	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/config"
	"github.com/pitchdrill/pitchdrill/pkg/lessons"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

// LessonsHandler serves the catalog and the per-lesson tip generator.
// Routes: GET /v1/lessons and GET /v1/lessons/{id}/tip.
type LessonsHandler struct {
	Config        config.Config
	Logger        *slog.Logger
	Chat          chat.Provider
	Conversations store.ConversationStore
}

func (h LessonsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/lessons"), "/")
	if rest == "" {
		writeJSON(w, http.StatusOK, map[string]any{"lessons": lessons.All()})
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	lessonID, err := strconv.Atoi(id)
	if err != nil || lessonID <= 0 || sub != "tip" {
		writeError(w, r, core.NewNotFoundError("not found"))
		return
	}
	h.tip(w, r, lessonID)
}

func (h LessonsHandler) tip(w http.ResponseWriter, r *http.Request, lessonID int) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	lesson, ok := lessons.ByID(lessonID)
	if !ok {
		writeError(w, r, core.NewNotFoundError("unknown lesson"))
		return
	}

	history := h.activeHistory(r, principal.UserID, lessonID)
	reply, err := h.Chat.Complete(r.Context(), chat.Request{
		Model:     h.Config.ChatModel,
		System:    lessons.TipPrompt(lesson, history),
		Messages:  []chat.Message{{Role: chat.RoleUser, Content: "Generate guidance for the current state of the call."}},
		MaxTokens: 128,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tip": strings.TrimSpace(reply)})
}

// activeHistory fetches the unfinished conversation for this lesson so
// the tip reflects the call in progress. No history is fine.
func (h LessonsHandler) activeHistory(r *http.Request, userID string, lessonID int) []chat.Message {
	if h.Conversations == nil {
		return nil
	}
	convs, err := h.Conversations.ListConversations(r.Context(), userID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("tip history unavailable", "error", err)
		}
		return nil
	}
	for _, c := range convs {
		if c.LessonID == lessonID && c.Status == store.StatusUnfinished {
			return c.Messages
		}
	}
	return nil
}
