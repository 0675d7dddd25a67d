package handlers

import (
	"net/http"

	"github.com/pitchdrill/pitchdrill/pkg/store"
)

// ConversationsHandler serves GET /v1/conversations, the account's
// practice history.
type ConversationsHandler struct {
	Conversations store.ConversationStore
}

func (h ConversationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	convs, err := h.Conversations.ListConversations(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}
