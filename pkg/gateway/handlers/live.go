package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pitchdrill/pitchdrill/pkg/core"
	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/stt"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/tts"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/config"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/live/session"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/live/sessions"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

// LiveHandler upgrades /v1/call requests and runs one practice-call
// session per connection.
type LiveHandler struct {
	Config        config.Config
	Logger        *slog.Logger
	Chat          chat.Provider
	STT           stt.Provider
	TTS           tts.Provider
	Conversations store.ConversationStore
	Sessions      *sessions.Tracker
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !h.originAllowed(r) {
		writeError(w, r, core.NewValidationError("origin is not allowed", "Origin"))
		return
	}

	upgrader := websocket.Upgrader{
		// Origin is checked above against the configured allowlist.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := "call_" + randHex(8)
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := session.New(session.Dependencies{
		Conn:          conn,
		Logger:        logger,
		Chat:          h.Chat,
		STT:           h.STT,
		TTS:           h.TTS,
		Conversations: h.Conversations,
		UserID:        principal.UserID,
		SessionID:     sessionID,
		Config: session.Config{
			ProviderTimeout:     h.Config.LiveProviderTimeout,
			WriteTimeout:        h.Config.LiveWSWriteTimeout,
			MaxAudioBufferBytes: h.Config.LiveMaxAudioBufferBytes,
			MaxTokens:           h.Config.LiveMaxTokens,
			ChatModel:           h.Config.ChatModel,
			Voice:               h.Config.ElevenLabsVoiceID,
			Language:            h.Config.TTSLanguage,
		},
	})
	if err != nil {
		logger.Error("session setup failed", "error", err)
		return
	}

	unregister := h.Sessions.Register(sessionID, sessions.Handle{
		Cancel: s.Cancel,
		Notify: s.Notify,
	})
	defer unregister()

	logger.Info("call started", "session_id", sessionID, "user_id", principal.UserID)
	start := time.Now()
	runErr := s.Run()
	logger.Info("call finished",
		"session_id", sessionID,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", runErr)
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		// Non-browser clients.
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("150405.000000000")))
	}
	return hex.EncodeToString(b)
}
