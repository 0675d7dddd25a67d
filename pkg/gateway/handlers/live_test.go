package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pitchdrill/pitchdrill/pkg/core/voice/stt"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/tts"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/live/sessions"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

type echoSTT struct{ text string }

func (f echoSTT) Name() string { return "echo-stt" }

func (f echoSTT) Transcribe(ctx context.Context, audio []byte, opts stt.TranscribeOptions) (*stt.Transcript, error) {
	return &stt.Transcript{Text: f.text}, nil
}

type silentTTS struct{}

func (silentTTS) Name() string { return "silent-tts" }

func (silentTTS) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	return &tts.Synthesis{Audio: []byte{0xFF}, Format: "mp3_44100_128"}, nil
}

func newLiveServer(t *testing.T) (*httptest.Server, *sessions.Tracker) {
	t.Helper()
	tracker := sessions.NewTracker()
	h := LiveHandler{
		Config:        testConfig(),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Chat:          &scriptedChat{reply: "Tell me more."},
		STT:           echoSTT{text: "Hello there"},
		TTS:           silentTTS{},
		Conversations: store.NewMemoryStore(),
		Sessions:      tracker,
	}
	srv := httptest.NewServer(withPrincipal("user-1", h))
	t.Cleanup(srv.Close)
	return srv, tracker
}

func mustDialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/call"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func mustReadJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("frame type=%d", msgType)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return out
}

func TestLive_FullTurnOverHTTPStack(t *testing.T) {
	srv, tracker := newLiveServer(t)
	conn := mustDialWS(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for tracker.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tracker.Count() != 1 {
		t.Fatalf("tracked sessions=%d", tracker.Count())
	}

	if err := conn.WriteJSON(map[string]any{"type": "selectLesson", "lessonId": 1}); err != nil {
		t.Fatalf("selectLesson: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, make([]byte, 4096)); err != nil {
		t.Fatalf("audio: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"type": "stop"}); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if msg := mustReadJSON(t, conn); msg["type"] != "stopped" || msg["ok"] != true {
		t.Fatalf("stopped=%v", msg)
	}
	if msg := mustReadJSON(t, conn); msg["type"] != "transcription" || msg["text"] != "Hello there" {
		t.Fatalf("transcription=%v", msg)
	}
	if msg := mustReadJSON(t, conn); msg["type"] != "text" || msg["text"] != "Tell me more." {
		t.Fatalf("text=%v", msg)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for tracker.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tracker.Count() != 0 {
		t.Fatalf("session still tracked after close")
	}
}

func TestLive_RequiresPrincipal(t *testing.T) {
	h := LiveHandler{
		Config:        testConfig(),
		Chat:          &scriptedChat{},
		STT:           echoSTT{},
		TTS:           silentTTS{},
		Conversations: store.NewMemoryStore(),
		Sessions:      sessions.NewTracker(),
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/call", nil))
	if rec.Code != 401 {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestLive_RejectsDisallowedOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = map[string]struct{}{"https://app.example.com": {}}
	h := LiveHandler{
		Config:        cfg,
		Chat:          &scriptedChat{},
		STT:           echoSTT{},
		TTS:           silentTTS{},
		Conversations: store.NewMemoryStore(),
		Sessions:      sessions.NewTracker(),
	}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/v1/call", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	withPrincipal("user-1", h).ServeHTTP(rec, r)
	if rec.Code != 400 {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestLive_MethodNotAllowed(t *testing.T) {
	h := LiveHandler{Config: testConfig(), Sessions: sessions.NewTracker()}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/call", nil))
	if rec.Code != 405 {
		t.Fatalf("code=%d", rec.Code)
	}
}

var _ http.Handler = LiveHandler{}
