package server

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

	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/stt"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/tts"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/auth"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/config"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

type stubChat struct{}

func (stubChat) Name() string { return "stub" }

func (stubChat) Complete(ctx context.Context, req chat.Request) (string, error) {
	return "ok", nil
}

func (stubChat) CompleteStream(ctx context.Context, req chat.Request) (chat.Stream, error) {
	return stubStream{}, nil
}

type stubStream struct{}

func (stubStream) Next() (string, error) { return "", io.EOF }
func (stubStream) Close() error          { return nil }

type stubSTT struct{}

func (stubSTT) Name() string { return "stub" }

func (stubSTT) Transcribe(ctx context.Context, audio []byte, opts stt.TranscribeOptions) (*stt.Transcript, error) {
	return &stt.Transcript{Text: "hello"}, nil
}

type stubTTS struct{}

func (stubTTS) Name() string { return "stub" }

func (stubTTS) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	return &tts.Synthesis{Audio: []byte{1}}, nil
}

func testConfig() config.Config {
	return config.Config{
		AuthMode:          config.AuthModeStatic,
		ChatBackend:       config.ChatBackendGroq,
		StaticTokens:      map[string]string{"tok_1": "user-1"},
		MentorModel:       "openai/gpt-oss-20b",
		MentorMaxTokens:   2048,
		MentorTemperature: 0.7,
		LimitPerMinute:    100,
		LimitPerHour:      1000,
		LimitPerDay:       5000,
		MaxBodyBytes:      1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		HandlerTimeout:    2 * time.Minute,
	}
}

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s := New(cfg, logger, Dependencies{
		Chat:     stubChat{},
		STT:      stubSTT{},
		TTS:      stubTTS{},
		Store:    store.NewMemoryStore(),
		Verifier: auth.NewStaticVerifier(map[string]auth.Principal{"tok_1": {UserID: "user-1"}}),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", srv.URL+path, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthEndpointsSkipAuth(t *testing.T) {
	srv := newTestServer(t, testConfig())

	if resp := get(t, srv, "/healthz", ""); resp.StatusCode != 200 {
		t.Fatalf("healthz=%d", resp.StatusCode)
	}
	if resp := get(t, srv, "/readyz", ""); resp.StatusCode != 200 {
		t.Fatalf("readyz=%d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, testConfig())

	for _, path := range []string{"/v1/lessons", "/v1/conversations", "/v1/mentor"} {
		if resp := get(t, srv, path, ""); resp.StatusCode != 401 {
			t.Fatalf("%s without token = %d", path, resp.StatusCode)
		}
	}

	if resp := get(t, srv, "/v1/lessons", "tok_1"); resp.StatusCode != 200 {
		t.Fatalf("lessons with token = %d", resp.StatusCode)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	srv := newTestServer(t, testConfig())
	resp := get(t, srv, "/v1/nope", "tok_1")
	if resp.StatusCode != 404 {
		t.Fatalf("code=%d", resp.StatusCode)
	}
	var env struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Type != "not_found_error" {
		t.Fatalf("type=%q", env.Error.Type)
	}
}

func TestEveryResponseCarriesRequestID(t *testing.T) {
	srv := newTestServer(t, testConfig())
	resp := get(t, srv, "/v1/lessons", "tok_1")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID")
	}
}

func TestWebsocketTokenViaQueryParam(t *testing.T) {
	srv := newTestServer(t, testConfig())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/call?access_token=tok_1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "stop"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["type"] != "stopped" || msg["ok"] != false {
		t.Fatalf("msg=%v", msg)
	}
}

func TestWebsocketRejectedWithoutToken(t *testing.T) {
	srv := newTestServer(t, testConfig())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/call"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial succeeded without token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("resp=%v", resp)
	}
}

func TestDrainCancelsLiveSessions(t *testing.T) {
	cfg := testConfig()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s := New(cfg, logger, Dependencies{
		Chat:     stubChat{},
		STT:      stubSTT{},
		TTS:      stubTTS{},
		Store:    store.NewMemoryStore(),
		Verifier: auth.NewStaticVerifier(map[string]auth.Principal{"tok_1": {UserID: "user-1"}}),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/call?access_token=tok_1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Sessions().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Sessions().Count() != 1 {
		t.Fatalf("sessions=%d", s.Sessions().Count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Drain(ctx)

	if s.Sessions().Count() != 0 {
		t.Fatalf("sessions=%d after drain", s.Sessions().Count())
	}
}
