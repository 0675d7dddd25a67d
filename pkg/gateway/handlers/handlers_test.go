package handlers

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/auth"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/config"
)

// testConfig is a minimal valid config for handler tests.
func testConfig() config.Config {
	return config.Config{
		AuthMode:          config.AuthModeDisabled,
		ChatBackend:       config.ChatBackendGroq,
		MentorModel:       "openai/gpt-oss-20b",
		MentorMaxTokens:   2048,
		MentorTemperature: 0.7,
		LimitPerMinute:    10,
		LimitPerHour:      100,
		LimitPerDay:       500,
		MaxBodyBytes:      1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		HandlerTimeout:    2 * time.Minute,
	}
}

// withPrincipal wraps a handler the way the auth middleware would.
func withPrincipal(userID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := &auth.Principal{UserID: userID}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

type scriptedChat struct {
	mu     sync.Mutex
	reply  string
	chunks []string
	err    error
	reqs   []chat.Request
}

func (f *scriptedChat) Name() string { return "scripted" }

func (f *scriptedChat) Complete(ctx context.Context, req chat.Request) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *scriptedChat) CompleteStream(ctx context.Context, req chat.Request) (chat.Stream, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &scriptedStream{chunks: f.chunks}, nil
}

func (f *scriptedChat) requests() []chat.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.Request(nil), f.reqs...)
}

type scriptedStream struct {
	chunks []string
	pos    int
}

func (s *scriptedStream) Next() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *scriptedStream) Close() error { return nil }
