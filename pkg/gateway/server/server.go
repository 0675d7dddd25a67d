// Package server wires the route table and middleware chain.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/stt"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/tts"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/auth"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/config"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/handlers"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/live/sessions"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/mw"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/ratelimit"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

// Dependencies carries everything the route handlers need.
type Dependencies struct {
	Chat     chat.Provider
	STT      stt.Provider
	TTS      tts.Provider
	Store    store.Store
	Verifier auth.Verifier
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	deps     Dependencies
	limiter  *ratelimit.Limiter
	sessions *sessions.Tracker
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		deps:   deps,
		limiter: ratelimit.New(ratelimit.Config{
			Windows: []ratelimit.Window{
				{Name: "minute", Max: cfg.LimitPerMinute, Span: time.Minute},
				{Name: "hour", Max: cfg.LimitPerHour, Span: time.Hour},
				{Name: "day", Max: cfg.LimitPerDay, Span: 24 * time.Hour},
			},
		}),
		sessions: sessions.NewTracker(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})

	var pinger handlers.Pinger
	if p, ok := s.deps.Store.(handlers.Pinger); ok {
		pinger = p
	}
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Store: pinger})

	s.mux.Handle("/v1/call", handlers.LiveHandler{
		Config:        s.cfg,
		Logger:        s.logger.With("component", "live"),
		Chat:          s.deps.Chat,
		STT:           s.deps.STT,
		TTS:           s.deps.TTS,
		Conversations: s.deps.Store,
		Sessions:      s.sessions,
	})

	s.mux.Handle("/v1/mentor", handlers.MentorHandler{
		Config: s.cfg,
		Logger: s.logger.With("component", "mentor"),
		Chat:   s.deps.Chat,
		Store:  s.deps.Store,
	})

	s.mux.Handle("/v1/conversations", handlers.ConversationsHandler{
		Conversations: s.deps.Store,
	})

	lessonsHandler := handlers.LessonsHandler{
		Config:        s.cfg,
		Logger:        s.logger.With("component", "lessons"),
		Chat:          s.deps.Chat,
		Conversations: s.deps.Store,
	}
	s.mux.Handle("/v1/lessons", lessonsHandler)
	s.mux.Handle("/v1/lessons/", lessonsHandler)

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.RateLimit(s.limiter, h)
	h = mw.Auth(s.cfg, s.deps.Verifier, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Drain warns live call sessions, then cancels whatever is still
// connected and waits for them to unwind or the context to expire.
func (s *Server) Drain(ctx context.Context) {
	if n := s.sessions.NotifyAll("The server is restarting. Please reconnect in a moment."); n > 0 {
		s.logger.Info("notified live sessions", "count", n)
	}
	if n := s.sessions.CancelAll(); n > 0 {
		s.logger.Info("canceled live sessions", "count", n)
	}
	if !s.sessions.Wait(ctx) {
		s.logger.Warn("live sessions still open after drain deadline", "count", s.sessions.Count())
	}
}

// Sessions exposes the tracker, mainly for tests.
func (s *Server) Sessions() *sessions.Tracker {
	return s.sessions
}
