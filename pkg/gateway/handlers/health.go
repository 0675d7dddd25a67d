package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pitchdrill/pitchdrill/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ReadyHandler struct {
	Config config.Config
	Store  Pinger
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		AuthMode string   `json:"auth_mode"`
		Backend  string   `json:"chat_backend"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.AuthMode {
	case config.AuthModeSupabase, config.AuthModeStatic, config.AuthModeDisabled:
	default:
		issues = append(issues, "invalid auth_mode")
	}
	switch h.Config.ChatBackend {
	case config.ChatBackendGroq, config.ChatBackendGemini:
	default:
		issues = append(issues, "invalid chat backend")
	}
	if h.Config.LimitPerMinute <= 0 || h.Config.LimitPerHour <= 0 || h.Config.LimitPerDay <= 0 {
		issues = append(issues, "rate limit windows must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 || h.Config.HandlerTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}

	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			issues = append(issues, "store unreachable")
		}
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, readyResp{
		OK:       ok,
		AuthMode: string(h.Config.AuthMode),
		Backend:  string(h.Config.ChatBackend),
		Issues:   issues,
	})
}
