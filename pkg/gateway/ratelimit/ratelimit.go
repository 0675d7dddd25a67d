// Package ratelimit implements a fixed-window, multi-granularity request
// limiter keyed by principal. State lives in process memory.
package ratelimit

import (
	"sync"
	"time"
)

// Window is one named fixed window, for example 10 requests per minute.
type Window struct {
	Name string
	Max  int
	Span time.Duration
}

// Config bounds the limiter. Windows are checked in slice order, so put
// the shortest window first for the most useful RetryAfter values.
type Config struct {
	Windows []Window

	// Operational bounds for the in-memory map (single-process only).
	MaxEntries int
	EntryTTL   time.Duration
}

// DefaultWindows is the mentor endpoint policy.
func DefaultWindows() []Window {
	return []Window{
		{Name: "minute", Max: 10, Span: time.Minute},
		{Name: "hour", Max: 100, Span: time.Hour},
		{Name: "day", Max: 500, Span: 24 * time.Hour},
	}
}

type record struct {
	count   int
	expires time.Time
}

type principalState struct {
	windows  map[string]*record
	lastSeen time.Time
}

// Limiter tracks request counts per principal across every configured
// window. Each check increments all windows up to and including the first
// tripped one; tripping a window never resets the others.
type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*principalState
}

// Decision is the outcome of one Check.
type Decision struct {
	Limited    bool
	Window     string
	Max        int
	RetryAfter time.Duration
}

func New(cfg Config) *Limiter {
	if len(cfg.Windows) == 0 {
		cfg.Windows = DefaultWindows()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 48 * time.Hour
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*principalState),
	}
}

// Check records one request for principal and reports whether it tripped
// a window. Counts mutated before the tripped window stay recorded.
func (l *Limiter) Check(principal string, now time.Time) Decision {
	if principal == "" {
		principal = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ps := l.getOrCreateLocked(principal, now)
	ps.lastSeen = now

	for _, w := range l.cfg.Windows {
		rec := ps.windows[w.Name]
		if rec == nil || !rec.expires.After(now) {
			ps.windows[w.Name] = &record{count: 1, expires: now.Add(w.Span)}
			continue
		}

		rec.count++
		if rec.count > w.Max {
			return Decision{
				Limited:    true,
				Window:     w.Name,
				Max:        w.Max,
				RetryAfter: rec.expires.Sub(now),
			}
		}
	}

	return Decision{}
}

func (l *Limiter) getOrCreateLocked(principal string, now time.Time) *principalState {
	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
		// Still full after GC: drop one arbitrary entry.
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	if ps, ok := l.m[principal]; ok {
		return ps
	}
	ps := &principalState{
		windows:  make(map[string]*record, len(l.cfg.Windows)),
		lastSeen: now,
	}
	l.m[principal] = ps
	return ps
}

func (l *Limiter) gcLocked(now time.Time) {
	for k, v := range l.m {
		if now.Sub(v.lastSeen) > l.cfg.EntryTTL {
			delete(l.m, k)
		}
	}
}
