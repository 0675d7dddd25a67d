package ratelimit

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Windows: []Window{
			{Name: "minute", Max: 3, Span: time.Minute},
			{Name: "hour", Max: 5, Span: time.Hour},
		},
	}
}

func TestCheckAllowsUpToWindowMax(t *testing.T) {
	l := New(testConfig())
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if d := l.Check("u1", now); d.Limited {
			t.Fatalf("request %d limited", i+1)
		}
	}
	d := l.Check("u1", now)
	if !d.Limited {
		t.Fatalf("fourth request should be limited")
	}
	if d.Window != "minute" {
		t.Fatalf("window=%s", d.Window)
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("retryAfter=%v", d.RetryAfter)
	}
}

func TestCheckPersistsIncrements(t *testing.T) {
	// A fresh window record must survive to the next check; otherwise the
	// count stays at 1 forever and the limiter never trips.
	l := New(testConfig())
	now := time.Unix(1000, 0)

	l.Check("u1", now)
	l.Check("u1", now.Add(time.Second))
	l.Check("u1", now.Add(2*time.Second))
	if d := l.Check("u1", now.Add(3*time.Second)); !d.Limited {
		t.Fatalf("increments were lost between checks")
	}
}

func TestWindowExpiryResets(t *testing.T) {
	l := New(testConfig())
	now := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		l.Check("u1", now)
	}
	if d := l.Check("u1", now); !d.Limited {
		t.Fatalf("expected limit before expiry")
	}

	later := now.Add(time.Minute + time.Second)
	if d := l.Check("u1", later); d.Limited {
		t.Fatalf("expected reset after minute window expired")
	}
}

func TestLongerWindowStillTrips(t *testing.T) {
	l := New(testConfig())
	now := time.Unix(1000, 0)

	// Spread requests so the minute window keeps resetting while the hour
	// window accumulates.
	for i := 0; i < 5; i++ {
		if d := l.Check("u1", now.Add(time.Duration(i)*2*time.Minute)); d.Limited {
			t.Fatalf("request %d limited early", i+1)
		}
	}
	d := l.Check("u1", now.Add(10*2*time.Minute))
	if !d.Limited {
		t.Fatalf("hour window should trip")
	}
	if d.Window != "hour" {
		t.Fatalf("window=%s", d.Window)
	}
}

func TestPrincipalsAreIndependent(t *testing.T) {
	l := New(testConfig())
	now := time.Unix(1000, 0)

	for i := 0; i < 4; i++ {
		l.Check("u1", now)
	}
	if d := l.Check("u2", now); d.Limited {
		t.Fatalf("u2 should not inherit u1's counts")
	}
}

func TestGCBoundsEntries(t *testing.T) {
	l := New(Config{
		Windows:    []Window{{Name: "minute", Max: 3, Span: time.Minute}},
		MaxEntries: 2,
		EntryTTL:   time.Minute,
	})
	now := time.Unix(1000, 0)

	l.Check("a", now)
	l.Check("b", now)
	l.Check("c", now.Add(2*time.Minute))

	l.mu.Lock()
	n := len(l.m)
	l.mu.Unlock()
	if n > 2 {
		t.Fatalf("entries=%d want <=2", n)
	}
}
