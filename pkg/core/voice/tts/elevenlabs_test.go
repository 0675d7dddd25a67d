package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pitchdrill/pitchdrill/pkg/core"
)

func TestElevenLabsSynthesize(t *testing.T) {
	audio := []byte{0xff, 0xf3, 0x01, 0x02}
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	p := NewElevenLabsWithClient("el_test", srv.Client()).WithBaseURL(srv.URL)
	syn, err := p.Synthesize(context.Background(), "Hello there.", SynthesizeOptions{Voice: "voice_1"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(syn.Audio, audio) {
		t.Fatalf("audio=%v", syn.Audio)
	}
	if !strings.HasSuffix(gotPath, "/v1/text-to-speech/voice_1") {
		t.Fatalf("path=%s", gotPath)
	}
	if gotKey != "el_test" {
		t.Fatalf("api key=%q", gotKey)
	}
	if gotBody["text"] != "Hello there." {
		t.Fatalf("text=%v", gotBody["text"])
	}
}

func TestElevenLabsSynthesizeRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail":{"status":"too_many_concurrent_requests"}}`))
	}))
	defer srv.Close()

	p := NewElevenLabsWithClient("el_test", srv.Client()).WithBaseURL(srv.URL)
	_, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{Voice: "voice_1"})
	if got := core.TypeOf(err); got != core.ErrRateLimit {
		t.Fatalf("type=%v want %v (err=%v)", got, core.ErrRateLimit, err)
	}
}

func TestElevenLabsSynthesizeRequiresVoice(t *testing.T) {
	p := NewElevenLabs("el_test")
	_, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{})
	if err == nil {
		t.Fatalf("expected error for missing voice")
	}
}
