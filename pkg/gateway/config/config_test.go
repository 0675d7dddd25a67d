package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PITCH_AUTH_MODE", "disabled")
	t.Setenv("PITCH_GROQ_API_KEY", "gsk_test")
	t.Setenv("PITCH_ELEVENLABS_API_KEY", "el_test")
	t.Setenv("PITCH_ELEVENLABS_VOICE_ID", "voice_test")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.ChatBackend != ChatBackendGroq {
		t.Fatalf("ChatBackend=%q", cfg.ChatBackend)
	}
	if cfg.MentorModel != "openai/gpt-oss-20b" {
		t.Fatalf("MentorModel=%q", cfg.MentorModel)
	}
	if cfg.MentorMaxTokens != 2048 {
		t.Fatalf("MentorMaxTokens=%d", cfg.MentorMaxTokens)
	}
	if cfg.LimitPerMinute != 10 || cfg.LimitPerHour != 100 || cfg.LimitPerDay != 500 {
		t.Fatalf("limits=%d/%d/%d", cfg.LimitPerMinute, cfg.LimitPerHour, cfg.LimitPerDay)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL=%q", cfg.DatabaseURL)
	}
	if !cfg.MigrateOnStart {
		t.Fatalf("MigrateOnStart=false")
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod=%v", cfg.ShutdownGracePeriod)
	}
}

func TestLoadFromEnv_InvalidAuthMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PITCH_AUTH_MODE", "maybe")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "PITCH_AUTH_MODE") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadFromEnv_SupabaseRequiresKeys(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PITCH_AUTH_MODE", "supabase")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "PITCH_SUPABASE_PROJECT_REF") {
		t.Fatalf("err=%v", err)
	}

	t.Setenv("PITCH_SUPABASE_PROJECT_REF", "projref")
	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "PITCH_SUPABASE_ANON_KEY") {
		t.Fatalf("err=%v", err)
	}

	t.Setenv("PITCH_SUPABASE_ANON_KEY", "anon")
	if _, err := LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
}

func TestLoadFromEnv_StaticTokens(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PITCH_AUTH_MODE", "static")
	t.Setenv("PITCH_STATIC_TOKENS", "tok_a:user-a, tok_b:user-b")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.StaticTokens["tok_a"] != "user-a" || cfg.StaticTokens["tok_b"] != "user-b" {
		t.Fatalf("StaticTokens=%v", cfg.StaticTokens)
	}
}

func TestLoadFromEnv_StaticTokensMalformed(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PITCH_AUTH_MODE", "static")
	t.Setenv("PITCH_STATIC_TOKENS", "justatoken")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "token:userID") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadFromEnv_GeminiBackendRequiresKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PITCH_CHAT_PROVIDER", "gemini")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "PITCH_GEMINI_API_KEY") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadFromEnv_CORSOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PITCH_CORS_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://app.example.com"]; !ok {
		t.Fatalf("origins=%v", cfg.CORSAllowedOrigins)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("origins=%v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFromEnv_BadNumbersFallBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PITCH_LIMIT_PER_MINUTE", "not-a-number")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.LimitPerMinute != 10 {
		t.Fatalf("LimitPerMinute=%d", cfg.LimitPerMinute)
	}
}

func TestLoadFromEnv_ZeroLimitRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PITCH_LIMIT_PER_DAY", "0")

	if _, err := LoadFromEnv(); err == nil || !strings.Contains(err.Error(), "PITCH_LIMIT_PER_DAY") {
		t.Fatalf("err=%v", err)
	}
}
