// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeSupabase AuthMode = "supabase"
	AuthModeStatic   AuthMode = "static"
	AuthModeDisabled AuthMode = "disabled"
)

type ChatBackend string

const (
	ChatBackendGroq   ChatBackend = "groq"
	ChatBackendGemini ChatBackend = "gemini"
)

type Config struct {
	Addr string

	AuthMode           AuthMode
	SupabaseProjectRef string
	SupabaseAPIKey     string
	// StaticTokens maps access tokens to user ids for AuthModeStatic,
	// parsed from token:userID pairs.
	StaticTokens map[string]string

	// If true, client identity may be derived from proxy headers like
	// X-Forwarded-For. Enable only behind a trusted proxy/LB.
	TrustProxyHeaders bool

	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Chat backend.
	ChatBackend ChatBackend
	GroqAPIKey  string
	GroqBaseURL string
	ChatModel   string

	GeminiAPIKey string
	GeminiModel  string

	// Mentor endpoint model settings.
	MentorModel       string
	MentorMaxTokens   int
	MentorTemperature float64

	// Speech providers.
	WhisperModel      string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	TTSLanguage       string

	// Persistence. Empty DatabaseURL selects the in-memory store.
	DatabaseURL    string
	MigrateOnStart bool

	// Per-user request quotas.
	LimitPerMinute int
	LimitPerHour   int
	LimitPerDay    int

	// Live call session.
	LiveMaxAudioBufferBytes int
	LiveProviderTimeout     time.Duration
	LiveWSWriteTimeout      time.Duration
	LiveMaxTokens           int

	// HTTP body cap for JSON endpoints.
	MaxBodyBytes int64

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                    envOr("PITCH_ADDR", ":8080"),
		AuthMode:                AuthMode(envOr("PITCH_AUTH_MODE", string(AuthModeSupabase))),
		SupabaseProjectRef:      envOr("PITCH_SUPABASE_PROJECT_REF", ""),
		SupabaseAPIKey:          envOr("PITCH_SUPABASE_ANON_KEY", ""),
		StaticTokens:            make(map[string]string),
		TrustProxyHeaders:       envBoolOr("PITCH_TRUST_PROXY_HEADERS", false),
		CORSAllowedOrigins:      make(map[string]struct{}),
		ChatBackend:             ChatBackend(envOr("PITCH_CHAT_PROVIDER", string(ChatBackendGroq))),
		GroqAPIKey:              envOr("PITCH_GROQ_API_KEY", ""),
		GroqBaseURL:             envOr("PITCH_GROQ_BASE_URL", ""),
		ChatModel:               envOr("PITCH_CHAT_MODEL", ""),
		GeminiAPIKey:            envOr("PITCH_GEMINI_API_KEY", ""),
		GeminiModel:             envOr("PITCH_GEMINI_MODEL", ""),
		MentorModel:             envOr("PITCH_MENTOR_MODEL", "openai/gpt-oss-20b"),
		MentorMaxTokens:         envIntOr("PITCH_MENTOR_MAX_TOKENS", 2048),
		MentorTemperature:       envFloat64Or("PITCH_MENTOR_TEMPERATURE", 0.7),
		WhisperModel:            envOr("PITCH_WHISPER_MODEL", ""),
		ElevenLabsAPIKey:        envOr("PITCH_ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:       envOr("PITCH_ELEVENLABS_VOICE_ID", ""),
		TTSLanguage:             envOr("PITCH_TTS_LANGUAGE", "en"),
		DatabaseURL:             envOr("PITCH_DATABASE_URL", ""),
		MigrateOnStart:          envBoolOr("PITCH_MIGRATE_ON_START", true),
		LimitPerMinute:          envIntOr("PITCH_LIMIT_PER_MINUTE", 10),
		LimitPerHour:            envIntOr("PITCH_LIMIT_PER_HOUR", 100),
		LimitPerDay:             envIntOr("PITCH_LIMIT_PER_DAY", 500),
		LiveMaxAudioBufferBytes: envIntOr("PITCH_LIVE_MAX_AUDIO_BUFFER_BYTES", 8<<20),
		LiveProviderTimeout:     envDurationOr("PITCH_LIVE_PROVIDER_TIMEOUT", 30*time.Second),
		LiveWSWriteTimeout:      envDurationOr("PITCH_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveMaxTokens:           envIntOr("PITCH_LIVE_MAX_TOKENS", 512),
		MaxBodyBytes:            envInt64Or("PITCH_MAX_BODY_BYTES", 1<<20),
		ReadHeaderTimeout:       envDurationOr("PITCH_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:             envDurationOr("PITCH_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:          envDurationOr("PITCH_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:     envDurationOr("PITCH_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeSupabase, AuthModeStatic, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("PITCH_AUTH_MODE must be one of supabase|static|disabled")
	}

	switch cfg.ChatBackend {
	case ChatBackendGroq, ChatBackendGemini:
	default:
		return Config{}, fmt.Errorf("PITCH_CHAT_PROVIDER must be one of groq|gemini")
	}

	for _, pair := range splitCSV(os.Getenv("PITCH_STATIC_TOKENS")) {
		token, userID, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(token) == "" || strings.TrimSpace(userID) == "" {
			return Config{}, fmt.Errorf("PITCH_STATIC_TOKENS entries must be token:userID pairs")
		}
		cfg.StaticTokens[strings.TrimSpace(token)] = strings.TrimSpace(userID)
	}

	for _, origin := range splitCSV(os.Getenv("PITCH_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.AuthMode == AuthModeSupabase {
		if cfg.SupabaseProjectRef == "" {
			return Config{}, fmt.Errorf("PITCH_SUPABASE_PROJECT_REF must be set when PITCH_AUTH_MODE=supabase")
		}
		if cfg.SupabaseAPIKey == "" {
			return Config{}, fmt.Errorf("PITCH_SUPABASE_ANON_KEY must be set when PITCH_AUTH_MODE=supabase")
		}
	}
	if cfg.AuthMode == AuthModeStatic && len(cfg.StaticTokens) == 0 {
		return Config{}, fmt.Errorf("PITCH_STATIC_TOKENS must be set when PITCH_AUTH_MODE=static")
	}

	if cfg.ChatBackend == ChatBackendGroq && cfg.GroqAPIKey == "" {
		return Config{}, fmt.Errorf("PITCH_GROQ_API_KEY must be set when PITCH_CHAT_PROVIDER=groq")
	}
	if cfg.ChatBackend == ChatBackendGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("PITCH_GEMINI_API_KEY must be set when PITCH_CHAT_PROVIDER=gemini")
	}
	// Whisper transcription goes through the same Groq account.
	if cfg.GroqAPIKey == "" {
		return Config{}, fmt.Errorf("PITCH_GROQ_API_KEY must be set for transcription")
	}
	if cfg.ElevenLabsAPIKey == "" {
		return Config{}, fmt.Errorf("PITCH_ELEVENLABS_API_KEY must be set")
	}
	if cfg.ElevenLabsVoiceID == "" {
		return Config{}, fmt.Errorf("PITCH_ELEVENLABS_VOICE_ID must be set")
	}

	if cfg.MentorMaxTokens <= 0 {
		return Config{}, fmt.Errorf("PITCH_MENTOR_MAX_TOKENS must be > 0")
	}
	if cfg.MentorTemperature < 0 || cfg.MentorTemperature > 2 {
		return Config{}, fmt.Errorf("PITCH_MENTOR_TEMPERATURE must be within [0, 2]")
	}
	if cfg.LimitPerMinute <= 0 {
		return Config{}, fmt.Errorf("PITCH_LIMIT_PER_MINUTE must be > 0")
	}
	if cfg.LimitPerHour <= 0 {
		return Config{}, fmt.Errorf("PITCH_LIMIT_PER_HOUR must be > 0")
	}
	if cfg.LimitPerDay <= 0 {
		return Config{}, fmt.Errorf("PITCH_LIMIT_PER_DAY must be > 0")
	}
	if cfg.LiveMaxAudioBufferBytes <= 0 {
		return Config{}, fmt.Errorf("PITCH_LIVE_MAX_AUDIO_BUFFER_BYTES must be > 0")
	}
	if cfg.LiveProviderTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCH_LIVE_PROVIDER_TIMEOUT must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCH_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveMaxTokens <= 0 {
		return Config{}, fmt.Errorf("PITCH_LIVE_MAX_TOKENS must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("PITCH_MAX_BODY_BYTES must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCH_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCH_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCH_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("PITCH_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
