package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pitchdrill/pitchdrill/pkg/core"
)

const (
	elevenLabsDefaultBaseURL = "https://api.elevenlabs.io"
	elevenLabsDefaultModel   = "eleven_turbo_v2_5"
	elevenLabsDefaultFormat  = "mp3_44100_128"
)

// ElevenLabsProvider synthesizes speech through the ElevenLabs REST API.
type ElevenLabsProvider struct {
	apiKey     string
	modelID    string
	baseURL    string
	httpClient *http.Client
}

// NewElevenLabs creates an ElevenLabs provider with a default HTTP client.
func NewElevenLabs(apiKey string) *ElevenLabsProvider {
	return NewElevenLabsWithClient(apiKey, nil)
}

// NewElevenLabsWithClient creates an ElevenLabs provider with a caller-owned
// HTTP client. Tests pass a client pointed at a fake server.
func NewElevenLabsWithClient(apiKey string, client *http.Client) *ElevenLabsProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &ElevenLabsProvider{
		apiKey:     strings.TrimSpace(apiKey),
		modelID:    elevenLabsDefaultModel,
		baseURL:    elevenLabsDefaultBaseURL,
		httpClient: client,
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (e *ElevenLabsProvider) WithBaseURL(base string) *ElevenLabsProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		e.baseURL = strings.TrimSuffix(base, "/")
	}
	return e
}

// WithModel overrides the synthesis model.
func (e *ElevenLabsProvider) WithModel(modelID string) *ElevenLabsProvider {
	if modelID != "" {
		e.modelID = modelID
	}
	return e
}

func (e *ElevenLabsProvider) Name() string {
	return "elevenlabs"
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	LanguageCode  string             `json:"language_code,omitempty"`
	VoiceSettings *elevenLabsVoiceWT `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceWT struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if e.apiKey == "" {
		return nil, core.NewProviderError(e.Name(), 0, fmt.Errorf("api key is required"))
	}
	voiceID := strings.TrimSpace(opts.Voice)
	if voiceID == "" {
		return nil, core.NewProviderError(e.Name(), 0, fmt.Errorf("voice id is required"))
	}
	format := opts.Format
	if format == "" {
		format = elevenLabsDefaultFormat
	}

	payload := elevenLabsRequest{
		Text:         text,
		ModelID:      e.modelID,
		LanguageCode: opts.Language,
		VoiceSettings: &elevenLabsVoiceWT{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Speed:           opts.Speed,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, core.NewProviderError(e.Name(), 0, fmt.Errorf("encode request: %w", err))
	}

	u := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", e.baseURL, voiceID, format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, core.NewProviderError(e.Name(), 0, err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, core.NewProviderError(e.Name(), 0, fmt.Errorf("synthesis request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		cause := fmt.Errorf("elevenlabs error %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, core.NewRateLimitError(e.Name(), 0, cause)
		}
		return nil, core.NewProviderError(e.Name(), resp.StatusCode, cause)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError(e.Name(), 0, fmt.Errorf("read synthesis body: %w", err))
	}
	return &Synthesis{Audio: audio, Format: format}, nil
}
