package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pitchdrill/pitchdrill/pkg/core"
)

const (
	groqBaseURL         = "https://api.groq.com/openai/v1"
	defaultWhisperModel = "whisper-large-v3"
)

// WhisperProvider transcribes audio through an OpenAI-compatible Whisper
// endpoint. The default target is Groq's hosted whisper-large-v3.
type WhisperProvider struct {
	client openai.Client
	model  string
}

// WhisperOption customizes a WhisperProvider.
type WhisperOption func(*whisperOptions)

type whisperOptions struct {
	baseURL string
	model   string
}

// WithWhisperBaseURL overrides the API base URL. Used by tests.
func WithWhisperBaseURL(u string) WhisperOption {
	return func(o *whisperOptions) { o.baseURL = u }
}

// WithWhisperModel overrides the default model.
func WithWhisperModel(model string) WhisperOption {
	return func(o *whisperOptions) { o.model = model }
}

// NewWhisper creates a Whisper-backed transcription provider.
func NewWhisper(apiKey string, opts ...WhisperOption) *WhisperProvider {
	o := whisperOptions{baseURL: groqBaseURL, model: defaultWhisperModel}
	for _, opt := range opts {
		opt(&o)
	}
	return &WhisperProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(o.baseURL),
		),
		model: o.model,
	}
}

func (p *WhisperProvider) Name() string { return "whisper" }

func (p *WhisperProvider) Transcribe(ctx context.Context, audio []byte, opts TranscribeOptions) (*Transcript, error) {
	if len(audio) == 0 {
		return nil, core.NewEmptyInputError(p.Name(), errors.New("empty recording"))
	}

	model := opts.Model
	if model == "" {
		model = p.model
	}
	format := opts.Format
	if format == "" {
		format = "webm"
	}

	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(model),
		File:  openai.File(bytes.NewReader(audio), "recording."+format, "audio/"+format),
	}
	if opts.Language != "" {
		params.Language = openai.String(opts.Language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, p.classify(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, core.NewEmptyInputError(p.Name(), errors.New("transcription returned no text"))
	}
	return &Transcript{Text: text, Language: opts.Language}, nil
}

// classify maps upstream failures onto the shared taxonomy. Whisper rejects
// recordings it considers too short with a 400, which counts as empty input
// rather than an internal failure.
func (p *WhisperProvider) classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return core.NewRateLimitError(p.Name(), 0, err)
		case apierr.StatusCode == 400 && strings.Contains(strings.ToLower(apierr.Message), "short"):
			return core.NewEmptyInputError(p.Name(), err)
		case apierr.StatusCode == 400 && strings.Contains(strings.ToLower(apierr.Message), "audio"):
			return core.NewEmptyInputError(p.Name(), err)
		default:
			return core.NewProviderError(p.Name(), apierr.StatusCode, err)
		}
	}
	return core.NewProviderError(p.Name(), 0, fmt.Errorf("transcription request failed: %w", err))
}
