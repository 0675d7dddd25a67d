package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pitchdrill/pitchdrill/pkg/core"
)

const (
	groqBaseURL      = "https://api.groq.com/openai/v1"
	defaultGroqModel = "llama-3.3-70b-versatile"
)

// GroqProvider serves completions from Groq's OpenAI-compatible API.
type GroqProvider struct {
	client openai.Client
	model  string
}

// GroqOption customizes a GroqProvider.
type GroqOption func(*groqOptions)

type groqOptions struct {
	baseURL string
	model   string
}

// WithGroqBaseURL overrides the API base URL. Used by tests.
func WithGroqBaseURL(u string) GroqOption {
	return func(o *groqOptions) { o.baseURL = u }
}

// WithGroqModel overrides the default model.
func WithGroqModel(model string) GroqOption {
	return func(o *groqOptions) { o.model = model }
}

// NewGroq creates a Groq-backed chat provider.
func NewGroq(apiKey string, opts ...GroqOption) *GroqProvider {
	o := groqOptions{baseURL: groqBaseURL, model: defaultGroqModel}
	for _, opt := range opts {
		opt(&o)
	}
	return &GroqProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(o.baseURL),
		),
		model: o.model,
	}
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return "", classifyOpenAIError(p.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", core.NewProviderError(p.Name(), 0, errors.New("no choices in completion response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *GroqProvider) CompleteStream(ctx context.Context, req Request) (Stream, error) {
	s := p.client.Chat.Completions.NewStreaming(ctx, p.params(req))
	if err := s.Err(); err != nil {
		return nil, classifyOpenAIError(p.Name(), err)
	}
	return &groqStream{provider: p.Name(), inner: s}, nil
}

func (p *GroqProvider) params(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}

type groqStream struct {
	provider string
	inner    interface {
		Next() bool
		Current() openai.ChatCompletionChunk
		Err() error
		Close() error
	}
}

func (s *groqStream) Next() (string, error) {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		return delta, nil
	}
	if err := s.inner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return "", classifyOpenAIError(s.provider, err)
	}
	return "", io.EOF
}

func (s *groqStream) Close() error { return s.inner.Close() }

// classifyOpenAIError maps openai-go transport errors onto the shared
// taxonomy. Anything without a recognizable status code counts as a
// provider internal failure.
func classifyOpenAIError(provider string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 429 {
			return core.NewRateLimitError(provider, retryAfterFrom(apierr), err)
		}
		return core.NewProviderError(provider, apierr.StatusCode, err)
	}
	return core.NewProviderError(provider, 0, fmt.Errorf("request failed: %w", err))
}

func retryAfterFrom(apierr *openai.Error) time.Duration {
	if apierr == nil || apierr.Response == nil {
		return 0
	}
	if v := apierr.Response.Header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return d
		}
	}
	return 0
}
