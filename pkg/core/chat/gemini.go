package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"google.golang.org/genai"

	"github.com/pitchdrill/pitchdrill/pkg/core"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider serves completions from the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed chat provider.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	cfg, contents := p.convert(req)
	resp, err := p.client.Models.GenerateContent(ctx, p.modelFor(req), contents, cfg)
	if err != nil {
		return "", classifyGeminiError(p.Name(), err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", core.NewProviderError(p.Name(), 0, errors.New("no candidates in response"))
	}
	return resp.Text(), nil
}

func (p *GeminiProvider) CompleteStream(ctx context.Context, req Request) (Stream, error) {
	cfg, contents := p.convert(req)
	itr := p.client.Models.GenerateContentStream(ctx, p.modelFor(req), contents, cfg)
	next, stop := iter.Pull2(itr)
	return &geminiStream{provider: p.Name(), next: next, stop: stop}, nil
}

func (p *GeminiProvider) modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.model
}

func (p *GeminiProvider) convert(req Request) (*genai.GenerateContentConfig, []*genai.Content) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return cfg, contents
}

type geminiStream struct {
	provider string
	next     func() (*genai.GenerateContentResponse, error, bool)
	stop     func()
}

func (s *geminiStream) Next() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", classifyGeminiError(s.provider, err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		return text, nil
	}
}

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}

func classifyGeminiError(provider string, err error) error {
	var apierr genai.APIError
	if errors.As(err, &apierr) {
		if apierr.Code == 429 {
			return core.NewRateLimitError(provider, 0, err)
		}
		return core.NewProviderError(provider, apierr.Code, err)
	}
	return core.NewProviderError(provider, 0, err)
}
