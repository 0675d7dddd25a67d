// Package auth resolves the caller behind a request. Tokens are Supabase
// access tokens verified against the project's GoTrue endpoint.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/supabase-community/gotrue-go"

	"github.com/pitchdrill/pitchdrill/pkg/core"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// TokenFromRequest extracts the access token. The Authorization header
// wins; browser websocket clients cannot set headers, so the
// access_token query parameter and the sb-access-token cookie are
// accepted as fallbacks.
func TokenFromRequest(r *http.Request) (string, bool) {
	if token, ok := ParseBearer(r); ok {
		return token, true
	}
	if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
		return token, true
	}
	if c, err := r.Cookie("sb-access-token"); err == nil {
		if token := strings.TrimSpace(c.Value); token != "" {
			return token, true
		}
	}
	return "", false
}

func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// Verifier turns an access token into a principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// SupabaseVerifier validates tokens by asking GoTrue who they belong to.
type SupabaseVerifier struct {
	client gotrue.Client
}

// NewSupabaseVerifier builds a verifier for the given project reference
// and anon API key.
func NewSupabaseVerifier(projectRef, apiKey string) (*SupabaseVerifier, error) {
	if projectRef == "" {
		return nil, core.NewValidationError("supabase project reference is required", "projectRef")
	}
	if apiKey == "" {
		return nil, core.NewValidationError("supabase api key is required", "apiKey")
	}
	return &SupabaseVerifier{client: gotrue.New(projectRef, apiKey)}, nil
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, core.NewAuthenticationError("missing access token")
	}

	type result struct {
		p   *Principal
		err error
	}
	ch := make(chan result, 1)
	go func() {
		user, err := v.client.WithToken(token).GetUser()
		if err != nil {
			ch <- result{err: core.NewAuthenticationError("invalid or expired access token")}
			return
		}
		ch <- result{p: &Principal{UserID: user.ID.String(), Email: user.Email}}
	}()

	select {
	case <-ctx.Done():
		return nil, core.NewAuthenticationError("token verification canceled")
	case res := <-ch:
		return res.p, res.err
	}
}

// StaticVerifier maps fixed tokens to principals. Used in development
// mode and tests.
type StaticVerifier struct {
	principals map[string]Principal
}

func NewStaticVerifier(principals map[string]Principal) *StaticVerifier {
	cp := make(map[string]Principal, len(principals))
	for token, p := range principals {
		cp[token] = p
	}
	return &StaticVerifier{principals: cp}
}

func (v *StaticVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	p, ok := v.principals[token]
	if !ok {
		return nil, core.NewAuthenticationError("invalid or expired access token")
	}
	return &p, nil
}

// AnonymousVerifier accepts every request as one shared local user.
// Only for running without an identity provider.
type AnonymousVerifier struct{}

func (AnonymousVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	return &Principal{UserID: "local"}, nil
}
