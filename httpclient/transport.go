package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
)

// TokenProvider supplies bearer tokens for a scope set. *oauth2client.Client satisfies it.
type TokenProvider interface {
	AccessToken(ctx context.Context, scopes []string) (string, error)
}

// ServiceAccountTransport is an http.RoundTripper that adds a service account
// Bearer token to every outgoing request.
type ServiceAccountTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Tokens provides access tokens.
	Tokens TokenProvider

	// Scopes are requested for every token.
	Scopes []string
}

// RoundTrip implements http.RoundTripper.
// The token fetch respects the request context's cancellation and deadline.
func (t *ServiceAccountTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Tokens == nil {
		return nil, errors.New("httpclient: token provider is nil")
	}

	token, err := t.Tokens.AccessToken(req.Context(), t.Scopes)
	if err != nil {
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+token)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(reqClone)
}

// NewServiceAccountTransport wraps base so requests carry tokens for scopes.
// The base transport defaults to http.DefaultTransport if nil.
func NewServiceAccountTransport(tokens TokenProvider, base http.RoundTripper, scopes ...string) *ServiceAccountTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &ServiceAccountTransport{
		Base:   base,
		Tokens: tokens,
		Scopes: slices.Clone(scopes),
	}
}
