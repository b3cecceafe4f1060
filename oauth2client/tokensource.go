package oauth2client

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx    context.Context
	client *Client
	scopes []string
}

// TokenSource adapts the client to oauth2.TokenSource for the given scopes, so it can back
// oauth2.NewClient, oauth2.Transport or gRPC's oauth per-RPC credentials.
// Caching stays with the client; wrapping the result in oauth2.ReuseTokenSource is unnecessary.
func (c *Client) TokenSource(ctx context.Context, scopes ...string) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return &tokenSource{ctx: ctx, client: c, scopes: scopes}
}

// Token implements oauth2.TokenSource.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	entry, err := ts.client.Authenticate(ts.ctx, ts.scopes)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: entry.Token,
		TokenType:   "Bearer",
		Expiry:      entry.Expires,
	}, nil
}
