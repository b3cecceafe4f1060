package oauth2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/AmmannChristian/go-saauth/assertion"
	"github.com/AmmannChristian/go-saauth/serviceaccount"
	"github.com/AmmannChristian/go-saauth/signer"
	"github.com/AmmannChristian/go-saauth/tokencache"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenURL is the token endpoint, and assertion audience, used unless WithTokenURL is set.
	DefaultTokenURL = "https://www.googleapis.com/oauth2/v4/token"

	// GrantType is the RFC 7523 JWT-bearer grant.
	GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// DefaultExpiryThreshold is how long before expiry a cached token stops being handed out.
	DefaultExpiryThreshold = 60 * time.Second

	// DefaultTimeout bounds a single token exchange.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// TokenEntry is an access token together with its expiry.
type TokenEntry = tokencache.Entry

// Client obtains access tokens for one service account with the JWT-bearer grant.
//
// Tokens are cached per scope set and reused until they come within the expiry threshold.
// Concurrent callers needing the same scope set share a single exchange. Client is safe for
// concurrent use.
type Client struct {
	creds           serviceaccount.Credentials
	signer          assertion.Signer
	httpClient      Doer
	cache           tokencache.Cache
	clock           Clock
	tokenURL        string
	expiryThreshold time.Duration
	timeout         time.Duration
	logger          Logger // optional logger

	flight singleflight.Group
}

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	Assertion string `json:"assertion"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// New creates a client for creds.
//
// Unless WithSigner is given, the private key is imported here; malformed key material is
// reported as a *signer.KeyImportError.
func New(creds serviceaccount.Credentials, opts ...Option) (*Client, error) {
	if creds.ClientEmail == "" {
		return nil, errors.New("oauth2client: client_email is required")
	}

	c := &Client{
		creds:           creds,
		tokenURL:        DefaultTokenURL,
		expiryThreshold: DefaultExpiryThreshold,
		timeout:         DefaultTimeout,
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.cache == nil {
		c.cache = tokencache.NewMemory()
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.tokenURL == "" {
		return nil, errors.New("oauth2client: token URL is required")
	}

	if c.signer == nil {
		key, err := signer.ExtractKey(creds.PrivateKey)
		if err != nil {
			return nil, err
		}
		c.signer = key
	}

	return c, nil
}

// Email returns the service account the client authenticates as.
func (c *Client) Email() string {
	return c.creds.ClientEmail
}

// Authenticate returns a token for scopes, exchanging a fresh assertion when the cached one is
// missing or within the expiry threshold.
//
// The exchange itself is detached from ctx cancellation so that other callers waiting on the same
// scope set are unaffected; it is bounded by the client timeout instead. Authenticate returns
// ctx.Err() as soon as ctx is done.
//
// Returns:
//   - TokenEntry: the access token and its expiry
//   - error: *AuthError when the endpoint rejects the assertion, otherwise the transport or decoding error
func (c *Client) Authenticate(ctx context.Context, scopes []string) (TokenEntry, error) {
	// Use background context if nil
	if ctx == nil {
		ctx = context.Background()
	}

	// Fast path: fresh cached token, no network
	if entry, ok := c.cached(scopes); ok {
		return entry, nil
	}

	if err := ctx.Err(); err != nil {
		return TokenEntry{}, err
	}

	scopes = slices.Clone(scopes)
	exchangeCtx := context.WithoutCancel(ctx)
	key := tokencache.Key(c.creds.ClientEmail, scopes)

	results := c.flight.DoChan(key, func() (any, error) {
		// Double-check: a flight that just finished may have stored a fresh token.
		if entry, ok := c.cached(scopes); ok {
			return entry, nil
		}
		return c.exchange(exchangeCtx, scopes)
	})

	select {
	case <-ctx.Done():
		return TokenEntry{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return TokenEntry{}, res.Err
		}
		return res.Val.(TokenEntry), nil
	}
}

// AccessToken is Authenticate reduced to the bearer token string.
func (c *Client) AccessToken(ctx context.Context, scopes []string) (string, error) {
	entry, err := c.Authenticate(ctx, scopes)
	if err != nil {
		return "", err
	}
	return entry.Token, nil
}

// cached returns the stored entry for scopes if it is still usable.
func (c *Client) cached(scopes []string) (TokenEntry, bool) {
	entry, ok := c.cache.Get(c.creds.ClientEmail, scopes)
	if !ok {
		return TokenEntry{}, false
	}
	if !c.clock.Now().Before(entry.Expires.Add(-c.expiryThreshold)) {
		return TokenEntry{}, false
	}
	return entry, true
}

// exchange mints an assertion, trades it for an access token and caches the result.
func (c *Client) exchange(ctx context.Context, scopes []string) (TokenEntry, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	signed, err := assertion.Build(c.creds, scopes, c.tokenURL, c.clock.Now(), c.signer)
	if err != nil {
		return TokenEntry{}, fmt.Errorf("oauth2client: %w", err)
	}

	payload, err := json.Marshal(tokenRequest{GrantType: GrantType, Assertion: signed})
	if err != nil {
		return TokenEntry{}, fmt.Errorf("oauth2client: encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return TokenEntry{}, fmt.Errorf("oauth2client: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return TokenEntry{}, fmt.Errorf("oauth2client: token request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return TokenEntry{}, fmt.Errorf("oauth2client: read token response: %w", err)
	}

	entry, err := parseTokenResponse(resp.StatusCode, body, c.clock.Now())
	if err != nil {
		return TokenEntry{}, err
	}

	c.cache.Set(c.creds.ClientEmail, scopes, entry)

	// Log only if logger is configured
	if c.logger != nil {
		c.logger.Printf("oauth2client: obtained new access token for %s (expires: %s)",
			c.creds.ClientEmail, entry.Expires.Format(time.RFC3339))
	}

	return entry, nil
}

// parseTokenResponse applies the token endpoint validation policy to a response body.
func parseTokenResponse(status int, body []byte, received time.Time) (TokenEntry, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return TokenEntry{}, fmt.Errorf("oauth2client: decode token response (status %d): %w", status, err)
	}

	obj, ok := data.(map[string]any)
	if !ok {
		return TokenEntry{}, &AuthError{Reason: "failed", Status: status, Data: map[string]any{"data": data}}
	}

	if reason, ok := obj["error"].(string); ok {
		return TokenEntry{}, &AuthError{Reason: reason, Status: status, Data: obj}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return TokenEntry{}, fmt.Errorf("oauth2client: decode token response (status %d): %w", status, err)
	}
	if tr.AccessToken == "" {
		return TokenEntry{}, &AuthError{Reason: "failed", Status: status, Data: obj}
	}

	return TokenEntry{
		Token:     tr.AccessToken,
		Expires:   received.Add(time.Duration(tr.ExpiresIn) * time.Second),
		ExpiresIn: tr.ExpiresIn,
	}, nil
}
