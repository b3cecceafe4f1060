package verifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultJWKSURLTemplate is where Google publishes the public keys of a service account.
const DefaultJWKSURLTemplate = "https://www.googleapis.com/service_accounts/v1/jwk/{email}"

const (
	defaultRefreshInterval = time.Hour
	defaultRefreshTimeout  = 10 * time.Second
)

// Logger is an interface for optional logging in Verifier.
type Logger interface {
	Printf(format string, args ...any)
}

// Result holds the verified claims of an assertion.
type Result struct {
	KeyID     string    `json:"kid"`
	Issuer    string    `json:"iss"`
	Subject   string    `json:"sub"`
	Audience  []string  `json:"aud"`
	Scopes    []string  `json:"scopes,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Verifier validates assertions using keys fetched from a JWKS endpoint.
// Keys are cached and refreshed in the background until Close is called.
type Verifier struct {
	jwks   *keyfunc.JWKS
	logger Logger
	now    func() time.Time
	leeway time.Duration
}

type options struct {
	httpClient      *http.Client
	refreshInterval time.Duration
	logger          Logger
	now             func() time.Time
	leeway          time.Duration
}

// Option configures a Verifier.
type Option func(*options)

// WithHTTPClient sets the client used to fetch the JWKS. Defaults to http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRefreshInterval sets how often keys are re-fetched. Defaults to one hour.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshInterval = d
		}
	}
}

// WithLogger enables logging of key refresh errors and verified assertions.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the time source used for exp/iat checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLeeway tolerates clock skew between signer and verifier.
func WithLeeway(d time.Duration) Option {
	return func(o *options) {
		o.leeway = d
	}
}

// JWKSURL expands the "{email}" placeholder of template with the escaped service account email.
func JWKSURL(template, email string) string {
	return strings.ReplaceAll(template, "{email}", url.PathEscape(email))
}

// New fetches the key set at jwksURL and returns a Verifier backed by it.
func New(jwksURL string, opts ...Option) (*Verifier, error) {
	if jwksURL == "" {
		return nil, errors.New("verifier: JWKS URL is required")
	}

	o := options{
		httpClient:      http.DefaultClient,
		refreshInterval: defaultRefreshInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Client: o.httpClient,
		RefreshErrorHandler: func(err error) {
			if o.logger != nil {
				o.logger.Printf("verifier: JWKS refresh error: %v", err)
			}
		},
		RefreshInterval:   o.refreshInterval,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    defaultRefreshTimeout,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verifier: failed to initialize JWKS: %w", err)
	}

	return &Verifier{
		jwks:   jwks,
		logger: o.logger,
		now:    o.now,
		leeway: o.leeway,
	}, nil
}

// Verify checks the signature and claims of an assertion minted for audience.
//
// The token must be RS256-signed by a key in the set, carry iss == sub, list audience in aud, and
// have iat and exp with now inside [iat, exp).
func (v *Verifier) Verify(ctx context.Context, tokenString, audience string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if audience == "" {
		return nil, errors.New("verifier: audience is required")
	}

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verifier: assertion validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("verifier: failed to extract assertion claims")
	}

	iss, err := claims.GetIssuer()
	if err != nil || iss == "" {
		return nil, errors.New("verifier: invalid issuer claim")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("verifier: invalid subject claim: %w", err)
	}
	if sub != iss {
		return nil, fmt.Errorf("verifier: subject %q does not match issuer %q", sub, iss)
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return nil, fmt.Errorf("verifier: invalid audience claim: %w", err)
	}
	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, errors.New("verifier: invalid issued at claim")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("verifier: invalid expiry claim")
	}

	result := &Result{
		Issuer:    iss,
		Subject:   sub,
		Audience:  aud,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}
	if kid, ok := token.Header["kid"].(string); ok {
		result.KeyID = kid
	}
	if scope, ok := claims["scope"].(string); ok {
		result.Scopes = strings.Fields(scope)
	}

	if v.logger != nil {
		v.logger.Printf("verifier: verified assertion from %s (kid %s, scopes %v)", iss, result.KeyID, result.Scopes)
	}

	return result, nil
}

// Close stops the background key refresh.
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
