package oauth2client

import (
	"log"
	"net/http"
	"time"

	"github.com/AmmannChristian/go-saauth/assertion"
	"github.com/AmmannChristian/go-saauth/tokencache"
)

// Logger is an interface for optional logging in Client.
// Implementations can log token refresh events if desired.
type Logger interface {
	Printf(format string, args ...any)
}

// Doer performs the token endpoint HTTP call. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP capability used for token exchanges.
// Defaults to an *http.Client with no client-level timeout; see WithTimeout.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithCache replaces the client's private in-memory cache, e.g. to share one cache
// between several clients.
func WithCache(cache tokencache.Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithExpiryThreshold sets how long before expiry a cached token is considered stale.
// Default is 60 seconds.
func WithExpiryThreshold(threshold time.Duration) Option {
	return func(c *Client) {
		c.expiryThreshold = threshold
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithSigner signs assertions with s instead of the key in the credentials.
// The credentials' private_key is then not parsed.
func WithSigner(s assertion.Signer) Option {
	return func(c *Client) {
		c.signer = s
	}
}

// WithTokenURL overrides the token endpoint. The URL is also the assertion audience.
func WithTokenURL(tokenURL string) Option {
	return func(c *Client) {
		c.tokenURL = tokenURL
	}
}

// WithTimeout bounds each token exchange. Default is 30 seconds; zero disables the bound
// and leaves only the caller's context in control.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets a custom logger for token refresh events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
// This is a convenience option that sets the logger to log.Default().
func WithLoggingEnabled() Option {
	return func(c *Client) {
		c.logger = log.Default()
	}
}
