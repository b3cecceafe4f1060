package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/AmmannChristian/go-saauth/oauth2client"
	"github.com/AmmannChristian/go-saauth/serviceaccount"
)

// Builder provides a fluent interface for constructing HTTP clients
// authenticated as a service account, with optional TLS/mTLS support.
type Builder struct {
	// Service account configuration
	tokens    TokenProvider
	scopes    []string
	configErr error

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         30 * time.Second, // Default 30s timeout
		followRedirects: true,
	}
}

// WithTokenProvider authenticates requests with tokens for scopes from tokens,
// typically an existing *oauth2client.Client shared with other clients.
func (b *Builder) WithTokenProvider(tokens TokenProvider, scopes ...string) *Builder {
	b.tokens = tokens
	b.scopes = scopes
	return b
}

// WithServiceAccount creates an oauth2client.Client for creds and authenticates requests with it.
// Key import errors are reported by Build.
func (b *Builder) WithServiceAccount(creds serviceaccount.Credentials, scopes []string, opts ...oauth2client.Option) *Builder {
	client, err := oauth2client.New(creds, opts...)
	if err != nil {
		b.configErr = err
		return b
	}
	return b.WithTokenProvider(client, scopes...)
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 30 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets a custom base transport.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
func (b *Builder) Build() (*http.Client, error) {
	if b.configErr != nil {
		return nil, fmt.Errorf("httpclient: service account setup failed: %w", b.configErr)
	}

	transport := b.baseTransport
	if transport == nil {
		var err error
		transport, err = b.defaultTransport()
		if err != nil {
			return nil, err
		}
	}

	if b.tokens != nil {
		transport = NewServiceAccountTransport(b.tokens, transport, b.scopes...)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// defaultTransport clones http.DefaultTransport and applies the TLS settings.
func (b *Builder) defaultTransport() (http.RoundTripper, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// A test stub or custom default; use it as is.
		return http.DefaultTransport, nil
	}

	cloned := base.Clone()
	if b.tlsEnabled || b.tlsSkipVerify {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		cloned.TLSClientConfig = tlsConfig
	} else {
		cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return cloned, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// NewHTTPClient is a convenience function that creates a simple HTTP client authenticated by tokens.
// For more configuration options, use Builder instead.
//
// Example:
//
//	client, err := oauth2client.New(creds)
//	httpClient := httpclient.NewHTTPClient(client, "https://www.googleapis.com/auth/cloud-platform")
//	resp, err := httpClient.Get("https://example.googleapis.com/v1/resource")
func NewHTTPClient(tokens TokenProvider, scopes ...string) *http.Client {
	return &http.Client{
		Transport: NewServiceAccountTransport(tokens, nil, scopes...),
		Timeout:   30 * time.Second,
	}
}
