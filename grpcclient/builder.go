package grpcclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/AmmannChristian/go-saauth/oauth2client"
	"github.com/AmmannChristian/go-saauth/serviceaccount"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Builder provides a fluent interface for constructing gRPC client connections
// authenticated as a service account, with TLS/mTLS support.
type Builder struct {
	address string

	// Service account configuration
	client    *oauth2client.Client
	scopes    []string
	configErr error

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "server.example.com:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithClient authenticates every RPC with tokens for scopes obtained from client.
func (b *Builder) WithClient(client *oauth2client.Client, scopes ...string) *Builder {
	b.client = client
	b.scopes = scopes
	return b
}

// WithServiceAccount creates an oauth2client.Client for creds and authenticates every RPC with it.
// Key import errors are reported by Build.
func (b *Builder) WithServiceAccount(creds serviceaccount.Credentials, scopes []string, opts ...oauth2client.Option) *Builder {
	client, err := oauth2client.New(creds, opts...)
	if err != nil {
		b.configErr = err
		return b
	}
	return b.WithClient(client, scopes...)
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after the authentication and TLS options.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build constructs the gRPC client connection with the configured options.
// The connection is lazy; no network traffic happens until the first RPC.
func (b *Builder) Build() (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}
	if b.configErr != nil {
		return nil, fmt.Errorf("grpcclient: service account setup failed: %w", b.configErr)
	}

	var opts []grpc.DialOption

	if b.client != nil {
		opts = append(opts,
			grpc.WithUnaryInterceptor(b.client.UnaryClientInterceptor(b.scopes...)),
			grpc.WithStreamInterceptor(b.client.StreamClientInterceptor(b.scopes...)),
		)
	}

	if b.tlsEnabled {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		// Bearer tokens must never travel in plaintext; default to system roots.
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	opts = append(opts, b.dialOpts...)

	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: b.tlsServerName,
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

	switch {
	case b.tlsCertFile != "" && b.tlsKeyFile != "":
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	case b.tlsCertFile != "" || b.tlsKeyFile != "":
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}
