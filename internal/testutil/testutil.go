package testutil

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AmmannChristian/go-saauth/serviceaccount"
)

// TestKeyID is the private_key_id used by NewTestCredentials and the JWKS helpers.
const TestKeyID = "test-key-1"

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	tb.Cleanup(server.Close)

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// RecordedRequest is a captured call to the mock token endpoint.
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// JSONBody decodes the recorded body into a generic map.
func (r RecordedRequest) JSONBody(tb testing.TB) map[string]any {
	tb.Helper()

	var out map[string]any
	if err := json.Unmarshal(r.Body, &out); err != nil {
		tb.Fatalf("failed to decode request body %q: %v", r.Body, err)
	}
	return out
}

// MockTokenEndpoint simulates an OAuth2 token endpoint without real sockets.
// It records requests and serves responses through a custom RoundTripper.
type MockTokenEndpoint struct {
	URL    string
	Client *http.Client

	mu       sync.Mutex
	requests []RecordedRequest
}

// NewMockTokenEndpoint builds a mock token endpoint backed by an in-memory RoundTripper.
// If handler is nil, it returns a default successful token response.
func NewMockTokenEndpoint(tb testing.TB, handler RoundTripFunc) *MockTokenEndpoint {
	tb.Helper()

	endpoint := &MockTokenEndpoint{
		URL: "https://mock-oauth.example.com/token",
	}

	if handler == nil {
		handler = JSONResponse(http.StatusOK, `{
			"access_token": "mock-access-token",
			"token_type": "Bearer",
			"expires_in": 3600
		}`)
	}

	rt := RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		var body []byte
		if req.Body != nil {
			var err error
			body, err = io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			_ = req.Body.Close()
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		endpoint.mu.Lock()
		endpoint.requests = append(endpoint.requests, RecordedRequest{
			Method: req.Method,
			URL:    req.URL.String(),
			Header: req.Header.Clone(),
			Body:   body,
		})
		endpoint.mu.Unlock()

		return handler(req)
	})

	endpoint.Client = &http.Client{Transport: rt}
	return endpoint
}

// Requests returns a copy of the captured requests.
func (m *MockTokenEndpoint) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns how many exchanges reached the endpoint.
func (m *MockTokenEndpoint) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// JSONResponse returns a RoundTripper that always responds with the provided status and body.
func JSONResponse(status int, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		header := make(http.Header)
		header.Set("Content-Type", "application/json")
		return &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// TestKeyPair holds an RSA key pair for signing tests.
type TestKeyPair struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// GenerateTestKeyPair generates a new RSA key pair for testing.
func GenerateTestKeyPair(tb testing.TB) *TestKeyPair {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate RSA key pair: %v", err)
	}

	return &TestKeyPair{
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}
}

// PKCS8PEM encodes the private key the way service account key files carry it.
func (kp *TestKeyPair) PKCS8PEM() string {
	der, err := x509.MarshalPKCS8PrivateKey(kp.PrivateKey)
	if err != nil {
		panic(err) // an RSA key always marshals
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// NewTestCredentials returns service account credentials backed by a fresh key pair.
func NewTestCredentials(tb testing.TB) (serviceaccount.Credentials, *TestKeyPair) {
	tb.Helper()

	kp := GenerateTestKeyPair(tb)
	return serviceaccount.Credentials{
		Type:         "service_account",
		ClientEmail:  "robot@test-project.iam.gserviceaccount.com",
		PrivateKey:   kp.PKCS8PEM(),
		PrivateKeyID: TestKeyID,
	}, kp
}

// CreateJWKSServer creates a mock JWKS server serving the public key under TestKeyID.
func CreateJWKSServer(tb testing.TB, publicKey *rsa.PublicKey) *httptest.Server {
	tb.Helper()

	jwks := map[string]interface{}{
		"keys": []map[string]interface{}{
			{
				"kty": "RSA",
				"kid": TestKeyID,
				"use": "sig",
				"alg": "RS256",
				"n":   encodeBase64URL(publicKey.N.Bytes()),
				"e":   encodeBase64URL(big.NewInt(int64(publicKey.E)).Bytes()),
			},
		},
	}

	return NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jwks); err != nil {
			tb.Errorf("failed to encode JWKS: %v", err)
		}
	}))
}

// CreateFailingJWKSServer creates a JWKS server that returns errors.
func CreateFailingJWKSServer(tb testing.TB, statusCode int, body string) *httptest.Server {
	tb.Helper()

	return NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		_, _ = w.Write([]byte(body)) // Error intentionally ignored in test helper
	}))
}

// encodeBase64URL encodes bytes to base64url without padding, as JWK members require.
func encodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// WriteTestCACert writes a self-signed CA certificate to the provided path for TLS tests.
func WriteTestCACert(tb testing.TB, path string) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate CA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		Subject:               pkix.Name{CommonName: "test-ca"},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create CA certificate: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		tb.Fatalf("failed to write CA certificate: %v", err)
	}
}

// WriteTestCertAndKey writes a self-signed certificate and key to the provided paths.
func WriteTestCertAndKey(tb testing.TB, certPath, keyPath string) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		Subject:      pkix.Name{CommonName: "test-cert"},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create certificate: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		tb.Fatalf("failed to write certificate: %v", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		tb.Fatalf("failed to write key: %v", err)
	}
}
