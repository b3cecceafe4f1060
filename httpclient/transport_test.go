package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/AmmannChristian/go-saauth/internal/testutil"
	"github.com/AmmannChristian/go-saauth/oauth2client"
)

const testScope = "https://www.googleapis.com/auth/cloud-platform"

// staticTokens is a TokenProvider returning a fixed token and recording requested scopes.
type staticTokens struct {
	token string
	err   error

	mu     sync.Mutex
	scopes [][]string
}

func (s *staticTokens) AccessToken(_ context.Context, scopes []string) (string, error) {
	s.mu.Lock()
	s.scopes = append(s.scopes, slices.Clone(scopes))
	s.mu.Unlock()
	return s.token, s.err
}

func (s *staticTokens) calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.scopes)
}

func newServiceAccountClient(tb testing.TB) (*oauth2client.Client, *testutil.MockTokenEndpoint) {
	tb.Helper()

	endpoint := testutil.NewMockTokenEndpoint(tb, nil)
	creds, _ := testutil.NewTestCredentials(tb)
	client, err := oauth2client.New(creds,
		oauth2client.WithHTTPClient(endpoint.Client),
		oauth2client.WithTokenURL(endpoint.URL),
	)
	if err != nil {
		tb.Fatalf("oauth2client.New() error = %v", err)
	}
	return client, endpoint
}

func okResponse(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("ok")),
		Request:    req,
	}
}

func TestNewServiceAccountTransport(t *testing.T) {
	tokens := &staticTokens{token: "t"}
	transport := NewServiceAccountTransport(tokens, nil, testScope)

	if transport.Tokens != tokens {
		t.Error("Tokens not set correctly")
	}
	if transport.Base == nil {
		t.Error("Base should default to a transport")
	}
	if !slices.Equal(transport.Scopes, []string{testScope}) {
		t.Errorf("Scopes = %v", transport.Scopes)
	}
}

func TestNewServiceAccountTransport_CopiesScopes(t *testing.T) {
	scopes := []string{"a", "b"}
	transport := NewServiceAccountTransport(&staticTokens{}, nil, scopes...)
	scopes[0] = "changed"

	if transport.Scopes[0] != "a" {
		t.Errorf("transport scopes aliased caller slice: %v", transport.Scopes)
	}
}

func TestNewServiceAccountTransport_WithCustomBase(t *testing.T) {
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req), nil
	})
	transport := NewServiceAccountTransport(&staticTokens{}, base)

	if transport.Base == nil {
		t.Fatal("Base should not be nil")
	}
}

func TestServiceAccountTransport_RoundTrip(t *testing.T) {
	client, endpoint := newServiceAccountClient(t)

	var gotAuth string
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		return okResponse(req), nil
	})

	transport := NewServiceAccountTransport(client, base, testScope)

	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/items", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	defer resp.Body.Close()

	if gotAuth != "Bearer mock-access-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer mock-access-token")
	}
	if endpoint.RequestCount() != 1 {
		t.Errorf("token endpoint calls = %d, want 1", endpoint.RequestCount())
	}
}

func TestServiceAccountTransport_RoundTrip_ReusesCachedToken(t *testing.T) {
	client, endpoint := newServiceAccountClient(t)
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req), nil
	})
	transport := NewServiceAccountTransport(client, base, testScope)

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
		resp, err := transport.RoundTrip(req)
		if err != nil {
			t.Fatalf("RoundTrip() #%d error = %v", i, err)
		}
		resp.Body.Close()
	}

	if endpoint.RequestCount() != 1 {
		t.Errorf("token endpoint calls = %d, want 1", endpoint.RequestCount())
	}
}

func TestServiceAccountTransport_RoundTrip_PassesScopes(t *testing.T) {
	tokens := &staticTokens{token: "t"}
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req), nil
	})
	transport := NewServiceAccountTransport(tokens, base, "a", "b")

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	resp.Body.Close()

	calls := tokens.calls()
	if len(calls) != 1 || !slices.Equal(calls[0], []string{"a", "b"}) {
		t.Errorf("scopes requested = %v, want [[a b]]", calls)
	}
}

func TestServiceAccountTransport_RoundTrip_NilTokenProvider(t *testing.T) {
	transport := &ServiceAccountTransport{}

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	resp, err := transport.RoundTrip(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error for nil token provider")
	}
	if !strings.Contains(err.Error(), "token provider is nil") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServiceAccountTransport_RoundTrip_TokenFetchError(t *testing.T) {
	endpoint := testutil.NewMockTokenEndpoint(t, testutil.JSONResponse(http.StatusBadRequest, `{"error":"invalid_grant"}`))
	creds, _ := testutil.NewTestCredentials(t)
	client, err := oauth2client.New(creds,
		oauth2client.WithHTTPClient(endpoint.Client),
		oauth2client.WithTokenURL(endpoint.URL),
	)
	if err != nil {
		t.Fatalf("oauth2client.New() error = %v", err)
	}

	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("base transport must not be called when token fetch fails")
		return nil, nil
	})
	transport := NewServiceAccountTransport(client, base, testScope)

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	resp, err := transport.RoundTrip(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error")
	}

	var authErr *oauth2client.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *oauth2client.AuthError in chain, got %v", err)
	}
	if authErr.Reason != "invalid_grant" || authErr.Status != http.StatusBadRequest {
		t.Errorf("AuthError = %+v", authErr)
	}
}

func TestServiceAccountTransport_RoundTrip_RequestContextCancelled(t *testing.T) {
	client, endpoint := newServiceAccountClient(t)
	transport := NewServiceAccountTransport(client, nil, testScope)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.example.com/", nil)
	resp, err := transport.RoundTrip(req)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error for cancelled request context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if endpoint.RequestCount() != 0 {
		t.Errorf("token endpoint calls = %d, want 0", endpoint.RequestCount())
	}
}

func TestServiceAccountTransport_RoundTrip_DefaultTransportUsed(t *testing.T) {
	var called bool
	originalDefault := http.DefaultTransport
	http.DefaultTransport = testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return okResponse(req), nil
	})
	defer func() { http.DefaultTransport = originalDefault }()

	transport := &ServiceAccountTransport{Tokens: &staticTokens{token: "t"}}

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	resp.Body.Close()

	if !called {
		t.Error("expected http.DefaultTransport to be used when Base is nil")
	}
}

func TestServiceAccountTransport_RoundTrip_RequestNotModified(t *testing.T) {
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req), nil
	})
	transport := NewServiceAccountTransport(&staticTokens{token: "t"}, base)

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	resp.Body.Close()

	if req.Header.Get("Authorization") != "" {
		t.Error("original request should not be modified")
	}
}

func TestServiceAccountTransport_RoundTrip_PreservesOtherHeaders(t *testing.T) {
	var got http.Header
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		got = req.Header.Clone()
		return okResponse(req), nil
	})
	transport := NewServiceAccountTransport(&staticTokens{token: "t"}, base)

	req, _ := http.NewRequest(http.MethodPost, "https://api.example.com/", nil)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Custom-Header", "custom-value")

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	resp.Body.Close()

	if got.Get("Content-Type") != "application/json" {
		t.Error("Content-Type header not preserved")
	}
	if got.Get("X-Custom-Header") != "custom-value" {
		t.Error("custom header not preserved")
	}
	if got.Get("Authorization") != "Bearer t" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
}

func TestNewHTTPClient(t *testing.T) {
	tokens := &staticTokens{token: "t"}
	client := NewHTTPClient(tokens, testScope)

	transport, ok := client.Transport.(*ServiceAccountTransport)
	if !ok {
		t.Fatalf("Transport = %T, want *ServiceAccountTransport", client.Transport)
	}
	if transport.Tokens != tokens {
		t.Error("Tokens not set correctly")
	}
	if client.Timeout == 0 {
		t.Error("Timeout should be set")
	}
}

func TestNewHTTPClient_Integration(t *testing.T) {
	saClient, _ := newServiceAccountClient(t)

	var gotAuth string
	server := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	client := NewHTTPClient(saClient, testScope)
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer mock-access-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func BenchmarkServiceAccountTransport_RoundTrip(b *testing.B) {
	client, _ := newServiceAccountClient(b)
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req), nil
	})
	transport := NewServiceAccountTransport(client, base, testScope)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
		resp, err := transport.RoundTrip(req)
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}
