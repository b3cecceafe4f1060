package oauth2client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/AmmannChristian/go-saauth/internal/testutil"
	"golang.org/x/oauth2"
)

func TestClient_TokenSource(t *testing.T) {
	f := newFixture(t, nil)

	ts := f.client.TokenSource(context.Background(), "a", "b")
	token, err := ts.Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	if token.AccessToken != "mock-access-token" {
		t.Errorf("unexpected access token %q", token.AccessToken)
	}
	if token.Type() != "Bearer" {
		t.Errorf("unexpected token type %q", token.Type())
	}
	if want := f.clock.Now().Add(time.Hour); !token.Expiry.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, token.Expiry)
	}

	if _, err := ts.Token(); err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if got := f.endpoint.RequestCount(); got != 1 {
		t.Errorf("token source should reuse the client cache, got %d requests", got)
	}
}

func TestClient_TokenSource_Error(t *testing.T) {
	f := newFixture(t, testutil.JSONResponse(http.StatusBadRequest, `{"error":"invalid_scope"}`))

	_, err := f.client.TokenSource(context.Background(), "bad").Token()

	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Reason != "invalid_scope" {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestClient_TokenSource_OAuth2Transport(t *testing.T) {
	f := newFixture(t, nil)

	var gotAuth string
	api := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotAuth = req.Header.Get("Authorization")
		return testutil.JSONResponse(http.StatusOK, `{}`)(req)
	})

	//lint:ignore SA1012 intentionally verify nil context falls back to background
	//nolint:staticcheck // golangci-lint
	ts := f.client.TokenSource(nil, "a")

	httpClient := &http.Client{Transport: &oauth2.Transport{Source: ts, Base: api}}
	resp, err := httpClient.Get("https://api.example.com/v1/things")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if gotAuth != "Bearer mock-access-token" {
		t.Errorf("unexpected Authorization header %q", gotAuth)
	}
}
