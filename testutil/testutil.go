// Package testutil provides an in-process JWT-bearer token endpoint for testing code that depends on
// oauth2client, httpclient or grpcclient without reaching Google.
//
//	server := testutil.NewTokenServer(t)
//	server.RegisterKey(creds.PrivateKeyID, publicKey)
//
//	client, err := oauth2client.New(creds, oauth2client.WithTokenURL(server.TokenURL()))
package testutil

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AmmannChristian/go-saauth/assertion"
)

const grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// Exchange is one successful token request seen by a TokenServer.
type Exchange struct {
	Header assertion.Header
	Claims assertion.Claims
	Token  string
}

// TokenServer verifies JWT-bearer assertions against registered public keys and issues opaque tokens.
// Assertions must be RS256-signed by a registered key id, addressed to TokenURL and currently valid.
type TokenServer struct {
	*httptest.Server

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	expiresIn int64
	failure   *failure
	exchanges []Exchange
	rejected  int
}

type failure struct {
	status int
	body   string
}

// NewTokenServer starts a token endpoint on IPv4 loopback. It is closed when the test ends.
func NewTokenServer(tb testing.TB) *TokenServer {
	tb.Helper()

	s := &TokenServer{
		keys:      make(map[string]*rsa.PublicKey),
		expiresIn: 3600,
	}

	// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	s.Server = httptest.NewUnstartedServer(http.HandlerFunc(s.serveToken))
	s.Server.Listener = listener
	s.Server.Start()
	tb.Cleanup(s.Server.Close)

	return s
}

// TokenURL is the endpoint clients should exchange assertions at; it is also the expected audience.
func (s *TokenServer) TokenURL() string {
	return s.URL + "/token"
}

// RegisterKey trusts pub for assertions whose header carries kid.
func (s *TokenServer) RegisterKey(kid string, pub *rsa.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[kid] = pub
}

// SetExpiresIn changes the expires_in value of issued tokens.
func (s *TokenServer) SetExpiresIn(seconds int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresIn = seconds
}

// FailWith makes every following request answer with status and the raw body. A zero status restores normal operation.
func (s *TokenServer) FailWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		s.failure = nil
		return
	}
	s.failure = &failure{status: status, body: body}
}

// Exchanges returns the successful exchanges in arrival order.
func (s *TokenServer) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// Rejected returns how many requests were answered with an OAuth2 error.
func (s *TokenServer) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

func (s *TokenServer) serveToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fail := s.failure
	s.mu.Unlock()

	if fail != nil {
		s.countRejected()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fail.status)
		_, _ = w.Write([]byte(fail.body))
		return
	}

	if r.Method != http.MethodPost || r.URL.Path != "/token" {
		s.reject(w, http.StatusNotFound, "invalid_request", "unknown endpoint")
		return
	}

	var req struct {
		GrantType string `json:"grant_type"`
		Assertion string `json:"assertion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reject(w, http.StatusBadRequest, "invalid_request", "body is not JSON")
		return
	}
	if req.GrantType != grantType {
		s.reject(w, http.StatusBadRequest, "unsupported_grant_type", req.GrantType)
		return
	}

	if err := s.verify(req.Assertion); err != nil {
		s.reject(w, http.StatusBadRequest, "invalid_grant", err.Error())
		return
	}

	header, claims, err := assertion.Decode(req.Assertion)
	if err != nil {
		s.reject(w, http.StatusBadRequest, "invalid_grant", err.Error())
		return
	}

	s.mu.Lock()
	token := fmt.Sprintf("access-token-%d", len(s.exchanges)+1)
	s.exchanges = append(s.exchanges, Exchange{Header: header, Claims: claims, Token: token})
	expiresIn := s.expiresIn
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	})
}

func (s *TokenServer) verify(signed string) error {
	_, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)

		s.mu.Lock()
		defer s.mu.Unlock()
		if key, ok := s.keys[kid]; ok {
			return key, nil
		}
		return nil, fmt.Errorf("unknown key id %q", kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}),
		jwt.WithAudience(s.TokenURL()),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return err
	}

	_, claims, err := assertion.Decode(signed)
	if err != nil {
		return err
	}
	if claims.Issuer == "" || claims.Issuer != claims.Subject {
		return errors.New("iss and sub must name the same service account")
	}
	return nil
}

func (s *TokenServer) reject(w http.ResponseWriter, status int, code, description string) {
	s.countRejected()
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func (s *TokenServer) countRejected() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
