// Package assertion builds the self-signed JWT a service account presents to the token endpoint.
//
// The output is the compact JWS serialization "header.claims.signature" with each segment
// base64url encoded without padding. Header and claim members are emitted in a fixed order so the
// same inputs always produce the same token.
package assertion

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AmmannChristian/go-saauth/serviceaccount"
)

// Lifetime is the validity window written into every assertion.
const Lifetime = 30 * time.Minute

// Signer produces an RS256 signature over the signing input.
type Signer interface {
	Sign(message []byte) ([]byte, error)
}

// Header is the JOSE header of an assertion.
type Header struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// Claims is the payload of an assertion.
type Claims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	ExpiresAt int64  `json:"exp"`
	IssuedAt  int64  `json:"iat"`
	Scope     string `json:"scope,omitempty"`
}

// NewClaims returns the claims for creds at now. Scope is left empty when scopes is empty.
func NewClaims(creds serviceaccount.Credentials, scopes []string, audience string, now time.Time) Claims {
	iat := now.Unix()
	return Claims{
		Issuer:    creds.ClientEmail,
		Subject:   creds.ClientEmail,
		Audience:  audience,
		ExpiresAt: iat + int64(Lifetime/time.Second),
		IssuedAt:  iat,
		Scope:     strings.Join(scopes, " "),
	}
}

// Build signs an assertion for creds requesting scopes at audience.
func Build(creds serviceaccount.Credentials, scopes []string, audience string, now time.Time, s Signer) (string, error) {
	if s == nil {
		return "", errors.New("assertion: signer is nil")
	}

	header := Header{Typ: "JWT", Alg: "RS256", Kid: creds.PrivateKeyID}
	claims := NewClaims(creds, scopes, audience, now)

	encodedHeader, err := encodeSegment(header)
	if err != nil {
		return "", fmt.Errorf("assertion: encode header: %w", err)
	}
	encodedClaims, err := encodeSegment(claims)
	if err != nil {
		return "", fmt.Errorf("assertion: encode claims: %w", err)
	}

	signingInput := encodedHeader + "." + encodedClaims
	sig, err := s.Sign([]byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("assertion: sign: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Decode splits a compact assertion and decodes its header and claims.
// The signature is not checked.
func Decode(token string) (Header, Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Header{}, Claims{}, fmt.Errorf("assertion: expected 3 segments, got %d", len(parts))
	}

	var header Header
	if err := decodeSegment(parts[0], &header); err != nil {
		return Header{}, Claims{}, fmt.Errorf("assertion: decode header: %w", err)
	}

	var claims Claims
	if err := decodeSegment(parts[1], &claims); err != nil {
		return Header{}, Claims{}, fmt.Errorf("assertion: decode claims: %w", err)
	}

	return header, claims, nil
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
