package serviceaccount

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Credentials is the parsed representation of a service account key.
type Credentials struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	// TokenURI is informational; the token endpoint used for exchanges is configured on the client.
	TokenURI string `json:"token_uri"`
}

// ParseJSON extracts Credentials from a service account key document.
// Fields other than the ones on Credentials are ignored.
func ParseJSON(data []byte) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("serviceaccount: decode key file: %w", err)
	}

	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	return creds, nil
}

// LoadFile reads and parses a service account key file.
func LoadFile(path string) (Credentials, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	if err != nil {
		return Credentials{}, fmt.Errorf("serviceaccount: read key file: %w", err)
	}
	return ParseJSON(data)
}

// Validate reports whether the fields required to sign an assertion are present.
func (c Credentials) Validate() error {
	if c.ClientEmail == "" {
		return errors.New("serviceaccount: client_email is required")
	}
	if c.PrivateKey == "" {
		return errors.New("serviceaccount: private_key is required")
	}
	if c.PrivateKeyID == "" {
		return errors.New("serviceaccount: private_key_id is required")
	}
	return nil
}
