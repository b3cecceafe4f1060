// Package testutil provides test helpers for go-saauth packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// mock the token endpoint without real sockets, generate PKCS8 service account keys, and serve JWKS
// documents and self-signed certificates for verifier and TLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - MockTokenEndpoint and JSONResponse: stub the token endpoint and capture requests
//   - RoundTripFunc: inline http.RoundTripper implementations
//   - GenerateTestKeyPair / NewTestCredentials: RSA keys and service account credentials
//   - CreateJWKSServer: serve an RSA public key as a JWKS document
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
package testutil
