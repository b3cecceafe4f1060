// Package httpclient builds HTTP clients that authenticate as a service account.
//
// ServiceAccountTransport wraps any RoundTripper and sets "Authorization: Bearer <token>" using a
// TokenProvider such as *oauth2client.Client. The Builder adds TLS 1.2+ defaults, custom CA and mTLS
// options, timeouts and redirect handling on top.
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithServiceAccount(creds, []string{"https://www.googleapis.com/auth/cloud-platform"}).
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get("https://example.googleapis.com/v1/resource")
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewServiceAccountTransport(saClient, nil, scope)
//	client := &http.Client{Transport: transport}
//
// All components are safe for concurrent use if the provided TokenProvider is.
package httpclient
