// Package oauth2client obtains OAuth2 access tokens for a service account using the JWT-bearer grant.
//
// A Client signs a short-lived assertion with the service account key, exchanges it at the token
// endpoint, and caches the resulting token per scope set until it nears expiry. Token fetches honor
// contexts for cancellation, are thread-safe, and can log refresh events via optional Logger interfaces.
//
// # Features
//
//   - JWT-bearer flow (RFC 7523) with per-scope-set caching and early refresh
//   - One in-flight exchange per scope set; concurrent callers share the result
//   - Bounded exchange timeout, no retries
//   - Typed endpoint failures (*AuthError) carrying the HTTP status and response body
//   - oauth2.TokenSource adapter and gRPC unary/stream client interceptors
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	creds, err := serviceaccount.LoadFile("service-account.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := oauth2client.New(creds, oauth2client.WithLoggingEnabled())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	entry, err := client.Authenticate(ctx, []string{"https://www.googleapis.com/auth/cloud-platform"})
//	if err != nil {
//	    var authErr *oauth2client.AuthError
//	    if errors.As(err, &authErr) {
//	        log.Printf("token endpoint said %s (HTTP %d)", authErr.Reason, authErr.Status)
//	    }
//	    log.Fatal(err)
//	}
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(client.UnaryClientInterceptor(scope)),
//	    grpc.WithStreamInterceptor(client.StreamClientInterceptor(scope)),
//	)
//
// # Notes
//
//   - The assertion audience is the token URL (DefaultTokenURL unless WithTokenURL is used).
//   - Pass WithCache to share one tokencache.Cache between clients.
package oauth2client
