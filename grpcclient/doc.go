// Package grpcclient provides a fluent builder for secure gRPC client connections that authenticate
// as a service account.
//
// Every unary and streaming RPC carries "authorization: Bearer <token>" metadata obtained from an
// oauth2client.Client. Connections default to TLS 1.2+ with system roots; WithTLS supplies a custom
// CA, an optional client certificate for mTLS and a server name override.
//
// # Quick Start
//
//	conn, err := grpcclient.NewBuilder().
//	    WithAddress("pubsub.googleapis.com:443").
//	    WithServiceAccount(creds, []string{"https://www.googleapis.com/auth/pubsub"}).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
// Use WithClient to share one oauth2client.Client (and its token cache) between connections.
package grpcclient
