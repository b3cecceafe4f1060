// Package serviceaccount holds the parsed form of a service account key.
//
// Credentials is a read-only value: it is populated once from a key file or secret store and then
// shared freely between goroutines. Only the fields needed to mint a JWT-bearer assertion are kept.
//
// # Quick Start
//
//	creds, err := serviceaccount.LoadFile("/etc/secrets/service-account.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := oauth2client.New(creds)
package serviceaccount
