// Package verifier checks JWT-bearer assertions against the signing service account's published JWKS.
//
// It is the counterpart of package assertion: given a signed assertion and the audience it was minted
// for, Verify confirms the RS256 signature with the key named by the "kid" header, that issuer and
// subject name the same service account, and that the token is within its validity window.
//
//	v, err := verifier.New(verifier.JWKSURL(verifier.DefaultJWKSURLTemplate, creds.ClientEmail))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer v.Close()
//
//	result, err := v.Verify(ctx, signed, oauth2client.DefaultTokenURL)
package verifier
