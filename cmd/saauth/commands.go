package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AmmannChristian/go-saauth/assertion"
	"github.com/AmmannChristian/go-saauth/oauth2client"
	"github.com/AmmannChristian/go-saauth/signer"
	"github.com/AmmannChristian/go-saauth/verifier"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTokenCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Exchange a signed assertion for an access token",
		Example: `  saauth token -k key.json -s https://www.googleapis.com/auth/cloud-platform
  saauth token --raw -s https://www.googleapis.com/auth/pubsub`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			entry, err := client.Authenticate(cmd.Context(), a.cfg.Scopes)
			if err != nil {
				var authErr *oauth2client.AuthError
				if errors.As(err, &authErr) {
					a.logger.Error("token endpoint rejected the assertion",
						"reason", authErr.Reason, "status", authErr.Status)
				}
				return err
			}

			if raw {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), entry.Token)
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entry)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print only the access token")
	return cmd
}

func newAssertionCmd(a *app) *cobra.Command {
	var (
		audience string
		decode   bool
	)

	cmd := &cobra.Command{
		Use:   "assertion",
		Short: "Print a signed JWT-bearer assertion without exchanging it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := a.credentials()
			if err != nil {
				return err
			}

			key, err := signer.ExtractKey(creds.PrivateKey)
			if err != nil {
				return err
			}

			if audience == "" {
				audience = a.cfg.TokenURL
			}

			signed, err := assertion.Build(creds, a.cfg.Scopes, audience, time.Now(), key)
			if err != nil {
				return err
			}

			if !decode {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
				return err
			}

			header, claims, err := assertion.Decode(signed)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"assertion": signed,
				"header":    header,
				"claims":    claims,
			})
		},
	}

	cmd.Flags().StringVar(&audience, "audience", "", "aud claim (defaults to the token URL)")
	cmd.Flags().BoolVar(&decode, "decode", false, "also print the decoded header and claims")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		audience string
		jwksURL  string
	)

	cmd := &cobra.Command{
		Use:   "verify [assertion|-]",
		Short: "Verify an assertion against the issuer's published keys",
		Long: `Verify checks the RS256 signature of an assertion with the JWKS of the service account
named in its iss claim, and validates aud, iat and exp. Reads the assertion from stdin when the
argument is "-" or missing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readAssertion(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			_, claims, err := assertion.Decode(token)
			if err != nil {
				return err
			}

			if jwksURL == "" {
				jwksURL = verifier.JWKSURL(a.cfg.JWKSURLTemplate, claims.Issuer)
			}
			if audience == "" {
				audience = a.cfg.TokenURL
			}

			v, err := verifier.New(jwksURL, verifier.WithLogger(a.stdLogger()))
			if err != nil {
				return err
			}
			defer v.Close()

			result, err := v.Verify(cmd.Context(), token, audience)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&audience, "audience", "", "expected aud claim (defaults to the token URL)")
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "JWKS endpoint (defaults to the issuer's published keys)")
	return cmd
}

func readAssertion(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return strings.TrimSpace(args[0]), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read assertion: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("no assertion given")
	}
	return token, nil
}
