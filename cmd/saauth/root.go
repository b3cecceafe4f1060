package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AmmannChristian/go-saauth/internal/config"
	"github.com/AmmannChristian/go-saauth/oauth2client"
	"github.com/AmmannChristian/go-saauth/serviceaccount"
)

// app carries state shared by the subcommands once the root pre-run has loaded the configuration.
type app struct {
	vip        *viper.Viper
	configPath string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{vip: config.New()}

	root := &cobra.Command{
		Use:   "saauth",
		Short: "Service account OAuth2 tokens via the JWT-bearer grant",
		Long: `saauth signs JWT-bearer assertions with a service account key, exchanges them for
OAuth2 access tokens and verifies assertions against the account's published keys.

Settings come from flags, SAAUTH_* environment variables and an optional saauth.yaml.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	flags.StringP("credentials", "k", "", "service account key file (JSON)")
	flags.StringSliceP("scope", "s", nil, "OAuth2 scope to request (repeatable)")
	flags.String("token-url", "", "token endpoint, also the assertion audience")
	flags.Duration("timeout", 0, "timeout for a single token exchange")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	for key, flag := range map[string]string{
		"credentials_file": "credentials",
		"scopes":           "scope",
		"token_url":        "token-url",
		"timeout":          "timeout",
		"log_level":        "log-level",
	} {
		if err := a.vip.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err) // flag names above are static
		}
	}

	root.AddCommand(newTokenCmd(a), newAssertionCmd(a), newVerifyCmd(a))
	return root
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.vip, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	return nil
}

// stdLogger adapts the slog logger to the Printf-style Logger the libraries accept.
func (a *app) stdLogger() *log.Logger {
	return slog.NewLogLogger(a.logger.Handler(), slog.LevelDebug)
}

func (a *app) credentials() (serviceaccount.Credentials, error) {
	if a.cfg.CredentialsFile == "" {
		return serviceaccount.Credentials{}, errors.New("a credentials file is required (--credentials or SAAUTH_CREDENTIALS_FILE)")
	}

	creds, err := serviceaccount.LoadFile(a.cfg.CredentialsFile)
	if err != nil {
		return serviceaccount.Credentials{}, err
	}
	a.logger.Debug("loaded service account", "email", creds.ClientEmail, "key_id", creds.PrivateKeyID)
	return creds, nil
}

func (a *app) client() (*oauth2client.Client, error) {
	creds, err := a.credentials()
	if err != nil {
		return nil, err
	}

	client, err := oauth2client.New(creds,
		oauth2client.WithTokenURL(a.cfg.TokenURL),
		oauth2client.WithExpiryThreshold(a.cfg.ExpiryThreshold),
		oauth2client.WithTimeout(a.cfg.Timeout),
		oauth2client.WithLogger(a.stdLogger()),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}
