// Package config loads saauth settings from a YAML file, SAAUTH_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SAAUTH_CREDENTIALS_FILE.
const EnvPrefix = "SAAUTH"

// Config holds the settings shared by the saauth commands.
// CredentialsFile is checked by the commands that sign, since verification works without a key.
type Config struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	Scopes          []string      `mapstructure:"scopes"            validate:"dive,required"`
	TokenURL        string        `mapstructure:"token_url"         validate:"required,url"`
	ExpiryThreshold time.Duration `mapstructure:"expiry_threshold"  validate:"gte=0"`
	Timeout         time.Duration `mapstructure:"timeout"           validate:"gte=0"`
	JWKSURLTemplate string        `mapstructure:"jwks_url_template" validate:"required,contains={email}"`
	LogLevel        string        `mapstructure:"log_level"         validate:"required,oneof=debug info warn error"`
}

// New returns a viper instance with defaults and environment binding applied.
// Callers may bind command-line flags to it before calling Load.
func New() *viper.Viper {
	vip := viper.New()

	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()

	// Every key needs a default so Unmarshal sees environment overrides.
	vip.SetDefault("credentials_file", "")
	vip.SetDefault("scopes", []string{})
	vip.SetDefault("token_url", "https://www.googleapis.com/oauth2/v4/token")
	vip.SetDefault("expiry_threshold", time.Minute)
	vip.SetDefault("timeout", 30*time.Second)
	vip.SetDefault("jwks_url_template", "https://www.googleapis.com/service_accounts/v1/jwk/{email}")
	vip.SetDefault("log_level", "info")

	return vip
}

// Load reads the config file at path into vip, then unmarshals and validates the result.
// An empty path searches for saauth.yaml in the working directory and $HOME/.config/saauth;
// a missing file is not an error in that case.
func Load(vip *viper.Viper, path string) (*Config, error) {
	if vip == nil {
		vip = New()
	}

	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("saauth")
		vip.AddConfigPath(".")
		vip.AddConfigPath("$HOME/.config/saauth")
	}
	vip.SetConfigType("yaml")

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// SlogLevel converts LogLevel to a slog.Level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
