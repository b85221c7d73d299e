// Package config handles configuration for the server component:
// defaults, an optional JSON file, command-line flags and GOPHAUTH_*
// environment variables, applied in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "GOPHAUTH"

// Config holds runtime settings for the gophauth server.
//
// DatabaseDSN selects the storage backend: empty keeps users and refresh
// tokens in process memory, anything else is a pgx PostgreSQL DSN.
// SecretKey signs access tokens (HS256) and must be overridden outside
// development.
type Config struct {
	HTTPAddr            string        `envconfig:"HTTP_ADDR"`
	GRPCAddr            string        `envconfig:"GRPC_ADDR"`
	DatabaseDSN         string        `envconfig:"DATABASE_DSN"`
	SecretKey           string        `envconfig:"SECRET_KEY"`
	AccessTokenTTL      time.Duration `envconfig:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTLDays int           `envconfig:"REFRESH_TOKEN_TTL_DAYS"`
	SweepInterval       time.Duration `envconfig:"SWEEP_INTERVAL"`
	LogLevel            string        `envconfig:"LOG_LEVEL"`
	LogFormat           string        `envconfig:"LOG_FORMAT"`
	SeedUsers           bool          `envconfig:"SEED_USERS"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":3000"
	c.GRPCAddr = ":50051"
	c.DatabaseDSN = ""
	c.SecretKey = "change-me-in-production"
	c.AccessTokenTTL = 15 * time.Minute
	c.RefreshTokenTTLDays = 7
	c.SweepInterval = time.Hour
	c.LogLevel = "info"
	c.LogFormat = "json"
	c.SeedUsers = true
}

// RefreshTokenTTL is the absolute lifetime of a refresh token.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLDays) * 24 * time.Hour
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key must not be empty"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("access token ttl must be positive, got %s", c.AccessTokenTTL))
	}
	if c.RefreshTokenTTLDays <= 0 {
		errs = append(errs, fmt.Errorf("refresh token ttl must be positive, got %d days", c.RefreshTokenTTLDays))
	}
	if c.HTTPAddr == "" && c.GRPCAddr == "" {
		errs = append(errs, errors.New("at least one of http or grpc address must be set"))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config (or GOPHAUTH_CONFIG), then flags, then the environment.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
