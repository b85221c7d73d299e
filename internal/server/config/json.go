package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// jsonConfig is the on-disk shape of the config file. Absent keys leave the
// current value untouched; durations accept "15m" or integer nanoseconds.
type jsonConfig struct {
	HTTPAddr            *string         `json:"http_addr"`
	GRPCAddr            *string         `json:"grpc_addr"`
	DatabaseDSN         *string         `json:"database_dsn"`
	SecretKey           *string         `json:"secret_key"`
	AccessTokenTTL      *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTLDays *int            `json:"refresh_token_ttl_days"`
	SweepInterval       *timex.Duration `json:"sweep_interval"`
	LogLevel            *string         `json:"log_level"`
	LogFormat           *string         `json:"log_format"`
	SeedUsers           *bool           `json:"seed_users"`
}

// parseJson overlays values from the JSON file selected by -c/-config or
// GOPHAUTH_CONFIG. Nothing happens when no file is named.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args, EnvPrefix+"_CONFIG")
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setIf(&config.HTTPAddr, c.HTTPAddr)
	setIf(&config.GRPCAddr, c.GRPCAddr)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	setIf(&config.RefreshTokenTTLDays, c.RefreshTokenTTLDays)
	setIf(&config.LogLevel, c.LogLevel)
	setIf(&config.LogFormat, c.LogFormat)
	setIf(&config.SeedUsers, c.SeedUsers)
	if c.AccessTokenTTL != nil {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.SweepInterval != nil {
		config.SweepInterval = c.SweepInterval.Duration
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
