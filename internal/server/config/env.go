package config

import "github.com/kelseyhightower/envconfig"

// parseEnv overlays GOPHAUTH_* variables. Unset variables leave the field
// as is; durations use Go syntax ("15m").
func parseEnv(config *Config) error {
	return envconfig.Process(EnvPrefix, config)
}
