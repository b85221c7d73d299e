package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags overlays Config fields from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":3000")
//	-g string   gRPC bind address (e.g. ":50051")
//	-d string   PostgreSQL DSN; empty keeps everything in memory
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, days
//	-w int      expired refresh token sweep interval, minutes (0 disables)
//	-l string   log level (debug, info, warn, error)
//	-f string   log format (json, console)
//	-seed bool  seed demo users into the in-memory directory
//
// Unknown flags are filtered out first so other components may define
// their own.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-t", "-r", "-w", "-l", "-f", "-seed"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessMinutes := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token validity (in minutes)")
	fs.IntVar(&config.RefreshTokenTTLDays, "r", config.RefreshTokenTTLDays, "refresh token validity (in days)")
	sweepMinutes := fs.Int("w", int(config.SweepInterval.Minutes()), "expired token sweep interval (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format")
	fs.BoolVar(&config.SeedUsers, "seed", config.SeedUsers, "seed demo users")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// minute flags only win when given, so sub-minute values from JSON survive
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenTTL = time.Duration(*accessMinutes) * time.Minute
		case "w":
			config.SweepInterval = time.Duration(*sweepMinutes) * time.Minute
		}
	})
	return nil
}
