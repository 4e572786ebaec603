package config

import (
	"flag"
	"os"
	"time"

	"github.com/chatvault/chatvault/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   base64 AES-256 encryption key for stored credentials
//	-f string   operator fallback provider API key
//	-t int      session token validity, minutes
//	-u string   upstream chat completion base URL
//	-m string   default model name
//	-ephemeral-key   allow an ephemeral encryption key when none is configured
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the -c/-config flags handled by
// the JSON layer. Duration flags are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-k", "-f", "-t", "-u", "-m", "-ephemeral-key"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "JWT secret key")
	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "base64 credential encryption key")
	fs.StringVar(&config.FallbackAPIKey, "f", config.FallbackAPIKey, "fallback provider API key")
	fs.StringVar(&config.UpstreamBaseURL, "u", config.UpstreamBaseURL, "upstream completion base URL")
	fs.StringVar(&config.DefaultModel, "m", config.DefaultModel, "default model name")
	fs.BoolVar(&config.AllowEphemeralKey, "ephemeral-key", config.AllowEphemeralKey, "generate an ephemeral encryption key when none is configured")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session token validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
}
