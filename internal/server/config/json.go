package config

import (
	"encoding/json"
	"os"

	"github.com/chatvault/chatvault/internal/flagx"
	"github.com/chatvault/chatvault/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON
// configuration files. It uses timex.Duration for interval fields, which
// accepts both string values such as "30m" and integer nanoseconds. After
// unmarshalling, non-empty fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr      string         `json:"endpoint_addr"`
	DatabaseDSN       string         `json:"database_dsn"`
	SecretKey         string         `json:"secret_key"`
	EncryptionKey     string         `json:"encryption_key"`
	AllowEphemeralKey *bool          `json:"allow_ephemeral_key"`
	FallbackAPIKey    string         `json:"fallback_api_key"`
	SessionTTL        timex.Duration `json:"session_ttl"`
	UpstreamBaseURL   string         `json:"upstream_base_url"`
	DefaultModel      string         `json:"default_model"`
}

// parseJson overlays configuration values from a JSON file, located via the
// -c/-config command-line flags, onto the provided Config. If no file is
// given, nothing happens. If the file cannot be read or contains invalid
// JSON, the function panics: a broken explicit config is a startup error.
//
// Only fields present and non-empty in the file override defaults, so a
// partial file is safe.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.EncryptionKey != "" {
		config.EncryptionKey = c.EncryptionKey
	}
	if c.AllowEphemeralKey != nil {
		config.AllowEphemeralKey = *c.AllowEphemeralKey
	}
	if c.FallbackAPIKey != "" {
		config.FallbackAPIKey = c.FallbackAPIKey
	}
	if c.SessionTTL.Duration != 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.UpstreamBaseURL != "" {
		config.UpstreamBaseURL = c.UpstreamBaseURL
	}
	if c.DefaultModel != "" {
		config.DefaultModel = c.DefaultModel
	}
}
