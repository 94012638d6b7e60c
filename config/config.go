// Package config loads the daemon configuration: a TOML file first, then
// environment variable overrides. A .env file next to the working directory
// is honored when present.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// HTTPConfig defines the transport listener.
type HTTPConfig struct {
	// Addr like ":8686". ENV: MEDLEY_HTTP_ADDR
	Addr string `toml:"addr" env:"MEDLEY_HTTP_ADDR"`
}

// LibraryConfig defines the media index.
type LibraryConfig struct {
	// DBPath is the SQLite file. ENV: MEDLEY_LIBRARY_DB
	DBPath string `toml:"dbPath" env:"MEDLEY_LIBRARY_DB"`
	// Roots are the media directories to index and browse.
	Roots []string `toml:"roots"`
	// Watch keeps the index current with a filesystem watcher.
	Watch bool `toml:"watch"`
}

// RadioConfig defines the station directory client.
type RadioConfig struct {
	// DirectoryURL is the base URL of the station directory service.
	// ENV: MEDLEY_RADIO_DIRECTORY
	DirectoryURL string `toml:"directoryUrl" env:"MEDLEY_RADIO_DIRECTORY"`
}

// LoggingConfig defines basic logging knobs.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. ENV: MEDLEY_LOG_LEVEL
	Level string `toml:"level" env:"MEDLEY_LOG_LEVEL"`
}

// Config aggregates the daemon configuration.
type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	Library LibraryConfig `toml:"library"`
	Radio   RadioConfig   `toml:"radio"`
	Logging LoggingConfig `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Addr: ":8686"},
		Library: LibraryConfig{DBPath: "medley.db", Watch: true},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, then the TOML file at path (if
// path is "" a missing file is fine), then environment overrides. A .env
// file is loaded into the environment first when one exists.
func Load(path string) (Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	// envdecode errors only on malformed values; unset variables keep the
	// values decided above.
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	return cfg, nil
}
