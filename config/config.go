// Package config loads the YAML configuration file. Every field has a
// default, so a missing file is not an error.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

type Config struct {
	// Model is the gateway model identifier.
	Model string `yaml:"model"`

	// BaseURL overrides the gateway base URL, mostly for proxies.
	BaseURL string `yaml:"base_url"`

	// CredentialsPath points at the JSON credential file written by the
	// login flow.
	CredentialsPath string `yaml:"credentials_path"`

	// StorePath is the SQLite session database.
	StorePath string `yaml:"store_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultPath returns the conventional config location under the user's home
// directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".codexchat", "config.yaml")
}

// Load reads the config at path. A missing file yields pure defaults; a
// present but malformed file is an error.
func Load(path string) (Config, error) {
	var cfg Config

	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config.Load: malformed config: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".codexchat")

	if c.Model == "" {
		c.Model = "gpt-5.1-codex"
	}
	if c.CredentialsPath == "" {
		c.CredentialsPath = filepath.Join(base, "auth.json")
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(base, "sessions.db")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SlogLevel maps the configured level name onto a slog.Level, defaulting to
// info for anything unrecognized.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
