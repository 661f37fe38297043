// Package config loads termgpt settings from ~/.config/termgpt/config.toml.
// A missing file yields defaults; the API key itself is never read here, it
// comes from the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HistoryDir     string        // transcript directory
	Model          string        // Gemini model name
	RequestTimeout time.Duration // upper bound for one remote call
	LogFile        string
	LogLevel       string
}

type tomlConfig struct {
	HistoryDir            string `toml:"history_dir"`
	Model                 string `toml:"model"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	LogFile               string `toml:"log_file"`
	LogLevel              string `toml:"log_level"`
}

func Default() *Config {
	return &Config{
		HistoryDir:     "chat_history",
		Model:          "gemini-2.0-flash",
		RequestTimeout: 120 * time.Second,
		LogFile:        "termgpt.log",
		LogLevel:       "INFO",
	}
}

// Load reads the config file if present, falling back to defaults for any
// missing field.
func Load() (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil // use defaults
	}
	return LoadFile(filepath.Join(home, ".config", "termgpt", "config.toml"))
}

// LoadFile reads a specific config file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}

	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		slog.Warn("Couldn't parse config file, using defaults", "path", path, "error", err)
		return cfg, nil
	}

	if tc.HistoryDir != "" {
		cfg.HistoryDir = tc.HistoryDir
	}
	if tc.Model != "" {
		cfg.Model = tc.Model
	}
	if tc.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(tc.RequestTimeoutSeconds) * time.Second
	}
	if tc.LogFile != "" {
		cfg.LogFile = tc.LogFile
	}
	if tc.LogLevel != "" {
		cfg.LogLevel = tc.LogLevel
	}
	return cfg, nil
}
