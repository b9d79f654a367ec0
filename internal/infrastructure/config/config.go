// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for worldcore configuration.
	DefaultConfigDir = ".worldcore"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDatabaseFile is the default SQLite database file name.
	DefaultDatabaseFile = "worldcore.db"
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	SQLite  SQLiteConfig `yaml:"sqlite,omitempty"`
	Log     LogConfig    `yaml:"log,omitempty"`
	Cascade string       `yaml:"cascade,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite document store.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database. Empty means the
	// default path under the config directory.
	Path string `yaml:"path,omitempty"`
}

// LogConfig holds configuration for structured logging.
type LogConfig struct {
	Level       string `yaml:"level,omitempty"`
	Development bool   `yaml:"development,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Cascade: "delete-always",
	}
}

// Load loads configuration from the .worldcore directory in the given path.
// A missing config file yields the defaults; environment variables override
// what was read.
func Load(basePath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigFilePath(basePath))
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = filepath.Join(ConfigDir(basePath), DefaultDatabaseFile)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("WORLDCORE_DB"); path != "" {
		c.SQLite.Path = path
	}
	if level := os.Getenv("WORLDCORE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if policy := os.Getenv("WORLDCORE_CASCADE"); policy != "" {
		c.Cascade = policy
	}
}

// ConfigDir returns the path to the .worldcore config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// Exists checks if a worldcore config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}

// Write persists the config to the .worldcore directory, creating it if
// needed.
func (c *Config) Write(basePath string) error {
	dir := ConfigDir(basePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(ConfigFilePath(basePath), data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
