// Package config loads host configuration for the ledger from defaults, an
// optional .env file, PAISABOOK_* environment variables, and an optional YAML
// config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/paisabook/paisabook/common"
)

// Config holds everything a host needs to construct the storage and engine.
type Config struct {
	// DatabasePath is the SQLite database file.
	DatabasePath string
	// DefaultCurrency seeds the settings record on first use.
	DefaultCurrency string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is json or console.
	LogFormat string
}

// Load reads configuration with the following precedence: defaults, then a
// paisabook.yaml config file (current directory or ~/.config/paisabook),
// then PAISABOOK_* environment variables. A .env file in the working
// directory is loaded into the environment first if present.
func Load() (*Config, error) {
	// Missing .env is the common case, not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("database.path", defaultDatabasePath())
	v.SetDefault("currency", "USD")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix("PAISABOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("paisabook")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "paisabook"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrInvalidConfig, err)
		}
	}

	cfg := &Config{
		DatabasePath:    ExpandPath(v.GetString("database.path")),
		DefaultCurrency: v.GetString("currency"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database path", common.ErrMissingConfig)
	}
	if c.DefaultCurrency == "" {
		return fmt.Errorf("%w: default currency", common.ErrMissingConfig)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// SlogLevel converts the configured log level to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: log level %q", common.ErrInvalidConfig, c.LogLevel)
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "paisabook.db"
	}
	return filepath.Join(home, ".local", "share", "paisabook", "paisabook.db")
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
