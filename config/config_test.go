package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paisabook/paisabook/common"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DatabasePath)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PAISABOOK_DATABASE_PATH", "/tmp/ledger-test.db")
	t.Setenv("PAISABOOK_CURRENCY", "BDT")
	t.Setenv("PAISABOOK_LOG_LEVEL", "debug")
	t.Setenv("PAISABOOK_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ledger-test.db", cfg.DatabasePath)
	assert.Equal(t, "BDT", cfg.DefaultCurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	t.Setenv("PAISABOOK_LOG_FORMAT", "xml")

	_, err := Load()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid",
			cfg:  Config{DatabasePath: "/tmp/x.db", DefaultCurrency: "USD", LogLevel: "info", LogFormat: "console"},
		},
		{
			name:    "missing database path",
			cfg:     Config{DefaultCurrency: "USD", LogLevel: "info", LogFormat: "console"},
			wantErr: common.ErrMissingConfig,
		},
		{
			name:    "missing currency",
			cfg:     Config{DatabasePath: "/tmp/x.db", LogLevel: "info", LogFormat: "console"},
			wantErr: common.ErrMissingConfig,
		},
		{
			name:    "bad log level",
			cfg:     Config{DatabasePath: "/tmp/x.db", DefaultCurrency: "USD", LogLevel: "loud", LogFormat: "console"},
			wantErr: common.ErrInvalidConfig,
		},
		{
			name:    "bad log format",
			cfg:     Config{DatabasePath: "/tmp/x.db", DefaultCurrency: "USD", LogLevel: "info", LogFormat: "plain"},
			wantErr: common.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	}

	for _, tt := range tests {
		cfg := Config{LogLevel: tt.level}
		got, err := cfg.SlogLevel()
		require.NoError(t, err, "level %q", tt.level)
		assert.Equal(t, tt.want, got, "level %q", tt.level)
	}

	cfg := Config{LogLevel: "shouting"}
	_, err := cfg.SlogLevel()
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data", "x.db"), ExpandPath("~/data/x.db"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/absolute/path.db", ExpandPath("/absolute/path.db"))
	assert.Equal(t, "", ExpandPath(""))

	t.Setenv("PAISABOOK_TEST_DIR", "/srv/ledger")
	assert.Equal(t, "/srv/ledger/x.db", ExpandPath("$PAISABOOK_TEST_DIR/x.db"))
}
