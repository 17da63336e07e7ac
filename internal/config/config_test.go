package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BOOKSHELF_URL", "BOOKSHELF_TOKEN", "BOOKSHELF_TIMEOUT",
		"LOG_LEVEL", "LOG_FORMAT", "DATA_DIR",
		"READER_DEBOUNCE", "READER_SETTLE_DELAY", "READER_AUTOSAVE_INTERVAL", "EPUB_LOCATION_CHARS",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Bookshelf.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, time.Second, cfg.Reader.Debounce)
	assert.Equal(t, time.Second, cfg.Reader.SettleDelay)
	assert.Equal(t, 30*time.Second, cfg.Reader.AutosaveInterval)
	assert.Equal(t, 1024, cfg.Reader.EPUBLocationChars)
	assert.Equal(t, "./data", cfg.Paths.DataDir)
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
bookshelf:
  url: "http://localhost:8080/"
  token: "file-token"
  timeout: 5s
logging:
  level: debug
reader:
  debounce: 250ms
  epub_location_chars: 512
paths:
  data_dir: /tmp/shelf
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Bookshelf.URL, "trailing slash is trimmed")
	assert.Equal(t, "file-token", cfg.Bookshelf.Token)
	assert.Equal(t, 5*time.Second, cfg.Bookshelf.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format, "absent keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Reader.Debounce)
	assert.Equal(t, time.Second, cfg.Reader.SettleDelay)
	assert.Equal(t, 512, cfg.Reader.EPUBLocationChars)
	assert.Equal(t, "/tmp/shelf", cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join("/tmp/shelf", "shelf-reader.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/tmp/shelf", "books"), cfg.DocumentsDir())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
bookshelf:
  url: "http://from-file:8080"
  token: "file-token"
reader:
  settle_delay: 3s
  autosave_interval: 1m
`)
	t.Setenv("BOOKSHELF_URL", "https://from-env")
	t.Setenv("BOOKSHELF_TOKEN", "env-token")
	t.Setenv("READER_SETTLE_DELAY", "100ms")
	t.Setenv("READER_AUTOSAVE_INTERVAL", "10s")
	t.Setenv("EPUB_LOCATION_CHARS", "2048")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://from-env", cfg.Bookshelf.URL)
	assert.Equal(t, "env-token", cfg.Bookshelf.Token)
	assert.Equal(t, 100*time.Millisecond, cfg.Reader.SettleDelay)
	assert.Equal(t, 10*time.Second, cfg.Reader.AutosaveInterval)
	assert.Equal(t, 2048, cfg.Reader.EPUBLocationChars)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Reader.EPUBLocationChars)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "bookshelf: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("READER_DEBOUNCE", "soon")

	_, err := Load("")
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "READER_DEBOUNCE", cfgErr.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantErr bool
	}{
		{"valid", func(c *Config) {}, "", false},
		{"missing url", func(c *Config) { c.Bookshelf.URL = "" }, "BOOKSHELF_URL", true},
		{"bad scheme", func(c *Config) { c.Bookshelf.URL = "ftp://x" }, "BOOKSHELF_URL", true},
		{"negative debounce", func(c *Config) { c.Reader.Debounce = -time.Second }, "READER_DEBOUNCE", true},
		{"negative settle", func(c *Config) { c.Reader.SettleDelay = -time.Second }, "READER_SETTLE_DELAY", true},
		{"zero location size", func(c *Config) { c.Reader.EPUBLocationChars = 0 }, "EPUB_LOCATION_CHARS", true},
		{"negative autosave", func(c *Config) { c.Reader.AutosaveInterval = -time.Second }, "READER_AUTOSAVE_INTERVAL", true},
		{"zero autosave is allowed", func(c *Config) { c.Reader.AutosaveInterval = 0 }, "", false},
		{"zero settle is allowed", func(c *Config) { c.Reader.SettleDelay = 0 }, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Bookshelf.URL = "http://localhost:8080"
			tt.mutate(cfg)

			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
