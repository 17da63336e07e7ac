package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the reader client
type Config struct {
	// Bookshelf backend connection
	Bookshelf struct {
		URL     string        `yaml:"url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"bookshelf"`

	// Logging configuration
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Reader holds the progress tracking knobs
	Reader struct {
		// Debounce is the quiet period before saving progress of continuous formats
		Debounce time.Duration `yaml:"debounce"`
		// SettleDelay absorbs navigation events caused by the restore seek. The
		// terminal viewer waits it out; zero lets it start tracking as soon as
		// the restored position is shown.
		SettleDelay time.Duration `yaml:"settle_delay"`
		// AutosaveInterval is the period of the background retry of unsaved
		// progress. Zero disables it.
		AutosaveInterval time.Duration `yaml:"autosave_interval"`
		// EPUBLocationChars is the number of characters per generated EPUB location
		EPUBLocationChars int `yaml:"epub_location_chars"`
	} `yaml:"reader"`

	// File paths
	Paths struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"paths"`
}

// Default returns a config populated with default values
func Default() *Config {
	cfg := &Config{}
	cfg.Bookshelf.URL = ""
	cfg.Bookshelf.Timeout = 30 * time.Second
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Reader.Debounce = time.Second
	cfg.Reader.SettleDelay = time.Second
	cfg.Reader.AutosaveInterval = 30 * time.Second
	cfg.Reader.EPUBLocationChars = 1024
	cfg.Paths.DataDir = "./data"
	return cfg
}

// Load builds the configuration.
// Priority: 1) environment variables, 2) config file, 3) defaults.
// Command line flags are applied by the caller on top of the result.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFile(cfg, configFile); err != nil {
			return nil, err
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Bookshelf.URL = strings.TrimSuffix(strings.TrimSpace(cfg.Bookshelf.URL), "/")
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for config file %q: %w", path, err)
		}
		path = abs
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file is not an error, defaults and env still apply
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding onto the populated struct keeps defaults for absent keys
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(cfg *Config) error {
	if url := os.Getenv("BOOKSHELF_URL"); url != "" {
		cfg.Bookshelf.URL = url
	}
	if token := os.Getenv("BOOKSHELF_TOKEN"); token != "" {
		cfg.Bookshelf.Token = token
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.Paths.DataDir = dir
	}

	var err error
	if cfg.Bookshelf.Timeout, err = getDurationFromEnv("BOOKSHELF_TIMEOUT", cfg.Bookshelf.Timeout); err != nil {
		return err
	}
	if cfg.Reader.Debounce, err = getDurationFromEnv("READER_DEBOUNCE", cfg.Reader.Debounce); err != nil {
		return err
	}
	if cfg.Reader.SettleDelay, err = getDurationFromEnv("READER_SETTLE_DELAY", cfg.Reader.SettleDelay); err != nil {
		return err
	}
	if cfg.Reader.AutosaveInterval, err = getDurationFromEnv("READER_AUTOSAVE_INTERVAL", cfg.Reader.AutosaveInterval); err != nil {
		return err
	}
	if cfg.Reader.EPUBLocationChars, err = getIntFromEnv("EPUB_LOCATION_CHARS", cfg.Reader.EPUBLocationChars); err != nil {
		return err
	}
	return nil
}

// Validate checks that the configuration can be used to talk to the backend
func (c *Config) Validate() error {
	var missing []string
	if c.Bookshelf.URL == "" {
		missing = append(missing, "BOOKSHELF_URL")
	}
	if len(missing) > 0 {
		return &ConfigError{
			Field: strings.Join(missing, ", "),
			Msg:   "required configuration values are missing",
		}
	}

	if !strings.HasPrefix(c.Bookshelf.URL, "http://") && !strings.HasPrefix(c.Bookshelf.URL, "https://") {
		return &ConfigError{Field: "BOOKSHELF_URL", Msg: "must start with http:// or https://"}
	}
	if c.Bookshelf.Timeout < 0 {
		return &ConfigError{Field: "BOOKSHELF_TIMEOUT", Msg: "must not be negative"}
	}
	if c.Reader.Debounce < 0 {
		return &ConfigError{Field: "READER_DEBOUNCE", Msg: "must not be negative"}
	}
	if c.Reader.SettleDelay < 0 {
		return &ConfigError{Field: "READER_SETTLE_DELAY", Msg: "must not be negative"}
	}
	if c.Reader.AutosaveInterval < 0 {
		return &ConfigError{Field: "READER_AUTOSAVE_INTERVAL", Msg: "must not be negative"}
	}
	if c.Reader.EPUBLocationChars <= 0 {
		return &ConfigError{Field: "EPUB_LOCATION_CHARS", Msg: "must be positive"}
	}
	return nil
}

// DatabasePath is the SQLite file inside the data directory
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "shelf-reader.db")
}

// DocumentsDir is where downloaded books are kept
func (c *Config) DocumentsDir() string {
	return filepath.Join(c.Paths.DataDir, "books")
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Msg
}

func getDurationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, &ConfigError{Field: key, Msg: fmt.Sprintf("invalid duration %q", value)}
	}
	return d, nil
}

func getIntFromEnv(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback, &ConfigError{Field: key, Msg: fmt.Sprintf("invalid integer %q", value)}
	}
	return i, nil
}
