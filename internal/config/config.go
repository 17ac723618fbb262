// Package config loads marg settings from defaults, a YAML file, .env files and
// the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full marg configuration.
type Config struct {
	KoboDB           string `yaml:"kobo_db" env:"MARG_KOBO_DB"`
	BooksDir         string `yaml:"books_dir" env:"MARG_BOOKS_DIR"`
	TiddlersDir      string `yaml:"tiddlers_dir" env:"MARG_TIDDLERS_DIR"`
	StateDir         string `yaml:"state_dir" env:"MARG_STATE_DIR"`
	LogLevel         string `yaml:"log_level" env:"MARG_LOG_LEVEL"`
	ContextSentences int    `yaml:"context_sentences" env:"MARG_CONTEXT_SENTENCES"`
	Creator          string `yaml:"creator" env:"MARG_CREATOR"`
}

// DefaultConfig returns defaults for a Kobo mounted at /media/$USER/KOBOeReader.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	mount := filepath.Join("/media", os.Getenv("USER"), "KOBOeReader")
	return &Config{
		KoboDB:           filepath.Join(mount, ".kobo", "KoboReader.sqlite"),
		BooksDir:         mount,
		TiddlersDir:      filepath.Join(home, "tiddlers"),
		LogLevel:         "info",
		ContextSentences: 2,
		Creator:          "marg",
	}
}

// DefaultPath returns XDG_CONFIG_HOME/marg/config.yaml or
// ~/.config/marg/config.yaml.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "marg", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "marg", "config.yaml")
}

// Load builds the configuration. An empty path reads DefaultPath if it exists;
// an explicit path must exist. dotenv names the .env files to read, ".env"
// when none are given. Variables already set in the environment win over
// .env values.
func Load(path string, dotenv ...string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.KoboDB == "" {
		return fmt.Errorf("kobo_db is required")
	}
	if c.BooksDir == "" {
		return fmt.Errorf("books_dir is required")
	}
	if c.TiddlersDir == "" {
		return fmt.Errorf("tiddlers_dir is required")
	}
	if c.ContextSentences < 0 || c.ContextSentences > 50 {
		return fmt.Errorf("context_sentences must be between 0 and 50")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug, info, warn and error to slog levels. Empty means
// info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", s)
	}
}
