package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the connection and storage settings for shelf.
type Config struct {
	APIURL      string
	APIKey      string
	RealtimeURL string
	PollSeconds int
	DataDir     string
	LogLevel    string
}

const (
	appName            = "shelf"
	defaultPollSeconds = 8
	defaultLogLevel    = "info"

	envAPIURL = "SHELF_API_URL"
	envAPIKey = "SHELF_API_KEY"
)

// ErrNotConfigured is returned by Validate when the project URL or key is missing.
var ErrNotConfigured = errors.New("api_url and api_key must be set")

// DefaultPath returns the platform config file location, usually
// ~/.config/shelf/config.toml.
func DefaultPath() (string, error) {
	scope := gap.NewScope(gap.User, appName)
	path, err := scope.ConfigPath("config.toml")
	if err != nil {
		return "", fmt.Errorf("getting config path: %w", err)
	}
	return path, nil
}

func defaultDataDir() string {
	scope := gap.NewScope(gap.User, appName)
	dir, err := scope.DataPath("")
	if err != nil {
		return mustExpand("~/.local/share/" + appName)
	}
	return dir
}

// Load locates and parses the config, falling back to defaults when missing.
// SHELF_API_URL and SHELF_API_KEY override the file.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{PollSeconds: defaultPollSeconds, LogLevel: defaultLogLevel}

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg.DataDir = defaultDataDir()
		applyEnv(&cfg)
		return cfg, nil
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL      string `toml:"api_url"`
		APIKey      string `toml:"api_key"`
		RealtimeURL string `toml:"realtime_url"`
		PollSeconds int    `toml:"poll_seconds"`
		DataDir     string `toml:"data_dir"`
		LogLevel    string `toml:"log_level"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIURL = strings.TrimSpace(raw.APIURL)
	cfg.APIKey = strings.TrimSpace(raw.APIKey)
	cfg.RealtimeURL = strings.TrimSpace(raw.RealtimeURL)
	if raw.PollSeconds > 0 {
		cfg.PollSeconds = raw.PollSeconds
	}
	if lvl := strings.ToLower(strings.TrimSpace(raw.LogLevel)); lvl != "" {
		if _, err := log.ParseLevel(lvl); err != nil {
			return Config{}, fmt.Errorf("parse config: log_level %q: %w", raw.LogLevel, err)
		}
		cfg.LogLevel = lvl
	}

	cfg.DataDir = strings.TrimSpace(raw.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	} else {
		cfg.DataDir = mustExpand(cfg.DataDir)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(envAPIURL)); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(envAPIKey)); v != "" {
		cfg.APIKey = v
	}
}

// Validate reports whether the config can reach a backend.
func (c Config) Validate() error {
	if c.APIURL == "" || c.APIKey == "" {
		return ErrNotConfigured
	}
	return nil
}

// PollInterval is the fallback polling cadence.
func (c Config) PollInterval() time.Duration {
	if c.PollSeconds <= 0 {
		return defaultPollSeconds * time.Second
	}
	return time.Duration(c.PollSeconds) * time.Second
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// SessionPath is where the signed-in session is persisted.
func (c Config) SessionPath() string {
	return filepath.Join(c.dataDir(), "session.toml")
}

// CachePath is the snapshot cache database.
func (c Config) CachePath() string {
	return filepath.Join(c.dataDir(), "cache.db")
}

// LogPath is the log file used while the TUI owns the terminal.
func (c Config) LogPath() string {
	return filepath.Join(c.dataDir(), "shelf.log")
}

func (c Config) dataDir() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return defaultDataDir()
	}
	return c.DataDir
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		def, err := DefaultPath()
		if err != nil {
			return "", err
		}
		return def, nil
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
