// Package config reads the server's settings from the environment.
//
// Every setting has a default, so `go run ./cmd/server` works with nothing
// set. Load collects ALL problems before failing, so a broken deployment
// reports every bad variable at once instead of one per restart.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort            = 8080
	DefaultDatabaseURL     = "data/github-scraper.db"
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
	DefaultGitHubAPIURL    = "https://api.github.com"
	DefaultGitHubTimeout   = 10 * time.Second
)

type Config struct {
	Port int

	// DatabaseURL is a SQLite file path (or ":memory:") or a postgres:// URL.
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	GitHubAPIURL  string
	GitHubTimeout time.Duration

	Log Logging

	CORSOrigins []string
}

// Logging is consumed by logging.New.
type Logging struct {
	Level  slog.Level
	Format string // "text" or "json"
	File   string // optional; logs go to stdout AND this file when set
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding anything already set in the real environment.
// Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from environment variables.
func Load() (Config, error) {
	var problems []error

	cfg := Config{
		Port:            envInt("PORT", DefaultPort, &problems),
		DatabaseURL:     envString("DATABASE_URL", DefaultDatabaseURL),
		MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", DefaultMaxOpenConns, &problems),
		MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", DefaultMaxIdleConns, &problems),
		ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", DefaultConnMaxLifetime, &problems),
		GitHubAPIURL:    envString("GITHUB_API_URL", DefaultGitHubAPIURL),
		GitHubTimeout:   envDuration("GITHUB_TIMEOUT", DefaultGitHubTimeout, &problems),
		Log: Logging{
			Level:  envLevel("LOG_LEVEL", slog.LevelInfo, &problems),
			Format: strings.ToLower(envString("LOG_FORMAT", "text")),
			File:   envString("LOG_FILE", ""),
		},
		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),
	}

	// === RANGE CHECKS ===
	if cfg.Port < 1 || cfg.Port > 65535 {
		problems = append(problems, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port))
	}
	if cfg.DatabaseURL == "" {
		problems = append(problems, errors.New("DATABASE_URL must not be empty"))
	}
	if cfg.MaxOpenConns < 1 {
		problems = append(problems, fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1, got %d", cfg.MaxOpenConns))
	}
	if cfg.MaxIdleConns < 0 {
		problems = append(problems, fmt.Errorf("DB_MAX_IDLE_CONNS must not be negative, got %d", cfg.MaxIdleConns))
	}
	if cfg.GitHubTimeout <= 0 {
		problems = append(problems, fmt.Errorf("GITHUB_TIMEOUT must be positive, got %s", cfg.GitHubTimeout))
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		problems = append(problems, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.Log.Format))
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return cfg, nil
}

// Addr is the listen address for http.Server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int, problems *[]error) int {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		*problems = append(*problems, fmt.Errorf("%s: expected integer, got %q", key, raw))
		return def
	}
	return v
}

func envDuration(key string, def time.Duration, problems *[]error) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		*problems = append(*problems, fmt.Errorf("%s: expected duration like \"10s\", got %q", key, raw))
		return def
	}
	return v
}

func envLevel(key string, def slog.Level, problems *[]error) slog.Level {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		*problems = append(*problems, fmt.Errorf("%s: expected debug, info, warn or error, got %q", key, raw))
		return def
	}
	return level
}

func envList(key string, def []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
