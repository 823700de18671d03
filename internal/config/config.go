// Package config loads process configuration from an optional .env file
// and ADAPTEST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the resolved process configuration.
type Config struct {
	DBDriver string // sqlite|postgres
	DBPath   string // sqlite file path or postgres DSN; empty means the default path

	HTTPAddr    string
	CORSOrigins []string

	StorageKey       string
	StudyAidsKey     string // flashcards, bookmarks and notes shared by every attempt
	NumericTolerance float64

	SnapshotKeep  int
	PruneEvery    int           // saves between engine-side prunes
	PruneInterval time.Duration // gocron prune interval while serving

	LogLevel slog.Level
	LogFile  string
}

// Load reads the .env files (missing files are ignored; existing
// environment variables win) and then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (Config, error) {
	cfg := Config{
		DBDriver:     envOr("ADAPTEST_DB_DRIVER", "sqlite"),
		DBPath:       os.Getenv("ADAPTEST_DB"),
		HTTPAddr:     envOr("ADAPTEST_HTTP_ADDR", ":8080"),
		CORSOrigins:  csvOr("ADAPTEST_CORS_ORIGINS", "http://localhost:3000"),
		StorageKey:   envOr("ADAPTEST_STORAGE_KEY", "adaptest-session"),
		StudyAidsKey: envOr("ADAPTEST_STUDY_AIDS_KEY", "adaptest-study-aids"),
		LogFile:      os.Getenv("ADAPTEST_LOG_FILE"),
	}

	var err error
	if cfg.NumericTolerance, err = envFloat("ADAPTEST_NUMERIC_TOLERANCE", 0); err != nil {
		return Config{}, err
	}
	if cfg.NumericTolerance < 0 {
		return Config{}, fmt.Errorf("ADAPTEST_NUMERIC_TOLERANCE: must not be negative")
	}
	if cfg.SnapshotKeep, err = envInt("ADAPTEST_SNAPSHOT_KEEP", 5); err != nil {
		return Config{}, err
	}
	if cfg.PruneEvery, err = envInt("ADAPTEST_PRUNE_EVERY", 50); err != nil {
		return Config{}, err
	}
	if cfg.PruneInterval, err = envDuration("ADAPTEST_PRUNE_INTERVAL", time.Hour); err != nil {
		return Config{}, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(envOr("ADAPTEST_LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("ADAPTEST_LOG_LEVEL: %w", err)
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("ADAPTEST_DB_DRIVER: unsupported driver %q", cfg.DBDriver)
	}
	if cfg.DBDriver == "postgres" && cfg.DBPath == "" {
		return Config{}, fmt.Errorf("ADAPTEST_DB: a DSN is required for postgres")
	}
	return cfg, nil
}

// Logger builds a text logger writing to w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

// FileLogger builds a logger for full-screen commands that must not write
// to the terminal. Without ADAPTEST_LOG_FILE logs are discarded. The
// returned close function is never nil.
func (c Config) FileLogger() (*slog.Logger, func() error, error) {
	if c.LogFile == "" {
		return c.Logger(io.Discard), func() error { return nil }, nil
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return c.Logger(f), f.Close, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func envFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", k)
	}
	return d, nil
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
