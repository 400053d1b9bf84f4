// Package config reads service settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skryldev/users-service/db"
)

const (
	defaultDriver             = "sqlite3"
	defaultDatabasePath       = "database.db"
	defaultPort               = "3000"
	defaultRequestTimeout     = 60 * time.Second
	defaultShutdownTimeout    = 15 * time.Second
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultMaxOpenConns       = 25
	defaultMaxIdleConns       = 25
	defaultConnMaxLifetime    = 5 * time.Minute

	// SQLite returns SQLITE_BUSY immediately without it; writers from
	// concurrent requests wait for the file lock instead.
	sqliteBusyTimeoutMS = "5000"
)

// Config is the complete runtime configuration.
type Config struct {
	Port               string
	LogLevel           slog.Level
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	SlowQueryThreshold time.Duration

	// DB carries driver, DSN and pool settings. Hooks are added by the caller.
	DB db.Config
}

// Addr is the listen address for http.Server.
func (c Config) Addr() string { return ":" + c.Port }

// Load reads .env (if present) and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Port:               p.str("PORT", defaultPort),
		RequestTimeout:     p.duration("REQUEST_TIMEOUT", defaultRequestTimeout),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		SlowQueryThreshold: p.duration("SLOW_QUERY_THRESHOLD", defaultSlowQueryThreshold),
		DB: db.Config{
			DriverName:      p.str("DB_DRIVER", defaultDriver),
			MaxOpenConns:    p.integer("DB_MAX_OPEN_CONNS", defaultMaxOpenConns),
			MaxIdleConns:    p.integer("DB_MAX_IDLE_CONNS", defaultMaxIdleConns),
			ConnMaxLifetime: p.duration("DB_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
			DefaultTimeout:  p.duration("DB_QUERY_TIMEOUT", 0),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(p.str("LOG_LEVEL", "info"))); err != nil {
		p.fail("LOG_LEVEL", err)
	}
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		p.fail("PORT", fmt.Errorf("%q is not a valid TCP port", cfg.Port))
	}

	dsn, err := buildDSN(cfg.DB.DriverName, &p)
	if err != nil {
		p.fail("DB_DRIVER", err)
	}
	cfg.DB.DSN = dsn

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// buildDSN resolves the data source. DATABASE_URL always wins; otherwise
// SQLite uses DATABASE_PATH and the network drivers are assembled from
// the DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME parts.
func buildDSN(driver string, p *parser) (string, error) {
	dialect, err := db.LookupDialect(driver)
	if err != nil {
		return "", err
	}
	if url := p.getenv("DATABASE_URL"); url != "" {
		return url, nil
	}

	var opts db.DriverOptions
	switch dialect.(type) {
	case db.SQLiteDialect:
		opts = db.DriverOptions{
			Database: p.str("DATABASE_PATH", defaultDatabasePath),
			Extra:    map[string]string{"_busy_timeout": sqliteBusyTimeoutMS},
		}
	default:
		opts = db.DriverOptions{
			Host:     p.str("DB_HOST", "localhost"),
			Port:     p.integer("DB_PORT", 0),
			User:     p.getenv("DB_USER"),
			Password: p.getenv("DB_PASSWORD"),
			Database: p.str("DB_NAME", "users"),
			SSLMode:  p.getenv("DB_SSLMODE"),
		}
	}
	return dialect.DSN(opts)
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("config: %s: %w", key, err))
}

func (p *parser) str(key, def string) string {
	if v := p.getenv(key); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.fail(key, fmt.Errorf("%q is not a non-negative integer", v))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		p.fail(key, fmt.Errorf("%q is not a non-negative duration", v))
		return def
	}
	return d
}
