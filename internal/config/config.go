// Package config loads dashboard settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kok-dashboard/pkg/database"
)

// Config holds all runtime settings
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Dashboard DashboardConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds store settings
type DatabaseConfig struct {
	Driver          string
	Path            string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// DashboardConfig holds presentation behavior toggles
type DashboardConfig struct {
	StationCacheTTL    time.Duration
	DropEmptyChartRows bool
}

// LoadConfig reads configuration from environment variables (optionally .env).
// A malformed value is an error; an unset one takes its default.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	l := &loader{}
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            l.getInt("SERVER_PORT", 8080),
			ReadTimeout:     l.getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    l.getDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     l.getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: l.getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", database.DriverSQLite),
			Path:            getEnv("DB_PATH", "kok_data.db"),
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    l.getInt("DB_MAX_OPEN_CONNS", 4),
			MaxIdleConns:    l.getInt("DB_MAX_IDLE_CONNS", 0),
			ConnMaxLifetime: l.getDuration("DB_CONN_MAX_LIFETIME", 0),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		Dashboard: DashboardConfig{
			StationCacheTTL:    l.getDuration("STATION_CACHE_TTL", 0),
			DropEmptyChartRows: l.getBool("PIVOT_DROP_EMPTY_CHART_ROWS", false),
		},
	}

	if len(l.errs) > 0 {
		return nil, errors.Join(l.errs...)
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to start the server
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("DB_PATH is required for the sqlite3 driver")
		}
	case database.DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %q", c.Database.Driver)
	}

	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.New("database connection limits must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.Logging.Level)
	}

	if c.Dashboard.StationCacheTTL < 0 {
		return errors.New("STATION_CACHE_TTL must not be negative")
	}

	return nil
}

// Addr returns the host:port string for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// StoreConfig returns the settings the dashboard opens the store with. The
// SQLite file is opened read-only.
func (c *Config) StoreConfig() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Path:            c.Database.Path,
		URL:             c.Database.URL,
		ReadOnly:        c.Database.Driver == database.DriverSQLite,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loader collects parse errors so every bad variable is reported at once
type loader struct {
	errs []error
}

func (l *loader) getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %s", key, value))
		return defaultValue
	}
	return n
}

func (l *loader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %s", key, value))
		return defaultValue
	}
	return d
}

func (l *loader) getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %s", key, value))
		return defaultValue
	}
	return b
}
