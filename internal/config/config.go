package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultSQLiteDSN = "tournaments.db?_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
)

type Config struct {
	DBDriver        string
	DatabaseURL     string
	MigrationsPath  string
	JWTSecretKey    string
	ServerPort      int
	SessionLifetime time.Duration
	LogLevel        slog.Level
	AllowedOrigins  []string
}

// Load reads the configuration from the environment. A .env file is picked up
// when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		DBDriver:       getEnv("DB_DRIVER", DriverSQLite),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
		JWTSecretKey:   os.Getenv("JWT_SECRET_KEY"),
	}

	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = defaultSQLiteDSN
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	cfg.SessionLifetime, err = time.ParseDuration(getEnv("SESSION_LIFETIME", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_LIFETIME environment variable: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(getEnv("LOG_LEVEL", "info")))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
