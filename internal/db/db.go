package db

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/bracket-engine/internal/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);
`

func InitDB(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == config.DriverSQLite {
		// A single writer avoids SQLITE_BUSY churn under concurrent requests.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// Session storage for scs/sqlite3store lives next to the app tables.
		if _, err := db.Exec(createSessionsTable); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create sessions table: %w", err)
		}
	}

	slog.Info("database connected", "driver", driver)
	return db, nil
}

func RunMigrations(db *sqlx.DB, sourceURL string) error {
	var (
		driver database.Driver
		err    error
	)
	switch db.DriverName() {
	case config.DriverSQLite:
		driver, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	case config.DriverPostgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		return fmt.Errorf("no migration driver for %q", db.DriverName())
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, db.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}
