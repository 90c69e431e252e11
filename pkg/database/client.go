// Package database provides the SQLite client and migration utilities
// backing the Telemetry Store (§4.3).
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds SQLite connection settings.
type Config struct {
	// Path is the filesystem location of the SQLite database file.
	Path string

	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Client wraps the database/sql handle. The Telemetry Store serializes all
// writes through a single mutex-held connection (§5), so MaxOpenConns
// defaults to 1 to let SQLite's own locking do the rest.
type Client struct {
	db *sql.DB
}

// DB returns the underlying connection for direct queries and health checks.
func (c *Client) DB() *sql.DB { return c.db }

// Close closes the underlying connection.
func (c *Client) Close() error { return c.db.Close() }

// NewClient opens the SQLite database at cfg.Path, applies pending
// migrations, and returns a ready-to-use Client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database: Config.Path must not be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	return &Client{db: db}, nil
}

// runMigrations applies every pending embedded migration, using
// golang-migrate's sqlite3 driver against the database/sql handle — the
// driver only issues portable SQLite statements, so it applies cleanly
// regardless of whether the connection came from mattn/go-sqlite3 or, as
// here, the pure-Go modernc.org/sqlite driver.
func runMigrations(db *sql.DB) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary built incorrectly")
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite3 migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "anna", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && len(entry.Name()) > 4 && entry.Name()[len(entry.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
