// Package database owns the SQLite connection and schema for the
// booking assistant.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sql.DB connection pool.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// New opens the database at path and runs migrations.
func New(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode plus a busy timeout so concurrent writers queue instead of
	// failing immediately with SQLITE_BUSY. Transactions take the write
	// lock up front; a deferred read-to-write upgrade cannot honor the
	// busy timeout and the booking path is check-then-insert.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			price REAL NOT NULL CHECK (price >= 0),
			duration INTEGER NOT NULL DEFAULT 60,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			service_id INTEGER NOT NULL,
			booking_date TEXT NOT NULL,
			booking_time TEXT NOT NULL,
			total_amount REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (service_id) REFERENCES services(id)
		)`,

		// One occupying booking per slot. Rejected/cancelled rows free the
		// slot, so the index only covers occupying statuses.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot
			ON bookings(booking_date, booking_time)
			WHERE status NOT IN ('rejected', 'cancelled')`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_services_active ON services(is_active)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Backup copies the database file to dest after a WAL checkpoint.
func (db *DB) Backup(dest string) error {
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}

	src, err := os.ReadFile(db.path)
	if err != nil {
		return fmt.Errorf("read database file: %w", err)
	}
	if err := os.WriteFile(dest, src, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// CleanupBackups removes backup files in dir older than retention.
// Returns the number of files deleted.
func (db *DB) CleanupBackups(dir string, retention time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup dir: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

// SeedServices inserts services that do not exist yet. Used to load the
// salon's service menu from configuration on startup; existing rows keep
// their current price and active flag.
func (db *DB) SeedServices(ctx context.Context, services []SeedService) error {
	for _, s := range services {
		_, err := db.ExecContext(ctx, `
			INSERT INTO services (name, description, price, duration, is_active)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(name) DO NOTHING`,
			s.Name, s.Description, s.Price, s.Duration,
		)
		if err != nil {
			return fmt.Errorf("seed service %s: %w", s.Name, err)
		}
	}
	return nil
}

// SeedService describes one configured service for SeedServices.
type SeedService struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
	Duration    int     `yaml:"duration"`
}
