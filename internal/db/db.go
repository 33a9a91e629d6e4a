// Package db is the SQLite store behind the directory reads, the booking
// ledger, and the admission transaction.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps sql.DB for the walk booking core.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens the database at path and creates tables if they don't exist.
//
// Every transaction is opened with BEGIN IMMEDIATE (_txlock=immediate), so a
// transaction holds the write lock from its first statement. Admission relies
// on this to serialize check-and-flip on the approved count.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: sqlDB, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS walkers (
			id TEXT PRIMARY KEY,
			user_id TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			photo_url TEXT NOT NULL DEFAULT '',
			about TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dogs (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			breed TEXT NOT NULL DEFAULT '',
			age INTEGER NOT NULL DEFAULT 0,
			photo_url TEXT NOT NULL DEFAULT '',
			walker_id TEXT REFERENCES walkers(id),
			meet_and_greet_done BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS walk_blocks (
			id TEXT PRIMARY KEY,
			walker_id TEXT NOT NULL REFERENCES walkers(id),
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			is_group BOOLEAN NOT NULL DEFAULT 0,
			capacity INTEGER NOT NULL CHECK (capacity >= 1),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			walk_block_id TEXT NOT NULL REFERENCES walk_blocks(id),
			customer_id TEXT NOT NULL,
			dog_id TEXT NOT NULL REFERENCES dogs(id),
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// One non-rejected booking per customer per walk block.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_customer
			ON bookings(walk_block_id, customer_id) WHERE status != 'rejected'`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_block_status ON bookings(walk_block_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_walk_blocks_walker_date ON walk_blocks(walker_id, date, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_dogs_owner ON dogs(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dogs_walker ON dogs(walker_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

type scanner interface {
	Scan(dest ...any) error
}
