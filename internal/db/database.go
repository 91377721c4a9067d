// Package db stores restaurants, schedules, tables and reservations in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reserva/internal/model"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = model.ErrNotFound

// ErrStatusConflict is returned when a status change lost a race.
var ErrStatusConflict = model.ErrStatusConflict

// DB wraps sql.DB for the reservation service.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens the database at path and creates the schema.
// Write transactions start in IMMEDIATE mode so concurrent bookings queue on the
// database write lock instead of failing at commit time.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.createTables(); err != nil {
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS restaurants (
			client_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			locale TEXT NOT NULL DEFAULT 'es',
			notify_email TEXT,
			telegram_chat_id INTEGER NOT NULL DEFAULT 0,
			whatsapp_number TEXT,
			phone TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS schedules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			capacity INTEGER NOT NULL,
			min_party_size INTEGER NOT NULL DEFAULT 1,
			max_party_size INTEGER NOT NULL,
			special_groups_enabled BOOLEAN NOT NULL DEFAULT 0,
			special_groups_condition TEXT,
			special_groups_contact_method TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (client_id) REFERENCES restaurants(client_id)
		)`,

		// schedule_id NULL means the configuration applies restaurant-wide
		`CREATE TABLE IF NOT EXISTS table_configs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_id TEXT NOT NULL,
			schedule_id INTEGER,
			table_name TEXT NOT NULL,
			seats INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			min_party_size INTEGER NOT NULL DEFAULT 0,
			max_party_size INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (client_id) REFERENCES restaurants(client_id),
			FOREIGN KEY (schedule_id) REFERENCES schedules(id)
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			reservation_date TEXT NOT NULL,
			reservation_time TEXT NOT NULL,
			party_size INTEGER NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			customer_name TEXT NOT NULL,
			customer_email TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			special_requests TEXT,
			table_config_id INTEGER,
			status TEXT NOT NULL DEFAULT 'pending',
			reminder_sent_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (client_id) REFERENCES restaurants(client_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_schedules_client_day ON schedules(client_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_table_configs_client ON table_configs(client_id, schedule_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations(client_id, reservation_date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_created ON reservations(client_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_email ON reservations(client_id, customer_email, status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
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

// Tx is a write transaction holding the SQLite write lock.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && db.logger != nil {
			db.logger.Error().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
