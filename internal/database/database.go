package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite handle holding all marketplace state.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == ":memory:" {
		// Every pool connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("db_path", path).Msg("database initialized")
	return &DB{DB: sqlDB, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT,
			role TEXT NOT NULL DEFAULT 'customer',
			blocked BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			vendor_id TEXT NOT NULL,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT,
			price INTEGER NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 60,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			service_name TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			vendor_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			scheduled_date TEXT NOT NULL,
			scheduled_time TEXT NOT NULL,
			total_price INTEGER NOT NULL,
			payment_method TEXT NOT NULL,
			notes TEXT,
			address TEXT,
			proposed_date TEXT NOT NULL DEFAULT '',
			proposed_time TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS escrow_entries (
			booking_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			amount_held INTEGER NOT NULL,
			amount_released INTEGER NOT NULL DEFAULT 0,
			amount_refunded INTEGER NOT NULL DEFAULT 0,
			release_scheduled_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS disputes (
			id TEXT PRIMARY KEY,
			booking_id TEXT NOT NULL,
			opened_by TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			reason TEXT NOT NULL,
			description TEXT,
			evidence TEXT,
			resolution TEXT NOT NULL DEFAULT '',
			split_customer_pct INTEGER NOT NULL DEFAULT 0,
			resolved_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			resolved_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			booking_id TEXT UNIQUE NOT NULL,
			customer_id TEXT NOT NULL,
			vendor_id TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT,
			read BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_vendor_slot ON bookings(vendor_id, scheduled_date, scheduled_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_vendor ON bookings(vendor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_escrow_release_due ON escrow_entries(state, release_scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_disputes_booking ON disputes(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_disputes_status ON disputes(status)`,
		`CREATE INDEX IF NOT EXISTS idx_services_vendor ON services(vendor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_services_category ON services(category, active)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("exec %q: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
