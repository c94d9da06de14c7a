package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the SQLite handle holding reservations, affiliates, send logs and
// the PMS sync queue.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: coherent.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: sqlDB, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reservation_number TEXT UNIQUE NOT NULL,
            guest_name TEXT NOT NULL,
            email TEXT NOT NULL,
            phone TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            notes TEXT NOT NULL DEFAULT '',
            check_in_date TEXT NOT NULL,
            num_nights INTEGER NOT NULL,
            num_units INTEGER NOT NULL,
            guest_counts TEXT NOT NULL DEFAULT '{}',
            room_rate REAL NOT NULL DEFAULT 0,
            meal_plans TEXT NOT NULL DEFAULT '{}',
            total_meal_price REAL NOT NULL DEFAULT 0,
            total_amount REAL NOT NULL DEFAULT 0,
            discount_amount REAL NOT NULL DEFAULT 0,
            payment_amount REAL NOT NULL DEFAULT 0,
            coupon_code TEXT NOT NULL DEFAULT '',
            reservation_status TEXT NOT NULL DEFAULT 'pending',
            payment_status TEXT NOT NULL DEFAULT 'pending',
            payment_method TEXT NOT NULL,
            payment_intent_id TEXT NOT NULL DEFAULT '',
            cancellation_fee REAL NOT NULL DEFAULT 0,
            cancelled_at DATETIME,
            sync_status TEXT NOT NULL DEFAULT '',
            pending_count INTEGER NOT NULL DEFAULT 0,
            last_pending_checked_at DATETIME,
            synced_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS affiliates (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            affiliate_code TEXT UNIQUE NOT NULL,
            coupon_code TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            bank_name TEXT NOT NULL DEFAULT '',
            bank_branch TEXT NOT NULL DEFAULT '',
            account_type TEXT NOT NULL DEFAULT '',
            account_number TEXT NOT NULL DEFAULT '',
            account_holder TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS affiliate_payouts (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            affiliate_id INTEGER NOT NULL REFERENCES affiliates(id),
            amount REAL NOT NULL,
            period TEXT NOT NULL,
            paid_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS email_send_logs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reservation_id INTEGER NOT NULL,
            email_type TEXT NOT NULL,
            recipient_type TEXT NOT NULL,
            sent_at DATETIME NOT NULL,
            UNIQUE(reservation_id, email_type, recipient_type)
        )`,
		`CREATE TABLE IF NOT EXISTS reminder_logs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reservation_id INTEGER NOT NULL,
            reminder_type TEXT NOT NULL,
            sent_at DATETIME NOT NULL,
            UNIQUE(reservation_id, reminder_type)
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            reservation_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_check_in ON reservations(check_in_date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(reservation_status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_sync_status ON reservations(sync_status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_coupon ON reservations(coupon_code)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
