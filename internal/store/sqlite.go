// This file implements an SQLite-backed store.

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// Timer callbacks and HTTP handlers write concurrently; SQLite serialises
	// writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetValue(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetValue failed", "error", err, "key", key)
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SetValue(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, toMillis(time.Now()))
	if err != nil {
		slog.Error("SQLiteStore SetValue failed", "error", err, "key", key)
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) SaveReminder(r models.ReminderSchedule) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO reminders (id, text, fire_at, created_at, delivered, channel)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Text, toMillis(r.FireAt), toMillis(r.CreatedAt), r.Delivered, nilIfEmpty(r.Channel))
	if err != nil {
		slog.Error("SQLiteStore SaveReminder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to save reminder %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore SaveReminder succeeded", "id", r.ID)
	return nil
}

func (s *SQLiteStore) MarkReminderDelivered(id string, channel string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE reminders SET delivered = 1, channel = ?, delivered_at = ? WHERE id = ?`,
		nilIfEmpty(channel), toMillis(at), id)
	if err != nil {
		slog.Error("SQLiteStore MarkReminderDelivered failed", "error", err, "id", id)
		return fmt.Errorf("failed to mark reminder %s delivered: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (s *SQLiteStore) ListPendingReminders() ([]models.ReminderSchedule, error) {
	rows, err := s.db.Query(`
		SELECT id, text, fire_at, created_at, delivered, channel
		FROM reminders WHERE delivered = 0 ORDER BY fire_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reminders: %w", err)
	}
	return scanReminders(rows)
}

func (s *SQLiteStore) ListReminders() ([]models.ReminderSchedule, error) {
	rows, err := s.db.Query(`
		SELECT id, text, fire_at, created_at, delivered, channel
		FROM reminders ORDER BY fire_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	return scanReminders(rows)
}

func (s *SQLiteStore) PurgeDeliveredReminders(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM reminders WHERE delivered = 1 AND delivered_at < ?`, toMillis(before))
	if err != nil {
		slog.Error("SQLiteStore PurgeDeliveredReminders failed", "error", err)
		return 0, fmt.Errorf("failed to purge delivered reminders: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (reminder_id, channel, status, time) VALUES (?, ?, ?, ?)`,
		r.ReminderID, r.Channel, r.Status, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "reminder_id", r.ReminderID)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.ReminderID, err)
	}
	slog.Debug("SQLiteStore AddReceipt succeeded", "reminder_id", r.ReminderID, "status", r.Status)
	return nil
}

func (s *SQLiteStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT reminder_id, channel, status, time FROM receipts ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	return scanReceipts(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
