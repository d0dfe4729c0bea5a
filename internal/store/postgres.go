// This file implements a PostgreSQL-backed store.

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetValue(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = $1`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetValue failed", "error", err, "key", key)
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return v, true, nil
}

func (s *PostgresStore) SetValue(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, toMillis(time.Now()))
	if err != nil {
		slog.Error("PostgresStore SetValue failed", "error", err, "key", key)
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) SaveReminder(r models.ReminderSchedule) error {
	_, err := s.db.Exec(`
		INSERT INTO reminders (id, text, fire_at, created_at, delivered, channel)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			fire_at = EXCLUDED.fire_at,
			delivered = EXCLUDED.delivered,
			channel = EXCLUDED.channel`,
		r.ID, r.Text, toMillis(r.FireAt), toMillis(r.CreatedAt), r.Delivered, nilIfEmpty(r.Channel))
	if err != nil {
		slog.Error("PostgresStore SaveReminder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to save reminder %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore SaveReminder succeeded", "id", r.ID)
	return nil
}

func (s *PostgresStore) MarkReminderDelivered(id string, channel string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE reminders SET delivered = TRUE, channel = $1, delivered_at = $2 WHERE id = $3`,
		nilIfEmpty(channel), toMillis(at), id)
	if err != nil {
		slog.Error("PostgresStore MarkReminderDelivered failed", "error", err, "id", id)
		return fmt.Errorf("failed to mark reminder %s delivered: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (s *PostgresStore) ListPendingReminders() ([]models.ReminderSchedule, error) {
	rows, err := s.db.Query(`
		SELECT id, text, fire_at, created_at, delivered, channel
		FROM reminders WHERE delivered = FALSE ORDER BY fire_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reminders: %w", err)
	}
	return scanReminders(rows)
}

func (s *PostgresStore) ListReminders() ([]models.ReminderSchedule, error) {
	rows, err := s.db.Query(`
		SELECT id, text, fire_at, created_at, delivered, channel
		FROM reminders ORDER BY fire_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	return scanReminders(rows)
}

func (s *PostgresStore) PurgeDeliveredReminders(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM reminders WHERE delivered = TRUE AND delivered_at < $1`, toMillis(before))
	if err != nil {
		slog.Error("PostgresStore PurgeDeliveredReminders failed", "error", err)
		return 0, fmt.Errorf("failed to purge delivered reminders: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) AddReceipt(r models.Receipt) error {
	_, err := s.db.Exec(`INSERT INTO receipts (reminder_id, channel, status, time) VALUES ($1, $2, $3, $4)`,
		r.ReminderID, r.Channel, r.Status, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "reminder_id", r.ReminderID)
		return fmt.Errorf("failed to insert receipt for %s: %w", r.ReminderID, err)
	}
	return nil
}

func (s *PostgresStore) GetReceipts() ([]models.Receipt, error) {
	rows, err := s.db.Query(`SELECT reminder_id, channel, status, time FROM receipts ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetReceipts query failed", "error", err)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	return scanReceipts(rows)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
