// Package store provides storage backends for ReplyPipe.
//
// It persists armed reminders, delivery receipts and a small key/value table
// for device state. An in-memory store is used when no database is configured.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// ErrReminderNotFound is returned when a reminder id is unknown.
var ErrReminderNotFound = errors.New("reminder not found")

// KV is a string key/value table.
type KV interface {
	// GetValue returns the stored value and whether the key exists.
	GetValue(key string) (string, bool, error)
	SetValue(key, value string) error
}

// ReminderStore persists reminder schedules.
type ReminderStore interface {
	SaveReminder(r models.ReminderSchedule) error
	MarkReminderDelivered(id string, channel string, at time.Time) error
	ListPendingReminders() ([]models.ReminderSchedule, error)
	ListReminders() ([]models.ReminderSchedule, error)
	PurgeDeliveredReminders(before time.Time) (int64, error)
}

// ReceiptStore records delivery attempts.
type ReceiptStore interface {
	AddReceipt(r models.Receipt) error
	GetReceipts() ([]models.Receipt, error)
}

// Store is everything ReplyPipe persists.
type Store interface {
	KV
	ReminderStore
	ReceiptStore
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN  string
	Type string // "sqlite3" or "postgres"
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithPostgresDSN selects the PostgreSQL store.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Type = "postgres"
	}
}

// WithSQLiteDSN selects the SQLite store.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Type = "sqlite3"
	}
}

// DetectDSNType returns "postgres" for URL or key=value style PostgreSQL DSNs
// and "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	for _, key := range []string{"host=", "user=", "dbname=", "sslmode="} {
		if strings.Contains(dsn, key) {
			return "postgres"
		}
	}
	return "sqlite3"
}

// Open builds the store selected by opts, or an in-memory store when no DSN
// is set.
func Open(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		return NewInMemoryStore(), nil
	case cfg.Type == "postgres":
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}

// InMemoryStore keeps everything in process memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	values    map[string]string
	reminders map[string]models.ReminderSchedule
	delivered map[string]time.Time
	receipts  []models.Receipt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		values:    make(map[string]string),
		reminders: make(map[string]models.ReminderSchedule),
		delivered: make(map[string]time.Time),
	}
}

func (s *InMemoryStore) GetValue(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *InMemoryStore) SetValue(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *InMemoryStore) SaveReminder(r models.ReminderSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[r.ID] = r
	return nil
}

func (s *InMemoryStore) MarkReminderDelivered(id string, channel string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return ErrReminderNotFound
	}
	r.Delivered = true
	r.Channel = channel
	s.reminders[id] = r
	s.delivered[id] = at
	return nil
}

func (s *InMemoryStore) ListPendingReminders() ([]models.ReminderSchedule, error) {
	return s.list(func(r models.ReminderSchedule) bool { return !r.Delivered }), nil
}

func (s *InMemoryStore) ListReminders() ([]models.ReminderSchedule, error) {
	return s.list(func(models.ReminderSchedule) bool { return true }), nil
}

func (s *InMemoryStore) list(keep func(models.ReminderSchedule) bool) []models.ReminderSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ReminderSchedule, 0, len(s.reminders))
	for _, r := range s.reminders {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

func (s *InMemoryStore) PurgeDeliveredReminders(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, at := range s.delivered {
		if at.Before(before) {
			delete(s.delivered, id)
			delete(s.reminders, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) AddReceipt(r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *InMemoryStore) GetReceipts() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
