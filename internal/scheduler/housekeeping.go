package scheduler

import (
	"log/slog"
	"time"
)

const (
	// DefaultPurgeExpr runs the delivered-reminder purge once an hour.
	DefaultPurgeExpr = "17 * * * *"
	// DefaultRetention keeps delivered reminders visible for a day.
	DefaultRetention = 24 * time.Hour
)

// Purger deletes delivered reminders older than a cutoff.
type Purger interface {
	PurgeDeliveredReminders(before time.Time) (int64, error)
}

// Housekeeper removes delivered reminders once their retention has passed.
type Housekeeper struct {
	purger    Purger
	retention time.Duration
	now       func() time.Time
}

func NewHousekeeper(p Purger, retention time.Duration) *Housekeeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Housekeeper{purger: p, retention: retention, now: time.Now}
}

// PurgeDelivered runs one purge pass and returns how many reminders it removed.
func (h *Housekeeper) PurgeDelivered() int64 {
	cutoff := h.now().Add(-h.retention)
	n, err := h.purger.PurgeDeliveredReminders(cutoff)
	if err != nil {
		slog.Error("Housekeeper.PurgeDelivered failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("Housekeeper.PurgeDelivered: removed delivered reminders", "count", n, "cutoff", cutoff)
	}
	return n
}

// Register adds the purge job to s.
func (h *Housekeeper) Register(s *Scheduler, expr string) error {
	if expr == "" {
		expr = DefaultPurgeExpr
	}
	return s.AddJob("purge-delivered-reminders", expr, func() { h.PurgeDelivered() })
}
