package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Timestamps are stored as unix milliseconds so both backends compare them
// the same way.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// scanReminders reads rows of (id, text, fire_at, created_at, delivered, channel).
func scanReminders(rows *sql.Rows) ([]models.ReminderSchedule, error) {
	defer rows.Close()
	var out []models.ReminderSchedule
	for rows.Next() {
		var (
			r                 models.ReminderSchedule
			fireAt, createdAt int64
			channel           sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Text, &fireAt, &createdAt, &r.Delivered, &channel); err != nil {
			return nil, fmt.Errorf("scan reminder failed: %w", err)
		}
		r.FireAt = fromMillis(fireAt)
		r.CreatedAt = fromMillis(createdAt)
		r.Channel = channel.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}
	return out, nil
}

func scanReceipts(rows *sql.Rows) ([]models.Receipt, error) {
	defer rows.Close()
	var out []models.Receipt
	for rows.Next() {
		var r models.Receipt
		if err := rows.Scan(&r.ReminderID, &r.Channel, &r.Status, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return out, nil
}
