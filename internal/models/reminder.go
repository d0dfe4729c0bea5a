package models

import "time"

// ReminderSchedule is a one-shot notification armed for a future instant.
type ReminderSchedule struct {
	ID        string    `json:"id"`
	FireAt    time.Time `json:"fire_at"`
	Text      string    `json:"text"`
	Delivered bool      `json:"delivered"`
	Channel   string    `json:"channel,omitempty"` // channel that delivered it, set at fire time
	CreatedAt time.Time `json:"created_at"`
}

// TimerInfo describes an armed timer.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description"`
}
