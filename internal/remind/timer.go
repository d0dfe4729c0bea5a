package remind

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
)

// Timer arms deferred functions.
type Timer interface {
	// ScheduleAt runs fn once at when; a past instant runs it right away.
	ScheduleAt(when time.Time, fn func()) (string, error)
	// ListActive describes every timer that has not fired yet.
	ListActive() []models.TimerInfo
	// Stop disarms every pending timer.
	Stop()
}

// timerEntry tracks information about an armed timer
type timerEntry struct {
	timer       *time.Timer
	scheduledAt time.Time
	expiresAt   time.Time
	description string
}

// SimpleTimer implements Timer on time.AfterFunc.
type SimpleTimer struct {
	timers map[string]*timerEntry
	mu     sync.RWMutex
	nextID int64
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	return &SimpleTimer{
		timers: make(map[string]*timerEntry),
	}
}

// ScheduleAt arms fn for when.
func (t *SimpleTimer) ScheduleAt(when time.Time, fn func()) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("timer function cannot be nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)

	now := time.Now()
	delay := when.Sub(now)
	if delay < 0 {
		slog.Warn("SimpleTimer.ScheduleAt: time is in the past, executing immediately", "id", id, "when", when)
		delay = 0
	}

	entry := &timerEntry{
		scheduledAt: now,
		expiresAt:   now.Add(delay),
		description: fmt.Sprintf("fires at %s", when.Format(time.RFC3339)),
	}
	entry.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		fn()
	})
	t.timers[id] = entry

	slog.Debug("SimpleTimer.ScheduleAt armed", "id", id, "delay", delay)
	return id, nil
}

// Stop disarms all timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, entry := range t.timers {
		entry.timer.Stop()
	}
	slog.Info("SimpleTimer stopped all timers", "count", len(t.timers))
	t.timers = make(map[string]*timerEntry)
}

// ListActive returns information about all armed timers.
func (t *SimpleTimer) ListActive() []models.TimerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]models.TimerInfo, 0, len(t.timers))
	now := time.Now()
	for id, entry := range t.timers {
		remaining := entry.expiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		result = append(result, models.TimerInfo{
			ID:          id,
			ScheduledAt: entry.scheduledAt,
			ExpiresAt:   entry.expiresAt,
			Remaining:   remaining.String(),
			Description: entry.description,
		})
	}
	return result
}
