package remind

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/google/uuid"
)

// DefaultDeliveryTimeout bounds one delivery attempt at fire time.
const DefaultDeliveryTimeout = 30 * time.Second

// Deliverer hands a fired reminder to exactly one delivery channel and
// reports which one was used.
type Deliverer interface {
	Deliver(ctx context.Context, r models.ReminderSchedule) string
}

// Repo persists reminder schedules so they survive restarts.
type Repo interface {
	SaveReminder(r models.ReminderSchedule) error
	MarkReminderDelivered(id string, channel string, at time.Time) error
	ListPendingReminders() ([]models.ReminderSchedule, error)
}

// Scheduler arms one-shot reminders. There is no cancel path: once armed, a
// reminder fires at its instant or the process ends first.
type Scheduler struct {
	timer     Timer
	deliverer Deliverer
	repo      Repo
	now       func() time.Time
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]models.ReminderSchedule
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRepo persists reminders through repo.
func WithRepo(repo Repo) Option {
	return func(s *Scheduler) { s.repo = repo }
}

// WithClock overrides the time source used to resolve expressions.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithDeliveryTimeout bounds each delivery attempt.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(timer Timer, deliverer Deliverer, opts ...Option) *Scheduler {
	s := &Scheduler{
		timer:     timer,
		deliverer: deliverer,
		now:       time.Now,
		timeout:   DefaultDeliveryTimeout,
		pending:   make(map[string]models.ReminderSchedule),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleDirective resolves the directive's time expression and arms a
// reminder for it. It returns false, without side effects, when the directive
// is incomplete or its time does not resolve.
func (s *Scheduler) ScheduleDirective(ctx context.Context, d models.ReminderDirective) (models.ReminderSchedule, bool) {
	if !d.Schedulable() {
		slog.Debug("Scheduler.ScheduleDirective: directive missing time or text, not scheduling")
		return models.ReminderSchedule{}, false
	}
	fireAt, ok := Resolve(d.ReminderTimeExpr, s.now())
	if !ok {
		slog.Debug("Scheduler.ScheduleDirective: time unresolved, not scheduling", "expr", d.ReminderTimeExpr)
		return models.ReminderSchedule{}, false
	}
	r, err := s.Schedule(ctx, fireAt, d.ReminderText)
	if err != nil {
		slog.Error("Scheduler.ScheduleDirective: failed to arm reminder", "error", err)
		return models.ReminderSchedule{}, false
	}
	return r, true
}

// Schedule arms one delivery of text at fireAt.
func (s *Scheduler) Schedule(ctx context.Context, fireAt time.Time, text string) (models.ReminderSchedule, error) {
	if strings.TrimSpace(text) == "" {
		return models.ReminderSchedule{}, fmt.Errorf("reminder text cannot be empty")
	}
	r := models.ReminderSchedule{
		ID:        "rem_" + uuid.NewString(),
		FireAt:    fireAt,
		Text:      text,
		CreatedAt: s.now(),
	}

	if s.repo != nil {
		if err := s.repo.SaveReminder(r); err != nil {
			// The in-memory timer still arms; only restart survival is lost.
			slog.Error("Scheduler.Schedule: failed to persist reminder", "id", r.ID, "error", err)
		}
	}
	if err := s.arm(r); err != nil {
		return models.ReminderSchedule{}, err
	}
	slog.Info("Scheduler.Schedule: reminder armed", "id", r.ID, "fire_at", fireAt)
	return r, nil
}

// Recover re-arms undelivered reminders found in the repo. Overdue ones fire
// immediately.
func (s *Scheduler) Recover(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	reminders, err := s.repo.ListPendingReminders()
	if err != nil {
		return 0, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	armed := 0
	for _, r := range reminders {
		s.mu.Lock()
		_, already := s.pending[r.ID]
		s.mu.Unlock()
		if already {
			continue
		}
		if err := s.arm(r); err != nil {
			slog.Error("Scheduler.Recover: failed to re-arm reminder", "id", r.ID, "error", err)
			continue
		}
		armed++
	}
	if armed > 0 {
		slog.Info("Scheduler.Recover: re-armed reminders", "count", armed)
	}
	return armed, nil
}

// Pending lists armed reminders ordered by fire time.
func (s *Scheduler) Pending() []models.ReminderSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ReminderSchedule, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

// Timers describes the armed one-shot timers behind Pending.
func (s *Scheduler) Timers() []models.TimerInfo {
	timers := s.timer.ListActive()
	sort.Slice(timers, func(i, j int) bool { return timers[i].ExpiresAt.Before(timers[j].ExpiresAt) })
	return timers
}

func (s *Scheduler) arm(r models.ReminderSchedule) error {
	s.mu.Lock()
	s.pending[r.ID] = r
	s.mu.Unlock()

	if _, err := s.timer.ScheduleAt(r.FireAt, func() { s.fire(r) }); err != nil {
		s.mu.Lock()
		delete(s.pending, r.ID)
		s.mu.Unlock()
		return fmt.Errorf("failed to arm timer: %w", err)
	}
	return nil
}

// fire delivers a reminder once and retires it.
func (s *Scheduler) fire(r models.ReminderSchedule) {
	s.mu.Lock()
	if _, ok := s.pending[r.ID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, r.ID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	channel := s.deliverer.Deliver(ctx, r)
	r.Delivered = true
	r.Channel = channel
	slog.Info("Scheduler.fire: reminder delivered", "id", r.ID, "channel", channel)

	if s.repo != nil {
		if err := s.repo.MarkReminderDelivered(r.ID, channel, s.now()); err != nil {
			slog.Error("Scheduler.fire: failed to mark reminder delivered", "id", r.ID, "error", err)
		}
	}
}
