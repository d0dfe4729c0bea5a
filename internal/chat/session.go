// Package chat runs conversation turns: it sends the user's message to the
// backend, classifies the reply, records both sides in the transcript and
// fans the reply out to speech and reminder scheduling.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/device"
	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/outline"
	"github.com/BTreeMap/ReplyPipe/internal/reply"
	"github.com/BTreeMap/ReplyPipe/internal/voice"
	"github.com/google/uuid"
)

// Backend is the remote language model.
type Backend interface {
	// Reply returns the raw reply payload for one utterance.
	Reply(ctx context.Context, utterance string) (any, error)
	// BreakDown returns free-text steps for a goal.
	BreakDown(ctx context.Context, goal string) (string, error)
}

// Speaker speaks a classified reply.
type Speaker interface {
	Dispatch(ctx context.Context, resp models.ClassifiedResponse) voice.Selection
}

// ReminderScheduler arms reminders requested by the backend.
type ReminderScheduler interface {
	ScheduleDirective(ctx context.Context, d models.ReminderDirective) (models.ReminderSchedule, bool)
}

// FeatureTracker records which features were used.
type FeatureTracker interface {
	Use(feature string) error
}

// TurnResult is the outcome of one Send.
type TurnResult struct {
	Entry    models.ChatEntry         `json:"entry"`
	Reminder *models.ReminderSchedule `json:"reminder,omitempty"`
}

// Session holds one conversation. Turns may run concurrently; each appends its
// user entry before contacting the backend and its bot entry afterwards.
type Session struct {
	backend   Backend
	speaker   Speaker
	reminders ReminderScheduler
	features  FeatureTracker
	plans     *outline.Registry
	now       func() time.Time

	mu         sync.RWMutex
	transcript []models.ChatEntry

	speaking sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithSpeaker speaks every reply in the background.
func WithSpeaker(s Speaker) Option {
	return func(sess *Session) { sess.speaker = s }
}

// WithReminders schedules reminder replies.
func WithReminders(r ReminderScheduler) Option {
	return func(sess *Session) { sess.reminders = r }
}

// WithFeatureTracker records feature usage.
func WithFeatureTracker(f FeatureTracker) Option {
	return func(sess *Session) { sess.features = f }
}

// WithPlanRegistry stores plans in r instead of a private registry.
func WithPlanRegistry(r *outline.Registry) Option {
	return func(sess *Session) { sess.plans = r }
}

// WithClock overrides the transcript time source.
func WithClock(now func() time.Time) Option {
	return func(sess *Session) { sess.now = now }
}

// NewSession creates a session talking to backend.
func NewSession(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		plans:   outline.NewRegistry(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send runs one conversation turn. It only fails on invalid input; backend
// failures become a fallback entry.
func (s *Session) Send(ctx context.Context, text string) (TurnResult, error) {
	req := models.ChatRequest{Message: text}
	if err := req.Validate(); err != nil {
		return TurnResult{}, err
	}

	turnID := uuid.NewString()
	s.append(models.ChatEntry{TurnID: turnID, Sender: models.SenderUser, Text: text})

	var resp models.ClassifiedResponse
	raw, err := s.backend.Reply(ctx, text)
	if err != nil {
		slog.Warn("Session.Send: backend unavailable", "turn_id", turnID, "error", err)
		resp = models.ClassifiedResponse{Kind: models.ResponseKindFallback, Text: models.TransportFailureText}
	} else {
		resp = reply.Classify(reply.Normalize(raw))
	}
	slog.Debug("Session.Send: reply classified", "turn_id", turnID, "kind", resp.Kind)

	entry := s.append(models.ChatEntry{TurnID: turnID, Sender: models.SenderBot, Text: resp.DisplayText(), Response: &resp})
	result := TurnResult{Entry: entry}
	s.use(device.FeatureChat)

	if resp.Kind == models.ResponseKindReminder && resp.Reminder != nil && s.reminders != nil {
		if r, ok := s.reminders.ScheduleDirective(ctx, *resp.Reminder); ok {
			result.Reminder = &r
			s.use(device.FeatureReminder)
		}
	}

	if s.speaker != nil {
		s.speaking.Add(1)
		go func() {
			defer s.speaking.Done()
			s.speaker.Dispatch(context.WithoutCancel(ctx), resp)
		}()
		s.use(device.FeatureVoice)
	}
	return result, nil
}

// BreakDown asks the backend to split goal into steps and stores the
// resulting plan.
func (s *Session) BreakDown(ctx context.Context, goal string) (*outline.Plan, error) {
	req := models.GoalRequest{Goal: goal}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	text, err := s.backend.BreakDown(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("goal breakdown failed: %w", err)
	}
	plan := outline.NewPlan(goal, outline.Extract(text))
	s.plans.Add(plan)
	s.use(device.FeatureGoalBreakdown)
	slog.Info("Session.BreakDown: plan created", "plan_id", plan.ID(), "steps", plan.Progress().Total)
	return plan, nil
}

// Plan looks up a plan created by BreakDown.
func (s *Session) Plan(id string) (*outline.Plan, error) {
	return s.plans.Get(id)
}

// Transcript returns a copy of the transcript in append order.
func (s *Session) Transcript() []models.ChatEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Wait blocks until background speech has finished.
func (s *Session) Wait() {
	s.speaking.Wait()
}

func (s *Session) append(e models.ChatEntry) models.ChatEntry {
	e.ID = uuid.NewString()
	e.Time = s.now()
	s.mu.Lock()
	s.transcript = append(s.transcript, e)
	s.mu.Unlock()
	return e
}

func (s *Session) use(feature string) {
	if s.features == nil {
		return
	}
	if err := s.features.Use(feature); err != nil {
		slog.Warn("Session: failed to record feature use", "feature", feature, "error", err)
	}
}
