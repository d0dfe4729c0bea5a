package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/voice"
)

type mockBackend struct {
	reply     any
	err       error
	breakdown string
	// started is closed, when set, once Reply has been entered.
	started chan struct{}
	release chan struct{}
}

func (m *mockBackend) Reply(ctx context.Context, utterance string) (any, error) {
	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		<-m.release
	}
	return m.reply, m.err
}

func (m *mockBackend) BreakDown(ctx context.Context, goal string) (string, error) {
	return m.breakdown, m.err
}

type mockSpeaker struct {
	mu    sync.Mutex
	kinds []models.ResponseKind
}

func (m *mockSpeaker) Dispatch(ctx context.Context, resp models.ClassifiedResponse) voice.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, resp.Kind)
	return voice.Selection{}
}

type mockScheduler struct {
	directives []models.ReminderDirective
	ok         bool
}

func (m *mockScheduler) ScheduleDirective(ctx context.Context, d models.ReminderDirective) (models.ReminderSchedule, bool) {
	m.directives = append(m.directives, d)
	if !m.ok {
		return models.ReminderSchedule{}, false
	}
	return models.ReminderSchedule{ID: "rem_1", Text: d.ReminderText}, true
}

type mockFeatures struct{ used []string }

func (m *mockFeatures) Use(f string) error {
	m.used = append(m.used, f)
	return nil
}

func TestSend_PlainReply(t *testing.T) {
	speaker := &mockSpeaker{}
	s := NewSession(&mockBackend{reply: `{"response":{"message":"Hi there"}}`}, WithSpeaker(speaker))

	res, err := s.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	s.Wait()

	if res.Entry.Sender != models.SenderBot || res.Entry.Text != "Hi there" || res.Entry.Response.Kind != models.ResponseKindPlain {
		t.Errorf("unexpected bot entry: %+v", res.Entry)
	}
	tr := s.Transcript()
	if len(tr) != 2 || tr[0].Sender != models.SenderUser || tr[0].Text != "hello" || tr[1].ID != res.Entry.ID {
		t.Fatalf("unexpected transcript: %+v", tr)
	}
	if tr[0].TurnID != tr[1].TurnID {
		t.Error("user and bot entries of one turn must share a turn id")
	}
	if len(speaker.kinds) != 1 || speaker.kinds[0] != models.ResponseKindPlain {
		t.Errorf("unexpected speech dispatches: %v", speaker.kinds)
	}
}

func TestSend_TransportFailure(t *testing.T) {
	s := NewSession(&mockBackend{err: errors.New("connection refused")})
	res, err := s.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send must not fail on transport errors: %v", err)
	}
	if res.Entry.Response.Kind != models.ResponseKindFallback || res.Entry.Text != models.TransportFailureText {
		t.Errorf("unexpected entry: %+v", res.Entry)
	}
	if len(s.Transcript()) != 2 {
		t.Error("expected user and fallback entries")
	}
}

func TestSend_InvalidInputLeavesTranscriptUntouched(t *testing.T) {
	s := NewSession(&mockBackend{})
	if _, err := s.Send(context.Background(), "   "); err != models.ErrEmptyUtterance {
		t.Errorf("expected ErrEmptyUtterance, got %v", err)
	}
	if len(s.Transcript()) != 0 {
		t.Error("transcript must stay empty")
	}
}

func TestSend_ReminderScheduled(t *testing.T) {
	sched := &mockScheduler{ok: true}
	features := &mockFeatures{}
	raw := map[string]any{
		"response":      map[string]any{"message": "Okay, I'll remind you."},
		"reminder_time": "in 10 minutes",
		"reminder_text": "take a break",
	}
	s := NewSession(&mockBackend{reply: raw}, WithReminders(sched), WithFeatureTracker(features))

	res, err := s.Send(context.Background(), "remind me to take a break in 10 minutes")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Reminder == nil || res.Reminder.Text != "take a break" {
		t.Fatalf("expected scheduled reminder, got %+v", res.Reminder)
	}
	if res.Entry.Text != "Okay, I'll remind you." {
		t.Errorf("display text = %q", res.Entry.Text)
	}
	if len(sched.directives) != 1 || sched.directives[0].ReminderTimeExpr != "in 10 minutes" {
		t.Errorf("unexpected directives: %+v", sched.directives)
	}
	if fmt.Sprint(features.used) != "[chat reminder]" {
		t.Errorf("unexpected features: %v", features.used)
	}
}

func TestSend_UnresolvedReminderStillRendered(t *testing.T) {
	sched := &mockScheduler{ok: false}
	raw := `{"response":{"message":"Sure."},"reminder_time":"someday","reminder_text":"x"}`
	s := NewSession(&mockBackend{reply: raw}, WithReminders(sched))

	res, _ := s.Send(context.Background(), "remind me someday")
	if res.Reminder != nil {
		t.Error("unresolved reminder must not be reported as scheduled")
	}
	if res.Entry.Text != "Sure." || res.Entry.Response.Kind != models.ResponseKindReminder {
		t.Errorf("unexpected entry: %+v", res.Entry)
	}
}

func TestSend_UserEntryRecordedBeforeBackendReturns(t *testing.T) {
	b := &mockBackend{reply: "ok", started: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(b)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Send(context.Background(), "slow question")
	}()

	<-b.started
	if tr := s.Transcript(); len(tr) != 1 || tr[0].Sender != models.SenderUser {
		t.Errorf("expected only the user entry while waiting, got %+v", tr)
	}
	close(b.release)
	<-done
	if len(s.Transcript()) != 2 {
		t.Error("expected bot entry after reply")
	}
}

func TestSend_ConcurrentTurnsAreNotCoalesced(t *testing.T) {
	s := NewSession(&mockBackend{reply: "ok"})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Send(context.Background(), fmt.Sprintf("message %d", i))
		}(i)
	}
	wg.Wait()
	if got := len(s.Transcript()); got != 20 {
		t.Errorf("expected 20 entries, got %d", got)
	}
}

func TestBreakDown(t *testing.T) {
	features := &mockFeatures{}
	b := &mockBackend{breakdown: "Step 1: Prepare\n• Gather every tool you need\nStep 2: Execute\n• Work through the first task"}
	s := NewSession(b, WithFeatureTracker(features))

	plan, err := s.BreakDown(context.Background(), "ship it")
	if err != nil {
		t.Fatalf("BreakDown: %v", err)
	}
	snap := plan.Snapshot()
	if len(snap.Steps) != 2 || snap.Goal != "ship it" {
		t.Errorf("unexpected plan: %+v", snap)
	}
	got, err := s.Plan(plan.ID())
	if err != nil || got != plan {
		t.Errorf("Plan(%s) = %v, %v", plan.ID(), got, err)
	}
	if len(features.used) != 1 || features.used[0] != "goal_breakdown" {
		t.Errorf("unexpected features: %v", features.used)
	}
}

func TestBreakDown_Errors(t *testing.T) {
	s := NewSession(&mockBackend{err: errors.New("down")})
	if _, err := s.BreakDown(context.Background(), ""); err != models.ErrEmptyGoal {
		t.Errorf("expected ErrEmptyGoal, got %v", err)
	}
	if _, err := s.BreakDown(context.Background(), "goal"); err == nil {
		t.Error("expected backend error")
	}
}
