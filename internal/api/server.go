// Package api exposes the ReplyPipe conversation, goal plans, reminders,
// notification permission and device profile over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/ReplyPipe/internal/chat"
	"github.com/BTreeMap/ReplyPipe/internal/device"
	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/notify"
	"github.com/BTreeMap/ReplyPipe/internal/outline"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Conversation is the chat session served by the API.
type Conversation interface {
	Send(ctx context.Context, text string) (chat.TurnResult, error)
	BreakDown(ctx context.Context, goal string) (*outline.Plan, error)
	Plan(id string) (*outline.Plan, error)
	Transcript() []models.ChatEntry
}

// Reminders lists and arms reminders.
type Reminders interface {
	ScheduleDirective(ctx context.Context, d models.ReminderDirective) (models.ReminderSchedule, bool)
	Pending() []models.ReminderSchedule
	Timers() []models.TimerInfo
}

// History reports reminders on record and their delivery receipts.
type History interface {
	ListReminders() ([]models.ReminderSchedule, error)
	GetReceipts() ([]models.Receipt, error)
}

// BannerSource reports the banner currently on screen.
type BannerSource interface {
	Current() (notify.ActiveBanner, bool)
}

// Permissions reads and writes the notification permission.
type Permissions interface {
	Get() notify.Permission
	Set(notify.Permission) error
}

// Profiler reports the device profile.
type Profiler interface {
	Profile() (device.Profile, error)
}

// Option is a functional option for configuring the API server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithReminders serves the reminder endpoints.
func WithReminders(r Reminders) Option {
	return func(s *Server) { s.reminders = r }
}

// WithHistory adds delivered reminders and receipts to GET /reminders.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithBanner reports the visible banner alongside pending reminders.
func WithBanner(b BannerSource) Option {
	return func(s *Server) { s.banner = b }
}

// WithPermissions serves the notification permission endpoint.
func WithPermissions(p Permissions) Option {
	return func(s *Server) { s.perms = p }
}

// WithProfiler serves the device profile endpoint.
func WithProfiler(p Profiler) Option {
	return func(s *Server) { s.profiler = p }
}

// Server routes HTTP requests to the conversation and its collaborators.
type Server struct {
	addr      string
	conv      Conversation
	reminders Reminders
	history   History
	banner    BannerSource
	perms     Permissions
	profiler  Profiler

	httpServer *http.Server
}

// NewServer creates a server for conv. Endpoints whose collaborator is not
// configured answer 503.
func NewServer(conv Conversation, opts ...Option) *Server {
	s := &Server{addr: DefaultAddr, conv: conv}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/transcript", s.transcriptHandler)
	mux.HandleFunc("/plans", s.createPlanHandler)
	mux.HandleFunc("/plans/{id}", s.getPlanHandler)
	mux.HandleFunc("/plans/{id}/steps/{step}/toggle", s.toggleStepHandler)
	mux.HandleFunc("/plans/{id}/steps/{step}/checkpoints/{checkpoint}/toggle", s.toggleCheckpointHandler)
	mux.HandleFunc("/reminders", s.remindersHandler)
	mux.HandleFunc("/notifications/permission", s.permissionHandler)
	mux.HandleFunc("/device", s.deviceHandler)
	return mux
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	slog.Info("Server.Start: ReplyPipe API listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server.Start: listen failed", "error", err)
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Server.Shutdown: stopping API server")
	return s.httpServer.Shutdown(ctx)
}
