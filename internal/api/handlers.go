package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BTreeMap/ReplyPipe/internal/models"
	"github.com/BTreeMap/ReplyPipe/internal/notify"
	"github.com/BTreeMap/ReplyPipe/internal/outline"
)

// allowMethod writes 405 and returns false unless r uses one of methods.
func allowMethod(w http.ResponseWriter, r *http.Request, handler string, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	allow := methods[0]
	for _, m := range methods[1:] {
		allow += ", " + m
	}
	w.Header().Set("Allow", allow)
	slog.Warn("Server."+handler+": method not allowed", "method", r.Method)
	w.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if !allowMethod(w, r, "chatHandler", http.MethodPost) {
		return
	}
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	res, err := s.conv.Send(r.Context(), req.Message)
	if err != nil {
		slog.Error("Server.chatHandler: turn failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	if res.Reminder != nil {
		slog.Info("Server.chatHandler: reply scheduled a reminder", "reminder_id", res.Reminder.ID, "fire_at", res.Reminder.FireAt)
		writeJSONResponse(w, http.StatusOK, models.ScheduledWithMessage("Reminder scheduled", res))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

func (s *Server) transcriptHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "transcriptHandler", http.MethodGet) {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.conv.Transcript()))
}

func (s *Server) createPlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createPlanHandler: processing goal", "method", r.Method)
	if !allowMethod(w, r, "createPlanHandler", http.MethodPost) {
		return
	}
	var req models.GoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createPlanHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	plan, err := s.conv.BreakDown(r.Context(), req.Goal)
	if err != nil {
		slog.Error("Server.createPlanHandler: breakdown failed", "error", err)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Failed to break down goal"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(plan.Snapshot()))
}

func (s *Server) getPlanHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "getPlanHandler", http.MethodGet) {
		return
	}
	plan, ok := s.lookupPlan(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(plan.Snapshot()))
}

func (s *Server) toggleStepHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "toggleStepHandler", http.MethodPost) {
		return
	}
	plan, ok := s.lookupPlan(w, r)
	if !ok {
		return
	}
	step, ok := stepParam(w, r)
	if !ok {
		return
	}
	if _, err := plan.ToggleStep(step); err != nil {
		writePlanError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(plan.Snapshot()))
}

func (s *Server) toggleCheckpointHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "toggleCheckpointHandler", http.MethodPost) {
		return
	}
	plan, ok := s.lookupPlan(w, r)
	if !ok {
		return
	}
	step, ok := stepParam(w, r)
	if !ok {
		return
	}
	if _, err := plan.ToggleCheckpoint(step, r.PathValue("checkpoint")); err != nil {
		writePlanError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(plan.Snapshot()))
}

func (s *Server) lookupPlan(w http.ResponseWriter, r *http.Request) (*outline.Plan, bool) {
	plan, err := s.conv.Plan(r.PathValue("id"))
	if err != nil {
		writePlanError(w, err)
		return nil, false
	}
	return plan, true
}

func stepParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid step id"))
		return 0, false
	}
	return step, true
}

func writePlanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrPlanNotFound), errors.Is(err, models.ErrStepNotFound), errors.Is(err, models.ErrCheckpointMissing):
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
	default:
		slog.Error("Server: plan update failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update plan"))
	}
}

// ReminderRequest asks for a reminder without going through the backend.
type ReminderRequest struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// RemindersView is the GET /reminders payload.
type RemindersView struct {
	Pending   []models.ReminderSchedule `json:"pending"`
	Timers    []models.TimerInfo        `json:"timers"`
	Delivered []models.ReminderSchedule `json:"delivered,omitempty"`
	Receipts  []models.Receipt          `json:"receipts,omitempty"`
	Banner    *notify.ActiveBanner      `json:"banner,omitempty"`
}

// fillHistory adds delivered reminders and receipts to view. A failed read
// leaves that part empty.
func (s *Server) fillHistory(view *RemindersView) {
	if s.history == nil {
		return
	}
	all, err := s.history.ListReminders()
	if err != nil {
		slog.Error("Server.remindersHandler: failed to list reminders", "error", err)
	}
	for _, r := range all {
		if r.Delivered {
			view.Delivered = append(view.Delivered, r)
		}
	}
	if view.Receipts, err = s.history.GetReceipts(); err != nil {
		slog.Error("Server.remindersHandler: failed to read receipts", "error", err)
	}
}

func (s *Server) remindersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethod(w, r, "remindersHandler", http.MethodGet, http.MethodPost) {
		return
	}
	if s.reminders == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Reminders are not enabled"))
		return
	}

	if r.Method == http.MethodGet {
		view := RemindersView{Pending: s.reminders.Pending(), Timers: s.reminders.Timers()}
		s.fillHistory(&view)
		if s.banner != nil {
			if b, ok := s.banner.Current(); ok {
				view.Banner = &b
			}
		}
		writeJSONResponse(w, http.StatusOK, models.Success(view))
		return
	}

	var req ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.remindersHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	rem, ok := s.reminders.ScheduleDirective(r.Context(), models.ReminderDirective{ReminderTimeExpr: req.Time, ReminderText: req.Text})
	if !ok {
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error("Could not understand the reminder time"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.ScheduledWithMessage("Reminder scheduled", rem))
}

// PermissionRequest updates the notification permission.
type PermissionRequest struct {
	Permission string `json:"permission"`
}

func (s *Server) permissionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if !allowMethod(w, r, "permissionHandler", http.MethodGet, http.MethodPost) {
		return
	}
	if s.perms == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Notifications are not enabled"))
		return
	}

	if r.Method == http.MethodPost {
		var req PermissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		perm, err := notify.ParsePermission(req.Permission)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		if err := s.perms.Set(perm); err != nil {
			slog.Error("Server.permissionHandler: failed to store permission", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store permission"))
			return
		}
		slog.Info("Server.permissionHandler: notification permission updated", "permission", perm)
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Notification permission updated", PermissionRequest{Permission: string(perm)}))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(PermissionRequest{Permission: string(s.perms.Get())}))
}

func (s *Server) deviceHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "deviceHandler", http.MethodGet) {
		return
	}
	if s.profiler == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Device tracking is not enabled"))
		return
	}
	p, err := s.profiler.Profile()
	if err != nil {
		slog.Error("Server.deviceHandler: failed to read profile", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read device profile"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(p))
}
