package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goodtune/wellcore/internal/deadline"
	"github.com/goodtune/wellcore/internal/reminder"
	"github.com/goodtune/wellcore/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ReminderHandler handles task reminder requests.
type ReminderHandler struct {
	scheduler *reminder.Scheduler
	logger    zerolog.Logger
}

// ScheduleRequest is the body of a task reminder request.
type ScheduleRequest struct {
	Title            string     `json:"title"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	RemindersEnabled bool       `json:"reminders_enabled"`
}

// ScheduleResult reports one kind of a scheduling request.
type ScheduleResult struct {
	Kind         deadline.Kind         `json:"kind"`
	Notification *storage.Notification `json:"notification,omitempty"`
	Discarded    bool                  `json:"discarded,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// Schedule replaces the unsent reminders of a task.
func (h *ReminderHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["user"]

	var req ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := h.scheduler.Reschedule(r.Context(), userID, reminder.Task{
		ID:               vars["task"],
		Title:            req.Title,
		DueAt:            req.DueAt,
		RemindersEnabled: req.RemindersEnabled,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to schedule reminders")
		writeError(w, http.StatusInternalServerError, "Failed to schedule reminders")
		return
	}

	out := make([]ScheduleResult, 0, len(results))
	failed := 0
	for _, res := range results {
		item := ScheduleResult{Kind: res.Kind, Notification: res.Notification, Discarded: res.Discarded}
		if res.Err != nil {
			item.Error = res.Err.Error()
			failed++
		}
		out = append(out, item)
	}

	status := http.StatusOK
	if failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]interface{}{
		"results": out,
		"failed":  failed,
	})
}

// Cancel deletes the unsent reminders of a task.
func (h *ReminderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	deleted, err := h.scheduler.CancelAll(r.Context(), vars["user"], vars["task"])
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", vars["user"]).Msg("Failed to cancel reminders")
		writeError(w, http.StatusInternalServerError, "Failed to cancel reminders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}

// History returns the user's recent notifications.
func (h *ReminderHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	limit, err := listLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	notifications, err := h.scheduler.History(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list notifications")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// GetSettings returns the user's reminder settings.
func (h *ReminderHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	settings, err := h.scheduler.Settings(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load settings")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve settings")
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings replaces the user's reminder settings.
func (h *ReminderHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	settings := reminder.DefaultSettings()
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.scheduler.UpdateSettings(r.Context(), userID, settings)
	if err != nil {
		var verr *reminder.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to store settings")
		writeError(w, http.StatusInternalServerError, "Failed to store settings")
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// Quiet reports whether the user's quiet hours are in effect.
func (h *ReminderHandler) Quiet(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	quiet, err := h.scheduler.IsQuietNow(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to evaluate quiet hours")
		writeError(w, http.StatusInternalServerError, "Failed to evaluate quiet hours")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quiet": quiet,
	})
}
