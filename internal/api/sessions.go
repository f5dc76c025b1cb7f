package api

import (
	"errors"
	"net/http"

	"github.com/goodtune/wellcore/internal/session"
	"github.com/goodtune/wellcore/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SessionHandler handles live session requests.
type SessionHandler struct {
	registry *session.Registry
	history  storage.SessionStore
	logger   zerolog.Logger
}

// StartRequest is the body of a session start request.
type StartRequest struct {
	Personality    string `json:"personality"`
	CeilingSeconds int    `json:"ceiling_seconds,omitempty"`
}

// Start starts a live session for the user.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	var req StartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.registry.Get(userID).Start(r.Context(), req.Personality, req.CeilingSeconds)
	if err != nil {
		status, message := sessionError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to start session")
		}
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// Status returns the user's session state and timers.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	o, ok := h.registry.Lookup(userID)
	if !ok {
		writeJSON(w, http.StatusOK, session.Status{State: session.StateIdle})
		return
	}

	writeJSON(w, http.StatusOK, o.Status())
}

// End ends the user's session. Ending an idle session succeeds.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	if o, ok := h.registry.Lookup(userID); ok {
		if err := o.End(r.Context()); err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to end session")
			writeError(w, http.StatusInternalServerError, "Failed to end session")
			return
		}
	}

	writeJSON(w, http.StatusOK, session.Status{State: session.StateIdle})
}

// List returns the user's session audit history.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	limit, err := listLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.history.ListSessions(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list sessions")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": records,
		"count":    len(records),
	})
}

// ProviderEnded is called when the provider ends a conversation on its side.
func (h *SessionHandler) ProviderEnded(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	o, ok := h.registry.FindSession(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown session")
		return
	}

	if err := o.ProviderTerminated(r.Context(), sessionID); err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			writeError(w, http.StatusNotFound, "Unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to end session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionError maps orchestrator errors to HTTP responses.
func sessionError(err error) (int, string) {
	var (
		media    *session.MediaUnavailableError
		conflict *session.ProviderConflictError
		failed   *session.SessionCreateFailedError
	)

	switch {
	case errors.Is(err, session.ErrAlreadyActive):
		return http.StatusConflict, err.Error()
	case errors.As(err, &conflict):
		return http.StatusConflict, err.Error()
	case errors.As(err, &media):
		return http.StatusFailedDependency, err.Error()
	case errors.As(err, &failed):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, session.ErrAborted):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "Failed to start session"
	}
}
