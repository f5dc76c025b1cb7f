package api

import (
	"errors"
	"net/http"

	"github.com/goodtune/wellcore/internal/analysis"
	"github.com/goodtune/wellcore/internal/report"
	"github.com/goodtune/wellcore/internal/session"
	"github.com/goodtune/wellcore/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ReportHandler handles session report requests.
type ReportHandler struct {
	pipeline *report.Pipeline
	registry *session.Registry
	history  storage.SessionStore
	logger   zerolog.Logger
}

// GenerateRequest carries optional material for analysis.
type GenerateRequest struct {
	Transcript string `json:"transcript,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

// List returns the user's reports.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user"]

	limit, err := listLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reports, err := h.pipeline.List(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list reports")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// Generate builds the report of an ended session that has none yet, for
// example when automatic generation failed.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["user"]

	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.history.GetSession(r.Context(), vars["id"])
	if err != nil || record.UserID != userID {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.logger.Error().Err(err).Str("session_id", vars["id"]).Msg("Failed to load session")
			writeError(w, http.StatusInternalServerError, "Failed to load session")
			return
		}
		writeError(w, http.StatusNotFound, "Unknown session")
		return
	}
	// The audit row may still read active if its final write failed, so
	// only the orchestrator decides
	if h.isLive(userID, record.ID) {
		writeError(w, http.StatusConflict, "Session is still active")
		return
	}

	generated, err := h.pipeline.Generate(r.Context(), analysis.Input{
		SessionID:       record.ID,
		UserID:          record.UserID,
		DurationSeconds: int(record.DurationSeconds),
		CeilingSeconds:  int(record.CeilingSeconds),
		EndReason:       record.EndReason,
		Transcript:      req.Transcript,
		Feedback:        req.Feedback,
	})
	switch {
	case errors.Is(err, report.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, report.ErrSkipped):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		h.logger.Error().Err(err).Str("session_id", record.ID).Msg("Failed to generate report")
		writeError(w, http.StatusBadGateway, "Failed to generate report")
	default:
		writeJSON(w, http.StatusCreated, generated)
	}
}

// isLive reports whether sessionID is the user's current session
func (h *ReportHandler) isLive(userID, sessionID string) bool {
	o, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	current, ok := o.Current()
	return ok && current.ID == sessionID
}
