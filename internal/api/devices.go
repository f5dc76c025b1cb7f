package api

import (
	"net/http"

	"github.com/goodtune/wellcore/internal/device"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// DeviceHandler records client-reported capture device changes.
type DeviceHandler struct {
	backend *device.LeaseBackend
	logger  zerolog.Logger
}

// DeviceUpdate is the body of a device change report.
type DeviceUpdate struct {
	Granted *bool `json:"granted,omitempty"`
	Present *bool `json:"present,omitempty"`
}

// Update applies a permission or presence change for one device.
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID := vars["user"]
	kind := device.Kind(vars["kind"])

	if kind != device.KindCamera && kind != device.KindMicrophone {
		writeError(w, http.StatusBadRequest, "Unknown device kind")
		return
	}

	var req DeviceUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Granted == nil && req.Present == nil {
		writeError(w, http.StatusBadRequest, "granted or present is required")
		return
	}

	if req.Granted != nil {
		h.backend.SetPermission(userID, kind, *req.Granted)
	}
	if req.Present != nil {
		h.backend.SetPresent(userID, kind, *req.Present)
	}

	h.logger.Debug().
		Str("user_id", userID).
		Str("device", string(kind)).
		Msg("Device state updated")

	w.WriteHeader(http.StatusNoContent)
}
