package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/waypointdb/waypoint/internal/appstate"
)

// SettingsResponse wraps the stored settings.
type SettingsResponse struct {
	Settings  appstate.Settings `json:"settings"`
	RequestID string            `json:"request_id,omitempty"`
}

// SettingsHandler serves GET /v1/settings and PUT /v1/settings.
type SettingsHandler struct {
	manager *appstate.Manager
}

// NewSettingsHandler creates the settings handler.
func NewSettingsHandler(manager *appstate.Manager) *SettingsHandler {
	return &SettingsHandler{manager: manager}
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	switch r.Method {
	case http.MethodGet:
		settings, err := h.manager.Settings(r.Context())
		if err != nil {
			writeError(w, statusForError(err), err.Error(), requestID)
			return
		}
		writeJSON(w, http.StatusOK, SettingsResponse{Settings: settings, RequestID: requestID})
	case http.MethodPut:
		var settings appstate.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
			return
		}
		if settings.MinDistanceMeters < 0 {
			writeError(w, http.StatusBadRequest, "minDistanceMeters must not be negative", requestID)
			return
		}
		if settings.RetentionDays < 0 {
			writeError(w, http.StatusBadRequest, "retentionDays must not be negative", requestID)
			return
		}
		if err := h.manager.UpdateSettings(r.Context(), settings); err != nil {
			writeError(w, statusForError(err), err.Error(), requestID)
			return
		}
		writeJSON(w, http.StatusOK, SettingsResponse{Settings: settings, RequestID: requestID})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
	}
}
