package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/waypointdb/waypoint/internal/appstate"
	werrors "github.com/waypointdb/waypoint/internal/errors"
	"github.com/waypointdb/waypoint/internal/table"
)

// LocationsResponse is the paged location log.
type LocationsResponse struct {
	Items        []appstate.Point `json:"items"`
	Continuation string           `json:"continuation,omitempty"`
	RequestID    string           `json:"request_id,omitempty"`
}

// LocationResponse wraps a single log entry.
type LocationResponse struct {
	Item      appstate.Point `json:"item"`
	RequestID string         `json:"request_id,omitempty"`
}

// LocationsHandler serves the location log collection:
// GET /v1/locations and POST /v1/locations.
type LocationsHandler struct {
	manager *appstate.Manager
}

// NewLocationsHandler creates the collection handler.
func NewLocationsHandler(manager *appstate.Manager) *LocationsHandler {
	return &LocationsHandler{manager: manager}
}

func (h *LocationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, requestID)
	case http.MethodPost:
		h.append(w, r, requestID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
	}
}

func (h *LocationsHandler) list(w http.ResponseWriter, r *http.Request, requestID string) {
	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid count: %q", raw), requestID)
			return
		}
		count = n
	}
	continuation := r.URL.Query().Get("continuation")

	points, next, err := h.manager.ListLocations(r.Context(), count, continuation)
	if err != nil {
		writeError(w, statusForError(err), err.Error(), requestID)
		return
	}
	if points == nil {
		points = []appstate.Point{}
	}
	writeJSON(w, http.StatusOK, LocationsResponse{
		Items:        points,
		Continuation: next,
		RequestID:    requestID,
	})
}

func (h *LocationsHandler) append(w http.ResponseWriter, r *http.Request, requestID string) {
	var point appstate.Point
	if err := json.NewDecoder(r.Body).Decode(&point); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}

	if point.ID != "" {
		if err := h.manager.UpsertLocation(r.Context(), point); err != nil {
			writeError(w, statusForError(err), err.Error(), requestID)
			return
		}
	} else {
		id, err := h.manager.LogLocation(r.Context(), point)
		if err != nil {
			writeError(w, statusForError(err), err.Error(), requestID)
			return
		}
		point.ID = id
	}
	writeJSON(w, http.StatusCreated, LocationResponse{Item: point, RequestID: requestID})
}

// LocationHandler serves a single log entry:
// GET /v1/locations/{id} and DELETE /v1/locations/{id}.
type LocationHandler struct {
	manager *appstate.Manager
}

// NewLocationHandler creates the single-entry handler.
func NewLocationHandler(manager *appstate.Manager) *LocationHandler {
	return &LocationHandler{manager: manager}
}

func (h *LocationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "location id is required", requestID)
		return
	}

	switch r.Method {
	case http.MethodGet:
		point, found, err := h.manager.Location(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err.Error(), requestID)
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, fmt.Sprintf("location %s not found", id), requestID)
			return
		}
		writeJSON(w, http.StatusOK, LocationResponse{Item: point, RequestID: requestID})
	case http.MethodDelete:
		if err := h.manager.RemoveLocation(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err.Error(), requestID)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
	}
}

// statusForError maps state-manager failures to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, table.ErrTableNotFound), errors.Is(err, table.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, table.ErrBadContinuation):
		return http.StatusBadRequest
	}
	switch werrors.GetCategory(err) {
	case werrors.ErrCategoryValidation:
		return http.StatusBadRequest
	case werrors.ErrCategoryTable:
		switch werrors.GetCode(err) {
		case werrors.CodeTableNotFound, werrors.CodeIndexNotFound, werrors.CodeItemNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}
