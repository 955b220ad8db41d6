package http

import (
	"net/http"

	"github.com/waypointdb/waypoint/internal/appstate"
	"github.com/waypointdb/waypoint/internal/observability"
)

// HealthResponse is the healthz payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// StatsResponse is the statsz payload.
type StatsResponse struct {
	Operations []observability.OpSummary `json:"operations"`
	RequestID  string                    `json:"request_id,omitempty"`
}

// HealthHandler serves GET /v1/healthz.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", GetRequestID(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// StatsHandler serves GET /v1/statsz with per-operation store statistics.
type StatsHandler struct {
	stats *observability.OpStats
}

// NewStatsHandler creates the stats handler.
func NewStatsHandler(stats *observability.OpStats) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}
	summaries := h.stats.Summaries()
	if summaries == nil {
		summaries = []observability.OpSummary{}
	}
	writeJSON(w, http.StatusOK, StatsResponse{Operations: summaries, RequestID: requestID})
}

// NewRouter wires every API handler behind the default middleware chain.
func NewRouter(manager *appstate.Manager, stats *observability.OpStats, version string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/locations", NewLocationsHandler(manager))
	mux.Handle("/v1/locations/{id}", NewLocationHandler(manager))
	mux.Handle("/v1/settings", NewSettingsHandler(manager))
	mux.Handle("/v1/healthz", NewHealthHandler(version))
	mux.Handle("/v1/statsz", NewStatsHandler(stats))
	return DefaultMiddleware()(mux)
}
