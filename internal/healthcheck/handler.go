package healthcheck

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/logging"
)

const AppVersionKey = "app.version"

// HealthStatus represents the status of a component
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Components map[string]HealthStatus `json:"components"`
	// LastCheck describes the most recent resource check, when one has run.
	LastCheck map[string]interface{} `json:"lastCheck,omitempty"`
}

// Handler handles health check HTTP requests
type Handler struct {
	checkers     []Checker
	getLastCheck func() map[string]interface{} // Injected to avoid an import cycle with the runner
}

// NewHandler creates a new health check handler. Nil checkers are skipped;
// lastCheck may be nil.
func NewHandler(lastCheck func() map[string]interface{}, checkers ...Checker) (*Handler, error) {
	logging.Info("Initializing health check handler")

	handler := &Handler{getLastCheck: lastCheck}
	for _, c := range checkers {
		if c != nil {
			handler.checkers = append(handler.checkers, c)
		}
	}

	logging.Info("Health check handler initialized with %d component checker(s)", len(handler.checkers))
	return handler, nil
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := h.buildHealthResponse()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// buildHealthResponse constructs the complete health response
func (h *Handler) buildHealthResponse() HealthResponse {
	components := map[string]HealthStatus{
		"api": {
			Status:  "healthy",
			Message: "API is running",
		},
	}

	results, allHealthy := Aggregate(h.checkers...)
	for name, res := range results {
		if res.Healthy {
			components[name] = HealthStatus{
				Status:  "healthy",
				Message: fmt.Sprintf("%s responded in %v", name, res.Latency),
			}
			continue
		}
		msg := fmt.Sprintf("%s probe failed", name)
		if res.Error != nil {
			msg = res.Error.Error()
		}
		components[name] = HealthStatus{
			Status:  "error",
			Message: msg,
		}
	}

	status := "healthy"
	if !allHealthy {
		status = "degraded"
	}

	response := HealthResponse{
		Status:     status,
		Version:    config.GetString(AppVersionKey),
		Components: components,
	}

	if h.getLastCheck != nil {
		if last := h.getLastCheck(); last != nil {
			response.LastCheck = last
		}
	}

	return response
}
