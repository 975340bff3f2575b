package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/jerkytreats/cdnhealth/internal/healthcheck"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/persistence"
	"github.com/jerkytreats/cdnhealth/internal/report"
)

// CheckRunner runs one health check.
type CheckRunner interface {
	Run(ctx context.Context) (*report.HealthReport, string, error)
}

// CheckResponse is returned by POST /api/checks.
type CheckResponse struct {
	Report *report.HealthReport `json:"report"`
	Path   string               `json:"path,omitempty"`
}

// CheckHandler triggers checks and serves the latest saved report.
type CheckHandler struct {
	runner CheckRunner
	latest *persistence.FileStorage
}

// NewCheckHandler creates a new check handler. Either argument may be nil.
func NewCheckHandler(runner CheckRunner, latest *persistence.FileStorage) *CheckHandler {
	return &CheckHandler{runner: runner, latest: latest}
}

// RunCheck runs a check synchronously and returns the report.
func (h *CheckHandler) RunCheck(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "health check runner not configured")
		return
	}

	logging.Info("Processing health check request")
	rep, path, err := h.runner.Run(r.Context())
	if err != nil {
		logging.Error("Health check request failed: %v", err)
		status := http.StatusBadGateway
		var invalid *healthcheck.InvalidURLError
		if errors.Is(err, healthcheck.ErrNoURLs) || errors.As(err, &invalid) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CheckResponse{Report: rep, Path: path})
}

// LatestCheck returns the most recently saved report verbatim.
func (h *CheckHandler) LatestCheck(w http.ResponseWriter, r *http.Request) {
	if h.latest == nil || !h.latest.Exists() {
		writeError(w, http.StatusNotFound, "no report saved yet")
		return
	}

	data, err := h.latest.Read()
	if err != nil {
		logging.Error("Failed to read latest report: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read latest report")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
