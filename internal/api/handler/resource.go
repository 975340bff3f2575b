package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jerkytreats/cdnhealth/internal/cdn"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/registry"
	"github.com/jerkytreats/cdnhealth/internal/resource"
	"github.com/jerkytreats/cdnhealth/pkg/validation"
)

// ResourceReader reads resource records.
type ResourceReader interface {
	List(ctx context.Context, f registry.Filter) ([]registry.ResourceRecord, error)
	Get(ctx context.Context, id int64) (*registry.ResourceRecord, error)
}

// ResourceManager deletes resources and refreshes CDN URLs.
type ResourceManager interface {
	Delete(ctx context.Context, id int64) (*resource.DeleteResult, error)
	Refresh(ctx context.Context, urls []string) cdn.RefreshResult
}

// RefreshRequest is the payload of POST /api/cdn/refresh.
type RefreshRequest struct {
	URLs []string `json:"urls"`
}

// ResourceHandler serves the resource registry.
type ResourceHandler struct {
	resources ResourceReader
	manager   ResourceManager
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(resources ResourceReader, manager ResourceManager) *ResourceHandler {
	return &ResourceHandler{resources: resources, manager: manager}
}

// ListResources returns {"data": [...]}, optionally filtered by type,
// category and limit query parameters.
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	if h.resources == nil {
		writeError(w, http.StatusServiceUnavailable, "resource registry not configured")
		return
	}

	q := r.URL.Query()
	filter := registry.Filter{Type: q.Get("type"), Category: q.Get("category")}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	records, err := h.resources.List(r.Context(), filter)
	if err != nil {
		logging.Error("Failed to list resources: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list resources")
		return
	}
	logging.Debug("Listed %d resource(s)", len(records))
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

// GetResource returns one record.
func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	if h.resources == nil {
		writeError(w, http.StatusServiceUnavailable, "resource registry not configured")
		return
	}

	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	rec, err := h.resources.Get(r.Context(), id)
	if err != nil {
		writeLookupError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteResource removes the object and its record, then refreshes the CDN.
func (h *ResourceHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "resource manager not configured")
		return
	}

	id, ok := resourceID(w, r)
	if !ok {
		return
	}

	res, err := h.manager.Delete(r.Context(), id)
	if err != nil {
		writeLookupError(w, id, err)
		return
	}
	logging.Info("Deleted resource %d via API", id)
	writeJSON(w, http.StatusOK, res)
}

// RefreshURLs asks the CDN to refresh the given URLs.
func (h *ResourceHandler) RefreshURLs(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "resource manager not configured")
		return
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls must not be empty")
		return
	}
	for _, u := range req.URLs {
		if err := validation.ValidateResourceURL(u); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result := h.manager.Refresh(r.Context(), req.URLs)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func resourceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid resource id")
		return 0, false
	}
	return id, true
}

func writeLookupError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, registry.ErrResourceNotFound) {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	logging.Error("Resource %d: %v", id, err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
