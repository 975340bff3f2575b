package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jerkytreats/cdnhealth/internal/healthcheck"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/metrics"
	"github.com/jerkytreats/cdnhealth/internal/persistence"
)

// Dependencies are the services the HTTP API exposes. Resources, Manager and
// Runner may be nil; their routes then answer 503.
type Dependencies struct {
	Resources ResourceReader
	Manager   ResourceManager
	Runner    CheckRunner
	Latest    *persistence.FileStorage
	Health    *healthcheck.Handler
	Metrics   *metrics.Metrics
}

// HandlerRegistry manages all HTTP handlers for the application
type HandlerRegistry struct {
	resourceHandler *ResourceHandler
	checkHandler    *CheckHandler
	healthHandler   *healthcheck.Handler
	metrics         *metrics.Metrics
	router          chi.Router
}

// NewHandlerRegistry creates a new handler registry with all handlers initialized
func NewHandlerRegistry(deps Dependencies) (*HandlerRegistry, error) {
	logging.Info("Initializing handler registry with all application handlers")

	health := deps.Health
	if health == nil {
		var err error
		health, err = healthcheck.NewHandler(nil)
		if err != nil {
			return nil, err
		}
	}

	registry := &HandlerRegistry{
		resourceHandler: NewResourceHandler(deps.Resources, deps.Manager),
		checkHandler:    NewCheckHandler(deps.Runner, deps.Latest),
		healthHandler:   health,
		metrics:         deps.Metrics,
		router:          chi.NewRouter(),
	}

	registry.RegisterHandlers(registry.router)
	logging.Info("Handler registry initialized successfully with all handlers")

	return registry, nil
}

// RegisterHandlers registers all application handlers on r
func (hr *HandlerRegistry) RegisterHandlers(r chi.Router) {
	logging.Info("Registering all application handlers")

	r.Method(http.MethodGet, "/health", hr.healthHandler)

	r.Get("/api/resources", hr.resourceHandler.ListResources)
	r.Get("/api/resources/{id}", hr.resourceHandler.GetResource)
	r.Delete("/api/resources/{id}", hr.resourceHandler.DeleteResource)
	r.Post("/api/cdn/refresh", hr.resourceHandler.RefreshURLs)

	r.Post("/api/checks", hr.checkHandler.RunCheck)
	r.Get("/api/checks/latest", hr.checkHandler.LatestCheck)

	if hr.metrics != nil {
		r.Method(http.MethodGet, "/metrics", hr.metrics.Handler())
	}

	logging.Info("All application handlers registered successfully")
}

// ServeHTTP logs each request and dispatches it to the router.
func (hr *HandlerRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	hr.router.ServeHTTP(w, r)
	logging.Debug("%s %s handled in %v", r.Method, r.URL.Path, time.Since(start))
}

// Router returns the underlying router
func (hr *HandlerRegistry) Router() chi.Router {
	return hr.router
}

// GetHealthHandler returns the health handler instance for direct access if needed
func (hr *HandlerRegistry) GetHealthHandler() *healthcheck.Handler {
	return hr.healthHandler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logging.Error("Failed to encode JSON response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
