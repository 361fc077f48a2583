package handlers

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"

	"kok-dashboard/internal/models"
	"kok-dashboard/internal/services"
	"kok-dashboard/pkg/logging"
	"kok-dashboard/pkg/metrics"
)

// LivenessText is the fixed body of GET /test
const LivenessText = "Dashboard app is working!"

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

// HealthChecker reports whether the store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DashboardHandler serves the dashboard pages and the JSON API
type DashboardHandler struct {
	stations *services.StationService
	details  *services.DetailService
	health   HealthChecker
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	clock    clockwork.Clock
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(
	stations *services.StationService,
	details *services.DetailService,
	health HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	clock clockwork.Clock,
) *DashboardHandler {
	return &DashboardHandler{
		stations: stations,
		details:  details,
		health:   health,
		logger:   logger,
		metrics:  metricsCollector,
		clock:    clock,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// FiltersResponse is the body of GET /api/filters
type FiltersResponse struct {
	models.StationFilters
	Hierarchy models.LocationHierarchy `json:"location_hierarchy"`
}

// StationList handles GET /
func (h *DashboardHandler) StationList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.stations.ListView(ctx)
	if err != nil {
		h.logger.Error(ctx, "[PAGE_STATION_LIST_ERROR] Failed to load station list", logging.Fields{}, err)
		h.metrics.RecordAPIError(errorType(err), "/")
		h.sendText(w, fmt.Sprintf("Error loading page: %v", err), http.StatusInternalServerError)
		return
	}

	h.render(w, r, "index.html", view, "Error loading page")
}

// StationDetail handles GET /station/{code}
func (h *DashboardHandler) StationDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := mux.Vars(r)["code"]

	detail, found, err := h.details.Get(ctx, code)
	if err != nil {
		h.logger.Error(ctx, "[PAGE_STATION_DETAIL_ERROR] Failed to load station", logging.Fields{
			"station_code": code,
		}, err)
		h.metrics.RecordAPIError(errorType(err), "/station/{code}")
		h.sendText(w, fmt.Sprintf("Error loading station: %v", err), http.StatusInternalServerError)
		return
	}
	if !found {
		h.sendText(w, "ไม่พบสถานี (station not found): "+code, http.StatusNotFound)
		return
	}

	h.render(w, r, "station_detail.html", detail, "Error loading station")
}

// Liveness handles GET /test
func (h *DashboardHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.sendText(w, LivenessText, http.StatusOK)
}

// ListStations handles GET /api/stations
func (h *DashboardHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stations, err := h.stations.ListAll(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_STATIONS_ERROR] Failed to list stations", logging.Fields{}, err)
		h.metrics.RecordAPIError(errorType(err), "/api/stations")
		h.sendError(w, fmt.Sprintf("Error loading stations: %v", err), http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, stations, http.StatusOK)
}

// GetStation handles GET /api/stations/{code}
func (h *DashboardHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := mux.Vars(r)["code"]

	detail, found, err := h.details.Get(ctx, code)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STATION_ERROR] Failed to load station", logging.Fields{
			"station_code": code,
		}, err)
		h.metrics.RecordAPIError(errorType(err), "/api/stations/{code}")
		h.sendError(w, fmt.Sprintf("Error loading station: %v", err), http.StatusInternalServerError)
		return
	}
	if !found {
		h.sendError(w, "station not found: "+code, http.StatusNotFound)
		return
	}

	h.sendJSON(w, detail, http.StatusOK)
}

// GetFilters handles GET /api/filters
func (h *DashboardHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.stations.ListView(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_FILTERS_ERROR] Failed to derive filters", logging.Fields{}, err)
		h.metrics.RecordAPIError(errorType(err), "/api/filters")
		h.sendError(w, fmt.Sprintf("Error loading stations: %v", err), http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, FiltersResponse{StationFilters: view.Filters, Hierarchy: view.Hierarchy}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"database":  "ok",
		"timestamp": h.clock.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.health.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_DEGRADED] Store unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	h.sendJSON(w, status, code)
}

// render executes a page into a buffer so template failures still produce a clean 500
func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, page string, data interface{}, errPrefix string) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, page, data); err != nil {
		h.logger.Error(r.Context(), "[PAGE_RENDER_ERROR] Failed to render page", logging.Fields{
			"page": page,
		}, err)
		h.metrics.RecordAPIError("render_error", r.URL.Path)
		h.sendText(w, fmt.Sprintf("%s: %v", errPrefix, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// errorType labels a failed request for the api_errors_total counter
func errorType(err error) string {
	if services.IsLoadError(err) {
		return "load_error"
	}
	return "internal_error"
}

// sendText sends a plain text response
func (h *DashboardHandler) sendText(w http.ResponseWriter, body string, statusCode int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	fmt.Fprint(w, body)
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends a JSON error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all dashboard routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.StationList).Methods("GET")
	router.HandleFunc("/test", h.Liveness).Methods("GET")
	router.HandleFunc("/station/{code}", h.StationDetail).Methods("GET")
	router.HandleFunc("/api/stations", h.ListStations).Methods("GET")
	router.HandleFunc("/api/stations/{code}", h.GetStation).Methods("GET")
	router.HandleFunc("/api/filters", h.GetFilters).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
}
