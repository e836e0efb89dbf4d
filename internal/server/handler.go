package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/zombar/monitorclient/internal/database"
	"github.com/zombar/monitorclient/internal/models"
	"github.com/zombar/monitorclient/internal/tracing"
	"github.com/zombar/monitorclient/pkg/logging"
)

// Store is the journal as seen by the status server. *database.DB implements it.
type Store interface {
	ListResults(limit, offset int) ([]*models.BatchResult, error)
	CountResults() (int, error)
	GetResult(id string) (*models.BatchResult, error)
	DeleteResult(id string) error
}

// ResultList is the body of GET /api/results
type ResultList struct {
	Results []*models.BatchResult `json:"results"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// Handler serves the batch worker's status endpoints
type Handler struct {
	store    Store
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewHandler creates the status API with CORS, request logging and tracing.
// Metrics are served from gatherer, or the default registry when nil.
func NewHandler(store Store, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		store:    store,
		gatherer: gatherer,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	h.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	// Middleware chain: HTTP logging -> tracing -> CORS -> routes
	return logging.HTTPLoggingMiddleware(logger)(
		tracing.HTTPMiddleware("monitorclient-status")(c.Handler(h.mux)),
	)
}

// setupRoutes configures all routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	h.mux.HandleFunc("/health", h.handleHealth)
	h.mux.HandleFunc("/api/results", h.handleListResults)
	h.mux.HandleFunc("/api/results/", h.handleResultOperations)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}, http.StatusOK)
}

// handleListResults lists journal rows with pagination, newest first
func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, 500)
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	results, err := h.store.ListResults(limit, offset)
	if err != nil {
		logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, err, r)
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total, err := h.store.CountResults()
	if err != nil {
		logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, err, r)
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, ResultList{Results: results, Total: total, Limit: limit, Offset: offset}, http.StatusOK)
}

// handleResultOperations handles GET and DELETE for one journal row
func (h *Handler) handleResultOperations(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/results/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, "Result ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		result, err := h.store.GetResult(id)
		if err != nil {
			h.respondStoreError(w, r, err)
			return
		}
		respondJSON(w, result, http.StatusOK)
	case http.MethodDelete:
		if err := h.store.DeleteResult(id); err != nil {
			h.respondStoreError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, err.Error(), http.StatusNotFound)
		return
	}
	logging.HTTPErrorLogger(h.logger, http.StatusInternalServerError, err, r)
	respondError(w, err.Error(), http.StatusInternalServerError)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, map[string]string{"error": message}, statusCode)
}
