// Package api exposes the HTTP interface for the flight search service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/skyfare/flightsearch/internal/config"
	"github.com/skyfare/flightsearch/internal/flights"
	"github.com/skyfare/flightsearch/internal/notify"
	"github.com/skyfare/flightsearch/internal/orchestrator"
)

// Server wires HTTP handlers to the orchestrator and publisher.
type Server struct {
	router    chi.Router
	orch      *orchestrator.Orchestrator
	publisher *notify.Publisher
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The gatherer
// backs the /metrics endpoint; pass nil for the default registry.
func NewServer(
	orch *orchestrator.Orchestrator,
	publisher *notify.Publisher,
	gatherer prometheus.Gatherer,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		orch:      orch,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/events", s.streamBroadcast)
		r.Route("/searches", func(r chi.Router) {
			r.Post("/", s.submitSearch)
			r.Get("/", s.listActive)
			r.Route("/{search_id}", func(r chi.Router) {
				r.Get("/progress", s.getProgress)
				r.Post("/filter", s.filterResults)
				r.Post("/sort", s.sortResults)
				r.Post("/cancel", s.cancelSearch)
				r.Delete("/", s.deleteSearch)
				r.Get("/events", s.streamSearch)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	report := s.orch.Health()
	status := http.StatusOK
	if report.Status == orchestrator.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) submitSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	criteria, opts, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.orch.Search(r.Context(), criteria, req.Sources, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(result))
}

func (s *Server) listActive(w http.ResponseWriter, _ *http.Request) {
	active := s.orch.ActiveSearches()
	writeJSON(w, http.StatusOK, map[string]any{
		"searches": toProgressDTOs(active),
	})
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "search_id")
	snap, ok := s.orch.Progress(searchID)
	if !ok {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(snap))
}

func (s *Server) filterResults(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "search_id")
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	result, err := s.orch.FilterResults(searchID, req.toDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(result))
}

func (s *Server) sortResults(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "search_id")
	var req sortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	result, err := s.orch.SortResults(searchID, req.SortBy, req.SortOrder)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(result))
}

func (s *Server) cancelSearch(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "search_id")
	cancelled := s.orch.Cancel(searchID)
	writeJSON(w, http.StatusOK, map[string]any{
		"search_id": searchID,
		"cancelled": cancelled,
	})
}

// deleteSearch evicts a finished search before the retention sweep
// would. Running searches answer 409; the client cancels first.
func (s *Server) deleteSearch(w http.ResponseWriter, r *http.Request) {
	searchID := chi.URLParam(r, "search_id")
	if s.orch.Remove(searchID) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if _, ok := s.orch.Progress(searchID); ok {
		writeError(w, http.StatusConflict, "search still running")
		return
	}
	writeError(w, http.StatusNotFound, "search not found or expired")
}

func writeDomainError(w http.ResponseWriter, err error) {
	var vErr *flights.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, flights.ErrNotFound):
		writeError(w, http.StatusNotFound, "search not found or expired")
	case errors.Is(err, flights.ErrTooManySearches):
		writeError(w, http.StatusServiceUnavailable, "too many concurrent searches")
	case errors.Is(err, flights.ErrNoSources):
		writeError(w, http.StatusBadRequest, "no sources available")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
