package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/aegis-protocol/sentinel/internal/dashboard"
	"github.com/aegis-protocol/sentinel/internal/logger"
	"github.com/aegis-protocol/sentinel/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// Server handles HTTP requests for the sentinel dashboard. Any unrecognized
// request returns the current snapshot, so the dashboard works with zero
// client-side routing knowledge.
type Server struct {
	router    *mux.Router
	port      string
	snapshot  *dashboard.State
	dbEnabled bool
}

// NewServer creates a new dashboard server over the shared snapshot state.
// dbEnabled exposes the Postgres cycle history endpoints when the store is
// configured.
func NewServer(port string, snapshot *dashboard.State, dbEnabled bool) *Server {
	if port == "" {
		port = "8080"
	}

	server := &Server{
		router:    mux.NewRouter(),
		port:      port,
		snapshot:  snapshot,
		dbEnabled: dbEnabled,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.dbEnabled {
		api := s.router.PathPrefix("/api").Subrouter()
		api.HandleFunc("/cycles", s.handleGetCycles).Methods("GET")
		api.HandleFunc("/cycles/latest", s.handleGetLatestCycle).Methods("GET")
	}

	// Everything else returns the current snapshot.
	s.router.PathPrefix("/").HandlerFunc(s.handleSnapshot)

	s.router.Use(s.corsMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// Start starts the dashboard server. Blocks until the listener fails; a bind
// failure is fatal to the dashboard thread only.
func (s *Server) Start() error {
	webLogger.Info().Str("port", s.port).Msg("Starting dashboard server")

	server := &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleSnapshot serves the current cycle snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, s.snapshot.Snapshot())
}

// handleHealth returns server health plus the database state when enabled.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealthy := true
	if s.dbEnabled {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
		}
	}

	status := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	view := s.snapshot.Snapshot()
	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"sentinel": map[string]interface{}{
			"wallet":        view.Wallet,
			"last_slot":     view.Slot,
			"health_factor": view.HealthFactor,
			"last_action":   view.LastAction,
		},
		"database_enabled": s.dbEnabled,
		"database_healthy": dbHealthy,
	}

	s.writeJSONResponse(w, statusCode, response)
}

// handleGetCycles returns paginated cycle history from the database.
func (s *Server) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	cycles, err := state.GetRecentCycles(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent cycles")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	response := map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	}

	s.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestCycle returns the most recent persisted cycle.
func (s *Server) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycles, err := state.GetRecentCycles(1)
	if err != nil || len(cycles) == 0 {
		webLogger.Error().Err(err).Msg("Failed to get latest cycle")
		s.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}

	s.writeJSONResponse(w, http.StatusOK, cycles[0])
}

// writeJSONResponse writes a JSON response.
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	s.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
