package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/centralka/station-service/internal/config"
	"github.com/centralka/station-service/internal/metrics"
	"github.com/centralka/station-service/internal/session"
	"github.com/centralka/station-service/internal/state"
)

// HTTPServer provides the JSON API consumed by the dashboard and kiosk
type HTTPServer struct {
	server    *http.Server
	router    *mux.Router
	logger    *slog.Logger
	config    *config.Config
	store     *state.Store
	sessions  *session.Store
	tcpServer *TCPServer
	metrics   *metrics.Metrics

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// loginRequest is the admin login payload. A malformed body decodes to the
// zero value and simply fails authentication.
type loginRequest struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

// checkRequest is the admin session check payload
type checkRequest struct {
	Token string `json:"token"`
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(logger *slog.Logger, appConfig *config.Config,
	store *state.Store, sessions *session.Store, tcpServer *TCPServer, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		store:     store,
		sessions:  sessions,
		tcpServer: tcpServer,
		metrics:   m,
		startTime: time.Now(),
	}

	h.router = mux.NewRouter()
	h.setupRoutes(h.router)

	// The dashboard and kiosk poll from the browser; allow cross-origin reads.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      c.Handler(h.router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(router *mux.Router) {
	router.HandleFunc("/api/data", h.withMetrics("/api/data", h.handleData)).Methods(http.MethodGet)
	router.HandleFunc("/api/test", h.withMetrics("/api/test", h.handleTest)).Methods(http.MethodGet)
	router.HandleFunc("/api/admin_login", h.withMetrics("/api/admin_login", h.handleAdminLogin)).Methods(http.MethodPost)
	router.HandleFunc("/api/admin_check", h.withMetrics("/api/admin_check", h.handleAdminCheck)).Methods(http.MethodPost)

	router.HandleFunc("/health", h.withMetrics("/health", h.handleHealth)).Methods(http.MethodGet)
	router.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats)).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the fully wrapped handler; tests serve requests through it.
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// writeJSON renders a JSON response with the given status code
func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}

// handleData implements GET /api/data: the current reading with sentinel
// values before the first device message.
func (h *HTTPServer) handleData(w http.ResponseWriter, r *http.Request) {
	reading := h.store.Snapshot()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"temperature": reading.Temperature,
		"humidity":    reading.Humidity,
		"time":        reading.TimeOfDay(),
	})
}

// handleTest implements GET /api/test: a liveness probe that lets clients
// tell "server down" apart from "no sensor data yet".
func (h *HTTPServer) handleTest(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"time":    time.Now().Format("15:04:05"),
		"message": "Server is running",
	})
}

// handleAdminLogin implements POST /api/admin_login. The response never
// reveals which credential field mismatched, and a failed login is an
// expected outcome, not an error.
func (h *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordSessionsSwept(h.sessions.Sweep())

	var req loginRequest
	// A malformed or empty body behaves like empty credentials.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.User != h.config.Admin.User || req.Pass != h.config.Admin.Pass {
		h.metrics.RecordLoginFailure()
		h.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false})
		return
	}

	token, err := h.sessions.Issue()
	if err != nil {
		h.logger.Error("Failed to issue session", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false})
		return
	}

	h.metrics.RecordSessionIssued()
	h.logger.Info("Admin session issued",
		slog.Duration("ttl", h.sessions.TTL()),
	)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"token": token,
		"ttl":   int(h.sessions.TTL().Seconds()),
	})
}

// handleAdminCheck implements POST /api/admin_check
func (h *HTTPServer) handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordSessionsSwept(h.sessions.Sweep())

	var req checkRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if !h.sessions.Validate(req.Token) {
		h.writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// handleHealth implements GET /health
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	listenerStats := h.tcpServer.GetStatistics()
	reading := h.store.Snapshot()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "station-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"device_listener": map[string]interface{}{
				"status":             "running",
				"active_connections": listenerStats.ActiveConnections,
				"lines_received":     listenerStats.LinesReceived,
			},
			"sensor_state": map[string]interface{}{
				"has_reading": reading.TimeOfDay() != state.TimeUnknown,
				"last_update": reading.TimeOfDay(),
			},
			"sessions": map[string]interface{}{
				"active": h.sessions.Active(),
			},
		},
	}

	h.writeJSON(w, http.StatusOK, health)
}

// handleStats implements GET /stats
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	listenerStats := h.tcpServer.GetStatistics()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"device":    listenerStats,
		"sessions": map[string]interface{}{
			"active": h.sessions.Active(),
		},
	}

	h.writeJSON(w, http.StatusOK, stats)
}
