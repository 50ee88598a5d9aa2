// Package httpapi exposes an event buffer node over HTTP: appends, drains,
// streaming consumers over SSE and WebSocket, and admin control.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rmacdonaldsmith/inputlog/internal/daemon"
)

// DefaultKeepalive is the interval between keepalives on idle streams.
const DefaultKeepalive = 15 * time.Second

// defaultSecretKey signs tokens when no secret is configured.
const defaultSecretKey = "inputlog-dev-secret-key-change-in-production"

// Server represents the HTTP API server
type Server struct {
	node       *daemon.Node
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	logger     *slog.Logger
}

// Config holds server configuration
type Config struct {
	// Listen is the "host:port" to serve on
	Listen    string
	SecretKey string
	// NoAuth bypasses authentication on non-admin endpoints
	NoAuth bool
	// Keepalive is the idle interval between stream keepalives
	Keepalive time.Duration
	Logger    *slog.Logger
}

// NewServer creates a new HTTP API server
func NewServer(node *daemon.Node, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "httpapi")

	secretKey := config.SecretKey
	if secretKey == "" {
		logger.Warn("no secret key configured, using the development default")
		secretKey = defaultSecretKey
	}
	if config.NoAuth {
		logger.Warn("authentication disabled for non-admin endpoints")
	}

	jwtAuth := NewJWTAuth(secretKey)
	server := &Server{
		node:       node,
		jwtAuth:    jwtAuth,
		handlers:   NewHandlers(node, jwtAuth, logger, config.Keepalive),
		middleware: NewMiddleware(jwtAuth, config.NoAuth, logger),
		logger:     logger,
	}

	server.server = &http.Server{
		Addr:              config.Listen,
		Handler:           server.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	return server
}

// Start serves on the configured address until Stop is called
func (s *Server) Start() error {
	s.logger.Info("http api listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve serves on an existing listener until Stop is called
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("http api listening", "addr", listener.Addr().String())
	if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the routed handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	withMiddleware := func(handler http.HandlerFunc) http.Handler {
		return s.middleware.Recovery(
			s.middleware.RequestID(
				s.middleware.Logging(
					s.middleware.CORS(
						s.middleware.ContentType(handler)))))
	}

	// Authentication endpoints (no auth required)
	mux.Handle("/api/v1/auth/login", withMiddleware(s.methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handlers.Login,
	})))

	// Event endpoints (auth required)
	mux.Handle("/api/v1/events", withMiddleware(s.middleware.AuthRequired(s.methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handlers.AppendEvent,
		http.MethodGet:  s.handlers.DrainEvents,
	}))))
	mux.Handle("/api/v1/events/stream", withMiddleware(s.middleware.AuthRequired(s.methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handlers.StreamEvents,
	}))))
	mux.Handle("/api/v1/events/ws", withMiddleware(s.middleware.AuthRequired(s.methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handlers.WebSocketEvents,
	}))))

	// Admin endpoints (admin auth required)
	mux.Handle("/api/v1/admin/control", withMiddleware(s.middleware.AdminRequired(s.methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handlers.AdminControl,
	}))))
	mux.Handle("/api/v1/admin/reset", withMiddleware(s.middleware.AdminRequired(s.methods(map[string]http.HandlerFunc{
		http.MethodPost: s.handlers.AdminReset,
	}))))
	mux.Handle("/api/v1/admin/stats", withMiddleware(s.middleware.AdminRequired(s.methods(map[string]http.HandlerFunc{
		http.MethodGet: s.handlers.AdminGetStats,
	}))))

	// Health endpoint (no auth required)
	mux.Handle("/api/v1/health", withMiddleware(s.handlers.Health))

	// Root endpoint with API info
	mux.Handle("/", withMiddleware(s.handleRoot))

	return mux
}

// methods dispatches on the HTTP method and answers 405 otherwise
func (s *Server) methods(byMethod map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, "Not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "inputlog HTTP API",
		"version":     "1.0.0",
		"description": "Bounded input event buffer with blocking drains",
		"endpoints": map[string]interface{}{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"events": map[string]string{
				"append":    "POST /api/v1/events",
				"drain":     "GET /api/v1/events?nonblock={bool}&max={bytes}",
				"stream":    "GET /api/v1/events/stream?match={keyword}&filter={cel}",
				"websocket": "GET /api/v1/events/ws?match={keyword}&filter={cel}",
			},
			"admin": map[string]string{
				"control": "POST /api/v1/admin/control",
				"reset":   "POST /api/v1/admin/reset",
				"stats":   "GET /api/v1/admin/stats",
			},
			"health": "GET /api/v1/health",
		},
		"authentication": "Bearer JWT token required for most endpoints",
	}

	writeJSON(w, info, http.StatusOK)
}
