package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"kischat/internal/metrics"
	"kischat/internal/settings"
	"kischat/pkg/agent"
	"kischat/pkg/session"
)

// Options holds HTTP server configuration
type Options struct {
	Host string
	Port int
}

// GatewayStatus is the health-reporting surface of the tool gateway
type GatewayStatus interface {
	Connected() bool
	ToolNames() []string
}

// AgentRunner produces the event stream for one chat request
type AgentRunner interface {
	Run(ctx context.Context, history []session.Message, sessionID string) <-chan agent.Event
}

// Server exposes the agent loop and conversation store over HTTP
type Server struct {
	options  Options
	server   *http.Server
	settings *settings.Store
	gateway  GatewayStatus
	runner   AgentRunner
	sessions *session.Store
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(options Options, store *settings.Store, gateway GatewayStatus, runner AgentRunner, sessions *session.Store, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 8000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}

	if store == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("tool gateway is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("agent runner is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if m == nil {
		m = metrics.NewMetrics()
	}

	return &Server{
		options:  options,
		settings: store,
		gateway:  gateway,
		runner:   runner,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	s.logger.Info().Msg("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// corsMiddleware mirrors the permissive CORS policy of the original
// deployment: the frontend is served from a separate dev origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
