// Package api serves the HTTP surface the UI layer uses to edit rules and
// the host uses to run messages through the hook.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/config"
	"github.com/raaihank/isolated-regex/internal/hook"
	"github.com/raaihank/isolated-regex/internal/host"
	"github.com/raaihank/isolated-regex/internal/logger"
	"github.com/raaihank/isolated-regex/internal/store"
	"github.com/raaihank/isolated-regex/internal/substitute"
	"github.com/raaihank/isolated-regex/internal/web"
	"github.com/raaihank/isolated-regex/internal/websocket"
)

const version = "0.1.0"

// Deps are the components the server exposes
type Deps struct {
	Store     *store.Store
	Session   *host.Session
	Processor *hook.Processor
	Executor  *substitute.Executor
	Hub       *websocket.Hub
}

// Server represents the HTTP API server
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	router    *mux.Router
	server    *http.Server
	store     *store.Store
	session   *host.Session
	processor *hook.Processor
	executor  *substitute.Executor
	wsHub     *websocket.Hub
	limiter   *RateLimiter
	started   time.Time
}

// New creates a new API server instance
func New(cfg *config.Config, log *logger.Logger, deps Deps) *Server {
	server := &Server{
		config:    cfg,
		logger:    log.WithComponent("api"),
		router:    mux.NewRouter(),
		store:     deps.Store,
		session:   deps.Session,
		processor: deps.Processor,
		executor:  deps.Executor,
		wsHub:     deps.Hub,
		limiter:   NewRateLimiter(cfg.RateLimit),
		started:   time.Now(),
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Rule editor panel
	s.router.HandleFunc("/", web.ServePanel).Methods("GET")
	s.router.HandleFunc("/panel", web.ServePanel).Methods("GET")

	if s.wsHub != nil && s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods("GET")
	}

	api := s.router.NewRoute().Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/characters", s.handleListCharacters).Methods("GET")
	api.HandleFunc("/characters/active", s.handleSelectCharacter).Methods("POST")

	api.HandleFunc("/rules/{ref}", s.handleGetRule).Methods("GET")
	api.HandleFunc("/rules/{ref}", s.handlePutRule).Methods("PUT")
	api.HandleFunc("/rules/{ref}/import", s.handleImportRule).Methods("POST")
	api.HandleFunc("/rules/{ref}/export", s.handleExportRule).Methods("GET")

	api.HandleFunc("/process/{role}", s.handleProcess).Methods("POST")
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("Starting isolated-regex API server",
		zap.Int("port", s.config.Server.Port),
		zap.String("settings_backend", s.config.Settings.Backend),
		zap.Bool("rate_limit", s.config.RateLimit.Enabled),
	)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping isolated-regex API server")
	return s.server.Shutdown(ctx)
}

// ApplyConfig picks up the hot-reloadable parts of a new configuration
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.limiter.SetLimits(cfg.RateLimit)
	s.logger.Info("Rate limits updated",
		zap.Bool("enabled", cfg.RateLimit.Enabled),
		zap.Float64("requests_per_second", cfg.RateLimit.RequestsPerSecond),
		zap.Int("burst", cfg.RateLimit.Burst),
	)
}

// Limiter returns the per-client rate limiter
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}
