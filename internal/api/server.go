package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/wellcore/internal/device"
	"github.com/goodtune/wellcore/internal/reminder"
	"github.com/goodtune/wellcore/internal/report"
	"github.com/goodtune/wellcore/internal/session"
	"github.com/goodtune/wellcore/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
	RateLimit  float64 // requests per second per client, 0 disables limiting
	RateBurst  int

	// WriteTimeout must cover the slowest session start, 0 selects
	// defaultWriteTimeout
	WriteTimeout time.Duration
}

const defaultWriteTimeout = 2 * time.Minute

// Deps are the components the API exposes.
type Deps struct {
	Sessions  *session.Registry
	Devices   *device.LeaseBackend
	Reminders *reminder.Scheduler
	Reports   *report.Pipeline
	History   storage.SessionStore
}

// Server is the JSON HTTP API.
type Server struct {
	config   Config
	deps     Deps
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) (*Server, error) {
	router := mux.NewRouter()

	s := &Server{
		config: cfg,
		deps:   deps,
		router: router,
		logger: logger.With().Str("component", "api").Logger(),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	s.router.Use(LoggingMiddleware(s.logger))

	if s.config.RateLimit > 0 {
		limiter, err := NewClientLimiter(s.config.RateLimit, s.config.RateBurst, 0)
		if err != nil {
			return fmt.Errorf("failed to create rate limiter: %w", err)
		}
		s.router.Use(RateLimitMiddleware(limiter))
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	sessions := &SessionHandler{registry: s.deps.Sessions, history: s.deps.History, logger: s.logger}
	s.router.HandleFunc("/v1/users/{user}/session", sessions.Start).Methods("POST")
	s.router.HandleFunc("/v1/users/{user}/session", sessions.Status).Methods("GET")
	s.router.HandleFunc("/v1/users/{user}/session", sessions.End).Methods("DELETE")
	s.router.HandleFunc("/v1/users/{user}/sessions", sessions.List).Methods("GET")
	s.router.HandleFunc("/v1/provider/sessions/{id}/ended", sessions.ProviderEnded).Methods("POST")

	devices := &DeviceHandler{backend: s.deps.Devices, logger: s.logger}
	s.router.HandleFunc("/v1/users/{user}/devices/{kind}", devices.Update).Methods("PUT")

	reminders := &ReminderHandler{scheduler: s.deps.Reminders, logger: s.logger}
	s.router.HandleFunc("/v1/users/{user}/tasks/{task}/reminders", reminders.Schedule).Methods("PUT")
	s.router.HandleFunc("/v1/users/{user}/tasks/{task}/reminders", reminders.Cancel).Methods("DELETE")
	s.router.HandleFunc("/v1/users/{user}/reminders", reminders.History).Methods("GET")
	s.router.HandleFunc("/v1/users/{user}/reminder-settings", reminders.GetSettings).Methods("GET")
	s.router.HandleFunc("/v1/users/{user}/reminder-settings", reminders.UpdateSettings).Methods("PUT")
	s.router.HandleFunc("/v1/users/{user}/quiet", reminders.Quiet).Methods("GET")

	reports := &ReportHandler{pipeline: s.deps.Reports, registry: s.deps.Sessions, history: s.deps.History, logger: s.logger}
	s.router.HandleFunc("/v1/users/{user}/reports", reports.List).Methods("GET")
	s.router.HandleFunc("/v1/users/{user}/sessions/{id}/report", reports.Generate).Methods("POST")

	return nil
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}
