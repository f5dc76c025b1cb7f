package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellcore_session_starts_total",
			Help: "Session start requests by outcome",
		},
		[]string{"outcome"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wellcore_sessions_active",
			Help: "Number of sessions currently in the Active state",
		},
	)

	SessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wellcore_session_duration_seconds",
			Help:    "Duration of ended sessions",
			Buckets: []float64{30, 60, 120, 300, 600, 900},
		},
		[]string{"reason"},
	)

	// Provider metrics
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellcore_provider_requests_total",
			Help: "Video provider requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	// Device metrics
	DeviceHandlesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wellcore_device_handles_active",
			Help: "Capture device handles currently held",
		},
	)

	DeviceAcquireFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellcore_device_acquire_failures_total",
			Help: "Capture device acquisition failures by reason",
		},
		[]string{"reason"},
	)

	// Reminder metrics
	RemindersScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellcore_reminders_scheduled_total",
			Help: "Reminder scheduling results by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	RemindersDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellcore_reminders_delivered_total",
			Help: "Reminder deliveries by kind and channel",
		},
		[]string{"kind", "channel"},
	)

	// Report metrics
	ReportsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellcore_reports_generated_total",
			Help: "Session report generation by outcome",
		},
		[]string{"outcome"},
	)

	// Persistence metrics
	PersistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellcore_persistence_failures_total",
			Help: "Best-effort writes that failed, by record type",
		},
		[]string{"record"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionStarts,
		SessionsActive,
		SessionDuration,
		ProviderRequests,
		DeviceHandlesActive,
		DeviceAcquireFailures,
		RemindersScheduled,
		RemindersDelivered,
		ReportsGenerated,
		PersistenceFailures,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
