package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/wellcore/internal/analysis"
	"github.com/goodtune/wellcore/internal/api"
	"github.com/goodtune/wellcore/internal/clock"
	"github.com/goodtune/wellcore/internal/config"
	"github.com/goodtune/wellcore/internal/device"
	"github.com/goodtune/wellcore/internal/metrics"
	"github.com/goodtune/wellcore/internal/notify"
	"github.com/goodtune/wellcore/internal/provider"
	"github.com/goodtune/wellcore/internal/reminder"
	"github.com/goodtune/wellcore/internal/report"
	"github.com/goodtune/wellcore/internal/retry"
	"github.com/goodtune/wellcore/internal/session"
	"github.com/goodtune/wellcore/internal/storage/redis"
	"github.com/goodtune/wellcore/internal/systemd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start Wellcore server",
	Long:  `Start the Wellcore server with the JSON API, reminder dispatcher, and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Wellcore")

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to get systemd listeners")
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	store, err := redis.Open(cfg.Storage.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("redis_host", cfg.Storage.Redis.Host).
		Int("redis_port", cfg.Storage.Redis.Port).
		Msg("Storage initialized")

	client := provider.NewHTTPClient(provider.HTTPConfig{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		Timeout:   config.ParseDuration(cfg.Provider.Timeout, 15*time.Second),
		RateLimit: cfg.Provider.RateLimit,
		RateBurst: cfg.Provider.RateBurst,
	}, logger)

	pipeline, err := report.NewPipeline(analysis.Heuristic{}, store.Reports(), report.Config{
		DedupeCacheSize: cfg.Reports.DedupeCacheSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize report pipeline: %w", err)
	}

	devices := device.NewLeaseBackend()
	sessionConfig := session.Config{
		ReplicaID:    cfg.Session.ReplicaID,
		Ceiling:      config.ParseDuration(cfg.Session.Ceiling, 15*time.Minute),
		TickInterval: config.ParseDuration(cfg.Session.TickInterval, time.Second),
		CreatePolicy: retry.Policy{
			MaxAttempts: cfg.Session.CreateAttempts,
			Delay:       config.ParseDuration(cfg.Session.CreateRetryDelay, 2*time.Second),
		},
		PersistTimeout: config.ParseDuration(cfg.Session.PersistTimeout, 5*time.Second),
		Clock:          clock.Real{},
	}

	registry := session.NewRegistry(func(userID string) *session.Orchestrator {
		guard := device.NewGuard(devices, userID, logger)
		o := session.New(userID, guard, client, store.Sessions(), sessionConfig, logger)
		pipeline.Attach(o)
		return o
	})

	logger.Info().
		Dur("ceiling", sessionConfig.Ceiling).
		Str("provider", cfg.Provider.BaseURL).
		Msg("Session orchestration initialized")

	dispatcher, err := reminder.NewDispatcher(
		store.Reminders(),
		notify.NewLogNotifier(logger),
		notify.NewLogEmail(logger),
		reminder.DispatcherConfig{
			SweepSchedule:      cfg.Reminders.SweepSchedule,
			SweepBatch:         cfg.Reminders.SweepBatch,
			DeliveredCacheSize: cfg.Reminders.DeliveredCacheSize,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize reminder dispatcher: %w", err)
	}

	timers := notify.NewLocal(dispatcher.Fire, clock.Real{}, logger)
	scheduler := reminder.NewScheduler(store.Reminders(), timers, reminder.Config{
		PersistPolicy: retry.Policy{
			MaxAttempts: cfg.Reminders.PersistAttempts,
			Delay:       config.ParseDuration(cfg.Reminders.PersistRetryDelay, 500*time.Millisecond),
		},
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reminder dispatcher: %w", err)
	}

	logger.Info().
		Str("schedule", cfg.Reminders.SweepSchedule).
		Msg("Reminder dispatcher started")

	// A start may run every provider attempt; leave room to write the reply
	providerTimeout := config.ParseDuration(cfg.Provider.Timeout, 15*time.Second)
	writeTimeout := sessionConfig.CreatePolicy.Bound(providerTimeout) + 15*time.Second

	apiServer, err := api.NewServer(api.Config{
		ListenAddr:   fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort),
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		WriteTimeout: writeTimeout,
	}, api.Deps{
		Sessions:  registry,
		Devices:   devices,
		Reminders: scheduler,
		Reports:   pipeline,
		History:   store.Sessions(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize API server: %w", err)
	}
	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().Msg("Wellcore startup complete")
	logger.Info().Msgf("API: http://%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	go systemd.RunWatchdog(ctx, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := registry.EndAll(shutdownCtx, session.ReasonShutdown); err != nil {
		logger.Error().Err(err).Msg("Error ending live sessions")
	}
	pipeline.Wait()

	timers.Stop()
	dispatcher.Stop()
	cancel()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("Wellcore stopped")
	return nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
