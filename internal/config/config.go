package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Session   SessionConfig   `mapstructure:"session"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Reminders RemindersConfig `mapstructure:"reminders"`
	Reports   ReportsConfig   `mapstructure:"reports"`
}

// ServerConfig defines listener ports and addresses
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`

	// Per-client API rate limit, 0 disables it
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig defines live session policy. The ceiling is a deployment
// constant; end users cannot change it.
type SessionConfig struct {
	Ceiling          string `mapstructure:"ceiling"`
	TickInterval     string `mapstructure:"tick_interval"`
	ReplicaID        string `mapstructure:"replica_id"`
	CreateAttempts   int    `mapstructure:"create_attempts"`
	CreateRetryDelay string `mapstructure:"create_retry_delay"`
	PersistTimeout   string `mapstructure:"persist_timeout"`
}

// ProviderConfig defines the conversational video provider endpoint
type ProviderConfig struct {
	BaseURL   string  `mapstructure:"base_url"`
	APIKey    string  `mapstructure:"api_key"`
	Timeout   string  `mapstructure:"timeout"`
	RateLimit float64 `mapstructure:"rate_limit"` // requests per second
	RateBurst int     `mapstructure:"rate_burst"`
}

// RemindersConfig defines reminder persistence and delivery settings
type RemindersConfig struct {
	SweepSchedule      string `mapstructure:"sweep_schedule"`
	SweepBatch         int    `mapstructure:"sweep_batch"`
	PersistAttempts    int    `mapstructure:"persist_attempts"`
	PersistRetryDelay  string `mapstructure:"persist_retry_delay"`
	DeliveredCacheSize int    `mapstructure:"delivered_cache_size"`
}

// ReportsConfig defines report pipeline settings
type ReportsConfig struct {
	DedupeCacheSize int `mapstructure:"dedupe_cache_size"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("WELLCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.api_port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	// Storage defaults
	v.SetDefault("storage.type", "redis")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Session defaults
	v.SetDefault("session.replica_id", "")
	v.SetDefault("session.ceiling", "15m")
	v.SetDefault("session.tick_interval", "1s")
	v.SetDefault("session.create_attempts", 3)
	v.SetDefault("session.create_retry_delay", "2s")
	v.SetDefault("session.persist_timeout", "5s")

	// Provider defaults
	v.SetDefault("provider.base_url", "https://tavusapi.com")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.rate_limit", 2.0)
	v.SetDefault("provider.rate_burst", 4)

	// Reminder defaults
	v.SetDefault("reminders.sweep_schedule", "@every 30s")
	v.SetDefault("reminders.sweep_batch", 100)
	v.SetDefault("reminders.persist_attempts", 3)
	v.SetDefault("reminders.persist_retry_delay", "500ms")
	v.SetDefault("reminders.delivered_cache_size", 4096)

	// Report defaults
	v.SetDefault("reports.dedupe_cache_size", 1024)
}

// Defaults returns the configuration with only default values applied.
// It is not validated.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// Keys returns the set of recognised configuration keys
func Keys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Server.RateLimit < 0 {
		return fmt.Errorf("invalid server.rate_limit: must not be negative")
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "redis"
	}
	if cfg.Storage.Type != "redis" {
		return fmt.Errorf("unsupported storage type: %s (only 'redis' is supported)", cfg.Storage.Type)
	}

	durations := map[string]string{
		"storage.redis.dial_timeout":    cfg.Storage.Redis.DialTimeout,
		"storage.redis.read_timeout":    cfg.Storage.Redis.ReadTimeout,
		"storage.redis.write_timeout":   cfg.Storage.Redis.WriteTimeout,
		"session.ceiling":               cfg.Session.Ceiling,
		"session.tick_interval":         cfg.Session.TickInterval,
		"session.create_retry_delay":    cfg.Session.CreateRetryDelay,
		"session.persist_timeout":       cfg.Session.PersistTimeout,
		"provider.timeout":              cfg.Provider.Timeout,
		"reminders.persist_retry_delay": cfg.Reminders.PersistRetryDelay,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: must not be negative", key)
		}
	}

	if cfg.Session.ReplicaID == "" {
		return fmt.Errorf("session.replica_id is required")
	}
	if cfg.Session.CreateAttempts < 1 {
		return fmt.Errorf("session.create_attempts must be at least 1")
	}
	if cfg.Reminders.PersistAttempts < 1 {
		return fmt.Errorf("reminders.persist_attempts must be at least 1")
	}

	if _, err := cron.ParseStandard(cfg.Reminders.SweepSchedule); err != nil {
		return fmt.Errorf("invalid reminders.sweep_schedule: %w", err)
	}

	return nil
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
