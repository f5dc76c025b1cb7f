package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/wellcore/internal/config"
	"github.com/goodtune/wellcore/internal/storage"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "wellcore:"

	// retention applies to ended sessions and delivered notifications
	retention = 90 * 24 * time.Hour
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	sessionStore  *sessionStore
	reminderStore *reminderStore
	reportStore   *reportStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client:        client,
		sessionStore:  &sessionStore{client: client},
		reminderStore: &reminderStore{client: client},
		reportStore:   &reportStore{client: client},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Sessions returns the SessionStore implementation
func (s *Store) Sessions() storage.SessionStore {
	return s.sessionStore
}

// Reminders returns the ReminderStore implementation
func (s *Store) Reminders() storage.ReminderStore {
	return s.reminderStore
}

// Reports returns the ReportStore implementation
func (s *Store) Reports() storage.ReportStore {
	return s.reportStore
}

func sessionKey(id string) string { return keyPrefix + "session:" + id }

func sessionsByUserKey(userID string) string { return keyPrefix + "sessions:user:" + userID }

func activeSessionKey(userID string) string { return keyPrefix + "sessions:active:user:" + userID }

const activeSessionsKey = keyPrefix + "sessions:active"

func settingsKey(userID string) string { return keyPrefix + "settings:" + userID }

const notificationKeyPrefix = keyPrefix + "notification:"

func notificationKey(id string) string { return notificationKeyPrefix + id }

func taskNotificationsKey(userID, taskID string) string {
	return keyPrefix + "notifications:task:" + userID + ":" + taskID
}

func userNotificationsKey(userID string) string { return keyPrefix + "notifications:user:" + userID }

const pendingNotificationsKey = keyPrefix + "notifications:pending"

func reportKey(sessionID string) string { return keyPrefix + "report:" + sessionID }

func userReportsKey(userID string) string { return keyPrefix + "reports:user:" + userID }

// score orders index members by instant with millisecond precision
func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
