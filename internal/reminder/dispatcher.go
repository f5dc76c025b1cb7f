package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goodtune/wellcore/internal/clock"
	"github.com/goodtune/wellcore/internal/metrics"
	"github.com/goodtune/wellcore/internal/notify"
	"github.com/goodtune/wellcore/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	// DefaultSweepSchedule is how often due notifications are swept
	DefaultSweepSchedule = "@every 30s"

	defaultSweepBatch = 100
	defaultCacheSize  = 4096
)

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	SweepSchedule      string
	SweepBatch         int
	DeliveredCacheSize int
	Clock              clock.Clock
}

// Dispatcher delivers due notifications. Armed timers call Fire; a cron
// sweep picks up anything a timer missed, such as rows armed before a
// restart. Delivery is at-least-once; recently delivered ids are remembered
// so the timer and the sweep do not both deliver the same row.
type Dispatcher struct {
	store    storage.ReminderStore
	notifier notify.Notifier
	email    notify.Emailer
	config   DispatcherConfig
	logger   zerolog.Logger

	delivered *lru.Cache[string, struct{}]
	cron      *cron.Cron

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewDispatcher creates a dispatcher. email may be nil.
func NewDispatcher(store storage.ReminderStore, notifier notify.Notifier, email notify.Emailer, config DispatcherConfig, logger zerolog.Logger) (*Dispatcher, error) {
	if config.SweepSchedule == "" {
		config.SweepSchedule = DefaultSweepSchedule
	}
	if config.SweepBatch <= 0 {
		config.SweepBatch = defaultSweepBatch
	}
	if config.DeliveredCacheSize <= 0 {
		config.DeliveredCacheSize = defaultCacheSize
	}
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}

	cache, err := lru.New[string, struct{}](config.DeliveredCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivered cache: %w", err)
	}

	return &Dispatcher{
		store:     store,
		notifier:  notifier,
		email:     email,
		config:    config,
		logger:    logger.With().Str("component", "reminder-dispatcher").Logger(),
		delivered: cache,
		cron:      cron.New(),
		inflight:  make(map[string]struct{}),
	}, nil
}

// Start registers the sweep and starts the cron runner
func (d *Dispatcher) Start(ctx context.Context) error {
	_, err := d.cron.AddFunc(d.config.SweepSchedule, func() {
		if _, err := d.Sweep(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Notification sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", d.config.SweepSchedule, err)
	}

	d.cron.Start()
	d.logger.Info().Str("schedule", d.config.SweepSchedule).Msg("Reminder dispatcher started")
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish
func (d *Dispatcher) Stop() {
	<-d.cron.Stop().Done()
}

// Fire is the local sink callback for an expired timer
func (d *Dispatcher) Fire(delivery notify.Delivery) {
	if err := d.Deliver(context.Background(), delivery.ID); err != nil {
		d.logger.Warn().Err(err).Str("notification_id", delivery.ID).Msg("Timer delivery failed, sweep will retry")
	}
}

// Deliver delivers one notification by id. Cancelled, already sent and
// recently delivered notifications are skipped.
func (d *Dispatcher) Deliver(ctx context.Context, id string) error {
	if d.delivered.Contains(id) {
		return nil
	}

	n, err := d.store.GetNotification(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = d.deliver(ctx, *n)
	return err
}

// Sweep delivers every unsent notification that is due and returns how
// many were delivered
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	due, err := d.store.ListDue(ctx, d.config.Clock.Now(), d.config.SweepBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list due notifications: %w", err)
	}

	count := 0
	for _, n := range due {
		if d.delivered.Contains(n.ID) {
			continue
		}
		ok, err := d.deliver(ctx, n)
		if err != nil {
			d.logger.Warn().Err(err).Str("notification_id", n.ID).Msg("Sweep delivery failed")
			continue
		}
		if ok {
			count++
		}
	}

	if count > 0 {
		d.logger.Debug().Int("delivered", count).Msg("Notification sweep delivered")
	}
	return count, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n storage.Notification) (bool, error) {
	if n.Sent {
		d.delivered.Add(n.ID, struct{}{})
		return false, nil
	}

	d.mu.Lock()
	if _, busy := d.inflight[n.ID]; busy {
		d.mu.Unlock()
		return false, nil
	}
	d.inflight[n.ID] = struct{}{}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.inflight, n.ID)
		d.mu.Unlock()
	}()

	// Re-check after claiming: a concurrent path may have finished first
	if d.delivered.Contains(n.ID) {
		return false, nil
	}

	out := delivery(n)
	if err := d.notifier.Notify(ctx, out); err != nil {
		return false, fmt.Errorf("local delivery: %w", err)
	}
	metrics.RemindersDelivered.WithLabelValues(string(n.Kind), "local").Inc()

	emailSent := n.EmailSent
	if !emailSent && d.email != nil && d.emailEnabled(ctx, n.UserID) {
		if err := d.email.SendEmail(ctx, out); err != nil {
			d.logger.Warn().Err(err).Str("notification_id", n.ID).Msg("Email delivery failed")
		} else {
			emailSent = true
			metrics.RemindersDelivered.WithLabelValues(string(n.Kind), "email").Inc()
		}
	}

	if err := d.store.MarkSent(ctx, n.ID, emailSent); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Cancelled while being delivered
			return true, nil
		}
		metrics.PersistenceFailures.WithLabelValues("notification").Inc()
		d.logger.Error().Err(err).Str("notification_id", n.ID).Msg("Failed to mark notification sent")
	}

	d.delivered.Add(n.ID, struct{}{})
	return true, nil
}

func (d *Dispatcher) emailEnabled(ctx context.Context, userID string) bool {
	settings, err := d.store.LoadSettings(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return DefaultSettings().EmailEnabled
	}
	if err != nil {
		d.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to load settings for email delivery")
		return false
	}
	return settings.EmailEnabled
}
