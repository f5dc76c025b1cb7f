package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/wellcore/internal/clock"
	"github.com/goodtune/wellcore/internal/deadline"
	"github.com/goodtune/wellcore/internal/metrics"
	"github.com/goodtune/wellcore/internal/notify"
	"github.com/goodtune/wellcore/internal/retry"
	"github.com/goodtune/wellcore/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// notificationNamespace seeds stable notification ids
var notificationNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:wellcore:notification"))

// Task is the part of a to-do item the scheduler needs
type Task struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	DueAt            *time.Time `json:"due_at,omitempty"`
	RemindersEnabled bool       `json:"reminders_enabled"`
}

// Result reports the outcome of scheduling one kind
type Result struct {
	Kind         deadline.Kind         `json:"kind"`
	Notification *storage.Notification `json:"notification,omitempty"`
	Discarded    bool                  `json:"discarded,omitempty"`
	Err          error                 `json:"-"`
}

// Config holds scheduler configuration
type Config struct {
	PersistPolicy retry.Policy
	Clock         clock.Clock
}

// Scheduler computes, persists and cancels task reminders
type Scheduler struct {
	store  storage.ReminderStore
	sink   notify.Sink
	config Config
	logger zerolog.Logger
}

// NewScheduler creates a scheduler. sink may be nil when nothing should be
// armed locally.
func NewScheduler(store storage.ReminderStore, sink notify.Sink, config Config, logger zerolog.Logger) *Scheduler {
	if config.Clock == nil {
		config.Clock = clock.Real{}
	}
	return &Scheduler{
		store:  store,
		sink:   sink,
		config: config,
		logger: logger.With().Str("component", "reminder-scheduler").Logger(),
	}
}

// NotificationID returns the stable id of a notification instance. The same
// task, kind and fire time always map to the same id, so repeated writes upsert.
func NotificationID(userID, taskID string, kind deadline.Kind, fireAt time.Time) string {
	name := fmt.Sprintf("%s|%s|%s|%s", userID, taskID, kind, fireAt.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(notificationNamespace, []byte(name)).String()
}

// ScheduleAll creates one notification per enabled kind. Kinds are scheduled
// concurrently and fail independently; the returned error covers only
// failures that prevent scheduling altogether.
func (s *Scheduler) ScheduleAll(ctx context.Context, userID string, task Task) ([]Result, error) {
	if !task.RemindersEnabled || task.DueAt == nil {
		return nil, nil
	}

	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}

	kinds := enabledKinds(*settings)
	if len(kinds) == 0 {
		return nil, nil
	}

	loc, err := deadline.Location(settings.Timezone)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Falling back to UTC")
		loc = time.UTC
	}

	now := s.config.Clock.Now()
	results := make([]Result, len(kinds))

	// Nothing is scheduled for tasks that are already due
	if !task.DueAt.After(now) {
		for i, kind := range kinds {
			results[i] = Result{Kind: kind, Discarded: true}
			metrics.RemindersScheduled.WithLabelValues(string(kind), "discarded").Inc()
		}
		return results, nil
	}

	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			results[i] = s.scheduleKind(ctx, userID, task, kind, *settings, loc, now)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// Reschedule replaces the unsent notifications of a task after an edit
func (s *Scheduler) Reschedule(ctx context.Context, userID string, task Task) ([]Result, error) {
	if _, err := s.CancelAll(ctx, userID, task.ID); err != nil {
		return nil, err
	}
	return s.ScheduleAll(ctx, userID, task)
}

func (s *Scheduler) scheduleKind(ctx context.Context, userID string, task Task, kind deadline.Kind, settings storage.ReminderSettings, loc *time.Location, now time.Time) Result {
	fireAt, ok := deadline.FireTime(now, *task.DueAt, kind, settings.ReminderLeadMinutes, settings.QuietHours, loc)
	if !ok {
		metrics.RemindersScheduled.WithLabelValues(string(kind), "discarded").Inc()
		s.logger.Debug().
			Str("task_id", task.ID).
			Str("kind", string(kind)).
			Msg("Fire time already passed, skipping")
		return Result{Kind: kind, Discarded: true}
	}

	n := storage.Notification{
		ID:           NotificationID(userID, task.ID, kind, fireAt),
		TaskID:       task.ID,
		UserID:       userID,
		Kind:         kind,
		Title:        task.Title,
		Body:         body(kind, task.Title, task.DueAt.In(loc)),
		ScheduledFor: fireAt,
		CreatedAt:    now,
	}

	err := s.config.PersistPolicy.Execute(ctx, func(ctx context.Context) error {
		return s.store.InsertNotification(ctx, n)
	}, storage.IsTransient)
	if err != nil {
		metrics.RemindersScheduled.WithLabelValues(string(kind), "failed").Inc()
		metrics.PersistenceFailures.WithLabelValues("notification").Inc()
		s.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Str("kind", string(kind)).
			Msg("Failed to persist notification")
		return Result{Kind: kind, Err: err}
	}

	// A missed arm is recovered by the dispatcher sweep
	if s.sink != nil {
		if err := s.sink.Arm(ctx, delivery(n)); err != nil {
			s.logger.Warn().Err(err).Str("notification_id", n.ID).Msg("Failed to arm local delivery")
		}
	}

	metrics.RemindersScheduled.WithLabelValues(string(kind), "scheduled").Inc()
	s.logger.Debug().
		Str("task_id", task.ID).
		Str("kind", string(kind)).
		Time("scheduled_for", fireAt).
		Msg("Notification scheduled")

	return Result{Kind: kind, Notification: &n}
}

// CancelAll deletes the unsent notifications of a task and disarms their
// local deliveries. Sent notifications are kept as history.
func (s *Scheduler) CancelAll(ctx context.Context, userID, taskID string) (int, error) {
	var ids []string
	err := s.config.PersistPolicy.Execute(ctx, func(ctx context.Context) error {
		var err error
		ids, err = s.store.DeleteUnsent(ctx, userID, taskID)
		return err
	}, storage.IsTransient)
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("notification").Inc()
		return 0, fmt.Errorf("failed to delete notifications for task %s: %w", taskID, err)
	}

	if s.sink != nil {
		for _, id := range ids {
			s.sink.Cancel(id)
		}
	}

	if len(ids) > 0 {
		s.logger.Debug().
			Str("user_id", userID).
			Str("task_id", taskID).
			Int("deleted", len(ids)).
			Msg("Cancelled task notifications")
	}

	return len(ids), nil
}

// IsQuietNow reports whether the user's quiet hours cover the current time.
// Stored notifications are not affected.
func (s *Scheduler) IsQuietNow(ctx context.Context, userID string) (bool, error) {
	settings, err := s.Settings(ctx, userID)
	if err != nil {
		return false, err
	}

	loc, err := deadline.Location(settings.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return settings.QuietHours.Contains(s.config.Clock.Now().In(loc)), nil
}

// Settings returns the user's settings, or the defaults when none are stored
func (s *Scheduler) Settings(ctx context.Context, userID string) (*storage.ReminderSettings, error) {
	settings, err := s.store.LoadSettings(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		defaults := DefaultSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings validates and stores the user's settings. Notifications
// already scheduled keep their fire times.
func (s *Scheduler) UpdateSettings(ctx context.Context, userID string, settings storage.ReminderSettings) (*storage.ReminderSettings, error) {
	if err := ValidateSettings(settings); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if settings.Timezone == "" {
		settings.Timezone = "UTC"
	}
	settings.UpdatedAt = s.config.Clock.Now()

	if err := s.store.UpsertSettings(ctx, userID, settings); err != nil {
		return nil, fmt.Errorf("failed to store reminder settings: %w", err)
	}
	return &settings, nil
}

// History returns the user's most recent notifications
func (s *Scheduler) History(ctx context.Context, userID string, limit int) ([]storage.Notification, error) {
	return s.store.ListNotifications(ctx, userID, limit)
}

// ValidationError wraps invalid user input
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid reminder settings: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func body(kind deadline.Kind, title string, due time.Time) string {
	switch kind {
	case deadline.KindReminder:
		return fmt.Sprintf("%q is due at %s", title, due.Format("15:04 on Mon 2 Jan"))
	case deadline.KindOverdue:
		return fmt.Sprintf("%q is overdue", title)
	case deadline.KindCompletionCheck:
		return fmt.Sprintf("Did you finish %q?", title)
	default:
		return title
	}
}

func delivery(n storage.Notification) notify.Delivery {
	return notify.Delivery{
		ID:     n.ID,
		UserID: n.UserID,
		TaskID: n.TaskID,
		Kind:   n.Kind,
		Title:  n.Title,
		Body:   n.Body,
		FireAt: n.ScheduledFor,
	}
}
