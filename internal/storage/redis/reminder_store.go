package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/wellcore/internal/storage"
	"github.com/redis/go-redis/v9"
)

type reminderStore struct {
	client *redis.Client
}

// UpsertSettings replaces the reminder settings of a user
func (s *reminderStore) UpsertSettings(ctx context.Context, userID string, settings storage.ReminderSettings) error {
	fields := map[string]interface{}{
		"user_id":                      userID,
		"enabled":                      boolString(settings.Enabled),
		"reminder_lead_minutes":        settings.ReminderLeadMinutes,
		"overdue_enabled":              boolString(settings.OverdueEnabled),
		"completion_reminders_enabled": boolString(settings.CompletionRemindersEnabled),
		"email_enabled":                boolString(settings.EmailEnabled),
		"quiet_enabled":                boolString(settings.QuietHours.Enabled),
		"quiet_start":                  settings.QuietHours.Start,
		"quiet_end":                    settings.QuietHours.End,
		"timezone":                     settings.Timezone,
		"updated_at":                   settings.UpdatedAt.Format(time.RFC3339Nano),
	}

	return s.client.HSet(ctx, settingsKey(userID), fields).Err()
}

// LoadSettings returns storage.ErrNotFound when the user has no settings row
func (s *reminderStore) LoadSettings(ctx context.Context, userID string) (*storage.ReminderSettings, error) {
	data, err := s.client.HGetAll(ctx, settingsKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	return parseReminderSettings(data)
}

// InsertNotification creates or refreshes a scheduled notification
func (s *reminderStore) InsertNotification(ctx context.Context, n storage.Notification) error {
	script := redis.NewScript(insertNotificationScript)

	keys := []string{
		notificationKey(n.ID),
		taskNotificationsKey(n.UserID, n.TaskID),
		userNotificationsKey(n.UserID),
		pendingNotificationsKey,
	}
	args := []interface{}{
		n.ID,
		n.TaskID,
		n.UserID,
		string(n.Kind),
		n.Title,
		n.Body,
		n.ScheduledFor.Format(time.RFC3339Nano),
		n.CreatedAt.Format(time.RFC3339Nano),
		score(n.ScheduledFor),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// GetNotification retrieves a notification by ID
func (s *reminderStore) GetNotification(ctx context.Context, id string) (*storage.Notification, error) {
	data, err := s.client.HGetAll(ctx, notificationKey(id)).Result()
	if err != nil {
		return nil, err
	}

	return parseNotification(data)
}

// DeleteUnsent removes the unsent notifications of a task
func (s *reminderStore) DeleteUnsent(ctx context.Context, userID, taskID string) ([]string, error) {
	script := redis.NewScript(deleteUnsentScript)

	keys := []string{
		taskNotificationsKey(userID, taskID),
		userNotificationsKey(userID),
		pendingNotificationsKey,
	}

	ids, err := script.Run(ctx, s.client, keys, notificationKeyPrefix).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	return ids, nil
}

// ListNotifications returns the latest scheduled notifications of a user first
func (s *reminderStore) ListNotifications(ctx context.Context, userID string, limit int) ([]storage.Notification, error) {
	ids, err := s.client.ZRevRange(ctx, userNotificationsKey(userID), 0, stop(limit)).Result()
	if err != nil {
		return nil, err
	}

	return s.fetch(ctx, ids)
}

// ListDue returns unsent notifications scheduled at or before the cutoff, oldest first
func (s *reminderStore) ListDue(ctx context.Context, before time.Time, limit int) ([]storage.Notification, error) {
	by := &redis.ZRangeBy{
		Min: "-inf",
		Max: formatInt(before.UnixMilli()),
	}
	if limit > 0 {
		by.Count = int64(limit)
	}

	ids, err := s.client.ZRangeByScore(ctx, pendingNotificationsKey, by).Result()
	if err != nil {
		return nil, err
	}

	return s.fetch(ctx, ids)
}

// MarkSent flips the sent flag and optionally the email flag
func (s *reminderStore) MarkSent(ctx context.Context, id string, emailSent bool) error {
	script := redis.NewScript(markSentScript)

	keys := []string{notificationKey(id), pendingNotificationsKey}
	args := []interface{}{id, boolString(emailSent), int64(retention.Seconds())}

	updated, err := script.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return err
	}
	if updated == 0 {
		return fmt.Errorf("notification %s: %w", id, storage.ErrNotFound)
	}

	return nil
}

func (s *reminderStore) fetch(ctx context.Context, ids []string) ([]storage.Notification, error) {
	if len(ids) == 0 {
		return []storage.Notification{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, notificationKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	notifications := make([]storage.Notification, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		n, err := parseNotification(data)
		if err == nil {
			notifications = append(notifications, *n)
		}
	}

	return notifications, nil
}
