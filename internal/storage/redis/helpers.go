package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/wellcore/internal/deadline"
	"github.com/goodtune/wellcore/internal/storage"
)

// parseSessionRecord converts a Redis hash to SessionRecord
func parseSessionRecord(data map[string]string) (*storage.SessionRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	startedAt, err := time.Parse(time.RFC3339Nano, data["started_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}

	var endedAt *time.Time
	if raw := data["ended_at"]; raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ended_at: %w", err)
		}
		endedAt = &parsed
	}

	ceiling, err := strconv.ParseInt(data["ceiling_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ceiling_seconds: %w", err)
	}

	duration, err := strconv.ParseInt(data["duration_seconds"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duration_seconds: %w", err)
	}

	return &storage.SessionRecord{
		ID:              data["id"],
		UserID:          data["user_id"],
		Personality:     data["personality"],
		ProviderURL:     data["provider_url"],
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		CeilingSeconds:  ceiling,
		DurationSeconds: duration,
		EndReason:       data["end_reason"],
		Active:          data["active"] == "1",
	}, nil
}

// parseReminderSettings converts a Redis hash to ReminderSettings
func parseReminderSettings(data map[string]string) (*storage.ReminderSettings, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	lead, err := strconv.Atoi(data["reminder_lead_minutes"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse reminder_lead_minutes: %w", err)
	}

	var updatedAt time.Time
	if raw := data["updated_at"]; raw != "" {
		updatedAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
	}

	return &storage.ReminderSettings{
		Enabled:                    data["enabled"] == "1",
		ReminderLeadMinutes:        lead,
		OverdueEnabled:             data["overdue_enabled"] == "1",
		CompletionRemindersEnabled: data["completion_reminders_enabled"] == "1",
		EmailEnabled:               data["email_enabled"] == "1",
		QuietHours: deadline.QuietHours{
			Enabled: data["quiet_enabled"] == "1",
			Start:   data["quiet_start"],
			End:     data["quiet_end"],
		},
		Timezone:  data["timezone"],
		UpdatedAt: updatedAt,
	}, nil
}

// parseNotification converts a Redis hash to Notification
func parseNotification(data map[string]string) (*storage.Notification, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	kind, err := deadline.ParseKind(data["kind"])
	if err != nil {
		return nil, err
	}

	scheduledFor, err := time.Parse(time.RFC3339Nano, data["scheduled_for"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse scheduled_for: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &storage.Notification{
		ID:           data["id"],
		TaskID:       data["task_id"],
		UserID:       data["user_id"],
		Kind:         kind,
		Title:        data["title"],
		Body:         data["body"],
		ScheduledFor: scheduledFor,
		Sent:         data["sent"] == "1",
		EmailSent:    data["email_sent"] == "1",
		CreatedAt:    createdAt,
	}, nil
}

// parseSessionReport decodes the JSON document stored in a report hash
func parseSessionReport(data string) (*storage.SessionReport, error) {
	var report storage.SessionReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}
