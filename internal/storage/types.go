package storage

import (
	"time"

	"github.com/goodtune/wellcore/internal/deadline"
)

// SessionRecord is the audit row of one live video session.
type SessionRecord struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Personality     string     `json:"personality"`
	ProviderURL     string     `json:"provider_url"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	CeilingSeconds  int64      `json:"ceiling_seconds"`
	DurationSeconds int64      `json:"duration_seconds"`
	EndReason       string     `json:"end_reason,omitempty"`
	Active          bool       `json:"active"`
}

// ReminderSettings is the per-user reminder configuration.
type ReminderSettings struct {
	Enabled                    bool                `json:"enabled"`
	ReminderLeadMinutes        int                 `json:"reminder_lead_minutes"`
	OverdueEnabled             bool                `json:"overdue_enabled"`
	CompletionRemindersEnabled bool                `json:"completion_reminders_enabled"`
	EmailEnabled               bool                `json:"email_enabled"`
	QuietHours                 deadline.QuietHours `json:"quiet_hours"`
	Timezone                   string              `json:"timezone,omitempty"`
	UpdatedAt                  time.Time           `json:"updated_at"`
}

// Notification is one scheduled reminder instance. ScheduledFor already
// reflects the quiet-hours adjustment.
type Notification struct {
	ID           string        `json:"id"`
	TaskID       string        `json:"task_id"`
	UserID       string        `json:"user_id"`
	Kind         deadline.Kind `json:"kind"`
	Title        string        `json:"title"`
	Body         string        `json:"body"`
	ScheduledFor time.Time     `json:"scheduled_for"`
	Sent         bool          `json:"sent"`
	EmailSent    bool          `json:"email_sent"`
	CreatedAt    time.Time     `json:"created_at"`
}

// SessionReport is produced at most once per ended session.
type SessionReport struct {
	ID               string           `json:"id"`
	SessionID        string           `json:"session_id"`
	UserID           string           `json:"user_id"`
	DurationSeconds  int64            `json:"duration_seconds"`
	QualityTier      string           `json:"quality_tier"`
	MoodAnalysis     MoodAnalysis     `json:"mood_analysis"`
	AIInsights       Insights         `json:"ai_insights"`
	TechnicalMetrics TechnicalMetrics `json:"technical_metrics"`
	CreatedAt        time.Time        `json:"created_at"`
}

// MoodAnalysis summarises the emotional tone of a session.
type MoodAnalysis struct {
	Dominant string   `json:"dominant"`
	Score    float64  `json:"score"`
	Signals  []string `json:"signals,omitempty"`
}

// Insights holds generated observations and suggestions.
type Insights struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// TechnicalMetrics describes how the session ran.
type TechnicalMetrics struct {
	DurationSeconds int64  `json:"duration_seconds"`
	CeilingSeconds  int64  `json:"ceiling_seconds"`
	EndReason       string `json:"end_reason,omitempty"`
	CeilingReached  bool   `json:"ceiling_reached"`
}
