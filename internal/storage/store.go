package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record is missing from storage.
	ErrNotFound = errors.New("storage: record not found")

	// ErrAlreadyExists is returned by insert-once writes when the key is taken.
	ErrAlreadyExists = errors.New("storage: record already exists")

	// ErrUnavailable marks backend failures that may succeed on retry.
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
	Reminders() ReminderStore
	Reports() ReportStore
}

// SessionStore keeps the audit trail of live sessions. Rows are keyed by
// the provider-assigned session id and written with upsert semantics.
type SessionStore interface {
	UpsertSession(ctx context.Context, session SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]SessionRecord, error)
}

// ReminderStore manages per-user reminder settings and scheduled notifications.
type ReminderStore interface {
	UpsertSettings(ctx context.Context, userID string, settings ReminderSettings) error
	LoadSettings(ctx context.Context, userID string) (*ReminderSettings, error)

	// InsertNotification upserts by id. Existing sent/email_sent flags are kept.
	InsertNotification(ctx context.Context, n Notification) error
	GetNotification(ctx context.Context, id string) (*Notification, error)
	// DeleteUnsent removes unsent notifications of a task and returns their ids.
	DeleteUnsent(ctx context.Context, userID, taskID string) ([]string, error)
	// ListNotifications returns the most recently scheduled notifications first.
	ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error)
	// ListDue returns unsent notifications scheduled at or before the cutoff.
	ListDue(ctx context.Context, before time.Time, limit int) ([]Notification, error)
	MarkSent(ctx context.Context, id string, emailSent bool) error
}

// ReportStore manages immutable session reports.
type ReportStore interface {
	// InsertReport fails with ErrAlreadyExists when the session already has a report.
	InsertReport(ctx context.Context, report SessionReport) error
	GetReport(ctx context.Context, sessionID string) (*SessionReport, error)
	ListReports(ctx context.Context, userID string, limit int) ([]SessionReport, error)
}
