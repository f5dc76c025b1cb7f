package notify

import (
	"context"
	"time"

	"github.com/goodtune/wellcore/internal/deadline"
	"github.com/rs/zerolog"
)

// Delivery is a notification handed to a delivery channel
type Delivery struct {
	ID     string
	UserID string
	TaskID string
	Kind   deadline.Kind
	Title  string
	Body   string
	FireAt time.Time
}

// Sink arms local deliveries for a future instant
type Sink interface {
	Arm(ctx context.Context, d Delivery) error
	// Cancel disarms a pending delivery and reports whether one was armed
	Cancel(id string) bool
}

// Notifier delivers a notification to the user's device
type Notifier interface {
	Notify(ctx context.Context, d Delivery) error
}

// Emailer delivers a notification by email
type Emailer interface {
	SendEmail(ctx context.Context, d Delivery) error
}

// LogNotifier records local deliveries in the log
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs each delivery
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

// Notify logs the delivery
func (n *LogNotifier) Notify(ctx context.Context, d Delivery) error {
	n.logger.Info().
		Str("notification_id", d.ID).
		Str("user_id", d.UserID).
		Str("task_id", d.TaskID).
		Str("kind", string(d.Kind)).
		Str("title", d.Title).
		Msg(d.Body)
	return nil
}

// LogEmail is the email delivery stub. Messages are logged, never sent.
type LogEmail struct {
	logger zerolog.Logger
}

// NewLogEmail creates the email stub
func NewLogEmail(logger zerolog.Logger) *LogEmail {
	return &LogEmail{logger: logger.With().Str("component", "email").Logger()}
}

// SendEmail logs the message
func (e *LogEmail) SendEmail(ctx context.Context, d Delivery) error {
	e.logger.Debug().
		Str("notification_id", d.ID).
		Str("user_id", d.UserID).
		Str("kind", string(d.Kind)).
		Msg("Email delivery skipped (stub)")
	return nil
}
