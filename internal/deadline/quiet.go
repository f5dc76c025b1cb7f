package deadline

import (
	"fmt"
	"time"
)

// QuietHours is a daily window during which notifications are deferred.
// Start and End are "HH:MM". Start > End means the window wraps midnight.
type QuietHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// Validate checks the window bounds when the window is enabled.
func (q QuietHours) Validate() error {
	if !q.Enabled {
		return nil
	}
	start, end, err := q.bounds()
	if err != nil {
		return err
	}
	if start == end {
		return fmt.Errorf("quiet hours start and end are both %s", q.Start)
	}
	return nil
}

// Overnight reports whether the window wraps midnight.
func (q QuietHours) Overnight() bool {
	start, end, err := q.bounds()
	return err == nil && start > end
}

// Contains reports whether the local time-of-day of t falls inside [Start, End).
func (q QuietHours) Contains(t time.Time) bool {
	if !q.Enabled {
		return false
	}
	start, end, err := q.bounds()
	if err != nil {
		return false
	}

	m := t.Hour()*60 + t.Minute()
	if start <= end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

// Adjust returns t unchanged when it is outside the window, otherwise the
// next occurrence of End at or after t, in t's location.
func (q QuietHours) Adjust(t time.Time) time.Time {
	if !q.Contains(t) {
		return t
	}

	_, end, _ := q.bounds()
	next := time.Date(t.Year(), t.Month(), t.Day(), end/60, end%60, 0, 0, t.Location())
	if next.Before(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// bounds returns Start and End as minutes since midnight.
func (q QuietHours) bounds() (int, int, error) {
	start, err := parseClock(q.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid quiet hours start: %w", err)
	}
	end, err := parseClock(q.End)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid quiet hours end: %w", err)
	}
	return start, end, nil
}

func parseClock(s string) (int, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
