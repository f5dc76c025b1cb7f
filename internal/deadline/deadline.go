// Package deadline computes when a task notification should fire.
//
// Every function here is pure: the caller supplies "now", the due instant,
// the user's quiet hours and time zone, and gets back an instant or a
// discard verdict. Nothing is stored.
package deadline

import (
	"fmt"
	"time"
)

// Kind identifies one of the independent notification schedules of a task.
type Kind string

const (
	KindReminder        Kind = "reminder"
	KindOverdue         Kind = "overdue"
	KindCompletionCheck Kind = "completion_check"
)

// Kinds lists every kind in scheduling order.
var Kinds = []Kind{KindReminder, KindOverdue, KindCompletionCheck}

const (
	// OverdueOffset is how long after the due instant an overdue alert fires.
	OverdueOffset = 60 * time.Minute

	// CompletionCheckOffset is measured from scheduling time, not from the due instant.
	CompletionCheckOffset = 24 * time.Hour
)

// ParseKind converts a stored or user supplied string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindReminder, KindOverdue, KindCompletionCheck:
		return k, nil
	default:
		return "", fmt.Errorf("invalid notification kind: %q", s)
	}
}

// Raw returns the fire instant for kind before quiet-hours adjustment.
func Raw(now, dueAt time.Time, kind Kind, leadMinutes int) (time.Time, error) {
	switch kind {
	case KindReminder:
		return dueAt.Add(-time.Duration(leadMinutes) * time.Minute), nil
	case KindOverdue:
		return dueAt.Add(OverdueOffset), nil
	case KindCompletionCheck:
		return now.Add(CompletionCheckOffset), nil
	default:
		return time.Time{}, fmt.Errorf("invalid notification kind: %q", kind)
	}
}

// FireTime computes the effective fire instant for one notification kind.
//
// The raw instant is shifted out of the quiet window as seen in loc (nil
// means UTC). ok is false when the result is not strictly after now; such
// notifications are discarded, not retried.
func FireTime(now, dueAt time.Time, kind Kind, leadMinutes int, quiet QuietHours, loc *time.Location) (time.Time, bool) {
	raw, err := Raw(now, dueAt, kind, leadMinutes)
	if err != nil {
		return time.Time{}, false
	}

	if loc == nil {
		loc = time.UTC
	}

	fire := quiet.Adjust(raw.In(loc)).UTC()
	if !fire.After(now) {
		return time.Time{}, false
	}

	return fire, true
}

// Location resolves an IANA zone name; the empty string is UTC.
func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
