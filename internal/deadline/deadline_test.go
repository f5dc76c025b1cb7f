package deadline

import (
	"testing"
	"time"
)

var overnight = QuietHours{Enabled: true, Start: "22:00", End: "08:00"}

func TestFireTime_OvernightQuietHours(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	due := time.Date(2025, 1, 10, 22, 30, 0, 0, time.UTC)

	got, ok := FireTime(now, due, KindReminder, 30, overnight, time.UTC)
	if !ok {
		t.Fatal("expected reminder to be scheduled")
	}

	want := time.Date(2025, 1, 11, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("FireTime() = %v, want %v", got, want)
	}
}

func TestFireTime_Kinds(t *testing.T) {
	now := time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)
	due := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		kind Kind
		want time.Time
	}{
		{KindReminder, time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)},
		{KindOverdue, time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)},
		{KindCompletionCheck, now.Add(24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, ok := FireTime(now, due, tt.kind, 30, QuietHours{}, nil)
			if !ok {
				t.Fatal("expected notification to be scheduled")
			}
			if !got.Equal(tt.want) {
				t.Errorf("FireTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFireTime_DiscardsPast(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		kind Kind
		lead int
	}{
		{"reminder already elapsed", now.Add(10 * time.Minute), KindReminder, 30},
		{"reminder exactly now", now.Add(30 * time.Minute), KindReminder, 30},
		{"overdue already elapsed", now.Add(-2 * time.Hour), KindOverdue, 0},
		{"unknown kind", now.Add(time.Hour), Kind("weekly"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := FireTime(now, tt.due, tt.kind, tt.lead, QuietHours{}, nil); ok {
				t.Errorf("FireTime() = %v, expected discard", got)
			}
		})
	}
}

func TestFireTime_UsesUserLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	// 20:30 UTC is 22:30 local, inside the overnight window.
	due := time.Date(2025, 1, 10, 21, 0, 0, 0, time.UTC)

	got, ok := FireTime(now, due, KindReminder, 30, overnight, loc)
	if !ok {
		t.Fatal("expected reminder to be scheduled")
	}

	// 08:00 local on the 11th.
	want := time.Date(2025, 1, 11, 6, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("FireTime() = %v, want %v", got, want)
	}
	if got.Location() != time.UTC {
		t.Errorf("FireTime() location = %v, want UTC", got.Location())
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("daily"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestLocation(t *testing.T) {
	loc, err := Location("")
	if err != nil || loc != time.UTC {
		t.Errorf("Location(\"\") = %v, %v", loc, err)
	}
	if _, err := Location("Not/AZone"); err == nil {
		t.Error("expected error for unknown zone")
	}
}
