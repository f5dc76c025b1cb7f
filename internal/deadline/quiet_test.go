package deadline

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 14, hour, minute, 0, 0, time.UTC)
}

func TestQuietHours_Contains(t *testing.T) {
	sameDay := QuietHours{Enabled: true, Start: "12:00", End: "14:00"}

	tests := []struct {
		name  string
		quiet QuietHours
		t     time.Time
		want  bool
	}{
		{"overnight late evening", overnight, at(23, 15), true},
		{"overnight at start", overnight, at(22, 0), true},
		{"overnight early morning", overnight, at(3, 0), true},
		{"overnight at end", overnight, at(8, 0), false},
		{"overnight daytime", overnight, at(15, 0), false},
		{"same day inside", sameDay, at(13, 59), true},
		{"same day at end", sameDay, at(14, 0), false},
		{"same day before", sameDay, at(11, 59), false},
		{"disabled", QuietHours{Start: "00:00", End: "23:59"}, at(12, 0), false},
		{"malformed", QuietHours{Enabled: true, Start: "late", End: "08:00"}, at(23, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.quiet.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestQuietHours_Adjust(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"evening pushes to next morning", at(22, 0), at(8, 0).AddDate(0, 0, 1)},
		{"early morning pushes to same morning", at(3, 30), at(8, 0)},
		{"outside window unchanged", at(9, 15), at(9, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overnight.Adjust(tt.in); !got.Equal(tt.want) {
				t.Errorf("Adjust(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuietHours_Validate(t *testing.T) {
	tests := []struct {
		name    string
		quiet   QuietHours
		wantErr bool
	}{
		{"disabled ignores bounds", QuietHours{Start: "bogus"}, false},
		{"overnight", overnight, false},
		{"bad start", QuietHours{Enabled: true, Start: "25:00", End: "08:00"}, true},
		{"bad end", QuietHours{Enabled: true, Start: "22:00", End: ""}, true},
		{"empty window", QuietHours{Enabled: true, Start: "08:00", End: "08:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.quiet.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if !overnight.Overnight() {
		t.Error("expected 22:00-08:00 to be overnight")
	}
}

func TestQuietHours_AdjustProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	clockString := func(m int) string {
		return at(m/60, m%60).Format("15:04")
	}

	properties.Property("adjusted instant is never quiet and never earlier", prop.ForAll(
		func(start, end, minute int) bool {
			if start == end {
				return true
			}
			q := QuietHours{Enabled: true, Start: clockString(start), End: clockString(end)}
			in := at(0, 0).Add(time.Duration(minute) * time.Minute)
			out := q.Adjust(in)
			return !q.Contains(out) && !out.Before(in) && out.Sub(in) < 24*time.Hour
		},
		gen.IntRange(0, 24*60-1),
		gen.IntRange(0, 24*60-1),
		gen.IntRange(0, 24*60-1),
	))

	properties.Property("fire time is strictly after now when kept", prop.ForAll(
		func(dueOffset, lead int) bool {
			now := at(12, 0)
			due := now.Add(time.Duration(dueOffset) * time.Minute)
			for _, k := range Kinds {
				fire, ok := FireTime(now, due, k, lead, overnight, time.UTC)
				if ok && !fire.After(now) {
					return false
				}
			}
			return true
		},
		gen.IntRange(-3*24*60, 3*24*60),
		gen.IntRange(0, 24*60),
	))

	properties.TestingRun(t)
}
