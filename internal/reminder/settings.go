package reminder

import (
	"fmt"

	"github.com/goodtune/wellcore/internal/deadline"
	"github.com/goodtune/wellcore/internal/storage"
)

// DefaultLeadMinutes is the pre-due reminder lead for new users
const DefaultLeadMinutes = 30

// maxLeadMinutes caps the reminder lead at one week
const maxLeadMinutes = 7 * 24 * 60

// DefaultSettings returns the settings every user starts with
func DefaultSettings() storage.ReminderSettings {
	return storage.ReminderSettings{
		Enabled:                    true,
		ReminderLeadMinutes:        DefaultLeadMinutes,
		OverdueEnabled:             true,
		CompletionRemindersEnabled: false,
		EmailEnabled:               false,
		QuietHours: deadline.QuietHours{
			Enabled: false,
			Start:   "22:00",
			End:     "08:00",
		},
		Timezone: "UTC",
	}
}

// ValidateSettings checks user-supplied settings
func ValidateSettings(s storage.ReminderSettings) error {
	if s.ReminderLeadMinutes < 0 {
		return fmt.Errorf("reminder_lead_minutes must not be negative: %d", s.ReminderLeadMinutes)
	}
	if s.ReminderLeadMinutes > maxLeadMinutes {
		return fmt.Errorf("reminder_lead_minutes must be at most %d: %d", maxLeadMinutes, s.ReminderLeadMinutes)
	}
	if err := s.QuietHours.Validate(); err != nil {
		return err
	}
	if _, err := deadline.Location(s.Timezone); err != nil {
		return err
	}
	return nil
}

// enabledKinds lists the kinds a user's settings schedule
func enabledKinds(s storage.ReminderSettings) []deadline.Kind {
	if !s.Enabled {
		return nil
	}

	kinds := []deadline.Kind{deadline.KindReminder}
	if s.OverdueEnabled {
		kinds = append(kinds, deadline.KindOverdue)
	}
	if s.CompletionRemindersEnabled {
		kinds = append(kinds, deadline.KindCompletionCheck)
	}
	return kinds
}
