package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/wellcore/internal/deadline"
	"github.com/goodtune/wellcore/internal/reminder"
	"github.com/spf13/cobra"
)

var (
	checkNow        string
	checkKind       string
	checkLead       int
	checkQuietStart string
	checkQuietEnd   string
	checkTimezone   string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check reminder timing decisions interactively",
	Long:  `Check when Wellcore would fire reminders and whether quiet hours apply.`,
}

var checkFireCmd = &cobra.Command{
	Use:   "fire-time [flags] DUE",
	Short: "Compute reminder fire times for a due date",
	Long:  `Compute the fire time of each reminder kind for a task due at DUE (RFC 3339).`,
	Example: `  wellcore check fire-time 2025-01-10T09:00:00Z
  wellcore check fire-time --lead 15 --quiet-start 22:00 --quiet-end 08:00 --tz Europe/London 2025-01-10T07:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckFire,
}

var checkQuietCmd = &cobra.Command{
	Use:   "quiet [flags]",
	Short: "Check whether an instant falls in quiet hours",
	Example: `  wellcore check quiet --quiet-start 22:00 --quiet-end 08:00 --tz Asia/Tokyo
  wellcore check quiet --now 2025-01-10T23:30:00Z`,
	Args: cobra.NoArgs,
	RunE: runCheckQuiet,
}

func init() {
	for _, c := range []*cobra.Command{checkFireCmd, checkQuietCmd} {
		c.Flags().StringVar(&checkNow, "now", "", "Evaluation instant (RFC 3339) - defaults to the current time")
		c.Flags().StringVar(&checkQuietStart, "quiet-start", "", "Quiet hours start (HH:MM), enables quiet hours")
		c.Flags().StringVar(&checkQuietEnd, "quiet-end", "08:00", "Quiet hours end (HH:MM)")
		c.Flags().StringVar(&checkTimezone, "tz", "UTC", "IANA timezone for quiet hours")
	}
	checkFireCmd.Flags().StringVar(&checkKind, "kind", "", "Only this kind (reminder, overdue, completion_check)")
	checkFireCmd.Flags().IntVar(&checkLead, "lead", reminder.DefaultLeadMinutes, "Reminder lead in minutes")

	checkCmd.AddCommand(checkFireCmd)
	checkCmd.AddCommand(checkQuietCmd)
	rootCmd.AddCommand(checkCmd)
}

// checkInputs parses the shared flags
func checkInputs() (time.Time, deadline.QuietHours, *time.Location, error) {
	now := time.Now().UTC()
	if checkNow != "" {
		t, err := time.Parse(time.RFC3339, checkNow)
		if err != nil {
			return time.Time{}, deadline.QuietHours{}, nil, fmt.Errorf("invalid --now: %w", err)
		}
		now = t
	}

	quiet := deadline.QuietHours{
		Enabled: checkQuietStart != "",
		Start:   checkQuietStart,
		End:     checkQuietEnd,
	}
	if err := quiet.Validate(); err != nil {
		return time.Time{}, deadline.QuietHours{}, nil, err
	}

	loc, err := deadline.Location(checkTimezone)
	if err != nil {
		return time.Time{}, deadline.QuietHours{}, nil, err
	}

	return now, quiet, loc, nil
}

func runCheckFire(cmd *cobra.Command, args []string) error {
	due, err := time.Parse(time.RFC3339, args[0])
	if err != nil {
		return fmt.Errorf("invalid due date: %w", err)
	}

	now, quiet, loc, err := checkInputs()
	if err != nil {
		return err
	}

	kinds := []deadline.Kind{deadline.KindReminder, deadline.KindOverdue, deadline.KindCompletionCheck}
	if checkKind != "" {
		kind, err := deadline.ParseKind(checkKind)
		if err != nil {
			return err
		}
		kinds = []deadline.Kind{kind}
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	_, _ = cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	_, _ = cyan.Println("REMINDER FIRE TIMES")
	_, _ = cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Due:        %s\n", due.Format(time.RFC3339))
	fmt.Printf("Now:        %s\n", now.Format(time.RFC3339))
	fmt.Printf("Lead:       %d minutes\n", checkLead)
	if quiet.Enabled {
		fmt.Printf("Quiet:      %s-%s (%s)\n", quiet.Start, quiet.End, loc)
	} else {
		fmt.Printf("Quiet:      (disabled)\n")
	}
	fmt.Println()

	for _, kind := range kinds {
		_, _ = cyan.Printf("%-18s", kind)
		fire, ok := deadline.FireTime(now, due, kind, checkLead, quiet, loc)
		if !ok {
			_, _ = red.Println("DISCARDED")
			continue
		}
		_, _ = green.Printf("%s", fire.In(loc).Format(time.RFC3339))
		fmt.Printf("  (in %s)\n", fire.Sub(now).Round(time.Minute))
	}

	fmt.Println()
	return nil
}

func runCheckQuiet(cmd *cobra.Command, args []string) error {
	now, quiet, loc, err := checkInputs()
	if err != nil {
		return err
	}

	local := now.In(loc)
	fmt.Printf("Instant:    %s\n", local.Format("2006-01-02 15:04 MST"))

	if quiet.Contains(local) {
		_, _ = color.New(color.FgYellow, color.Bold).Println("QUIET")
		fmt.Printf("            → reminders move to %s\n", quiet.Adjust(local).Format("2006-01-02 15:04 MST"))
		return nil
	}

	_, _ = color.New(color.FgGreen, color.Bold).Println("NOT QUIET")
	return nil
}
