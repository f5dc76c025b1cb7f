package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/wellcore/internal/config"
	"github.com/goodtune/wellcore/internal/storage/redis"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored sessions, notifications and reports for a user",
}

var historySessionsCmd = &cobra.Command{
	Use:   "sessions USER",
	Short: "List a user's session audit records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *redis.Store) error {
			records, err := store.Sessions().ListSessions(ctx, args[0], historyLimit)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			if historyJSON {
				return printJSON(records)
			}

			printHeader(fmt.Sprintf("SESSIONS FOR %s", args[0]))
			for _, r := range records {
				state := "ended"
				if r.Active {
					state = "active"
				}
				fmt.Printf("%-28s %s  %-6s %4ds / %4ds  %s\n",
					r.ID, r.StartedAt.Format(time.RFC3339), state, r.DurationSeconds, r.CeilingSeconds, r.EndReason)
			}
			return nil
		})
	},
}

var historyNotificationsCmd = &cobra.Command{
	Use:   "notifications USER",
	Short: "List a user's scheduled and sent notifications",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *redis.Store) error {
			notifications, err := store.Reminders().ListNotifications(ctx, args[0], historyLimit)
			if err != nil {
				return fmt.Errorf("failed to list notifications: %w", err)
			}
			if historyJSON {
				return printJSON(notifications)
			}

			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)

			printHeader(fmt.Sprintf("NOTIFICATIONS FOR %s", args[0]))
			for _, n := range notifications {
				status := yellow.Sprint("pending")
				if n.Sent {
					status = green.Sprint("sent   ")
				}
				fmt.Printf("%s  %s  %-16s %-12s %s\n",
					n.ScheduledFor.Format(time.RFC3339), status, n.Kind, n.TaskID, n.Title)
			}
			return nil
		})
	},
}

var historyReportsCmd = &cobra.Command{
	Use:   "reports USER",
	Short: "List a user's session reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *redis.Store) error {
			reports, err := store.Reports().ListReports(ctx, args[0], historyLimit)
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}
			if historyJSON {
				return printJSON(reports)
			}

			printHeader(fmt.Sprintf("REPORTS FOR %s", args[0]))
			for _, r := range reports {
				fmt.Printf("%-28s %s  %-8s %-8s %s\n",
					r.SessionID, r.CreatedAt.Format(time.RFC3339), r.QualityTier, r.MoodAnalysis.Dominant, r.AIInsights.Summary)
			}
			return nil
		})
	},
}

func init() {
	historyCmd.PersistentFlags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print entries as JSON")

	historyCmd.AddCommand(historySessionsCmd)
	historyCmd.AddCommand(historyNotificationsCmd)
	historyCmd.AddCommand(historyReportsCmd)
	rootCmd.AddCommand(historyCmd)
}

// withStore loads configuration and runs fn against the configured store
func withStore(fn func(ctx context.Context, store *redis.Store) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := redis.Open(cfg.Storage.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return fn(ctx, store)
}

func printHeader(title string) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	_, _ = cyan.Println(title)
	_, _ = cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
