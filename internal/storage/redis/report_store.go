package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/wellcore/internal/storage"
	"github.com/redis/go-redis/v9"
)

type reportStore struct {
	client *redis.Client
}

// InsertReport stores a report once per session
func (s *reportStore) InsertReport(ctx context.Context, report storage.SessionReport) error {
	script := redis.NewScript(insertReportScript)

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	keys := []string{reportKey(report.SessionID), userReportsKey(report.UserID)}
	args := []interface{}{
		report.SessionID,
		report.UserID,
		report.CreatedAt.Format(time.RFC3339Nano),
		string(data),
		score(report.CreatedAt),
	}

	inserted, err := script.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return fmt.Errorf("report for session %s: %w", report.SessionID, storage.ErrAlreadyExists)
	}

	return nil
}

// GetReport retrieves the report of a session
func (s *reportStore) GetReport(ctx context.Context, sessionID string) (*storage.SessionReport, error) {
	data, err := s.client.HGet(ctx, reportKey(sessionID), "data").Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return parseSessionReport(data)
}

// ListReports returns the newest reports of a user first
func (s *reportStore) ListReports(ctx context.Context, userID string, limit int) ([]storage.SessionReport, error) {
	sessionIDs, err := s.client.ZRevRange(ctx, userReportsKey(userID), 0, stop(limit)).Result()
	if err != nil {
		return nil, err
	}

	if len(sessionIDs) == 0 {
		return []storage.SessionReport{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, id := range sessionIDs {
		cmds[i] = pipe.HGet(ctx, reportKey(id), "data")
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	reports := make([]storage.SessionReport, 0, len(sessionIDs))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}

		report, err := parseSessionReport(data)
		if err == nil {
			reports = append(reports, *report)
		}
	}

	return reports, nil
}
