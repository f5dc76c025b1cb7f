package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/goodtune/wellcore/internal/storage"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client *redis.Client
}

// UpsertSession creates or updates a session audit row
func (s *sessionStore) UpsertSession(ctx context.Context, session storage.SessionRecord) error {
	script := redis.NewScript(upsertSessionScript)

	endedAt := ""
	if session.EndedAt != nil {
		endedAt = session.EndedAt.Format(time.RFC3339Nano)
	}

	keys := []string{
		sessionKey(session.ID),
		activeSessionsKey,
		activeSessionKey(session.UserID),
		sessionsByUserKey(session.UserID),
	}
	args := []interface{}{
		session.ID,
		session.UserID,
		session.Personality,
		session.ProviderURL,
		session.StartedAt.Format(time.RFC3339Nano),
		endedAt,
		session.CeilingSeconds,
		session.DurationSeconds,
		session.EndReason,
		boolString(session.Active),
		score(session.StartedAt),
		int64(retention.Seconds()),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// GetSession retrieves a session by ID
func (s *sessionStore) GetSession(ctx context.Context, id string) (*storage.SessionRecord, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}

	return parseSessionRecord(data)
}

// ListSessions returns the most recent sessions of a user first
func (s *sessionStore) ListSessions(ctx context.Context, userID string, limit int) ([]storage.SessionRecord, error) {
	ids, err := s.client.ZRevRange(ctx, sessionsByUserKey(userID), 0, stop(limit)).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.SessionRecord{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, sessionKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	sessions := make([]storage.SessionRecord, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		session, err := parseSessionRecord(data)
		if err == nil {
			sessions = append(sessions, *session)
		}
	}

	return sessions, nil
}

// stop converts a limit to an inclusive ZRANGE stop index; limit <= 0 means all
func stop(limit int) int64 {
	if limit <= 0 {
		return -1
	}
	return int64(limit - 1)
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
