package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/wellcore/internal/deadline"
	"github.com/goodtune/wellcore/internal/storage"
)

// memoryStore is an in-memory ReminderStore with per-kind failure injection
type memoryStore struct {
	mu            sync.Mutex
	settings      map[string]storage.ReminderSettings
	notifications map[string]storage.Notification
	inserts       int
	failKind      map[deadline.Kind]error
	failCount     map[deadline.Kind]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		settings:      make(map[string]storage.ReminderSettings),
		notifications: make(map[string]storage.Notification),
		failKind:      make(map[deadline.Kind]error),
		failCount:     make(map[deadline.Kind]int),
	}
}

// failInserts makes the next n inserts of kind fail with err; n < 0 fails forever
func (m *memoryStore) failInserts(kind deadline.Kind, err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failKind[kind] = err
	m.failCount[kind] = n
}

func (m *memoryStore) UpsertSettings(ctx context.Context, userID string, s storage.ReminderSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[userID] = s
	return nil
}

func (m *memoryStore) LoadSettings(ctx context.Context, userID string) (*storage.ReminderSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &s, nil
}

func (m *memoryStore) InsertNotification(ctx context.Context, n storage.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inserts++
	if err := m.failKind[n.Kind]; err != nil && m.failCount[n.Kind] != 0 {
		m.failCount[n.Kind]--
		return err
	}

	if existing, ok := m.notifications[n.ID]; ok {
		n.Sent = existing.Sent
		n.EmailSent = existing.EmailSent
		n.CreatedAt = existing.CreatedAt
	}
	m.notifications[n.ID] = n
	return nil
}

func (m *memoryStore) GetNotification(ctx context.Context, id string) (*storage.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &n, nil
}

func (m *memoryStore) DeleteUnsent(ctx context.Context, userID, taskID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, n := range m.notifications {
		if n.UserID == userID && n.TaskID == taskID && !n.Sent {
			delete(m.notifications, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) ListNotifications(ctx context.Context, userID string, limit int) ([]storage.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []storage.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			list = append(list, n)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ScheduledFor.After(list[j].ScheduledFor) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memoryStore) ListDue(ctx context.Context, before time.Time, limit int) ([]storage.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var list []storage.Notification
	for _, n := range m.notifications {
		if !n.Sent && !n.ScheduledFor.After(before) {
			list = append(list, n)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ScheduledFor.Before(list[j].ScheduledFor) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memoryStore) MarkSent(ctx context.Context, id string, emailSent bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return storage.ErrNotFound
	}
	n.Sent = true
	if emailSent {
		n.EmailSent = true
	}
	m.notifications[id] = n
	return nil
}

func (m *memoryStore) byKind() map[deadline.Kind]storage.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[deadline.Kind]storage.Notification)
	for _, n := range m.notifications {
		out[n.Kind] = n
	}
	return out
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}
