package tasks

import (
	"context"
	"slices"
	"sync"
)

// Store is the remote task persistence the service writes through to.
type Store interface {
	ListTasks(ctx context.Context, userID string) ([]Task, error)
	UpsertTask(ctx context.Context, userID string, t Task) error
	UpdateLedger(ctx context.Context, userID, taskID string, ledger Ledger) error
	UpdateScheduledStart(ctx context.Context, userID, taskID, start string) error
	DeleteTask(ctx context.Context, userID, taskID string) error
	InsertTasks(ctx context.Context, userID string, ts []Task) error
}

// MemoryStore keeps tasks in process memory. It backs the degraded mode and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string][]Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string][]Task)}
}

func (m *MemoryStore) ListTasks(_ context.Context, userID string) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Task, 0, len(m.users[userID]))
	for _, t := range m.users[userID] {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (m *MemoryStore) UpsertTask(_ context.Context, userID string, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.users[userID]
	if i := m.index(userID, t.ID); i >= 0 {
		list[i] = t.Clone()
		return nil
	}
	m.users[userID] = append(list, t.Clone())
	return nil
}

func (m *MemoryStore) UpdateLedger(_ context.Context, userID, taskID string, ledger Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(userID, taskID)
	if i < 0 {
		return ErrNotFound
	}
	m.users[userID][i].CompletionHistory = ledger.Clone()
	return nil
}

func (m *MemoryStore) UpdateScheduledStart(_ context.Context, userID, taskID, start string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(userID, taskID)
	if i < 0 {
		return ErrNotFound
	}
	m.users[userID][i].ScheduledStart = start
	return nil
}

func (m *MemoryStore) DeleteTask(_ context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(userID, taskID)
	if i < 0 {
		return ErrNotFound
	}
	m.users[userID] = slices.Delete(m.users[userID], i, i+1)
	return nil
}

func (m *MemoryStore) InsertTasks(_ context.Context, userID string, ts []Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range ts {
		m.users[userID] = append(m.users[userID], t.Clone())
	}
	return nil
}

func (m *MemoryStore) index(userID, taskID string) int {
	return slices.IndexFunc(m.users[userID], func(t Task) bool { return t.ID == taskID })
}
