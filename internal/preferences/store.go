package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RemoteStore holds the serialized UIPreference per user.
type RemoteStore interface {
	Get(ctx context.Context, userID string) ([]byte, error)
	Put(ctx context.Context, userID string, config []byte) error
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("preferences: nil db")
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, userID string) ([]byte, error) {
	var config string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM user_preferences WHERE user_id = $1`, userID).Scan(&config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPreferences
	}
	if err != nil {
		return nil, fmt.Errorf("select preferences: %w", err)
	}
	return []byte(config), nil
}

func (s *SQLStore) Put(ctx context.Context, userID string, config []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, config, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at
	`, userID, string(config), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[userID]
	if !ok {
		return nil, ErrNoPreferences
	}
	return append([]byte(nil), row...), nil
}

func (m *MemoryStore) Put(_ context.Context, userID string, config []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = append([]byte(nil), config...)
	return nil
}
