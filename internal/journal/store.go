package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
)

type Store interface {
	ListEntries(ctx context.Context, userID string) ([]Entry, error)
	UpsertEntry(ctx context.Context, userID string, e Entry) error
	DeleteEntry(ctx context.Context, userID, id string) error
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("journal: nil db")
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) ListEntries(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, content, COALESCE(mood, ''), COALESCE(ai_reflection, ''), tags, last_updated
		FROM journal_entries
		WHERE user_id = $1
		ORDER BY last_updated DESC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e    Entry
			tags string
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.Content, &e.Mood, &e.AIReflection, &tags, &e.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil || e.Tags == nil {
			e.Tags = []string{}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertEntry(ctx context.Context, userID string, e Entry) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, user_id, date, content, mood, ai_reflection, tags, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			content = EXCLUDED.content,
			mood = EXCLUDED.mood,
			ai_reflection = EXCLUDED.ai_reflection,
			tags = EXCLUDED.tags,
			last_updated = EXCLUDED.last_updated
		WHERE journal_entries.user_id = EXCLUDED.user_id
	`, e.ID, userID, e.Date, e.Content, nullIfEmpty(e.Mood), nullIfEmpty(e.AIReflection), string(tags), e.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert journal entry: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteEntry(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete journal entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry)}
}

func (m *MemoryStore) ListEntries(_ context.Context, userID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries[userID]))
	for _, e := range m.entries[userID] {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (m *MemoryStore) UpsertEntry(_ context.Context, userID string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[userID]
	if i := slices.IndexFunc(list, func(x Entry) bool { return x.ID == e.ID }); i >= 0 {
		list[i] = e.Clone()
		return nil
	}
	m.entries[userID] = append(list, e.Clone())
	return nil
}

func (m *MemoryStore) DeleteEntry(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[userID]
	i := slices.IndexFunc(list, func(x Entry) bool { return x.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	m.entries[userID] = slices.Delete(list, i, i+1)
	return nil
}
