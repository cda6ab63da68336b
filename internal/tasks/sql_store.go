package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// storedTimeLayout has a fixed-width fraction so text timestamps sort chronologically.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLStore persists tasks in the tasks table. JSON columns are stored as text
// so the same statements run on Postgres and SQLite.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("tasks: nil db")
	}
	return &SQLStore{db: db}, nil
}

const taskColumns = `id, title, category, estimated_time_minutes, mental_load, priority, preferred_time,
	deadline, scheduled_start, subtasks, notes, is_alarm_enabled, alarm_time, alarm_sound,
	alarm_sound_name, completion_history, frequency, created_at`

func (s *SQLStore) ListTasks(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertTask(ctx context.Context, userID string, t Task) error {
	args, err := taskArgs(userID, t)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (user_id, `+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			estimated_time_minutes = EXCLUDED.estimated_time_minutes,
			mental_load = EXCLUDED.mental_load,
			priority = EXCLUDED.priority,
			preferred_time = EXCLUDED.preferred_time,
			deadline = EXCLUDED.deadline,
			scheduled_start = EXCLUDED.scheduled_start,
			subtasks = EXCLUDED.subtasks,
			notes = EXCLUDED.notes,
			is_alarm_enabled = EXCLUDED.is_alarm_enabled,
			alarm_time = EXCLUDED.alarm_time,
			alarm_sound = EXCLUDED.alarm_sound,
			alarm_sound_name = EXCLUDED.alarm_sound_name,
			completion_history = EXCLUDED.completion_history,
			frequency = EXCLUDED.frequency
		WHERE tasks.user_id = EXCLUDED.user_id
	`, args...)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	// zero rows: the id belongs to another user
	if err := expectRow(res); err != nil {
		return fmt.Errorf("upsert task %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLStore) UpdateLedger(ctx context.Context, userID, taskID string, ledger Ledger) error {
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET completion_history = $1
		WHERE id = $2 AND user_id = $3
	`, string(raw), taskID, userID)
	if err != nil {
		return fmt.Errorf("update ledger %s: %w", taskID, err)
	}
	return expectRow(res)
}

func (s *SQLStore) UpdateScheduledStart(ctx context.Context, userID, taskID, start string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET scheduled_start = $1
		WHERE id = $2 AND user_id = $3
	`, nullIfEmpty(start), taskID, userID)
	if err != nil {
		return fmt.Errorf("update scheduled start %s: %w", taskID, err)
	}
	return expectRow(res)
}

func (s *SQLStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	return expectRow(res)
}

func (s *SQLStore) InsertTasks(ctx context.Context, userID string, ts []Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range ts {
		args, err := taskArgs(userID, t)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (user_id, `+taskColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`, args...); err != nil {
			return fmt.Errorf("insert task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var (
		t                                        Task
		deadline, start, notes                   sql.NullString
		alarmTime, alarmSound, alarmSoundName    sql.NullString
		subtasks, ledger, mentalLoad, priority   string
		preferredTime, frequency, createdAtValue string
	)
	err := row.Scan(
		&t.ID, &t.Title, &t.Category, &t.EstimatedTimeMinutes, &mentalLoad, &priority, &preferredTime,
		&deadline, &start, &subtasks, &notes, &t.IsAlarmEnabled, &alarmTime, &alarmSound,
		&alarmSoundName, &ledger, &frequency, &createdAtValue,
	)
	if err != nil {
		return Task{}, fmt.Errorf("scan task: %w", err)
	}
	t.MentalLoad = MentalLoad(mentalLoad)
	t.Priority = Priority(priority)
	t.PreferredTime = TimeOfDay(preferredTime)
	t.Frequency = Frequency(frequency)
	t.Deadline = deadline.String
	t.ScheduledStart = start.String
	t.Notes = notes.String
	t.AlarmTime = alarmTime.String
	t.AlarmSound = alarmSound.String
	t.AlarmSoundName = alarmSoundName.String

	if err := json.Unmarshal([]byte(subtasks), &t.Subtasks); err != nil {
		return Task{}, fmt.Errorf("decode subtasks of %s: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(ledger), &t.CompletionHistory); err != nil {
		return Task{}, fmt.Errorf("decode ledger of %s: %w", t.ID, err)
	}
	if createdAtValue != "" {
		created, err := time.Parse(time.RFC3339Nano, createdAtValue)
		if err != nil {
			return Task{}, fmt.Errorf("parse created_at of %s: %w", t.ID, err)
		}
		t.CreatedAt = created
	}
	return t.WithDefaults(), nil
}

func taskArgs(userID string, t Task) ([]any, error) {
	t = t.WithDefaults()
	subtasks, err := json.Marshal(t.Subtasks)
	if err != nil {
		return nil, fmt.Errorf("encode subtasks: %w", err)
	}
	ledger, err := json.Marshal(t.CompletionHistory)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	created := ""
	if !t.CreatedAt.IsZero() {
		created = t.CreatedAt.UTC().Format(storedTimeLayout)
	}
	return []any{
		userID, t.ID, t.Title, t.Category, t.EstimatedTimeMinutes,
		string(t.MentalLoad), string(t.Priority), string(t.PreferredTime),
		nullIfEmpty(t.Deadline), nullIfEmpty(t.ScheduledStart), string(subtasks), nullIfEmpty(t.Notes),
		t.IsAlarmEnabled, nullIfEmpty(t.AlarmTime), nullIfEmpty(t.AlarmSound), nullIfEmpty(t.AlarmSoundName),
		string(ledger), string(t.Frequency), created,
	}, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
