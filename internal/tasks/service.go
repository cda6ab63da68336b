package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexus-backend/internal/analytics"
	"nexus-backend/internal/auth"
	"nexus-backend/internal/logicalday"
	"nexus-backend/internal/observability"
)

type Options struct {
	Clock    logicalday.Clock
	Location *time.Location
	Events   *analytics.Recorder
	Metrics  *observability.Metrics
}

// Service owns the authoritative in-memory task list of every signed-in user
// and writes each mutation through to the Store. A failed write restores the
// touched tasks to what they were before the mutation.
type Service struct {
	store   Store
	clock   logicalday.Clock
	loc     *time.Location
	events  *analytics.Recorder
	metrics *observability.Metrics

	mu    sync.Mutex
	users map[string]*userTasks
}

type userTasks struct {
	write  sync.Mutex // serializes mutations
	mu     sync.RWMutex
	loaded bool
	tasks  []Task
}

func NewService(store Store, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:   store,
		clock:   opts.Clock,
		loc:     loc,
		events:  opts.Events,
		metrics: opts.Metrics,
		users:   make(map[string]*userTasks),
	}
}

// Today is the current logical date in the service's location.
func (s *Service) Today() string {
	return logicalday.ResolveLogicalDate(s.clock.Now().In(s.loc))
}

// CalendarToday is the midnight-aligned date, used as the timeline's reference point.
func (s *Service) CalendarToday() string {
	return logicalday.CalendarDate(s.clock.Now().In(s.loc))
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// Tasks returns a copy of every task of the user, loading them on first use.
func (s *Service) Tasks(ctx context.Context, userID string) ([]Task, error) {
	st, err := s.state(ctx, userID)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return cloneTasks(st.tasks), nil
}

func (s *Service) TodayView(ctx context.Context, userID string) (string, []View, error) {
	all, err := s.Tasks(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	date := s.Today()
	return date, TodayView(all, date, s.loc), nil
}

func (s *Service) TimelineView(ctx context.Context, userID, date string) ([]View, error) {
	if _, err := logicalday.Parse(date); err != nil {
		return nil, err
	}
	all, err := s.Tasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return TimelineView(all, date, s.CalendarToday(), s.loc), nil
}

// Save creates the task when its id is empty or NewTaskID, otherwise merges t
// onto the stored copy. Zero fields in t keep their stored values; use Edit to
// clear a field.
func (s *Service) Save(ctx context.Context, userID string, t Task) (Task, error) {
	return s.save(ctx, userID, t.ID, func(existing Task, found bool) Task {
		if !found {
			return t
		}
		return merge(existing, t)
	})
}

// Edit is Save for a request body: only the fields present in req are
// written, and a present field may set an empty or false value.
func (s *Service) Edit(ctx context.Context, userID string, req SaveTaskRequest) (Task, error) {
	return s.save(ctx, userID, req.ID, func(existing Task, _ bool) Task {
		return req.Apply(existing)
	})
}

func (s *Service) save(ctx context.Context, userID, id string, build func(existing Task, found bool) Task) (Task, error) {
	created := id == "" || id == NewTaskID
	if created {
		id = uuid.NewString()
	}

	var final Task
	err := s.mutate(ctx, userID, "save", []string{id},
		func(tasks []Task) ([]Task, error) {
			i := indexOf(tasks, id)
			if i >= 0 {
				final = build(tasks[i].Clone(), true)
				final.ID = id
				final = final.WithDefaults()
				tasks[i] = final
				return tasks, nil
			}

			t := build(Task{}, false)
			t.ID = id
			if created {
				t.CreatedAt = s.clock.Now()
				t.CompletionHistory = Ledger{}
			} else if t.CreatedAt.IsZero() {
				t.CreatedAt = s.clock.Now()
			}
			final = t.WithDefaults()
			return append(tasks, final), nil
		},
		func(ctx context.Context) error {
			return s.store.UpsertTask(ctx, userID, final)
		},
	)
	if err != nil {
		return Task{}, err
	}

	name := "task_updated"
	if created {
		name = "task_created"
	}
	s.events.Track(ctx, userID, name, map[string]any{
		"task_id":      final.ID,
		"frequency":    final.Frequency,
		"has_deadline": final.Deadline != "",
		"subtasks":     len(final.Subtasks),
	})
	return final.Clone(), nil
}

// Toggle flips the ledger entry for date (the current logical date when empty).
func (s *Service) Toggle(ctx context.Context, userID, taskID, date string) (View, error) {
	if date == "" {
		date = s.Today()
	} else if _, err := logicalday.Parse(date); err != nil {
		return View{}, err
	}

	var final Task
	err := s.mutate(ctx, userID, "toggle", []string{taskID},
		func(tasks []Task) ([]Task, error) {
			i := indexOf(tasks, taskID)
			if i < 0 {
				return nil, ErrNotFound
			}
			tasks[i].CompletionHistory = tasks[i].CompletionHistory.Toggled(date)
			final = tasks[i]
			return tasks, nil
		},
		func(ctx context.Context) error {
			return s.store.UpdateLedger(ctx, userID, taskID, final.CompletionHistory)
		},
	)
	if err != nil {
		return View{}, err
	}

	completed := CompletedOn(final, date)
	s.events.Track(ctx, userID, "task_toggled", map[string]any{
		"task_id":   taskID,
		"date":      date,
		"completed": completed,
	})
	return View{Task: final.Clone(), Completed: completed}, nil
}

func (s *Service) Delete(ctx context.Context, userID, taskID string) error {
	err := s.mutate(ctx, userID, "delete", []string{taskID},
		func(tasks []Task) ([]Task, error) {
			i := indexOf(tasks, taskID)
			if i < 0 {
				return nil, ErrNotFound
			}
			return slices.Delete(tasks, i, i+1), nil
		},
		func(ctx context.Context) error {
			err := s.store.DeleteTask(ctx, userID, taskID)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		},
	)
	if err != nil {
		return err
	}
	s.events.Track(ctx, userID, "task_deleted", map[string]any{"task_id": taskID})
	return nil
}

// BulkCreate materializes normalized drafts as new tasks in one batch write.
func (s *Service) BulkCreate(ctx context.Context, userID string, drafts []Draft) ([]Task, error) {
	if len(drafts) == 0 {
		return []Task{}, nil
	}
	now := s.clock.Now()
	created := make([]Task, 0, len(drafts))
	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		t := d.Task(uuid.NewString(), now)
		created = append(created, t)
		ids = append(ids, t.ID)
	}

	err := s.mutate(ctx, userID, "bulk_create", ids,
		func(tasks []Task) ([]Task, error) {
			return append(tasks, cloneTasks(created)...), nil
		},
		func(ctx context.Context) error {
			return s.store.InsertTasks(ctx, userID, created)
		},
	)
	if err != nil {
		return nil, err
	}
	return cloneTasks(created), nil
}

// ApplySchedule sets scheduled_start on the given tasks. Unknown ids and
// values that are not HH:MM are ignored.
func (s *Service) ApplySchedule(ctx context.Context, userID string, starts map[string]string) ([]Task, error) {
	ids := make([]string, 0, len(starts))
	for id, start := range starts {
		if IsClockTime(start) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var updated []Task
	err := s.mutate(ctx, userID, "schedule", ids,
		func(tasks []Task) ([]Task, error) {
			updated = updated[:0]
			for _, id := range ids {
				i := indexOf(tasks, id)
				if i < 0 {
					continue
				}
				tasks[i].ScheduledStart = starts[id]
				updated = append(updated, tasks[i])
			}
			return tasks, nil
		},
		func(ctx context.Context) error {
			for _, t := range updated {
				if err := s.store.UpdateScheduledStart(ctx, userID, t.ID, t.ScheduledStart); err != nil {
					return err
				}
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return cloneTasks(updated), nil
}

// Forget drops the cached state of a user; the next access reloads from the store.
func (s *Service) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

// LoadedUsers lists users whose tasks are currently cached.
func (s *Service) LoadedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.users))
	for id, st := range s.users {
		st.mu.RLock()
		if st.loaded {
			out = append(out, id)
		}
		st.mu.RUnlock()
	}
	slices.Sort(out)
	return out
}

// ForgetOnSignOut drops a user's cache when their session ends. It returns
// when ctx is done or the channel is closed.
func (s *Service) ForgetOnSignOut(ctx context.Context, events <-chan auth.SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == auth.SignedOut {
				s.Forget(ev.UserID)
			}
		}
	}
}

func (s *Service) state(ctx context.Context, userID string) (*userTasks, error) {
	s.mu.Lock()
	st, ok := s.users[userID]
	if !ok {
		st = &userTasks{}
		s.users[userID] = st
	}
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.loaded {
		return st, nil
	}
	loaded, err := s.store.ListTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}
	st.tasks = loaded
	st.loaded = true
	return st, nil
}

type prior struct {
	id      string
	index   int
	existed bool
	task    Task
}

// mutate applies a change to the cached tasks, then persists it. When the
// write fails the tasks named by ids are put back the way they were.
func (s *Service) mutate(
	ctx context.Context,
	userID, op string,
	ids []string,
	apply func(tasks []Task) ([]Task, error),
	persist func(ctx context.Context) error,
) error {
	st, err := s.state(ctx, userID)
	if err != nil {
		return err
	}

	st.write.Lock()
	defer st.write.Unlock()

	st.mu.Lock()
	before := make([]prior, 0, len(ids))
	for _, id := range ids {
		p := prior{id: id, index: indexOf(st.tasks, id)}
		if p.index >= 0 {
			p.existed = true
			p.task = st.tasks[p.index].Clone()
		}
		before = append(before, p)
	}
	next, err := apply(cloneTasks(st.tasks))
	if err != nil {
		st.mu.Unlock()
		return err
	}
	st.tasks = next
	st.mu.Unlock()

	if err := persist(ctx); err != nil {
		st.mu.Lock()
		st.tasks = restore(st.tasks, before)
		st.mu.Unlock()

		s.metrics.Rollback(op)
		slog.Error("task write failed, rolled back", "op", op, "user_id", userID, "task_ids", ids, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
	}
	return nil
}

func restore(tasks []Task, before []prior) []Task {
	for _, p := range before {
		i := indexOf(tasks, p.id)
		switch {
		case p.existed && i >= 0:
			tasks[i] = p.task
		case p.existed:
			at := min(p.index, len(tasks))
			tasks = slices.Insert(tasks, at, p.task)
		case i >= 0:
			tasks = slices.Delete(tasks, i, i+1)
		}
	}
	return tasks
}

// merge overlays the non-zero fields of in onto existing.
func merge(existing, in Task) Task {
	out := existing
	if in.Title != "" {
		out.Title = in.Title
	}
	if in.Category != "" {
		out.Category = in.Category
	}
	if in.EstimatedTimeMinutes > 0 {
		out.EstimatedTimeMinutes = in.EstimatedTimeMinutes
	}
	if in.MentalLoad != "" {
		out.MentalLoad = in.MentalLoad
	}
	if in.Priority != "" {
		out.Priority = in.Priority
	}
	if in.PreferredTime != "" {
		out.PreferredTime = in.PreferredTime
	}
	if in.Deadline != "" {
		out.Deadline = in.Deadline
	}
	if in.ScheduledStart != "" {
		out.ScheduledStart = in.ScheduledStart
	}
	if in.Subtasks != nil {
		out.Subtasks = append([]string(nil), in.Subtasks...)
	}
	if in.Notes != "" {
		out.Notes = in.Notes
	}
	if in.IsAlarmEnabled {
		out.IsAlarmEnabled = true
	}
	if in.AlarmTime != "" {
		out.AlarmTime = in.AlarmTime
	}
	if in.AlarmSound != "" {
		out.AlarmSound = in.AlarmSound
	}
	if in.AlarmSoundName != "" {
		out.AlarmSoundName = in.AlarmSoundName
	}
	if in.CompletionHistory != nil {
		out.CompletionHistory = in.CompletionHistory.Clone()
	}
	if in.Frequency != "" {
		out.Frequency = in.Frequency
	}
	if !in.CreatedAt.IsZero() {
		out.CreatedAt = in.CreatedAt
	}
	return out
}

func indexOf(tasks []Task, id string) int {
	return slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
}

func cloneTasks(in []Task) []Task {
	out := make([]Task, 0, len(in))
	for _, t := range in {
		out = append(out, t.Clone())
	}
	return out
}
