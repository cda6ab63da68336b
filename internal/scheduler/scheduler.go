// Package scheduler runs the periodic jobs: the 04:00 logical-day rollover and
// the per-minute task alarm check.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"nexus-backend/internal/logicalday"
	"nexus-backend/internal/observability"
	"nexus-backend/internal/tasks"
)

const (
	// cron format: second minute hour dom month dow
	rolloverSpec   = "0 0 4 * * *"
	alarmCheckSpec = "0 * * * * *"
)

// Alarm is a task alarm that came due.
type Alarm struct {
	UserID    string `json:"user_id"`
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Time      string `json:"time"`
	Sound     string `json:"sound,omitempty"`
	SoundName string `json:"sound_name,omitempty"`
}

// Notifier delivers due alarms.
type Notifier interface {
	Notify(ctx context.Context, a Alarm) error
}

// LogNotifier writes alarms to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, a Alarm) error {
	slog.Info("task alarm due", "user_id", a.UserID, "task_id", a.TaskID, "title", a.Title, "time", a.Time)
	return nil
}

type Scheduler struct {
	cron     *cron.Cron
	tasks    *tasks.Service
	notifier Notifier
	clock    logicalday.Clock
	loc      *time.Location
	metrics  *observability.Metrics

	mu    sync.Mutex
	fired map[string]string // task id -> last "date HH:MM" notified
}

func New(ts *tasks.Service, notifier Notifier, clock logicalday.Clock, metrics *observability.Metrics) *Scheduler {
	loc := ts.Location()
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		tasks:    ts,
		notifier: notifier,
		clock:    clock,
		loc:      loc,
		metrics:  metrics,
		fired:    make(map[string]string),
	}
}

// Register adds the rollover and alarm jobs. Jobs run with ctx.
func (s *Scheduler) Register(ctx context.Context) error {
	if _, err := s.cron.AddFunc(rolloverSpec, func() { s.Rollover(s.clock.Now()) }); err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}
	if _, err := s.cron.AddFunc(alarmCheckSpec, func() { s.CheckAlarms(ctx, s.clock.Now()) }); err != nil {
		return fmt.Errorf("schedule alarm check: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Rollover marks the start of a new logical day and forgets alarm
// bookkeeping from earlier days.
func (s *Scheduler) Rollover(now time.Time) string {
	date := logicalday.ResolveLogicalDate(now.In(s.loc))
	s.mu.Lock()
	for id, key := range s.fired {
		if !strings.HasPrefix(key, date+" ") {
			delete(s.fired, id)
		}
	}
	s.mu.Unlock()
	slog.Info("logical day rollover", "date", date, "loaded_users", len(s.tasks.LoadedUsers()))
	return date
}

// CheckAlarms notifies every enabled alarm whose time is now's minute, for
// tasks visible and still open on the current logical day. Each alarm fires
// at most once per day and minute. Only users with loaded tasks are checked.
func (s *Scheduler) CheckAlarms(ctx context.Context, now time.Time) []Alarm {
	now = now.In(s.loc)
	date := logicalday.ResolveLogicalDate(now)
	minute := now.Hour()*60 + now.Minute()
	key := date + " " + now.Format("15:04")

	var due []Alarm
	for _, uid := range s.tasks.LoadedUsers() {
		all, err := s.tasks.Tasks(ctx, uid)
		if err != nil {
			slog.Warn("alarm check skipped user", "user_id", uid, "error", err)
			continue
		}
		for _, t := range all {
			if !t.IsAlarmEnabled {
				continue
			}
			at, ok := clockMinutes(t.AlarmTime)
			if !ok || at != minute {
				continue
			}
			if !tasks.VisibleOn(t, date, s.loc) || tasks.CompletedOn(t, date) {
				continue
			}
			if !s.markFired(t.ID, key) {
				continue
			}
			due = append(due, Alarm{
				UserID:    uid,
				TaskID:    t.ID,
				Title:     t.Title,
				Time:      t.AlarmTime,
				Sound:     t.AlarmSound,
				SoundName: t.AlarmSoundName,
			})
		}
	}

	for _, a := range due {
		if err := s.notifier.Notify(ctx, a); err != nil {
			slog.Error("alarm notification failed", "user_id", a.UserID, "task_id", a.TaskID, "error", err)
			continue
		}
		s.metrics.AlarmFired()
	}
	return due
}

func (s *Scheduler) markFired(taskID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired[taskID] == key {
		return false
	}
	s.fired[taskID] = key
	return true
}

// clockMinutes converts an H:MM or HH:MM time to minutes after midnight.
func clockMinutes(v string) (int, bool) {
	if !tasks.IsClockTime(v) {
		return 0, false
	}
	h, m, _ := strings.Cut(v, ":")
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return hour*60 + minute, true
}
