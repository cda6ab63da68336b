package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-backend/internal/logicalday"
	"nexus-backend/internal/observability"
	"nexus-backend/internal/tasks"
)

const user = "user-1"

type recordingNotifier struct {
	got []Alarm
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, a Alarm) error {
	r.got = append(r.got, a)
	return r.err
}

func setup(t *testing.T, now time.Time, seed []tasks.Task) (*Scheduler, *recordingNotifier, *observability.Metrics) {
	t.Helper()
	store := tasks.NewMemoryStore()
	require.NoError(t, store.InsertTasks(context.Background(), user, seed))

	clock := logicalday.FixedClock(now)
	ts := tasks.NewService(store, tasks.Options{Clock: clock, Location: time.UTC})
	_, err := ts.Tasks(context.Background(), user)
	require.NoError(t, err)

	n := &recordingNotifier{}
	m := observability.NewMetrics(prometheus.NewRegistry())
	return New(ts, n, clock, m), n, m
}

var created = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestCheckAlarms(t *testing.T) {
	seed := []tasks.Task{
		{ID: "due", Title: "Stand up", IsAlarmEnabled: true, AlarmTime: "07:30", CreatedAt: created, Frequency: tasks.FrequencyDaily, CompletionHistory: tasks.Ledger{}},
		{ID: "short", Title: "Short form", IsAlarmEnabled: true, AlarmTime: "7:30", CreatedAt: created, Frequency: tasks.FrequencyOnce, CompletionHistory: tasks.Ledger{}},
		{ID: "disabled", Title: "Off", AlarmTime: "07:30", CreatedAt: created, CompletionHistory: tasks.Ledger{}},
		{ID: "other-minute", Title: "Later", IsAlarmEnabled: true, AlarmTime: "07:31", CreatedAt: created, CompletionHistory: tasks.Ledger{}},
		{ID: "done", Title: "Done", IsAlarmEnabled: true, AlarmTime: "07:30", CreatedAt: created, Frequency: tasks.FrequencyDaily, CompletionHistory: tasks.Ledger{"2024-05-10": true}},
		{ID: "other-day", Title: "Tomorrow", IsAlarmEnabled: true, AlarmTime: "07:30", Deadline: "2024-05-11", CreatedAt: created, CompletionHistory: tasks.Ledger{}},
	}
	now := time.Date(2024, 5, 10, 7, 30, 0, 0, time.UTC)
	s, n, m := setup(t, now, seed)

	due := s.CheckAlarms(context.Background(), now)
	var ids []string
	for _, a := range due {
		ids = append(ids, a.TaskID)
	}
	assert.ElementsMatch(t, []string{"due", "short"}, ids)
	assert.Len(t, n.got, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlarmsFiredTotal))

	// same minute again: nothing new
	assert.Empty(t, s.CheckAlarms(context.Background(), now.Add(20*time.Second)))
}

func TestCheckAlarms_UsesLogicalDay(t *testing.T) {
	seed := []tasks.Task{
		{ID: "late", Title: "Night shift", IsAlarmEnabled: true, AlarmTime: "02:00", Deadline: "2024-05-09", CreatedAt: created, CompletionHistory: tasks.Ledger{}},
	}
	now := time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC)
	s, _, _ := setup(t, now, seed)

	due := s.CheckAlarms(context.Background(), now)
	require.Len(t, due, 1)
	assert.Equal(t, "late", due[0].TaskID)
}

func TestCheckAlarms_NotifierFailure(t *testing.T) {
	seed := []tasks.Task{
		{ID: "due", Title: "Stand up", IsAlarmEnabled: true, AlarmTime: "07:30", CreatedAt: created, CompletionHistory: tasks.Ledger{}},
	}
	now := time.Date(2024, 5, 10, 7, 30, 0, 0, time.UTC)
	s, n, m := setup(t, now, seed)
	n.err = errors.New("push service down")

	s.CheckAlarms(context.Background(), now)
	assert.Len(t, n.got, 1)
	assert.Zero(t, testutil.ToFloat64(m.AlarmsFiredTotal))
}

func TestRollover(t *testing.T) {
	seed := []tasks.Task{
		{ID: "due", Title: "Stand up", IsAlarmEnabled: true, AlarmTime: "07:30", Frequency: tasks.FrequencyDaily, CreatedAt: created, CompletionHistory: tasks.Ledger{}},
	}
	first := time.Date(2024, 5, 10, 7, 30, 0, 0, time.UTC)
	s, _, _ := setup(t, first, seed)
	require.Len(t, s.CheckAlarms(context.Background(), first), 1)

	assert.Equal(t, "2024-05-11", s.Rollover(time.Date(2024, 5, 11, 4, 0, 0, 0, time.UTC)))
	assert.Empty(t, s.fired)

	next := first.AddDate(0, 0, 1)
	assert.Len(t, s.CheckAlarms(context.Background(), next), 1)
}

func TestRegister(t *testing.T) {
	s, _, _ := setup(t, time.Now(), nil)
	require.NoError(t, s.Register(context.Background()))
	assert.Len(t, s.cron.Entries(), 2)
	s.Start()
	s.Stop()
}

func TestClockMinutes(t *testing.T) {
	m, ok := clockMinutes("7:05")
	assert.True(t, ok)
	assert.Equal(t, 425, m)
	_, ok = clockMinutes("24:00")
	assert.False(t, ok)
	_, ok = clockMinutes("")
	assert.False(t, ok)
}
