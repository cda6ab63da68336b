package ai

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
	"nexus-backend/internal/preferences"
	"nexus-backend/internal/tasks"
)

type fakeCompleter struct {
	reply string
	err   error
	reqs  []Request
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

// 2024-05-10 02:30 is still logical Thursday 2024-05-09, calendar Friday.
var lateNight = time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC)

func newClient(llm Completer) (*Client, *observability.Metrics) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	return NewClient(llm, Options{
		Clock:    logicalday.FixedClock(lateNight),
		Location: time.UTC,
		Metrics:  m,
	}), m
}

func TestInterpret_RoutineCreation(t *testing.T) {
	llm := &fakeCompleter{reply: `{
		"actionType": "routine_creation",
		"reply": "Done",
		"tasksToCreate": [
			{"title": "Gym", "category": "Health", "estimated_time_minutes": 60, "preferred_time": "Morning", "scheduled_start": "07:00", "deadline": "2024-05-13"},
			{"title": "   ", "category": "Bad"},
			{"title": "Standup", "category": "Work", "estimated_time_minutes": "15", "scheduled_start": "9am", "deadline": "2024-05-14"}
		]
	}`}
	c, m := newClient(llm)

	got := c.Interpret(context.Background(), "Mon: gym 7am, Tue: standup", nil, "English")
	assert.Equal(t, ActionRoutine, got.ActionType)
	assert.Equal(t, "Done", got.Reply)
	require.Len(t, got.TasksToCreate, 2)

	assert.Equal(t, "Gym", got.TasksToCreate[0].Title)
	assert.Equal(t, "07:00", got.TasksToCreate[0].ScheduledStart)
	assert.Equal(t, "2024-05-13", got.TasksToCreate[0].Deadline)
	assert.Equal(t, tasks.FrequencyOnce, got.TasksToCreate[0].Frequency)

	assert.Equal(t, 15, got.TasksToCreate[1].EstimatedTimeMinutes)
	assert.Empty(t, got.TasksToCreate[1].ScheduledStart)
	assert.Equal(t, "2024-05-14", got.TasksToCreate[1].Deadline)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NormalizationRejectsTotal))
	assert.Zero(t, testutil.ToFloat64(m.InterpreterFallbacksTotal))

	require.Len(t, llm.reqs, 1)
	req := llm.reqs[0]
	assert.Equal(t, "interpret", req.Site)
	assert.NotNil(t, req.Schema)
	assert.Contains(t, req.Prompt, "2024-05-10 (Friday)")
	assert.Contains(t, req.Prompt, `"Mon: gym 7am, Tue: standup"`)
	assert.Contains(t, req.Prompt, "Language: English")
	assert.Contains(t, req.Prompt, "Night: 21:00 - 03:59")
}

func TestInterpret_UIChange(t *testing.T) {
	llm := &fakeCompleter{reply: "```json\n{\"actionType\":\"ui\",\"reply\":\"Snow on.\",\"uiChange\":{\"backgroundEffect\":\"snow\",\"blurIntensity\":20}}\n```"}
	c, _ := newClient(llm)

	got := c.Interpret(context.Background(), "make it snow", nil, "English")
	assert.Equal(t, ActionUI, got.ActionType)
	require.NotNil(t, got.UIChange)
	require.NotNil(t, got.UIChange.BackgroundEffect)
	assert.Equal(t, "snow", *got.UIChange.BackgroundEffect)
	require.NotNil(t, got.UIChange.BlurIntensity)
	assert.Equal(t, 20.0, *got.UIChange.BlurIntensity)
}

func TestInterpret_MalformedUIChangeIsDropped(t *testing.T) {
	llm := &fakeCompleter{reply: `{"actionType":"ui","reply":"ok","uiChange":{"blurIntensity":"lots"}}`}
	c, _ := newClient(llm)

	got := c.Interpret(context.Background(), "blur", nil, "English")
	assert.Equal(t, ActionUI, got.ActionType)
	assert.Nil(t, got.UIChange)
}

func TestInterpret_FallsBack(t *testing.T) {
	cases := map[string]*fakeCompleter{
		"model error":     {err: errors.New("timeout")},
		"invalid json":    {reply: `{"actionType": "chat", "reply": `},
		"missing reply":   {reply: `{"actionType": "chat"}`},
		"unknown action":  {reply: `{"actionType": "dance", "reply": "ok"}`},
		"empty reply":     {reply: "  "},
		"wrong type root": {reply: `["chat"]`},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			c, m := newClient(llm)
			got := c.Interpret(context.Background(), "Mon: a, Tue: b", nil, "English")
			assert.Equal(t, Fallback(), got)
			assert.Equal(t, FallbackReply, got.Reply)
			assert.Equal(t, ActionChat, got.ActionType)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.InterpreterFallbacksTotal))
		})
	}

	t.Run("no model configured", func(t *testing.T) {
		c, _ := newClient(nil)
		assert.Equal(t, Fallback(), c.Interpret(context.Background(), "hi", nil, "English"))
	})
}

func TestInterpret_QuotesExistingTasks(t *testing.T) {
	llm := &fakeCompleter{reply: `{"actionType":"chat","reply":"hi"}`}
	c, _ := newClient(llm)
	c.Interpret(context.Background(), "hello", []tasks.Task{{Title: "Write report"}}, "French")
	require.Len(t, llm.reqs, 1)
	assert.Contains(t, llm.reqs[0].Prompt, `["Write report"]`)
	assert.Contains(t, llm.reqs[0].Prompt, "Language: French")
}

func TestParseTask(t *testing.T) {
	c, _ := newClient(&fakeCompleter{reply: `{"title": "  Call mom  ", "category": "Family", "estimated_time_minutes": 5000, "mental_load": "Extreme", "frequency": "Weekly"}`})
	d, err := c.ParseTask(context.Background(), "call mom every week", "English")
	require.NoError(t, err)
	assert.Equal(t, "Call mom", d.Title)
	assert.Equal(t, tasks.MaxMinutes, d.EstimatedTimeMinutes)
	assert.Equal(t, tasks.MentalLoadMedium, d.MentalLoad)
	assert.Equal(t, tasks.FrequencyWeekly, d.Frequency)

	c, m := newClient(&fakeCompleter{reply: `{"title": ""}`})
	_, err = c.ParseTask(context.Background(), "???", "English")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NormalizationRejectsTotal))

	c, _ = newClient(&fakeCompleter{err: errors.New("down")})
	_, err = c.ParseTask(context.Background(), "x", "English")
	assert.Error(t, err)
}

func TestGenerateSchedule(t *testing.T) {
	pending := []tasks.Task{
		{ID: "a", Title: "Deep work", MentalLoad: tasks.MentalLoadHigh, EstimatedTimeMinutes: 90, Priority: tasks.PriorityHigh},
		{ID: "b", Title: "Email"},
		{ID: "c", Title: "Walk"},
	}
	llm := &fakeCompleter{reply: `{"rationale": "", "tasks": [
		{"id": "a", "scheduled_start": "09:00"},
		{"id": "b", "scheduled_start": "25:00"},
		{"id": "c", "scheduled_start": 1300},
		{"id": "zzz", "scheduled_start": "10:00"}
	]}`}
	c, _ := newClient(llm)

	sched := c.GenerateSchedule(context.Background(), pending, "English")
	assert.Equal(t, DefaultRationale, sched.Rationale)
	assert.Equal(t, map[string]string{"a": "09:00"}, sched.Starts)
	assert.Contains(t, llm.reqs[0].Prompt, `"load":"High"`)

	c, _ = newClient(&fakeCompleter{err: errors.New("down")})
	sched = c.GenerateSchedule(context.Background(), pending, "English")
	assert.Equal(t, OfflineRationale, sched.Rationale)
	assert.Empty(t, sched.Starts)
}

func TestGenerateReflection(t *testing.T) {
	llm := &fakeCompleter{reply: " Solid progress today. \n"}
	c, _ := newClient(llm)
	got, err := c.GenerateReflection(context.Background(), []tasks.View{{Task: tasks.Task{Title: "Gym"}, Completed: true}}, "English")
	require.NoError(t, err)
	assert.Equal(t, "Solid progress today.", got)
	assert.Nil(t, llm.reqs[0].Schema)
	assert.Contains(t, llm.reqs[0].Prompt, `{"title":"Gym","completed":true}`)

	c, _ = newClient(&fakeCompleter{reply: ""})
	got, err = c.GenerateReflection(context.Background(), nil, "English")
	require.NoError(t, err)
	assert.Equal(t, DefaultReflection, got)
}

func TestAnalyzeEntry(t *testing.T) {
	c, _ := newClient(&fakeCompleter{reply: `{"mood": "Calm", "reflection": "Good rest.", "tags": ["rest", " ", "sleep"]}`})
	a, err := c.AnalyzeEntry(context.Background(), "Slept well", "English")
	require.NoError(t, err)
	assert.Equal(t, "Calm", a.Mood)
	assert.Equal(t, []string{"rest", "sleep"}, a.Tags)

	c, _ = newClient(&fakeCompleter{reply: "not json"})
	_, err = c.AnalyzeEntry(context.Background(), "x", "English")
	assert.Error(t, err)
}

func TestTranslateLabels(t *testing.T) {
	base := preferences.Dictionary{"newTask": "New Task", "save": "Save"}

	llm := &fakeCompleter{reply: `{"newTask": "Nueva tarea", "save": "Guardar"}`}
	c, m := newClient(llm)
	got, err := c.TranslateLabels(context.Background(), "Spanish", base)
	require.NoError(t, err)
	assert.Equal(t, preferences.Dictionary{"newTask": "Nueva tarea", "save": "Guardar"}, got)
	require.Len(t, llm.reqs, 1)
	assert.Equal(t, []string{"newTask", "save"}, llm.reqs[0].Schema.Required)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCallsTotal.WithLabelValues("translate", "success")))

	english := &fakeCompleter{}
	c, _ = newClient(english)
	got, err = c.TranslateLabels(context.Background(), "english", base)
	require.NoError(t, err)
	assert.Equal(t, base, got)
	assert.Empty(t, english.reqs)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
}
