package assistant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-backend/internal/ai"
	"nexus-backend/internal/analytics"
	"nexus-backend/internal/auth"
	"nexus-backend/internal/logicalday"
	"nexus-backend/internal/preferences"
	"nexus-backend/internal/tasks"
)

const user = "user-1"

var noon = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeModel struct {
	interp     ai.Interpretation
	sched      ai.Schedule
	reflection string
	reflectErr error
	draft      tasks.Draft
	parseErr   error

	languages []string
	pending   []tasks.Task
}

func (f *fakeModel) Interpret(_ context.Context, _ string, _ []tasks.Task, language string) ai.Interpretation {
	f.languages = append(f.languages, language)
	return f.interp
}

func (f *fakeModel) GenerateSchedule(_ context.Context, pending []tasks.Task, _ string) ai.Schedule {
	f.pending = pending
	return f.sched
}

func (f *fakeModel) GenerateReflection(_ context.Context, _ []tasks.View, language string) (string, error) {
	f.languages = append(f.languages, language)
	return f.reflection, f.reflectErr
}

func (f *fakeModel) ParseTask(_ context.Context, _ string, _ string) (tasks.Draft, error) {
	return f.draft, f.parseErr
}

// brokenStore fails every batch insert.
type brokenStore struct {
	*tasks.MemoryStore
}

func (brokenStore) InsertTasks(context.Context, string, []tasks.Task) error {
	return errors.New("store down")
}

type fixture struct {
	svc   *Service
	tasks *tasks.Service
	prefs *preferences.Service
	sink  *analytics.MemorySink
	model *fakeModel
}

func newFixture(t *testing.T, model *fakeModel, store tasks.Store) fixture {
	t.Helper()
	if store == nil {
		store = tasks.NewMemoryStore()
	}
	sink := analytics.NewMemorySink()
	events := analytics.NewRecorder(sink)
	ts := tasks.NewService(store, tasks.Options{Clock: logicalday.FixedClock(noon), Location: time.UTC, Events: events})
	prefs := preferences.NewService(preferences.NewMemoryStore(), preferences.NewMemoryCache(), nil)
	svc := NewService(ts, prefs, model, NewTranscripts(func() time.Time { return noon }), events)
	return fixture{svc: svc, tasks: ts, prefs: prefs, sink: sink, model: model}
}

func eventNames(sink *analytics.MemorySink) []string {
	var out []string
	for _, e := range sink.Events() {
		out = append(out, e.Name)
	}
	return out
}

func TestHandleCommand_RoutineCreatesIndependentTasks(t *testing.T) {
	model := &fakeModel{interp: ai.Interpretation{
		ActionType: ai.ActionRoutine,
		Reply:      "ignored",
		TasksToCreate: []tasks.Draft{
			{Title: "Gym", Deadline: "2024-05-13", ScheduledStart: "07:00"},
			{Title: "Gym", Deadline: "2024-05-15", ScheduledStart: "07:00"},
			{Title: "Read", Deadline: "2024-05-15"},
		},
	}}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	res, err := f.svc.HandleCommand(ctx, user, "Mon and Wed: gym at 7")
	require.NoError(t, err)
	assert.Equal(t, ai.ActionRoutine, res.ActionType)
	assert.Equal(t, "Neural mapping complete. Manifested 3 objectives across 2 temporal points.", res.Reply)
	require.Len(t, res.CreatedTasks, 3)
	assert.NotEqual(t, res.CreatedTasks[0].ID, res.CreatedTasks[1].ID)

	stored, err := f.tasks.Tasks(ctx, user)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	for _, task := range stored {
		assert.Equal(t, tasks.FrequencyOnce, task.Frequency)
		assert.Empty(t, task.CompletionHistory)
	}

	require.Len(t, res.Messages, 3)
	assert.Equal(t, Greeting, res.Messages[0].Content)
	assert.Equal(t, RoleUser, res.Messages[1].Role)
	assert.Equal(t, res.Reply, res.Messages[2].Content)

	assert.Contains(t, eventNames(f.sink), "routine_created")
	assert.Contains(t, eventNames(f.sink), "command_interpreted")
}

func TestHandleCommand_RoutineWithoutDates(t *testing.T) {
	model := &fakeModel{interp: ai.Interpretation{
		ActionType:    ai.ActionRoutine,
		TasksToCreate: []tasks.Draft{{Title: "Stretch"}},
	}}
	f := newFixture(t, model, nil)

	res, err := f.svc.HandleCommand(context.Background(), user, "stretch daily")
	require.NoError(t, err)
	assert.Equal(t, "Patterns synthesized. Registered 1 objectives in current cycle.", res.Reply)
}

func TestHandleCommand_UIChangeSavesPreferences(t *testing.T) {
	effect := "rain"
	model := &fakeModel{interp: ai.Interpretation{
		ActionType: ai.ActionUI,
		Reply:      "Rain engaged.",
		UIChange:   &preferences.Patch{BackgroundEffect: &effect},
	}}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	res, err := f.svc.HandleCommand(ctx, user, "make it rain")
	require.NoError(t, err)
	assert.Equal(t, "Rain engaged.", res.Reply)
	require.NotNil(t, res.Preferences)
	assert.Equal(t, "rain", res.Preferences.BackgroundEffect)

	loaded, err := f.prefs.Load(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "rain", loaded.BackgroundEffect)
}

func TestHandleCommand_UsesLanguageAtCallTime(t *testing.T) {
	model := &fakeModel{interp: ai.Interpretation{ActionType: ai.ActionChat, Reply: "hola"}}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	_, err := f.svc.HandleCommand(ctx, user, "hi")
	require.NoError(t, err)

	p := preferences.Defaults()
	p.Language = "Spanish"
	_, err = f.prefs.Save(ctx, user, p)
	require.NoError(t, err)

	_, err = f.svc.HandleCommand(ctx, user, "hi again")
	require.NoError(t, err)
	assert.Equal(t, []string{"English", "Spanish"}, model.languages)
}

func TestHandleCommand_FallbackIsPlainChat(t *testing.T) {
	f := newFixture(t, &fakeModel{interp: ai.Fallback()}, nil)
	res, err := f.svc.HandleCommand(context.Background(), user, "Mon: x, Tue: y, ...")
	require.NoError(t, err)
	assert.Equal(t, ai.FallbackReply, res.Reply)
	assert.Empty(t, res.CreatedTasks)
}

func TestHandleCommand_PersistenceFailureRepliesWithFault(t *testing.T) {
	model := &fakeModel{interp: ai.Interpretation{
		ActionType:    ai.ActionRoutine,
		TasksToCreate: []tasks.Draft{{Title: "A"}, {Title: "B"}},
	}}
	f := newFixture(t, model, brokenStore{tasks.NewMemoryStore()})
	ctx := context.Background()

	res, err := f.svc.HandleCommand(ctx, user, "a then b")
	require.Error(t, err)
	assert.ErrorIs(t, err, tasks.ErrPersistence)
	assert.Equal(t, FaultReply, res.Reply)
	assert.Equal(t, FaultReply, res.Messages[len(res.Messages)-1].Content)

	stored, err := f.tasks.Tasks(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestHandleCommand_RejectsBlank(t *testing.T) {
	f := newFixture(t, &fakeModel{}, nil)
	_, err := f.svc.HandleCommand(context.Background(), user, "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestOptimize(t *testing.T) {
	model := &fakeModel{}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	res, err := f.svc.Optimize(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, NothingPending, res.Rationale)
	assert.Nil(t, model.pending)

	undated, err := f.tasks.Save(ctx, user, tasks.Task{Title: "Undated"})
	require.NoError(t, err)
	dueToday, err := f.tasks.Save(ctx, user, tasks.Task{Title: "Due", Deadline: "2024-05-10"})
	require.NoError(t, err)
	_, err = f.tasks.Save(ctx, user, tasks.Task{Title: "Later", Deadline: "2024-06-01"})
	require.NoError(t, err)
	done, err := f.tasks.Save(ctx, user, tasks.Task{Title: "Done"})
	require.NoError(t, err)
	_, err = f.tasks.Toggle(ctx, user, done.ID, "")
	require.NoError(t, err)

	model.sched = ai.Schedule{Rationale: "Front-load deep work.", Starts: map[string]string{undated.ID: "09:30"}}
	res, err = f.svc.Optimize(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Front-load deep work.", res.Rationale)
	assert.ElementsMatch(t, []string{undated.ID, dueToday.ID}, taskIDs(model.pending))
	require.Len(t, res.Updated, 1)
	assert.Equal(t, "09:30", res.Updated[0].ScheduledStart)
	assert.Equal(t, "Front-load deep work.", res.Messages[len(res.Messages)-1].Content)
}

func TestPending(t *testing.T) {
	all := []tasks.Task{
		{ID: "a"},
		{ID: "b", Deadline: "2024-05-10"},
		{ID: "c", Deadline: "2024-05-11"},
		{ID: "d", Frequency: tasks.FrequencyDaily, CompletionHistory: tasks.Ledger{"2024-05-10": true}},
		{ID: "e", Frequency: tasks.FrequencyDaily, CompletionHistory: tasks.Ledger{"2024-05-09": true}},
		{ID: "f", Frequency: tasks.FrequencyOnce, CompletionHistory: tasks.Ledger{"2024-05-01": true}},
	}
	assert.Equal(t, []string{"a", "b", "e"}, taskIDs(Pending(all, "2024-05-10")))
}

func TestParseTaskAndReflection(t *testing.T) {
	model := &fakeModel{draft: tasks.Draft{Title: "Call mom", Category: "Family", EstimatedTimeMinutes: 15}, reflection: "Keep going."}
	f := newFixture(t, model, nil)
	ctx := context.Background()

	draft, created, err := f.svc.ParseTask(ctx, user, "call mom", false)
	require.NoError(t, err)
	assert.Equal(t, "Call mom", draft.Title)
	assert.Nil(t, created)

	_, created, err = f.svc.ParseTask(ctx, user, "call mom", true)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, created.ID)

	text, err := f.svc.Reflection(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Keep going.", text)
}

func TestTranscriptResetsOnSignOut(t *testing.T) {
	tr := NewTranscripts(nil)
	tr.Append(user, RoleUser, "hello")
	require.Len(t, tr.Messages(user), 2)

	events := make(chan auth.SessionEvent, 1)
	done := make(chan struct{})
	go func() {
		tr.ResetOnSignOut(context.Background(), events)
		close(done)
	}()
	events <- auth.SessionEvent{Kind: auth.SignedOut, UserID: user}
	close(events)
	<-done

	msgs := tr.Messages(user)
	require.Len(t, msgs, 1)
	assert.Equal(t, Greeting, msgs[0].Content)
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(1, 2)
	h := l.Wrap(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	call := func(uid string) int {
		req := httptest.NewRequest(http.MethodPost, "/assistant/command", nil)
		req = req.WithContext(auth.WithUserID(req.Context(), uid))
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call("a"))
	assert.Equal(t, http.StatusNoContent, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	assert.Equal(t, http.StatusNoContent, call("b"))

	unlimited := NewLimiter(0, 1)
	for range 10 {
		assert.True(t, unlimited.Allow("a"))
	}
}

func TestCommandHandler(t *testing.T) {
	f := newFixture(t, &fakeModel{interp: ai.Interpretation{ActionType: ai.ActionChat, Reply: "Hello."}}, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /assistant/command", CommandHandler(f.svc))
	mux.HandleFunc("GET /assistant/messages", MessagesHandler(f.svc))

	do := func(method, target, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req = req.WithContext(auth.WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/assistant/command", `{"command":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reply":"Hello."`)

	rec = do(http.MethodPost, "/assistant/command", `{"command":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/assistant/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), Greeting)
	assert.Contains(t, rec.Body.String(), `"content":"hi"`)
}

func taskIDs(ts []tasks.Task) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
