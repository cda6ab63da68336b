package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-backend/internal/auth"
	"nexus-backend/internal/journal"
	"nexus-backend/internal/logicalday"
	"nexus-backend/internal/preferences"
	"nexus-backend/internal/tasks"
)

const user = "u1"

var noon = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type downStore struct {
	*tasks.MemoryStore
}

func (downStore) ListTasks(context.Context, string) ([]tasks.Task, error) {
	return nil, errors.New("store down")
}

func newFixture(t *testing.T, taskStore tasks.Store) *Service {
	t.Helper()
	clock := logicalday.FixedClock(noon)
	ts := tasks.NewService(taskStore, tasks.Options{Clock: clock, Location: time.UTC})
	js := journal.NewService(journal.NewMemoryStore(), journal.Options{Clock: clock, Location: time.UTC})
	prefs := preferences.NewService(preferences.NewMemoryStore(), preferences.NewMemoryCache(), nil)

	_, err := js.Save(context.Background(), user, journal.Entry{Content: "Long walk."})
	require.NoError(t, err)
	return NewService(ts, js, prefs)
}

func seededStore(t *testing.T) *tasks.MemoryStore {
	t.Helper()
	store := tasks.NewMemoryStore()
	require.NoError(t, store.InsertTasks(context.Background(), user, []tasks.Task{
		{ID: "t1", Title: "Stretch", Frequency: tasks.FrequencyDaily, CompletionHistory: tasks.Ledger{}, Subtasks: []string{}, CreatedAt: noon.Add(-48 * time.Hour)},
		{ID: "t2", Title: "Taxes", Frequency: tasks.FrequencyOnce, Deadline: "2024-06-01", CompletionHistory: tasks.Ledger{}, Subtasks: []string{}, CreatedAt: noon},
	}))
	return store
}

func TestLoad(t *testing.T) {
	svc := newFixture(t, seededStore(t))

	snap, err := svc.Load(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, "2024-05-10", snap.LogicalDate)
	assert.Len(t, snap.Tasks, 2)
	require.Len(t, snap.Today, 1)
	assert.Equal(t, "t1", snap.Today[0].ID)
	require.Len(t, snap.Journal, 1)
	assert.Equal(t, "Long walk.", snap.Journal[0].Content)
	assert.Equal(t, preferences.Defaults(), snap.Preferences)
	assert.Equal(t, preferences.DefaultTranslations(), snap.Translations)
}

func TestLoad_TaskFailureFailsSnapshot(t *testing.T) {
	svc := newFixture(t, downStore{tasks.NewMemoryStore()})

	_, err := svc.Load(context.Background(), user)
	assert.ErrorContains(t, err, "load tasks")
}

func TestHandler(t *testing.T) {
	svc := newFixture(t, seededStore(t))

	rec := httptest.NewRecorder()
	Handler(svc)(rec, httptest.NewRequest(http.MethodGet, "/bootstrap", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/bootstrap", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), user))
	rec = httptest.NewRecorder()
	Handler(svc)(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		LogicalDate string          `json:"logicalDate"`
		Tasks       []tasks.Task    `json:"tasks"`
		Journal     []journal.Entry `json:"journal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-05-10", body.LogicalDate)
	assert.Len(t, body.Tasks, 2)
	assert.Len(t, body.Journal, 1)

	broken := newFixture(t, downStore{tasks.NewMemoryStore()})
	rec = httptest.NewRecorder()
	Handler(broken)(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
