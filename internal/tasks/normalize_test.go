package tasks

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNormalize_DefaultsAndClamp(t *testing.T) {
	d, ok := Normalize(decode(t, `{"title": "  Buy milk  ", "estimated_time_minutes": "9999"}`))
	require.True(t, ok)

	assert.Equal(t, "Buy milk", d.Title)
	assert.Equal(t, 1440, d.EstimatedTimeMinutes)
	assert.Equal(t, MentalLoadMedium, d.MentalLoad)
	assert.Equal(t, PriorityMedium, d.Priority)
	assert.Equal(t, Morning, d.PreferredTime)
	assert.Equal(t, FrequencyOnce, d.Frequency)
	assert.Equal(t, DefaultCategory, d.Category)
	assert.Equal(t, []string{}, d.Subtasks)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"deadline"`)
	assert.NotContains(t, string(out), `"notes"`)
	assert.Contains(t, string(out), `"subtasks":[]`)
}

func TestNormalize_Rejects(t *testing.T) {
	for _, raw := range []string{`{"title": ""}`, `{}`, `{"title": "   "}`, `{"title": 42}`, `"a string"`, `null`, `[]`} {
		_, ok := Normalize(decode(t, raw))
		assert.False(t, ok, raw)
	}
}

func TestNormalize_Minutes(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{`45`, 45},
		{`45.9`, 45},
		{`"90 minutes"`, 90},
		{`"  12abc"`, 12},
		{`"abc"`, 30},
		{`0`, 30},
		{`"0"`, 30},
		{`-5`, 1},
		{`100000`, 1440},
		{`null`, 30},
		{`true`, 30},
	}
	for _, tc := range cases {
		d, ok := Normalize(decode(t, `{"title": "x", "estimated_time_minutes": `+tc.raw+`}`))
		require.True(t, ok)
		assert.Equal(t, tc.want, d.EstimatedTimeMinutes, tc.raw)
	}
}

func TestNormalize_EnumsAndOptionalFields(t *testing.T) {
	d, ok := Normalize(decode(t, `{
		"title": "Gym",
		"category": "Health",
		"mental_load": "High",
		"priority": "urgent",
		"preferred_time": "Evening",
		"frequency": "Weekly",
		"deadline": "2024-05-10",
		"scheduled_start": "18:30",
		"subtasks": ["warm up", "", 3, "stretch"],
		"notes": "bring water"
	}`))
	require.True(t, ok)

	assert.Equal(t, "Health", d.Category)
	assert.Equal(t, MentalLoadHigh, d.MentalLoad)
	assert.Equal(t, PriorityMedium, d.Priority)
	assert.Equal(t, Evening, d.PreferredTime)
	assert.Equal(t, FrequencyWeekly, d.Frequency)
	assert.Equal(t, "2024-05-10", d.Deadline)
	assert.Equal(t, "18:30", d.ScheduledStart)
	assert.Equal(t, []string{"warm up", "stretch"}, d.Subtasks)
	assert.Equal(t, "bring water", d.Notes)
}

func TestNormalize_DropsMalformedStartAndNonStringDeadline(t *testing.T) {
	d, ok := Normalize(decode(t, `{"title": "x", "scheduled_start": "25:00", "deadline": 20240510, "category": 7}`))
	require.True(t, ok)
	assert.Empty(t, d.ScheduledStart)
	assert.Empty(t, d.Deadline)
	assert.Equal(t, DefaultCategory, d.Category)
}

func TestNormalize_Truncates(t *testing.T) {
	long := strings.Repeat("é", 250)
	notes := strings.Repeat("n", 1200)
	d, ok := Normalize(map[string]any{"title": long, "notes": notes})
	require.True(t, ok)
	assert.Equal(t, 200, len([]rune(d.Title)))
	assert.Equal(t, 1000, len([]rune(d.Notes)))
}

func TestNormalizeAll_DropsRejected(t *testing.T) {
	drafts, dropped := NormalizeAll([]any{
		map[string]any{"title": "a"},
		map[string]any{},
		"junk",
		map[string]any{"title": "b"},
	})
	assert.Equal(t, 2, dropped)
	require.Len(t, drafts, 2)
	assert.Equal(t, "a", drafts[0].Title)
	assert.Equal(t, "b", drafts[1].Title)
}

func TestIsClockTime(t *testing.T) {
	for _, s := range []string{"00:00", "9:05", "23:59", "07:30"} {
		assert.True(t, IsClockTime(s), s)
	}
	for _, s := range []string{"24:00", "12:60", "7", "07:3", "noon", ""} {
		assert.False(t, IsClockTime(s), s)
	}
}
