package tasks

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("tasks: not found")
	ErrPersistence     = errors.New("tasks: persistence failed")
	ErrInvalidLoad     = errors.New("tasks: invalid mental load")
	ErrInvalidPriority = errors.New("tasks: invalid priority")
	ErrInvalidTime     = errors.New("tasks: invalid preferred time")
	ErrInvalidFreq     = errors.New("tasks: invalid frequency")
)

// NewTaskID is the placeholder id a client sends for a task that does not exist yet.
const NewTaskID = "new"

const (
	DefaultCategory = "General"
	DefaultTitle    = "Untitled Task"
	DefaultMinutes  = 30
)

type MentalLoad string

const (
	MentalLoadLow    MentalLoad = "Low"
	MentalLoadMedium MentalLoad = "Medium"
	MentalLoadHigh   MentalLoad = "High"
)

func (l MentalLoad) IsValid() bool {
	switch l {
	case MentalLoadLow, MentalLoadMedium, MentalLoadHigh:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type TimeOfDay string

const (
	Morning   TimeOfDay = "Morning"
	Afternoon TimeOfDay = "Afternoon"
	Evening   TimeOfDay = "Evening"
	Night     TimeOfDay = "Night"
)

func (t TimeOfDay) IsValid() bool {
	switch t {
	case Morning, Afternoon, Evening, Night:
		return true
	default:
		return false
	}
}

type Frequency string

const (
	FrequencyOnce    Frequency = "Once"
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
	FrequencyYearly  Frequency = "Yearly"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	default:
		return false
	}
}

// IsOnce reports whether the task is a one-off. An unset frequency counts as Once.
func (f Frequency) IsOnce() bool {
	return f == FrequencyOnce || f == ""
}

// Ledger maps a YYYY-MM-DD date to whether the task was done that day.
type Ledger map[string]bool

// Done reports the ledger entry for date; a missing key is false.
func (l Ledger) Done(date string) bool {
	return l[date]
}

// AnyDone reports whether any date in the ledger is marked done.
func (l Ledger) AnyDone() bool {
	for _, v := range l {
		if v {
			return true
		}
	}
	return false
}

// Toggled returns a copy of the ledger with the entry for date flipped.
// The key is always written, so a second toggle stores false rather than deleting it.
func (l Ledger) Toggled(date string) Ledger {
	out := l.Clone()
	out[date] = !l[date]
	return out
}

func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	maps.Copy(out, l)
	return out
}

// Task is the persisted task. Completion is never stored as a flag; see View.
type Task struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Category             string     `json:"category"`
	EstimatedTimeMinutes int        `json:"estimated_time_minutes"`
	MentalLoad           MentalLoad `json:"mental_load"`
	Priority             Priority   `json:"priority"`
	PreferredTime        TimeOfDay  `json:"preferred_time"`
	Deadline             string     `json:"deadline,omitempty"`
	ScheduledStart       string     `json:"scheduled_start,omitempty"`
	Subtasks             []string   `json:"subtasks"`
	Notes                string     `json:"notes,omitempty"`
	IsAlarmEnabled       bool       `json:"is_alarm_enabled"`
	AlarmTime            string     `json:"alarm_time,omitempty"`
	AlarmSound           string     `json:"alarm_sound,omitempty"`
	AlarmSoundName       string     `json:"alarm_sound_name,omitempty"`
	CompletionHistory    Ledger     `json:"completion_history"`
	Frequency            Frequency  `json:"frequency"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Clone returns a deep copy so callers can't alias the cached slices and maps.
func (t Task) Clone() Task {
	out := t
	if t.Subtasks != nil {
		out.Subtasks = append([]string(nil), t.Subtasks...)
	}
	if t.CompletionHistory != nil {
		out.CompletionHistory = t.CompletionHistory.Clone()
	}
	return out
}

// WithDefaults fills the fields a row must always carry.
func (t Task) WithDefaults() Task {
	if strings.TrimSpace(t.Title) == "" {
		t.Title = DefaultTitle
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if t.EstimatedTimeMinutes <= 0 {
		t.EstimatedTimeMinutes = DefaultMinutes
	}
	if t.MentalLoad == "" {
		t.MentalLoad = MentalLoadMedium
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.PreferredTime == "" {
		t.PreferredTime = Morning
	}
	if t.Frequency == "" {
		t.Frequency = FrequencyOnce
	}
	if t.Subtasks == nil {
		t.Subtasks = []string{}
	}
	if t.CompletionHistory == nil {
		t.CompletionHistory = Ledger{}
	}
	return t
}

// ValidateEnums checks the enum fields of a task that came from a client.
func (t Task) ValidateEnums() error {
	if !t.MentalLoad.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidLoad, t.MentalLoad)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if !t.PreferredTime.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTime, t.PreferredTime)
	}
	if !t.Frequency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFreq, t.Frequency)
	}
	return nil
}

// View is a task as seen on one particular day.
type View struct {
	Task
	Completed bool `json:"completed"`
}

// Draft is a task payload that passed normalization but has no identity yet.
type Draft struct {
	Title                string     `json:"title"`
	Category             string     `json:"category"`
	EstimatedTimeMinutes int        `json:"estimated_time_minutes"`
	MentalLoad           MentalLoad `json:"mental_load"`
	Priority             Priority   `json:"priority"`
	PreferredTime        TimeOfDay  `json:"preferred_time"`
	Deadline             string     `json:"deadline,omitempty"`
	ScheduledStart       string     `json:"scheduled_start,omitempty"`
	Subtasks             []string   `json:"subtasks"`
	Notes                string     `json:"notes,omitempty"`
	Frequency            Frequency  `json:"frequency"`
}

// Task materializes the draft as a new task with an empty ledger.
func (d Draft) Task(id string, createdAt time.Time) Task {
	return Task{
		ID:                   id,
		Title:                d.Title,
		Category:             d.Category,
		EstimatedTimeMinutes: d.EstimatedTimeMinutes,
		MentalLoad:           d.MentalLoad,
		Priority:             d.Priority,
		PreferredTime:        d.PreferredTime,
		Deadline:             d.Deadline,
		ScheduledStart:       d.ScheduledStart,
		Subtasks:             append([]string{}, d.Subtasks...),
		Notes:                d.Notes,
		CompletionHistory:    Ledger{},
		Frequency:            d.Frequency,
		CreatedAt:            createdAt,
	}.WithDefaults()
}
