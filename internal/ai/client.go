// Package ai turns model replies into domain values. Every reply is treated
// as untrusted input: it is decoded leniently, normalized, and on failure
// replaced by a fixed fallback where the caller cannot handle an error.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nexus-backend/internal/journal"
	"nexus-backend/internal/logicalday"
	"nexus-backend/internal/observability"
	"nexus-backend/internal/preferences"
	"nexus-backend/internal/tasks"
)

const (
	FallbackReply     = "I encountered a processing issue with that schedule. Could you try providing it in smaller sections or clarify the dates?"
	DefaultRationale  = "Plan optimized."
	OfflineRationale  = "Scheduling offline."
	DefaultReflection = "Every action creates your future."
	siteInterpret     = "interpret"
	siteParseTask     = "parse_task"
	siteSchedule      = "schedule"
	siteReflection    = "reflection"
	siteJournal       = "journal"
	siteTranslate     = "translate"
)

var ErrRejected = errors.New("ai: generated task rejected")

type ActionType string

const (
	ActionUI      ActionType = "ui"
	ActionTask    ActionType = "task"
	ActionChat    ActionType = "chat"
	ActionRoutine ActionType = "routine_creation"
)

func (a ActionType) IsValid() bool {
	switch a {
	case ActionUI, ActionTask, ActionChat, ActionRoutine:
		return true
	}
	return false
}

// Interpretation is the outcome of a free-form command.
type Interpretation struct {
	ActionType    ActionType         `json:"actionType"`
	Reply         string             `json:"reply"`
	UIChange      *preferences.Patch `json:"uiChange,omitempty"`
	TasksToCreate []tasks.Draft      `json:"tasksToCreate,omitempty"`
}

// Fallback is the reply used whenever interpretation fails.
func Fallback() Interpretation {
	return Interpretation{ActionType: ActionChat, Reply: FallbackReply}
}

// Schedule maps task ids to suggested HH:MM start times.
type Schedule struct {
	Rationale string            `json:"rationale"`
	Starts    map[string]string `json:"starts"`
}

type Options struct {
	Clock    logicalday.Clock
	Location *time.Location
	Metrics  *observability.Metrics
}

type Client struct {
	llm     Completer
	clock   logicalday.Clock
	loc     *time.Location
	metrics *observability.Metrics
}

// NewClient wraps a Completer. A nil Completer yields ErrUnavailable on every call.
func NewClient(llm Completer, opts Options) *Client {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Client{llm: llm, clock: opts.Clock, loc: loc, metrics: opts.Metrics}
}

func (c *Client) complete(ctx context.Context, req Request) (string, error) {
	if c.llm == nil {
		c.metrics.LLMCall(req.Site, ErrUnavailable, 0)
		return "", ErrUnavailable
	}
	if req.System == "" {
		req.System = systemPrompt
	}
	start := time.Now()
	out, err := c.llm.Complete(ctx, req)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyReply
	}
	c.metrics.LLMCall(req.Site, err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return out, nil
}

// today is the calendar date, not the logical one: after midnight
// "tomorrow" means the next calendar day.
func (c *Client) today() (string, string) {
	date := logicalday.CalendarDate(c.clock.Now().In(c.loc))
	weekday, _ := logicalday.Weekday(date)
	return date, weekday
}

// Interpret classifies a command and extracts what it asks for. It never
// fails: any model, decode or shape problem yields Fallback.
func (c *Client) Interpret(ctx context.Context, command string, current []tasks.Task, language string) Interpretation {
	today, weekday := c.today()
	out, err := c.complete(ctx, Request{
		Site:       siteInterpret,
		Prompt:     buildInterpretPrompt(command, today, weekday, language, current),
		Schema:     interpretSchema(),
		SchemaName: "command_interpretation",
	})
	if err != nil {
		slog.Error("command interpretation failed", "error", err)
		c.metrics.Fallback()
		return Fallback()
	}

	var raw struct {
		ActionType    *string         `json:"actionType"`
		Reply         *string         `json:"reply"`
		TasksToCreate []any           `json:"tasksToCreate"`
		UIChange      json.RawMessage `json:"uiChange"`
	}
	if err := json.Unmarshal([]byte(stripFences(out)), &raw); err != nil {
		slog.Error("command interpretation returned invalid JSON", "error", err)
		c.metrics.Fallback()
		return Fallback()
	}
	if raw.ActionType == nil || raw.Reply == nil || !ActionType(*raw.ActionType).IsValid() {
		slog.Error("command interpretation returned an unexpected shape", "action_type", raw.ActionType)
		c.metrics.Fallback()
		return Fallback()
	}

	result := Interpretation{ActionType: ActionType(*raw.ActionType), Reply: *raw.Reply}
	if len(raw.TasksToCreate) > 0 {
		drafts, dropped := tasks.NormalizeAll(raw.TasksToCreate)
		c.metrics.Rejected(dropped)
		if dropped > 0 {
			slog.Warn("dropped generated tasks that failed normalization", "dropped", dropped, "kept", len(drafts))
		}
		result.TasksToCreate = drafts
	}
	if len(raw.UIChange) > 0 && string(raw.UIChange) != "null" {
		var patch preferences.Patch
		if err := json.Unmarshal(raw.UIChange, &patch); err != nil {
			slog.Warn("ignoring malformed uiChange", "error", err)
		} else if !patch.IsEmpty() {
			result.UIChange = &patch
		}
	}
	return result
}

// ParseTask extracts a single task from free text.
func (c *Client) ParseTask(ctx context.Context, input, language string) (tasks.Draft, error) {
	out, err := c.complete(ctx, Request{
		Site:       siteParseTask,
		Prompt:     buildParseTaskPrompt(input, language),
		Schema:     parseTaskSchema(),
		SchemaName: "parsed_task",
	})
	if err != nil {
		return tasks.Draft{}, fmt.Errorf("parse task: %w", err)
	}

	var raw any
	if err := json.Unmarshal([]byte(stripFences(out)), &raw); err != nil {
		return tasks.Draft{}, fmt.Errorf("parse task: decode reply: %w", err)
	}
	draft, ok := tasks.Normalize(raw)
	if !ok {
		c.metrics.Rejected(1)
		return tasks.Draft{}, ErrRejected
	}
	return draft, nil
}

// GenerateSchedule asks for start times for pending tasks. Suggestions for
// unknown ids or with a malformed time are dropped. On failure it returns
// an empty schedule with OfflineRationale.
func (c *Client) GenerateSchedule(ctx context.Context, pending []tasks.Task, language string) Schedule {
	offline := Schedule{Rationale: OfflineRationale, Starts: map[string]string{}}

	out, err := c.complete(ctx, Request{
		Site:       siteSchedule,
		Prompt:     buildSchedulePrompt(pending, language),
		Schema:     scheduleSchema(),
		SchemaName: "schedule",
	})
	if err != nil {
		slog.Error("schedule generation failed", "error", err)
		return offline
	}

	var raw struct {
		Rationale string `json:"rationale"`
		Tasks     []struct {
			ID             string `json:"id"`
			ScheduledStart any    `json:"scheduled_start"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(stripFences(out)), &raw); err != nil {
		slog.Error("schedule generation returned invalid JSON", "error", err)
		return offline
	}

	known := make(map[string]bool, len(pending))
	for _, t := range pending {
		known[t.ID] = true
	}

	sched := Schedule{Rationale: raw.Rationale, Starts: make(map[string]string)}
	if strings.TrimSpace(sched.Rationale) == "" {
		sched.Rationale = DefaultRationale
	}
	for _, s := range raw.Tasks {
		start, ok := s.ScheduledStart.(string)
		if !ok || !known[s.ID] || !tasks.IsClockTime(start) {
			continue
		}
		if _, seen := sched.Starts[s.ID]; !seen {
			sched.Starts[s.ID] = start
		}
	}
	return sched
}

// GenerateReflection writes a one or two sentence reflection on the day.
func (c *Client) GenerateReflection(ctx context.Context, views []tasks.View, language string) (string, error) {
	out, err := c.complete(ctx, Request{
		Site:   siteReflection,
		Prompt: buildReflectionPrompt(views, language),
	})
	if errors.Is(err, ErrEmptyReply) {
		return DefaultReflection, nil
	}
	if err != nil {
		return "", fmt.Errorf("reflection: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// AnalyzeEntry derives mood, a reflection and tags from a journal entry.
func (c *Client) AnalyzeEntry(ctx context.Context, content, language string) (journal.Analysis, error) {
	out, err := c.complete(ctx, Request{
		Site:       siteJournal,
		Prompt:     buildJournalPrompt(content, language),
		Schema:     journalSchema(),
		SchemaName: "journal_analysis",
	})
	if err != nil {
		return journal.Analysis{}, fmt.Errorf("journal analysis: %w", err)
	}

	var a journal.Analysis
	if err := json.Unmarshal([]byte(stripFences(out)), &a); err != nil {
		return journal.Analysis{}, fmt.Errorf("journal analysis: decode reply: %w", err)
	}
	tags := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	a.Tags = tags
	return a, nil
}

// TranslateLabels implements preferences.Translator.
func (c *Client) TranslateLabels(ctx context.Context, language string, base preferences.Dictionary) (preferences.Dictionary, error) {
	if preferences.IsDefaultLanguage(language) {
		return base, nil
	}
	out, err := c.complete(ctx, Request{
		Site:       siteTranslate,
		Prompt:     buildTranslatePrompt(language, base),
		Schema:     translationSchema(base),
		SchemaName: "ui_labels",
	})
	if err != nil {
		return nil, fmt.Errorf("translate labels: %w", err)
	}

	var dict preferences.Dictionary
	if err := json.Unmarshal([]byte(stripFences(out)), &dict); err != nil {
		return nil, fmt.Errorf("translate labels: decode reply: %w", err)
	}
	return dict, nil
}
