// Package assistant runs the conversational side of the planner: free-form
// commands, schedule optimization, single-task parsing and the daily reflection.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"nexus-backend/internal/ai"
	"nexus-backend/internal/analytics"
	"nexus-backend/internal/preferences"
	"nexus-backend/internal/tasks"
)

const (
	FaultReply         = "Core Logic Fault. Recalibrating..."
	NothingPending     = "All objectives clear. No optimization required."
	OptimizationFault  = "Optimization Core Fault."
	maxCommandRunes    = 20000
	routineWithDates   = "Neural mapping complete. Manifested %d objectives across %d temporal points."
	routineCurrentDays = "Patterns synthesized. Registered %d objectives in current cycle."
)

var ErrEmptyCommand = errors.New("assistant: empty command")

// Model is the subset of the model client the assistant drives.
type Model interface {
	Interpret(ctx context.Context, command string, current []tasks.Task, language string) ai.Interpretation
	GenerateSchedule(ctx context.Context, pending []tasks.Task, language string) ai.Schedule
	GenerateReflection(ctx context.Context, views []tasks.View, language string) (string, error)
	ParseTask(ctx context.Context, input, language string) (tasks.Draft, error)
}

type Service struct {
	tasks       *tasks.Service
	prefs       *preferences.Service
	model       Model
	events      *analytics.Recorder
	transcripts *Transcripts
}

func NewService(ts *tasks.Service, prefs *preferences.Service, model Model, transcripts *Transcripts, events *analytics.Recorder) *Service {
	return &Service{tasks: ts, prefs: prefs, model: model, events: events, transcripts: transcripts}
}

func (s *Service) Transcripts() *Transcripts {
	return s.transcripts
}

type CommandResult struct {
	ActionType   ai.ActionType             `json:"actionType"`
	Reply        string                    `json:"reply"`
	CreatedTasks []tasks.Task              `json:"createdTasks"`
	Preferences  *preferences.UIPreference `json:"preferences,omitempty"`
	Messages     []Message                 `json:"messages"`
}

// HandleCommand records the command, interprets it in the user's current
// language and applies the outcome. A routine becomes a batch of tasks; a
// visual change is saved to the preferences. Any failure while applying is
// answered with FaultReply and returned as an error.
func (s *Service) HandleCommand(ctx context.Context, userID, command string) (CommandResult, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return CommandResult{}, ErrEmptyCommand
	}
	if r := []rune(command); len(r) > maxCommandRunes {
		command = string(r[:maxCommandRunes])
	}
	s.transcripts.Append(userID, RoleUser, command)

	result, err := s.handle(ctx, userID, command)
	if err != nil {
		slog.Error("assistant command failed", "user_id", userID, "error", err)
		result = CommandResult{ActionType: ai.ActionChat, Reply: FaultReply, CreatedTasks: []tasks.Task{}}
	}
	s.transcripts.Append(userID, RoleAssistant, result.Reply)
	result.Messages = s.transcripts.Messages(userID)
	return result, err
}

func (s *Service) handle(ctx context.Context, userID, command string) (CommandResult, error) {
	language := s.prefs.Language(ctx, userID)
	current, err := s.tasks.Tasks(ctx, userID)
	if err != nil {
		return CommandResult{}, err
	}

	interp := s.model.Interpret(ctx, command, current, language)
	result := CommandResult{ActionType: interp.ActionType, Reply: interp.Reply, CreatedTasks: []tasks.Task{}}

	switch {
	case interp.ActionType == ai.ActionRoutine && len(interp.TasksToCreate) > 0:
		created, err := s.tasks.BulkCreate(ctx, userID, interp.TasksToCreate)
		if err != nil {
			return CommandResult{}, fmt.Errorf("create routine: %w", err)
		}
		result.CreatedTasks = created
		result.Reply = routineReply(created)
		s.events.Track(ctx, userID, "routine_created", map[string]any{
			"task_count": len(created),
			"date_count": distinctDeadlines(created),
		})

	case interp.ActionType == ai.ActionTask && len(interp.TasksToCreate) > 0:
		created, err := s.tasks.BulkCreate(ctx, userID, interp.TasksToCreate)
		if err != nil {
			return CommandResult{}, fmt.Errorf("create task: %w", err)
		}
		result.CreatedTasks = created

	case interp.ActionType == ai.ActionUI && interp.UIChange != nil:
		saved, err := s.prefs.Apply(ctx, userID, *interp.UIChange)
		if err != nil {
			return CommandResult{}, fmt.Errorf("apply visual change: %w", err)
		}
		result.Preferences = &saved
	}

	s.events.Track(ctx, userID, "command_interpreted", map[string]any{
		"action_type": string(interp.ActionType),
		"command_len": len(command),
		"created":     len(result.CreatedTasks),
	})
	return result, nil
}

func routineReply(created []tasks.Task) string {
	if dates := distinctDeadlines(created); dates > 0 {
		return fmt.Sprintf(routineWithDates, len(created), dates)
	}
	return fmt.Sprintf(routineCurrentDays, len(created))
}

func distinctDeadlines(ts []tasks.Task) int {
	seen := make(map[string]struct{})
	for _, t := range ts {
		if t.Deadline != "" {
			seen[t.Deadline] = struct{}{}
		}
	}
	return len(seen)
}

type OptimizeResult struct {
	Rationale string       `json:"rationale"`
	Updated   []tasks.Task `json:"updated"`
	Messages  []Message    `json:"messages"`
}

// Optimize suggests start times for today's pending tasks and persists them.
// Pending means not completed today and either undated or due today.
func (s *Service) Optimize(ctx context.Context, userID string) (OptimizeResult, error) {
	res, err := s.optimize(ctx, userID)
	if err != nil {
		slog.Error("schedule optimization failed", "user_id", userID, "error", err)
		res = OptimizeResult{Rationale: OptimizationFault, Updated: []tasks.Task{}}
	}
	s.transcripts.Append(userID, RoleAssistant, res.Rationale)
	res.Messages = s.transcripts.Messages(userID)
	return res, err
}

func (s *Service) optimize(ctx context.Context, userID string) (OptimizeResult, error) {
	all, err := s.tasks.Tasks(ctx, userID)
	if err != nil {
		return OptimizeResult{}, err
	}
	today := s.tasks.Today()
	pending := Pending(all, today)
	if len(pending) == 0 {
		return OptimizeResult{Rationale: NothingPending, Updated: []tasks.Task{}}, nil
	}

	sched := s.model.GenerateSchedule(ctx, pending, s.prefs.Language(ctx, userID))
	updated, err := s.tasks.ApplySchedule(ctx, userID, sched.Starts)
	if err != nil {
		return OptimizeResult{}, err
	}
	if updated == nil {
		updated = []tasks.Task{}
	}
	return OptimizeResult{Rationale: sched.Rationale, Updated: updated}, nil
}

// Pending lists the tasks an optimization run may reschedule on date.
func Pending(all []tasks.Task, date string) []tasks.Task {
	out := make([]tasks.Task, 0, len(all))
	for _, t := range all {
		if tasks.CompletedOn(t, date) {
			continue
		}
		if t.Deadline == "" || t.Deadline == date {
			out = append(out, t)
		}
	}
	return out
}

// ParseTask extracts a task from free text. With create set it is also saved.
func (s *Service) ParseTask(ctx context.Context, userID, input string, create bool) (tasks.Draft, *tasks.Task, error) {
	draft, err := s.model.ParseTask(ctx, input, s.prefs.Language(ctx, userID))
	if err != nil {
		return tasks.Draft{}, nil, err
	}
	if !create {
		return draft, nil, nil
	}
	created, err := s.tasks.BulkCreate(ctx, userID, []tasks.Draft{draft})
	if err != nil {
		return draft, nil, err
	}
	return draft, &created[0], nil
}

// Reflection comments on the current logical day's view.
func (s *Service) Reflection(ctx context.Context, userID string) (string, error) {
	_, views, err := s.tasks.TodayView(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.model.GenerateReflection(ctx, views, s.prefs.Language(ctx, userID))
}
