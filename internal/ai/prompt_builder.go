package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"nexus-backend/internal/preferences"
	"nexus-backend/internal/tasks"
)

// maxContextTasks bounds how many existing task titles are quoted in a command prompt.
const maxContextTasks = 50

func buildInterpretPrompt(command, today, weekday, language string, current []tasks.Task) string {
	var b strings.Builder

	b.WriteString("User Command: ")
	b.WriteString(quote(command))
	b.WriteString("\n")

	b.WriteString("Today's Reference: ")
	b.WriteString(today)
	if weekday != "" {
		b.WriteString(" (")
		b.WriteString(weekday)
		b.WriteString(")")
	}
	b.WriteString("\n")

	b.WriteString("Language: ")
	b.WriteString(language)
	b.WriteString(". Write 'reply' in this language.\n")

	if len(current) > 0 {
		b.WriteString("Existing tasks (do not duplicate): ")
		titles := make([]string, 0, min(len(current), maxContextTasks))
		for _, t := range current[:min(len(current), maxContextTasks)] {
			titles = append(titles, t.Title)
		}
		b.WriteString(mustJSON(titles))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf(interpretPolicy, today))
	return b.String()
}

func buildParseTaskPrompt(input, language string) string {
	var b strings.Builder
	b.WriteString("Extract task details from: ")
	b.WriteString(quote(input))
	b.WriteString(". Language: ")
	b.WriteString(language)
	b.WriteString(".\n")
	b.WriteString("Infer load, duration (default 30m), priority, and frequency (Once, Daily, Weekly, Monthly, Yearly).\n")
	b.WriteString("Return JSON only.")
	return b.String()
}

type scheduleItem struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Load     tasks.MentalLoad `json:"load"`
	Time     int              `json:"time"`
	Priority tasks.Priority   `json:"priority"`
}

func buildSchedulePrompt(pending []tasks.Task, language string) string {
	items := make([]scheduleItem, 0, len(pending))
	for _, t := range pending {
		items = append(items, scheduleItem{
			ID:       t.ID,
			Title:    t.Title,
			Load:     t.MentalLoad,
			Time:     t.EstimatedTimeMinutes,
			Priority: t.Priority,
		})
	}

	var b strings.Builder
	b.WriteString("Planner for ")
	b.WriteString(language)
	b.WriteString(". Current tasks: ")
	b.WriteString(mustJSON(items))
	b.WriteString(".\n")
	b.WriteString("Suggest start times (HH:MM) for these tasks to maximize productivity. Return JSON.")
	return b.String()
}

type reflectionItem struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

func buildReflectionPrompt(views []tasks.View, language string) string {
	items := make([]reflectionItem, 0, len(views))
	for _, v := range views {
		items = append(items, reflectionItem{Title: v.Title, Completed: v.Completed})
	}
	return "Analyze performance for " + language + ": " + mustJSON(items) + ". Provide a 1-2 sentence reflection."
}

func buildJournalPrompt(content, language string) string {
	return "Analyze this journal entry in " + language + ": " + quote(content) + "."
}

func buildTranslatePrompt(language string, base preferences.Dictionary) string {
	return "Translate UI labels to " + language + ". Keep every key unchanged. Labels: " + mustJSON(base)
}

func quote(s string) string {
	return mustJSON(s)
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(raw)
}
