package tasks

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"unicode"
)

const (
	MaxTitleRunes = 200
	MaxNotesRunes = 1000
	MinMinutes    = 1
	MaxMinutes    = 1440
)

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// IsClockTime reports whether s is a 24h HH:MM time.
func IsClockTime(s string) bool {
	return clockPattern.MatchString(s)
}

// Normalize turns an untrusted, model-generated task object into a Draft.
// The only rejection is a missing or blank title; everything else is defaulted or clamped.
// scheduled_start and deadline are carried over when they are strings, and
// scheduled_start additionally has to look like HH:MM.
func Normalize(raw any) (Draft, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Draft{}, false
	}

	title, ok := obj["title"].(string)
	if !ok {
		return Draft{}, false
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Draft{}, false
	}

	d := Draft{
		Title:                truncateRunes(title, MaxTitleRunes),
		Category:             DefaultCategory,
		EstimatedTimeMinutes: normalizeMinutes(obj["estimated_time_minutes"]),
		MentalLoad:           MentalLoadMedium,
		Priority:             PriorityMedium,
		PreferredTime:        Morning,
		Subtasks:             []string{},
		Frequency:            FrequencyOnce,
	}

	if c, ok := obj["category"].(string); ok {
		d.Category = c
	}
	if s, ok := obj["mental_load"].(string); ok && MentalLoad(s).IsValid() {
		d.MentalLoad = MentalLoad(s)
	}
	if s, ok := obj["priority"].(string); ok && Priority(s).IsValid() {
		d.Priority = Priority(s)
	}
	if s, ok := obj["preferred_time"].(string); ok && TimeOfDay(s).IsValid() {
		d.PreferredTime = TimeOfDay(s)
	}
	if s, ok := obj["frequency"].(string); ok && Frequency(s).IsValid() {
		d.Frequency = Frequency(s)
	}
	if s, ok := obj["deadline"].(string); ok {
		d.Deadline = s
	}
	if s, ok := obj["scheduled_start"].(string); ok && IsClockTime(s) {
		d.ScheduledStart = s
	}
	if items, ok := obj["subtasks"].([]any); ok {
		for _, it := range items {
			if s, ok := it.(string); ok && s != "" {
				d.Subtasks = append(d.Subtasks, s)
			}
		}
	}
	if n, ok := obj["notes"].(string); ok {
		d.Notes = truncateRunes(n, MaxNotesRunes)
	}

	return d, true
}

// NormalizeAll normalizes a batch and silently drops rejected entries.
// It returns the accepted drafts and how many were dropped.
func NormalizeAll(raws []any) ([]Draft, int) {
	out := make([]Draft, 0, len(raws))
	dropped := 0
	for _, r := range raws {
		d, ok := Normalize(r)
		if !ok {
			dropped++
			continue
		}
		out = append(out, d)
	}
	return out, dropped
}

func normalizeMinutes(v any) int {
	n, ok := leadingInt(v)
	if !ok || n == 0 {
		n = DefaultMinutes
	}
	return min(max(n, MinMinutes), MaxMinutes)
}

// leadingInt parses v the way a lenient integer parse does: numbers are
// truncated toward zero and strings contribute their leading integer.
func leadingInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return truncFloat(x)
	case int:
		return x, true
	case int64:
		return clampInt64(x), true
	case json.Number:
		return leadingInt(string(x))
	case string:
		s := strings.TrimLeftFunc(x, unicode.IsSpace)
		neg := false
		if s != "" && (s[0] == '+' || s[0] == '-') {
			neg = s[0] == '-'
			s = s[1:]
		}
		digits := 0
		var n int64
		for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
			if n < math.MaxInt32 {
				n = n*10 + int64(s[digits]-'0')
			}
			digits++
		}
		if digits == 0 {
			return 0, false
		}
		if neg {
			n = -n
		}
		return clampInt64(n), true
	default:
		return 0, false
	}
}

func truncFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if t < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(t), true
}

func clampInt64(n int64) int {
	return int(min(max(n, math.MinInt32), math.MaxInt32))
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
