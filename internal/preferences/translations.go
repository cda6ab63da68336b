package preferences

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// Dictionary maps a label key to its display text.
type Dictionary map[string]string

// DefaultTranslations returns a fresh copy of the English label dictionary.
func DefaultTranslations() Dictionary {
	return maps.Clone(defaultTranslations)
}

// TranslationKeys lists the label keys in a stable order.
func TranslationKeys() []string {
	return slices.Sorted(maps.Keys(defaultTranslations))
}

var defaultTranslations = Dictionary{
	"newTask":           "New Task",
	"newEntry":          "New Entry",
	"dashboard":         "Dashboard",
	"schedule":          "Planner",
	"journal":           "Journal",
	"history":           "Timeline",
	"settings":          "Settings",
	"commandCenter":     "Command Center",
	"yourAgenda":        "Your Agenda",
	"personalJournal":   "Personal Journal",
	"taskHistory":       "Timeline Records",
	"overview":          "Daily Overview",
	"journalSubtitle":   "Record thoughts and let AI reflect.",
	"historySubtitle":   "Strategic logs and future planning.",
	"allClear":          "All clear. Enjoy the void.",
	"optimizeDay":       "Optimize Flow",
	"analyzing":         "Analyzing...",
	"save":              "Save",
	"cancel":            "Cancel",
	"applyTheme":        "Sync Theme",
	"morning":           "Morning Phase",
	"afternoon":         "Midday Phase",
	"evening":           "Sunset Phase",
	"night":             "Night Phase",
	"completed":         "Archived",
	"subtasks":          "Subtasks",
	"notes":             "Intel",
	"alarm":             "Neuro-Alert",
	"completionRate":    "Success Rate",
	"focusTime":         "Cognitive Load",
	"highLoadTasks":     "Peak Challenges",
	"dailyReflection":   "Neural Reflection",
	"generateInsights":  "Generate Insights",
	"uiCustomization":   "Interface Core",
	"themeName":         "Identity",
	"aiLanguage":        "Linguistics",
	"backgroundMedia":   "Environment",
	"defaultAlarm":      "Audio Cue",
	"atmosphericEffect": "Atmospheric FX",
	"blur":              "Diffusion",
	"opacity":           "Opacity",
	"brightness":        "Luminance",
	"accentColor":       "Core Color",
	"motionSpeed":       "Temporal Speed",
	"nexusAssistant":    "Nexus Core",
	"askNexus":          "Input command...",
}

// Translator produces the label dictionary in another language.
type Translator interface {
	TranslateLabels(ctx context.Context, language string, base Dictionary) (Dictionary, error)
}

// IsDefaultLanguage reports whether language needs no translation.
func IsDefaultLanguage(language string) bool {
	l := strings.TrimSpace(language)
	return l == "" || strings.EqualFold(l, DefaultLanguage)
}

// Translate returns the label dictionary for language. English never reaches
// the translator. A failed translation yields the defaults; a partial one is
// merged over them and unknown keys are dropped.
func Translate(ctx context.Context, tr Translator, language string) Dictionary {
	d, _ := translate(ctx, tr, language)
	return d
}

func translate(ctx context.Context, tr Translator, language string) (Dictionary, bool) {
	base := DefaultTranslations()
	if IsDefaultLanguage(language) || tr == nil {
		return base, true
	}

	got, err := tr.TranslateLabels(ctx, language, DefaultTranslations())
	if err != nil {
		slog.Warn("label translation failed, using defaults", "language", language, "error", err)
		return base, false
	}
	for k, v := range got {
		if _, known := base[k]; known && strings.TrimSpace(v) != "" {
			base[k] = v
		}
	}
	return base, true
}
