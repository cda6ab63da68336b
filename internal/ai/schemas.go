package ai

import (
	"maps"
	"slices"

	"github.com/sashabaranov/go-openai/jsonschema"

	"nexus-backend/internal/preferences"
)

var (
	loadEnum      = []string{"Low", "Medium", "High"}
	priorityEnum  = []string{"Low", "Medium", "High"}
	timeEnum      = []string{"Morning", "Afternoon", "Evening", "Night"}
	frequencyEnum = []string{"Once", "Daily", "Weekly", "Monthly", "Yearly"}
	effectEnum    = []string{"none", "snow", "rain", "embers", "matrix", "breathe"}
	actionEnum    = []string{string(ActionUI), string(ActionTask), string(ActionChat), string(ActionRoutine)}
)

func str() jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String}
}

func enum(values []string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Enum: values}
}

func stringList() jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}}
}

// taskProperties describes one generated task object.
func taskProperties() map[string]jsonschema.Definition {
	return map[string]jsonschema.Definition{
		"title":                  str(),
		"category":               str(),
		"estimated_time_minutes": {Type: jsonschema.Integer},
		"mental_load":            enum(loadEnum),
		"priority":               enum(priorityEnum),
		"preferred_time":         enum(timeEnum),
		"deadline":               {Type: jsonschema.String, Description: "YYYY-MM-DD format for specific date"},
		"subtasks":               stringList(),
		"notes":                  str(),
		"frequency":              enum(frequencyEnum),
	}
}

func parseTaskSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: taskProperties(),
		Required:   []string{"title", "category", "estimated_time_minutes", "mental_load", "priority", "preferred_time"},
	}
}

func interpretSchema() *jsonschema.Definition {
	item := taskProperties()
	item["scheduled_start"] = jsonschema.Definition{Type: jsonschema.String, Description: "HH:MM 24h format"}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"actionType": enum(actionEnum),
			"reply":      str(),
			"tasksToCreate": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type:       jsonschema.Object,
					Properties: item,
					Required:   []string{"title", "category", "estimated_time_minutes"},
				},
			},
			"uiChange": {
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"backgroundImage":      str(),
					"backgroundEffect":     enum(effectEnum),
					"accentColor":          str(),
					"blurIntensity":        {Type: jsonschema.Number},
					"transparency":         {Type: jsonschema.Number},
					"backgroundBrightness": {Type: jsonschema.Number},
				},
			},
		},
		Required: []string{"actionType", "reply"},
	}
}

func scheduleSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"rationale": str(),
			"tasks": {
				Type: jsonschema.Array,
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"id":              str(),
						"scheduled_start": str(),
					},
				},
			},
		},
	}
}

func journalSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"mood":       str(),
			"reflection": str(),
			"tags":       stringList(),
		},
		Required: []string{"mood", "reflection", "tags"},
	}
}

// translationSchema requires exactly the keys of base.
func translationSchema(base preferences.Dictionary) *jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(base))
	required := make([]string, 0, len(base))
	for _, k := range slices.Sorted(maps.Keys(base)) {
		props[k] = str()
		required = append(required, k)
	}
	return &jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           props,
		Required:             required,
		AdditionalProperties: false,
	}
}
