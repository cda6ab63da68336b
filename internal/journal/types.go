package journal

import "errors"

var (
	ErrNotFound     = errors.New("journal: entry not found")
	ErrEmptyContent = errors.New("journal: entry has no content")
	ErrNoAnalyzer   = errors.New("journal: analysis unavailable")
)

type Entry struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	Content      string   `json:"content"`
	Mood         string   `json:"mood,omitempty"`
	AIReflection string   `json:"ai_reflection,omitempty"`
	Tags         []string `json:"tags"`
	LastUpdated  int64    `json:"last_updated"`
}

func (e Entry) Clone() Entry {
	out := e
	out.Tags = append([]string{}, e.Tags...)
	return out
}

// Analysis is the model's reading of an entry.
type Analysis struct {
	Mood       string   `json:"mood"`
	Reflection string   `json:"reflection"`
	Tags       []string `json:"tags"`
}

type SaveEntryRequest struct {
	ID      string   `json:"id" validate:"max=64"`
	Date    string   `json:"date" validate:"omitempty,isodate"`
	Content string   `json:"content" validate:"max=100000"`
	Mood    string   `json:"mood" validate:"max=64"`
	Tags    []string `json:"tags" validate:"max=32,dive,max=64"`

	AIReflection string `json:"ai_reflection" validate:"max=4000"`
}

func (r SaveEntryRequest) Entry() Entry {
	return Entry{
		ID:           r.ID,
		Date:         r.Date,
		Content:      r.Content,
		Mood:         r.Mood,
		AIReflection: r.AIReflection,
		Tags:         r.Tags,
	}
}
