package tasks

import (
	"time"

	"nexus-backend/internal/logicalday"
)

// CompletedOn derives the completion flag for a logical date.
// One-off tasks count as done if any date in the ledger is marked.
func CompletedOn(t Task, date string) bool {
	if t.Frequency.IsOnce() {
		return t.CompletionHistory.AnyDone()
	}
	return t.CompletionHistory.Done(date)
}

// VisibleOn reports whether t belongs on the today view for date.
func VisibleOn(t Task, date string, loc *time.Location) bool {
	if t.Deadline != "" {
		return t.Deadline == date
	}
	if !t.Frequency.IsOnce() {
		return createdOn(t, loc) <= date
	}
	return true
}

// TodayView returns the tasks visible on date with their derived completion.
func TodayView(tasks []Task, date string, loc *time.Location) []View {
	out := make([]View, 0, len(tasks))
	for _, t := range tasks {
		if !VisibleOn(t, date, loc) {
			continue
		}
		out = append(out, View{Task: t.Clone(), Completed: CompletedOn(t, date)})
	}
	return out
}

// TimelineView returns the tasks shown for an arbitrary query date relative to
// today, the true calendar date. Future dates only show deadline matches and
// Daily tasks; past and present dates show anything created on or before them.
// Completion here is the raw ledger entry for the query date.
func TimelineView(tasks []Task, query, today string, loc *time.Location) []View {
	out := make([]View, 0)
	for _, t := range tasks {
		if !onTimeline(t, query, today, loc) {
			continue
		}
		out = append(out, View{Task: t.Clone(), Completed: t.CompletionHistory.Done(query)})
	}
	return out
}

func onTimeline(t Task, query, today string, loc *time.Location) bool {
	if t.Deadline == query {
		return true
	}
	created := createdOn(t, loc)
	if t.Frequency == FrequencyDaily {
		return created <= query
	}
	// TODO: weekly/monthly/yearly tasks never show on future dates; decide
	// whether they should follow the Daily rule before extending recurrence.
	if query <= today {
		return created <= query
	}
	return false
}

func createdOn(t Task, loc *time.Location) string {
	return logicalday.DatePortion(t.CreatedAt, loc)
}

// Agenda groups a today view into pending buckets by preferred time plus the completed list.
type Agenda struct {
	Date      string `json:"date"`
	Morning   []View `json:"morning"`
	Afternoon []View `json:"afternoon"`
	Evening   []View `json:"evening"`
	Night     []View `json:"night"`
	Completed []View `json:"completed"`
}

func BuildAgenda(date string, views []View) Agenda {
	a := Agenda{
		Date:      date,
		Morning:   []View{},
		Afternoon: []View{},
		Evening:   []View{},
		Night:     []View{},
		Completed: []View{},
	}
	for _, v := range views {
		if v.Completed {
			a.Completed = append(a.Completed, v)
			continue
		}
		switch v.PreferredTime {
		case Afternoon:
			a.Afternoon = append(a.Afternoon, v)
		case Evening:
			a.Evening = append(a.Evening, v)
		case Night:
			a.Night = append(a.Night, v)
		default:
			a.Morning = append(a.Morning, v)
		}
	}
	return a
}

// Summary is the analytics panel over a today view.
type Summary struct {
	Date             string `json:"date"`
	Total            int    `json:"total"`
	Completed        int    `json:"completed"`
	CompletionRate   int    `json:"completion_rate"`
	FocusMinutes     int    `json:"focus_minutes"`
	HighLoadTotal    int    `json:"high_load_total"`
	HighLoadComplete int    `json:"high_load_completed"`
}

func Summarize(date string, views []View) Summary {
	s := Summary{Date: date, Total: len(views)}
	for _, v := range views {
		high := v.MentalLoad == MentalLoadHigh
		if high {
			s.HighLoadTotal++
		}
		if !v.Completed {
			continue
		}
		s.Completed++
		s.FocusMinutes += v.EstimatedTimeMinutes
		if high {
			s.HighLoadComplete++
		}
	}
	if s.Total > 0 {
		s.CompletionRate = (s.Completed*100 + s.Total/2) / s.Total
	}
	return s
}
