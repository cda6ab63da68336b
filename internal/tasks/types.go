package tasks

// SaveTaskRequest is the body of POST /tasks. An empty or "new" id creates a
// task. Absent fields leave the stored value alone.
type SaveTaskRequest struct {
	ID                   string      `json:"id"`
	Title                *string     `json:"title" validate:"omitempty,max=200"`
	Category             *string     `json:"category" validate:"omitempty,max=100"`
	EstimatedTimeMinutes *int        `json:"estimated_time_minutes" validate:"omitempty,gte=0,lte=1440"`
	MentalLoad           *MentalLoad `json:"mental_load" validate:"omitempty,oneof=Low Medium High"`
	Priority             *Priority   `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	PreferredTime        *TimeOfDay  `json:"preferred_time" validate:"omitempty,oneof=Morning Afternoon Evening Night"`
	Deadline             *string     `json:"deadline" validate:"omitempty,isodate"`
	ScheduledStart       *string     `json:"scheduled_start" validate:"omitempty,clock"`
	Subtasks             []string    `json:"subtasks" validate:"omitempty,max=50,dive,max=500"`
	Notes                *string     `json:"notes" validate:"omitempty,max=1000"`
	IsAlarmEnabled       *bool       `json:"is_alarm_enabled"`
	AlarmTime            *string     `json:"alarm_time" validate:"omitempty,clock"`
	AlarmSound           *string     `json:"alarm_sound"`
	AlarmSoundName       *string     `json:"alarm_sound_name" validate:"omitempty,max=200"`
	CompletionHistory    Ledger      `json:"completion_history"`
	Frequency            *Frequency  `json:"frequency" validate:"omitempty,oneof=Once Daily Weekly Monthly Yearly"`
}

// Apply writes the fields present in r onto base.
func (r SaveTaskRequest) Apply(base Task) Task {
	set(&base.Title, r.Title)
	set(&base.Category, r.Category)
	set(&base.EstimatedTimeMinutes, r.EstimatedTimeMinutes)
	set(&base.MentalLoad, r.MentalLoad)
	set(&base.Priority, r.Priority)
	set(&base.PreferredTime, r.PreferredTime)
	set(&base.Deadline, r.Deadline)
	set(&base.ScheduledStart, r.ScheduledStart)
	set(&base.Notes, r.Notes)
	set(&base.IsAlarmEnabled, r.IsAlarmEnabled)
	set(&base.AlarmTime, r.AlarmTime)
	set(&base.AlarmSound, r.AlarmSound)
	set(&base.AlarmSoundName, r.AlarmSoundName)
	set(&base.Frequency, r.Frequency)
	if r.Subtasks != nil {
		base.Subtasks = append([]string(nil), r.Subtasks...)
	}
	if r.CompletionHistory != nil {
		base.CompletionHistory = r.CompletionHistory.Clone()
	}
	return base
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

type TodayResponse struct {
	Agenda
	Tasks []View `json:"tasks"`
}

type TimelineResponse struct {
	Date  string `json:"date"`
	Today string `json:"today"`
	Tasks []View `json:"tasks"`
}
