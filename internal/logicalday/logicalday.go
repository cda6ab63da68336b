// Package logicalday resolves the "productivity day" used across the planner.
// A logical day runs from 04:00 to 03:59 local time, so late-night work still
// counts toward the day it started in.
package logicalday

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DateLayout is the calendar-date format used for ledger keys, deadlines and journal dates.
	DateLayout = "2006-01-02"

	// BoundaryHour is the local hour at which a new logical day begins.
	BoundaryHour = 4

	// EpochDate stands in for a missing creation date; it sorts before every real date.
	EpochDate = "1970-01-01"
)

var ErrInvalidDate = errors.New("logicalday: invalid date")

// ResolveLogicalDate returns the logical date of instant in its own location.
func ResolveLogicalDate(instant time.Time) string {
	y, m, d := instant.Date()
	if instant.Hour() < BoundaryHour {
		return time.Date(y, m, d-1, 12, 0, 0, 0, instant.Location()).Format(DateLayout)
	}
	return time.Date(y, m, d, 12, 0, 0, 0, instant.Location()).Format(DateLayout)
}

// CalendarDate returns the plain (midnight-aligned) calendar date of instant.
func CalendarDate(instant time.Time) string {
	return instant.Format(DateLayout)
}

// DatePortion returns the calendar date of a creation timestamp, or EpochDate when unset.
func DatePortion(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return EpochDate
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

// Parse validates a YYYY-MM-DD string.
func Parse(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// Weekday returns the English weekday name of a YYYY-MM-DD date.
func Weekday(date string) (string, error) {
	t, err := Parse(date)
	if err != nil {
		return "", err
	}
	return t.Weekday().String(), nil
}

// Clock supplies the current instant; tests substitute a fixed one.
type Clock func() time.Time

// Today resolves the logical date for the clock's current instant.
func (c Clock) Today() string {
	return ResolveLogicalDate(c.now())
}

// Now returns the clock's current instant.
func (c Clock) Now() time.Time {
	return c.now()
}

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
