package logicalday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLogicalDate(t *testing.T) {
	loc := time.FixedZone("test", 3*3600)
	tests := []struct {
		name    string
		instant time.Time
		want    string
	}{
		{"before boundary rolls back", time.Date(2024, 5, 10, 2, 0, 0, 0, loc), "2024-05-09"},
		{"at boundary stays", time.Date(2024, 5, 10, 4, 0, 0, 0, loc), "2024-05-10"},
		{"one minute before boundary", time.Date(2024, 5, 10, 3, 59, 0, 0, loc), "2024-05-09"},
		{"midnight", time.Date(2024, 5, 10, 0, 0, 0, 0, loc), "2024-05-09"},
		{"late evening", time.Date(2024, 5, 10, 23, 30, 0, 0, loc), "2024-05-10"},
		{"crosses month", time.Date(2024, 3, 1, 1, 0, 0, 0, loc), "2024-02-29"},
		{"crosses year", time.Date(2025, 1, 1, 3, 0, 0, 0, loc), "2024-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLogicalDate(tt.instant))
		})
	}
}

func TestResolveLogicalDateUsesInstantLocation(t *testing.T) {
	utc := time.Date(2024, 5, 10, 1, 0, 0, 0, time.UTC)
	east := utc.In(time.FixedZone("east", 5*3600))

	assert.Equal(t, "2024-05-09", ResolveLogicalDate(utc))
	assert.Equal(t, "2024-05-10", ResolveLogicalDate(east))
}

func TestDatePortion(t *testing.T) {
	assert.Equal(t, EpochDate, DatePortion(time.Time{}, time.UTC))
	created := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-01", DatePortion(created, time.UTC))
	assert.Equal(t, "2024-05-02", DatePortion(created, time.FixedZone("east", 2*3600)))
}

func TestWeekday(t *testing.T) {
	name, err := Weekday("2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, "Friday", name)

	_, err = Weekday("10/05/2024")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestClockToday(t *testing.T) {
	clock := FixedClock(time.Date(2024, 5, 10, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-05-09", clock.Today())

	var zero Clock
	assert.NotEmpty(t, zero.Today())
}
