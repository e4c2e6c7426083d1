package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesOwnLocation(t *testing.T) {
	tz := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, CalendarDate("2026-03-02"), DateOf(ts))
	assert.Equal(t, CalendarDate("2026-03-03"), DateOf(ts.In(tz)))
}

func TestParseCalendarDate(t *testing.T) {
	d, err := ParseCalendarDate("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", d.String())

	for _, bad := range []string{"", "2026-02-30", "02/03/2026", "2026-3-2"} {
		_, err := ParseCalendarDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestCalendarDate_DaysUntil(t *testing.T) {
	tests := []struct {
		from, to CalendarDate
		want     int
	}{
		{"2026-03-02", "2026-03-02", 0},
		{"2026-03-02", "2026-03-03", 1},
		{"2026-02-28", "2026-03-01", 1},
		// Spans the US DST change on 2026-03-08.
		{"2026-03-07", "2026-03-09", 2},
		{"2026-03-09", "2026-03-02", -7},
		{"2026-12-31", "2027-01-01", 1},
	}
	for _, tt := range tests {
		got, err := tt.from.DaysUntil(tt.to)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}

	_, err := CalendarDate("garbage").DaysUntil("2026-03-02")
	assert.Error(t, err)
}

func TestCalendarDate_WeekStart(t *testing.T) {
	tests := []struct {
		day, want CalendarDate
	}{
		{"2026-03-02", "2026-03-02"}, // Monday
		{"2026-03-05", "2026-03-02"},
		{"2026-03-08", "2026-03-02"}, // Sunday belongs to the previous Monday
		{"2027-01-01", "2026-12-28"},
	}
	for _, tt := range tests {
		got, err := tt.day.WeekStart()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, string(tt.day))
	}
}

func TestCalendarDate_IsISOWeekStart(t *testing.T) {
	assert.True(t, CalendarDate("2026-03-02").IsISOWeekStart())
	assert.False(t, CalendarDate("2026-03-08").IsISOWeekStart())
	assert.False(t, CalendarDate("").IsISOWeekStart())
}

func TestCalendarDate_SameISOWeek(t *testing.T) {
	assert.True(t, CalendarDate("2026-03-02").SameISOWeek("2026-03-08"))
	assert.False(t, CalendarDate("2026-03-08").SameISOWeek("2026-03-09"))
	// 2026 has 53 ISO weeks; New Year's Day 2027 is still in week 53.
	assert.True(t, CalendarDate("2026-12-31").SameISOWeek("2027-01-01"))
	// Same week number, different year.
	assert.False(t, CalendarDate("2026-03-02").SameISOWeek("2027-03-01"))
	assert.False(t, CalendarDate("").SameISOWeek("2026-03-02"))
}
