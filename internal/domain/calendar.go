package domain

import (
	"fmt"
	"time"
)

// calendarLayout is the YYYY-MM-DD layout used for all day-granularity comparisons.
const calendarLayout = "2006-01-02"

// CalendarDate is a local calendar day formatted as YYYY-MM-DD.
// Day arithmetic is done on dates, never on wall-clock deltas, so DST shifts
// and intra-day re-entry can't double count.
type CalendarDate string

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) CalendarDate {
	return CalendarDate(t.Format(calendarLayout))
}

// ParseCalendarDate validates and returns a CalendarDate.
func ParseCalendarDate(s string) (CalendarDate, error) {
	if _, err := time.Parse(calendarLayout, s); err != nil {
		return "", fmt.Errorf("invalid calendar date %q: %w", s, err)
	}
	return CalendarDate(s), nil
}

// String implements fmt.Stringer.
func (d CalendarDate) String() string {
	return string(d)
}

// IsZero reports whether the date is unset.
func (d CalendarDate) IsZero() bool {
	return d == ""
}

// Time returns midnight UTC of the date. UTC keeps every day exactly 24h long.
func (d CalendarDate) Time() (time.Time, error) {
	return time.Parse(calendarLayout, string(d))
}

// DaysUntil returns the number of calendar days from d to other (negative if other is earlier).
func (d CalendarDate) DaysUntil(other CalendarDate) (int, error) {
	from, err := d.Time()
	if err != nil {
		return 0, err
	}
	to, err := other.Time()
	if err != nil {
		return 0, err
	}
	return int(to.Sub(from).Hours() / 24), nil
}

// WeekStart returns the Monday of d's ISO week.
func (d CalendarDate) WeekStart() (CalendarDate, error) {
	t, err := d.Time()
	if err != nil {
		return "", err
	}
	// Week starts on Monday (ISO standard)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday = 7
	}
	return DateOf(t.AddDate(0, 0, -(weekday - 1))), nil
}

// IsISOWeekStart reports whether d is a Monday.
func (d CalendarDate) IsISOWeekStart() bool {
	t, err := d.Time()
	if err != nil {
		return false
	}
	return t.Weekday() == time.Monday
}

// SameISOWeek reports whether d and other fall in the same ISO week.
func (d CalendarDate) SameISOWeek(other CalendarDate) bool {
	a, err := d.Time()
	if err != nil {
		return false
	}
	b, err := other.Time()
	if err != nil {
		return false
	}
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
