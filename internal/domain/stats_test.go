package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStats_ObserveStreak(t *testing.T) {
	s := NewUserStats("u")

	assert.True(t, s.ObserveStreak(300))
	assert.False(t, s.ObserveStreak(200))
	assert.False(t, s.ObserveStreak(300))
	assert.True(t, s.ObserveStreak(301))
	assert.Equal(t, int64(301), s.LongestStreakSeconds)

	assert.False(t, s.ObserveStreak(-1))
}

func TestUserStats_RecordLogin(t *testing.T) {
	s := NewUserStats("u")

	steps := []struct {
		day             CalendarDate
		wantCounted     bool
		wantConsecutive int
		wantTotal       int
	}{
		{"2026-03-02", true, 1, 1},
		{"2026-03-02", false, 1, 1},
		{"2026-03-03", true, 2, 2},
		{"2026-03-04", true, 3, 3},
		{"2026-03-07", true, 1, 4}, // gap resets the run
		{"2026-03-05", true, 1, 5}, // clock moved backwards
	}
	for _, step := range steps {
		assert.Equal(t, step.wantCounted, s.RecordLogin(step.day), string(step.day))
		assert.Equal(t, step.wantConsecutive, s.ConsecutiveDays, string(step.day))
		assert.Equal(t, step.wantTotal, s.TotalDaysLoggedIn, string(step.day))
		assert.Equal(t, step.day, s.LastLoginDate)
	}
}

func TestUserStats_RecordDayOutcome(t *testing.T) {
	s := NewUserStats("u")

	steps := []struct {
		name       string
		day        CalendarDate
		hadEpisode bool
		want       int
	}{
		{"first clean monday", "2026-03-02", false, 1},
		{"same day counted once", "2026-03-02", false, 1},
		{"clean tuesday", "2026-03-03", false, 2},
		{"mid-week episode keeps count", "2026-03-04", true, 2},
		{"clean thursday", "2026-03-05", false, 3},
		{"new week with episode", "2026-03-09", true, 0},
		{"episode on monday again", "2026-03-09", true, 0},
		{"clean tuesday after", "2026-03-10", false, 1},
		{"new week clean", "2026-03-16", false, 1},
	}
	for _, step := range steps {
		s.RecordDayOutcome(step.day, step.hadEpisode)
		assert.Equal(t, step.want, s.SuccessfulDaysThisWeek, step.name)
	}
}

func TestUserStats_RecordDayOutcome_Changed(t *testing.T) {
	s := NewUserStats("u")

	assert.True(t, s.RecordDayOutcome("2026-03-02", false))
	assert.False(t, s.RecordDayOutcome("2026-03-02", false))
}

func TestUserStats_RecordDayOutcome_Capped(t *testing.T) {
	s := &UserStats{SuccessfulDaysThisWeek: 7, LastOutcomeDate: "2026-03-07"}

	s.RecordDayOutcome("2026-03-08", false)
	assert.Equal(t, 7, s.SuccessfulDaysThisWeek)
}

func TestUserStats_RecordDayOutcome_EpisodeAfterCleanStart(t *testing.T) {
	s := NewUserStats("u")

	s.RecordDayOutcome("2026-03-02", false)
	s.RecordDayOutcome("2026-03-03", false)
	require.Equal(t, 2, s.SuccessfulDaysThisWeek)

	// Tuesday was counted at rollover, then an episode happened.
	assert.True(t, s.RecordDayOutcome("2026-03-03", true))
	assert.Equal(t, 1, s.SuccessfulDaysThisWeek)
	assert.True(t, s.LastOutcomeEpisode)

	// Neither a second episode nor a late clean evaluation counts the day again.
	assert.False(t, s.RecordDayOutcome("2026-03-03", true))
	assert.False(t, s.RecordDayOutcome("2026-03-03", false))
	assert.Equal(t, 1, s.SuccessfulDaysThisWeek)

	s.RecordDayOutcome("2026-03-04", false)
	assert.Equal(t, 2, s.SuccessfulDaysThisWeek)
	assert.False(t, s.LastOutcomeEpisode)
}

func TestUserStats_RecordDayOutcome_MondayEpisodeAfterCleanStart(t *testing.T) {
	s := NewUserStats("u")

	s.RecordDayOutcome("2026-03-09", false)
	s.RecordDayOutcome("2026-03-09", true)
	assert.Zero(t, s.SuccessfulDaysThisWeek)
}

func TestUserStats_AddCompleted(t *testing.T) {
	s := NewUserStats("u")

	assert.True(t, s.AddCompleted(100))
	assert.False(t, s.AddCompleted(0))
	assert.False(t, s.AddCompleted(-3))
	assert.Equal(t, int64(100), s.TotalStreakSeconds)
}

func TestUserStats_ApplyReset(t *testing.T) {
	s := NewUserStats("u")
	s.CurrentStreakSeconds = 86400
	s.LongestStreakSeconds = 3600

	s.ApplyReset(86400)

	assert.Equal(t, int64(86400), s.LongestStreakSeconds)
	assert.Equal(t, int64(86400), s.TotalStreakSeconds)
	assert.Zero(t, s.CurrentStreakSeconds)
	assert.Equal(t, 1, s.TotalEpisodes)

	s.ApplyReset(60)
	assert.Equal(t, int64(86400), s.LongestStreakSeconds)
	assert.Equal(t, int64(86460), s.TotalStreakSeconds)
	assert.Equal(t, 2, s.TotalEpisodes)
}
