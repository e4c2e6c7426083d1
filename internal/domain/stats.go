package domain

import "time"

// maxSuccessfulDaysPerWeek caps the weekly success counter.
const maxSuccessfulDaysPerWeek = 7

// UserStats holds the auxiliary counters that outlive individual streaks.
type UserStats struct {
	UserID                 string       `json:"user_id"`
	TotalEpisodes          int          `json:"total_episodes"`
	LongestStreakSeconds   int64        `json:"longest_streak_seconds"` // Monotonically non-decreasing
	CurrentStreakSeconds   int64        `json:"current_streak_seconds"`
	TotalStreakSeconds     int64        `json:"total_streak_seconds"`
	ConsecutiveDays        int          `json:"consecutive_days"`
	LastLoginDate          CalendarDate `json:"last_login_date,omitempty"`
	TotalDaysLoggedIn      int          `json:"total_days_logged_in"`
	SuccessfulDaysThisWeek int          `json:"successful_days_this_week"`
	LastOutcomeDate        CalendarDate `json:"last_outcome_date,omitempty"`
	LastOutcomeEpisode     bool         `json:"last_outcome_episode"` // LastOutcomeDate had an episode
	UpdatedAt              time.Time    `json:"updated_at"`
}

// NewUserStats creates zeroed stats for a user.
func NewUserStats(userID string) *UserStats {
	return &UserStats{UserID: userID}
}

// ObserveStreak raises LongestStreakSeconds to seconds if it is larger.
// Returns true if the record changed.
func (s *UserStats) ObserveStreak(seconds int64) bool {
	seconds = ClampSeconds(seconds)
	if seconds <= s.LongestStreakSeconds {
		return false
	}
	s.LongestStreakSeconds = seconds
	return true
}

// RecordLogin applies daily-login bookkeeping for today.
// Returns false when today was already counted.
func (s *UserStats) RecordLogin(today CalendarDate) bool {
	if s.LastLoginDate == today {
		return false
	}

	if s.LastLoginDate.IsZero() {
		s.ConsecutiveDays = 1
	} else {
		delta, err := s.LastLoginDate.DaysUntil(today)
		switch {
		case err != nil, delta <= 0:
			// Unparseable history or a clock that moved backwards: start over.
			s.ConsecutiveDays = 1
		case delta == 1:
			s.ConsecutiveDays++
		default:
			s.ConsecutiveDays = 1
		}
	}

	s.TotalDaysLoggedIn++
	s.LastLoginDate = today
	return true
}

// RecordDayOutcome updates SuccessfulDaysThisWeek for today.
//
// The first evaluation in a new ISO week resets the counter to 0 (episode) or
// 1 (clean). Within a week a clean day adds one, at most once per day and
// capped at 7. A day that was already counted clean is taken back off the
// counter when an episode is recorded later that day.
func (s *UserStats) RecordDayOutcome(today CalendarDate, hadEpisode bool) bool {
	before := s.SuccessfulDaysThisWeek
	last, lastEpisode := s.LastOutcomeDate, s.LastOutcomeEpisode

	switch {
	case last.IsZero() || !last.SameISOWeek(today):
		if hadEpisode {
			s.SuccessfulDaysThisWeek = 0
		} else {
			s.SuccessfulDaysThisWeek = 1
		}
	case last == today:
		if hadEpisode && !lastEpisode {
			s.SuccessfulDaysThisWeek = max(s.SuccessfulDaysThisWeek-1, 0)
		}
	case !hadEpisode:
		s.SuccessfulDaysThisWeek = min(s.SuccessfulDaysThisWeek+1, maxSuccessfulDaysPerWeek)
	}

	s.LastOutcomeDate = today
	s.LastOutcomeEpisode = hadEpisode || (last == today && lastEpisode)

	return before != s.SuccessfulDaysThisWeek || last != today || lastEpisode != s.LastOutcomeEpisode
}

// AddCompleted adds a finished streak to TotalStreakSeconds. Non-positive values are ignored.
func (s *UserStats) AddCompleted(seconds int64) bool {
	if seconds <= 0 {
		return false
	}
	s.TotalStreakSeconds = ClampSeconds(s.TotalStreakSeconds + seconds)
	return true
}

// ApplyReset folds a completed streak into the stats and records an episode.
func (s *UserStats) ApplyReset(completedSeconds int64) {
	s.ObserveStreak(completedSeconds)
	s.AddCompleted(completedSeconds)
	s.CurrentStreakSeconds = 0
	s.TotalEpisodes++
}
