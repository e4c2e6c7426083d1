package domain

import "time"

// MaxStreakSeconds bounds every seconds-valued field: 100 years.
const MaxStreakSeconds int64 = 100 * 365 * 24 * 60 * 60

// maxStreakDuration is MaxStreakSeconds as a duration.
const maxStreakDuration = time.Duration(MaxStreakSeconds) * time.Second

// UserSession anchors the current clean streak for a device user.
//
// StartTime is the source of truth. CurrentStreakSeconds is a lossy cache of
// now-StartTime written back periodically and must never be used to derive
// elapsed time.
type UserSession struct {
	UserID               string       `json:"user_id"`
	StartTime            time.Time    `json:"start_time"`
	CurrentStreakSeconds int64        `json:"current_streak_seconds"`
	TotalStreakSeconds   int64        `json:"total_streak_seconds"` // Completed streaks only
	LastResetTime        time.Time    `json:"last_reset_time"`
	LastLoginDate        CalendarDate `json:"last_login_date,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`

	// Offline marks a synthetic in-memory session handed out while the remote store is unreachable.
	Offline bool `json:"offline"`
}

// NewUserSession creates a session whose streak starts now.
func NewUserSession(userID string, now time.Time) *UserSession {
	return &UserSession{
		UserID:        userID,
		StartTime:     now,
		LastResetTime: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewOfflineSession creates a synthetic session used when the remote store can't be reached.
func NewOfflineSession(userID string, now time.Time) *UserSession {
	s := NewUserSession(userID, now)
	s.Offline = true
	return s
}

// ElapsedSeconds returns max(0, floor((now - StartTime) / 1s)), capped at MaxStreakSeconds.
// A clock that moved backwards past StartTime yields 0 rather than a negative streak.
func (s *UserSession) ElapsedSeconds(now time.Time) int64 {
	elapsed := now.Sub(s.StartTime)
	if elapsed <= 0 {
		return 0
	}
	return ClampSeconds(int64(elapsed / time.Second))
}

// Restart begins a new streak at now and zeroes the cached counter.
// TotalStreakSeconds is left to the caller, which folds the completed streak in first.
func (s *UserSession) Restart(now time.Time) {
	s.StartTime = now
	s.LastResetTime = now
	s.CurrentStreakSeconds = 0
	s.UpdatedAt = now
}

// AddCompleted adds a finished streak to TotalStreakSeconds. Non-positive values are ignored.
func (s *UserSession) AddCompleted(seconds int64) {
	if seconds > 0 {
		s.TotalStreakSeconds = ClampSeconds(s.TotalStreakSeconds + seconds)
	}
}

// MoveStart rewrites the streak anchor after a user correction.
func (s *UserSession) MoveStart(start, now time.Time) {
	start = ClampStartTime(start, now)
	s.StartTime = start
	s.LastResetTime = start
	s.CurrentStreakSeconds = s.ElapsedSeconds(now)
	s.UpdatedAt = now
}

// ClampSeconds bounds v to [0, MaxStreakSeconds].
func ClampSeconds(v int64) int64 {
	return min(max(v, 0), MaxStreakSeconds)
}

// ClampStartTime bounds a streak anchor to [now-100y, now].
// Future anchors are pulled back to now so StartTime <= now always holds.
func ClampStartTime(t, now time.Time) time.Time {
	earliest := now.Add(-maxStreakDuration)
	if t.Before(earliest) {
		return earliest
	}
	if t.After(now) {
		return now
	}
	return t
}

// StreakBreakdown splits a streak into display units.
type StreakBreakdown struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// BreakdownSeconds converts elapsed seconds into days/hours/minutes/seconds.
func BreakdownSeconds(total int64) StreakBreakdown {
	total = ClampSeconds(total)
	return StreakBreakdown{
		Days:    total / 86400,
		Hours:   (total % 86400) / 3600,
		Minutes: (total % 3600) / 60,
		Seconds: total % 60,
	}
}
