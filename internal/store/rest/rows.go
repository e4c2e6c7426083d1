package rest

import (
	"time"

	"github.com/rewireapp/rewire-server/internal/domain"
)

// Table names.
const (
	tableSessions     = "user_sessions"
	tableStats        = "user_stats"
	tableAchievements = "user_achievements"
	tableEpisodes     = "user_episodes"
	tableArticlesRead = "user_articles_read"
)

// Wire rows mirror the table columns. Nullable columns are pointers so that
// clearing a value is sent as an explicit null.

type sessionRow struct {
	UserID               string    `json:"user_id"`
	StartTime            time.Time `json:"start_time"`
	CurrentStreakSeconds int64     `json:"current_streak_seconds"`
	TotalStreakSeconds   int64     `json:"total_streak_seconds"`
	LastResetTime        time.Time `json:"last_reset_time"`
	LastLoginDate        *string   `json:"last_login_date"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type statsRow struct {
	UserID                 string    `json:"user_id"`
	TotalEpisodes          int       `json:"total_episodes"`
	LongestStreakSeconds   int64     `json:"longest_streak_seconds"`
	CurrentStreakSeconds   int64     `json:"current_streak_seconds"`
	TotalStreakSeconds     int64     `json:"total_streak_seconds"`
	ConsecutiveDays        int       `json:"consecutive_days"`
	LastLoginDate          *string   `json:"last_login_date"`
	TotalDaysLoggedIn      int       `json:"total_days_logged_in"`
	SuccessfulDaysThisWeek int       `json:"successful_days_this_week"`
	LastOutcomeDate        *string   `json:"last_outcome_date"`
	LastOutcomeEpisode     bool      `json:"last_outcome_episode"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type achievementRow struct {
	UserID        string     `json:"user_id"`
	AchievementID string     `json:"achievement_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Rarity        string     `json:"rarity"`
	Progress      int        `json:"progress"`
	MaxProgress   int        `json:"max_progress"`
	IsUnlocked    bool       `json:"is_unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type episodeRow struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Cause         string    `json:"cause"`
	Notes         *string   `json:"notes"`
	StreakSeconds int64     `json:"streak_seconds"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type causeRow struct {
	Cause string `json:"cause"`
}

type articleReadRow struct {
	UserID    string    `json:"user_id"`
	ArticleID string    `json:"article_id"`
	ReadAt    time.Time `json:"read_at"`
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(d domain.CalendarDate) *string {
	return optionalString(d.String())
}

func dateOf(s *string) domain.CalendarDate {
	if s == nil {
		return ""
	}
	return domain.CalendarDate(*s)
}

func stringOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newSessionRow(s *domain.UserSession) sessionRow {
	return sessionRow{
		UserID:               s.UserID,
		StartTime:            s.StartTime.UTC(),
		CurrentStreakSeconds: domain.ClampSeconds(s.CurrentStreakSeconds),
		TotalStreakSeconds:   domain.ClampSeconds(s.TotalStreakSeconds),
		LastResetTime:        s.LastResetTime.UTC(),
		LastLoginDate:        optionalDate(s.LastLoginDate),
		CreatedAt:            s.CreatedAt.UTC(),
		UpdatedAt:            s.UpdatedAt.UTC(),
	}
}

func (r sessionRow) toDomain() *domain.UserSession {
	return &domain.UserSession{
		UserID:               r.UserID,
		StartTime:            r.StartTime,
		CurrentStreakSeconds: r.CurrentStreakSeconds,
		TotalStreakSeconds:   r.TotalStreakSeconds,
		LastResetTime:        r.LastResetTime,
		LastLoginDate:        dateOf(r.LastLoginDate),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func newStatsRow(s *domain.UserStats) statsRow {
	return statsRow{
		UserID:                 s.UserID,
		TotalEpisodes:          s.TotalEpisodes,
		LongestStreakSeconds:   domain.ClampSeconds(s.LongestStreakSeconds),
		CurrentStreakSeconds:   domain.ClampSeconds(s.CurrentStreakSeconds),
		TotalStreakSeconds:     domain.ClampSeconds(s.TotalStreakSeconds),
		ConsecutiveDays:        s.ConsecutiveDays,
		LastLoginDate:          optionalDate(s.LastLoginDate),
		TotalDaysLoggedIn:      s.TotalDaysLoggedIn,
		SuccessfulDaysThisWeek: s.SuccessfulDaysThisWeek,
		LastOutcomeDate:        optionalDate(s.LastOutcomeDate),
		LastOutcomeEpisode:     s.LastOutcomeEpisode,
		UpdatedAt:              s.UpdatedAt.UTC(),
	}
}

func (r statsRow) toDomain() *domain.UserStats {
	return &domain.UserStats{
		UserID:                 r.UserID,
		TotalEpisodes:          r.TotalEpisodes,
		LongestStreakSeconds:   r.LongestStreakSeconds,
		CurrentStreakSeconds:   r.CurrentStreakSeconds,
		TotalStreakSeconds:     r.TotalStreakSeconds,
		ConsecutiveDays:        r.ConsecutiveDays,
		LastLoginDate:          dateOf(r.LastLoginDate),
		TotalDaysLoggedIn:      r.TotalDaysLoggedIn,
		SuccessfulDaysThisWeek: r.SuccessfulDaysThisWeek,
		LastOutcomeDate:        dateOf(r.LastOutcomeDate),
		LastOutcomeEpisode:     r.LastOutcomeEpisode,
		UpdatedAt:              r.UpdatedAt,
	}
}

func newAchievementRow(userID string, a domain.Achievement, now time.Time) achievementRow {
	return achievementRow{
		UserID:        userID,
		AchievementID: a.ID,
		Title:         a.Title,
		Description:   a.Description,
		Category:      string(a.Category),
		Rarity:        string(a.Rarity),
		Progress:      a.Progress,
		MaxProgress:   a.MaxProgress,
		IsUnlocked:    a.IsUnlocked,
		UnlockedAt:    a.UnlockedAt,
		UpdatedAt:     now,
	}
}

func (r achievementRow) toDomain() domain.Achievement {
	return domain.Achievement{
		ID:          r.AchievementID,
		Title:       r.Title,
		Description: r.Description,
		Category:    domain.AchievementCategory(r.Category),
		Rarity:      domain.AchievementRarity(r.Rarity),
		Progress:    r.Progress,
		MaxProgress: r.MaxProgress,
		IsUnlocked:  r.IsUnlocked,
		UnlockedAt:  r.UnlockedAt,
	}
}

func newEpisodeRow(e *domain.Episode) episodeRow {
	return episodeRow{
		ID:            e.ID,
		UserID:        e.UserID,
		Cause:         e.Cause,
		Notes:         optionalString(e.Notes),
		StreakSeconds: domain.ClampSeconds(e.StreakSeconds),
		OccurredAt:    e.OccurredAt.UTC(),
	}
}

func (r episodeRow) toDomain() *domain.Episode {
	return &domain.Episode{
		ID:            r.ID,
		UserID:        r.UserID,
		Cause:         r.Cause,
		Notes:         stringOf(r.Notes),
		StreakSeconds: r.StreakSeconds,
		OccurredAt:    r.OccurredAt,
	}
}
