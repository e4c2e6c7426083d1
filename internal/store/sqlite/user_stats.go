package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/store"
)

// GetStats retrieves the auxiliary counters for a user.
// Returns nil, nil if no stats exist yet.
func (s *Store) GetStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	var (
		stats                  domain.UserStats
		lastLogin, lastOutcome sql.NullString
		lastOutcomeEpisode     int
		updatedAt              string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, total_episodes, longest_streak_seconds, current_streak_seconds,
			total_streak_seconds, consecutive_days, last_login_date, total_days_logged_in,
			successful_days_this_week, last_outcome_date, last_outcome_episode, updated_at
		FROM user_stats WHERE user_id = ?`, userID).Scan(
		&stats.UserID,
		&stats.TotalEpisodes,
		&stats.LongestStreakSeconds,
		&stats.CurrentStreakSeconds,
		&stats.TotalStreakSeconds,
		&stats.ConsecutiveDays,
		&lastLogin,
		&stats.TotalDaysLoggedIn,
		&stats.SuccessfulDaysThisWeek,
		&lastOutcome,
		&lastOutcomeEpisode,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Unavailable("get stats", err)
	}

	stats.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse stats updated_at for %s: %w", userID, err)
	}
	if lastLogin.Valid {
		stats.LastLoginDate = domain.CalendarDate(lastLogin.String)
	}
	if lastOutcome.Valid {
		stats.LastOutcomeDate = domain.CalendarDate(lastOutcome.String)
	}
	stats.LastOutcomeEpisode = lastOutcomeEpisode != 0

	return &stats, nil
}

// UpsertStats writes the full stats row.
// longest_streak_seconds never decreases, even if a stale writer sends a smaller value.
func (s *Store) UpsertStats(ctx context.Context, stats *domain.UserStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (
			user_id, total_episodes, longest_streak_seconds, current_streak_seconds,
			total_streak_seconds, consecutive_days, last_login_date, total_days_logged_in,
			successful_days_this_week, last_outcome_date, last_outcome_episode, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_episodes = excluded.total_episodes,
			longest_streak_seconds = MAX(longest_streak_seconds, excluded.longest_streak_seconds),
			current_streak_seconds = excluded.current_streak_seconds,
			total_streak_seconds = excluded.total_streak_seconds,
			consecutive_days = excluded.consecutive_days,
			last_login_date = excluded.last_login_date,
			total_days_logged_in = excluded.total_days_logged_in,
			successful_days_this_week = excluded.successful_days_this_week,
			last_outcome_date = excluded.last_outcome_date,
			last_outcome_episode = excluded.last_outcome_episode,
			updated_at = excluded.updated_at`,
		stats.UserID,
		stats.TotalEpisodes,
		domain.ClampSeconds(stats.LongestStreakSeconds),
		domain.ClampSeconds(stats.CurrentStreakSeconds),
		domain.ClampSeconds(stats.TotalStreakSeconds),
		stats.ConsecutiveDays,
		nullDate(stats.LastLoginDate),
		stats.TotalDaysLoggedIn,
		stats.SuccessfulDaysThisWeek,
		nullDate(stats.LastOutcomeDate),
		stats.LastOutcomeEpisode,
		formatTime(stats.UpdatedAt),
	)
	if err != nil {
		return store.Unavailable("upsert stats", err)
	}
	return nil
}
