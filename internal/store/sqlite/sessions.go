package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/store"
)

// GetSession retrieves the streak session for a user.
// Returns nil, nil if the user has no session yet.
func (s *Store) GetSession(ctx context.Context, userID string) (*domain.UserSession, error) {
	var (
		sess                                   domain.UserSession
		startTime, lastReset, created, updated string
		lastLogin                              sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, start_time, current_streak_seconds, total_streak_seconds,
			last_reset_time, last_login_date, created_at, updated_at
		FROM user_sessions WHERE user_id = ?`, userID).Scan(
		&sess.UserID,
		&startTime,
		&sess.CurrentStreakSeconds,
		&sess.TotalStreakSeconds,
		&lastReset,
		&lastLogin,
		&created,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Unavailable("get session", err)
	}

	if sess.StartTime, err = parseTime(startTime); err != nil {
		return nil, fmt.Errorf("parse start_time for %s: %w", userID, err)
	}
	if sess.LastResetTime, err = parseTime(lastReset); err != nil {
		return nil, fmt.Errorf("parse last_reset_time for %s: %w", userID, err)
	}
	if sess.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", userID, err)
	}
	if sess.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parse updated_at for %s: %w", userID, err)
	}
	if lastLogin.Valid {
		sess.LastLoginDate = domain.CalendarDate(lastLogin.String)
	}

	return &sess, nil
}

// UpsertSession inserts or replaces the session row for session.UserID.
func (s *Store) UpsertSession(ctx context.Context, sess *domain.UserSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_sessions (
			user_id, start_time, current_streak_seconds, total_streak_seconds,
			last_reset_time, last_login_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			start_time = excluded.start_time,
			current_streak_seconds = excluded.current_streak_seconds,
			total_streak_seconds = excluded.total_streak_seconds,
			last_reset_time = excluded.last_reset_time,
			last_login_date = excluded.last_login_date,
			updated_at = excluded.updated_at`,
		sess.UserID,
		formatTime(sess.StartTime),
		domain.ClampSeconds(sess.CurrentStreakSeconds),
		domain.ClampSeconds(sess.TotalStreakSeconds),
		formatTime(sess.LastResetTime),
		nullDate(sess.LastLoginDate),
		formatTime(sess.CreatedAt),
		formatTime(sess.UpdatedAt),
	)
	if err != nil {
		return store.Unavailable("upsert session", err)
	}
	return nil
}
