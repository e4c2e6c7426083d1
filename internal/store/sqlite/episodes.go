package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/store"
)

// CreateEpisode records a streak-breaking episode.
func (s *Store) CreateEpisode(ctx context.Context, ep *domain.Episode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_episodes (id, user_id, cause, notes, streak_seconds, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ep.ID,
		ep.UserID,
		ep.Cause,
		nullString(ep.Notes),
		domain.ClampSeconds(ep.StreakSeconds),
		formatTime(ep.OccurredAt),
	)
	if err != nil {
		return store.Unavailable("create episode", err)
	}
	return nil
}

// ListEpisodes returns a user's episodes, newest first.
func (s *Store) ListEpisodes(ctx context.Context, userID string, limit int) ([]*domain.Episode, error) {
	query := `
		SELECT id, user_id, cause, notes, streak_seconds, occurred_at
		FROM user_episodes WHERE user_id = ?
		ORDER BY occurred_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Unavailable("list episodes", err)
	}
	defer rows.Close()

	var result []*domain.Episode
	for rows.Next() {
		var (
			ep         domain.Episode
			notes      sql.NullString
			occurredAt string
		)
		if err := rows.Scan(&ep.ID, &ep.UserID, &ep.Cause, &notes, &ep.StreakSeconds, &occurredAt); err != nil {
			return nil, store.Unavailable("scan episode", err)
		}
		ep.Notes = notes.String
		if ep.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("parse occurred_at for episode %s: %w", ep.ID, err)
		}
		result = append(result, &ep)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list episodes", err)
	}
	return result, nil
}

// CountEpisodesByCause groups a user's episodes by cause tag.
func (s *Store) CountEpisodesByCause(ctx context.Context, userID string) ([]domain.CauseCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cause, COUNT(*) AS n
		FROM user_episodes WHERE user_id = ?
		GROUP BY cause
		ORDER BY n DESC, cause ASC`, userID)
	if err != nil {
		return nil, store.Unavailable("count episodes", err)
	}
	defer rows.Close()

	var result []domain.CauseCount
	for rows.Next() {
		var c domain.CauseCount
		if err := rows.Scan(&c.Cause, &c.Count); err != nil {
			return nil, store.Unavailable("scan cause count", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("count episodes", err)
	}
	return result, nil
}
