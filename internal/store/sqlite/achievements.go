package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/store"
)

// ListAchievements returns the persisted achievement rows for a user, ordered by id.
// The catalog decides the display order; callers merge with domain.MergeCatalog.
func (s *Store) ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT achievement_id, title, description, category, rarity,
			progress, max_progress, is_unlocked, unlocked_at
		FROM user_achievements WHERE user_id = ?
		ORDER BY achievement_id`, userID)
	if err != nil {
		return nil, store.Unavailable("list achievements", err)
	}
	defer rows.Close()

	var result []domain.Achievement
	for rows.Next() {
		var (
			a          domain.Achievement
			unlocked   int
			unlockedAt sql.NullString
		)
		if err := rows.Scan(
			&a.ID,
			&a.Title,
			&a.Description,
			&a.Category,
			&a.Rarity,
			&a.Progress,
			&a.MaxProgress,
			&unlocked,
			&unlockedAt,
		); err != nil {
			return nil, store.Unavailable("scan achievement", err)
		}
		a.IsUnlocked = unlocked != 0
		if a.UnlockedAt, err = parseNullableTime(unlockedAt); err != nil {
			return nil, fmt.Errorf("parse unlocked_at for %s: %w", a.ID, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list achievements", err)
	}
	return result, nil
}

// UpsertAchievements writes every achievement for a user in one transaction.
func (s *Store) UpsertAchievements(ctx context.Context, userID string, achievements []domain.Achievement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("begin achievements tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_achievements (
			user_id, achievement_id, title, description, category, rarity,
			progress, max_progress, is_unlocked, unlocked_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, achievement_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			rarity = excluded.rarity,
			progress = excluded.progress,
			max_progress = excluded.max_progress,
			is_unlocked = excluded.is_unlocked,
			unlocked_at = excluded.unlocked_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return store.Unavailable("prepare achievements upsert", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, a := range achievements {
		if _, err := stmt.ExecContext(ctx,
			userID,
			a.ID,
			a.Title,
			a.Description,
			string(a.Category),
			string(a.Rarity),
			a.Progress,
			a.MaxProgress,
			boolToInt(a.IsUnlocked),
			nullTimeString(a.UnlockedAt),
			now,
		); err != nil {
			return store.Unavailable("upsert achievement "+a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.Unavailable("commit achievements", err)
	}
	return nil
}
