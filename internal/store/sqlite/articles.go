package sqlite

import (
	"context"
	"time"

	"github.com/rewireapp/rewire-server/internal/store"
)

// MarkArticleRead records that a user read an article. Repeat reads are ignored.
func (s *Store) MarkArticleRead(ctx context.Context, userID, articleID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_articles_read (user_id, article_id, read_at)
		VALUES (?, ?, ?)`,
		userID, articleID, formatTime(at),
	)
	if err != nil {
		return false, store.Unavailable("mark article read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.Unavailable("mark article read", err)
	}
	return n > 0, nil
}

// CountArticlesRead returns how many distinct articles a user has read.
func (s *Store) CountArticlesRead(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_articles_read WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, store.Unavailable("count articles read", err)
	}
	return n, nil
}
