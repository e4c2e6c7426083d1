package rest

import (
	"cmp"
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rewireapp/rewire-server/internal/domain"
)

var (
	preferMerge  = []string{"resolution=merge-duplicates", "return=minimal"}
	preferInsert = []string{"return=minimal"}
)

func byUser(userID string) url.Values {
	q := url.Values{}
	q.Set("user_id", eq(userID))
	return q
}

// GetSession retrieves the streak session for a user. Returns nil, nil if absent.
func (c *Client) GetSession(ctx context.Context, userID string) (*domain.UserSession, error) {
	q := byUser(userID)
	q.Set("select", "*")
	data, _, err := c.do(ctx, request{op: "get session", method: http.MethodGet, table: tableSessions, query: q})
	if err != nil {
		return nil, err
	}

	rows, err := decode[[]sessionRow]("get session", data)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0].toDomain(), nil
}

// UpsertSession inserts or merges the session row on user_id.
func (c *Client) UpsertSession(ctx context.Context, s *domain.UserSession) error {
	q := url.Values{}
	q.Set("on_conflict", "user_id")
	_, _, err := c.do(ctx, request{
		op:     "upsert session",
		method: http.MethodPost,
		table:  tableSessions,
		query:  q,
		prefer: preferMerge,
		body:   newSessionRow(s),
	})
	return err
}

// GetStats retrieves the stats row for a user. Returns nil, nil if absent.
func (c *Client) GetStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	q := byUser(userID)
	q.Set("select", "*")
	data, _, err := c.do(ctx, request{op: "get stats", method: http.MethodGet, table: tableStats, query: q})
	if err != nil {
		return nil, err
	}

	rows, err := decode[[]statsRow]("get stats", data)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0].toDomain(), nil
}

// UpsertStats inserts or merges the stats row on user_id.
func (c *Client) UpsertStats(ctx context.Context, s *domain.UserStats) error {
	q := url.Values{}
	q.Set("on_conflict", "user_id")
	_, _, err := c.do(ctx, request{
		op:     "upsert stats",
		method: http.MethodPost,
		table:  tableStats,
		query:  q,
		prefer: preferMerge,
		body:   newStatsRow(s),
	})
	return err
}

// ListAchievements returns the persisted achievement rows for a user.
func (c *Client) ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	q := byUser(userID)
	q.Set("select", "*")
	q.Set("order", "achievement_id.asc")
	data, _, err := c.do(ctx, request{op: "list achievements", method: http.MethodGet, table: tableAchievements, query: q})
	if err != nil {
		return nil, err
	}

	rows, err := decode[[]achievementRow]("list achievements", data)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Achievement, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// UpsertAchievements sends every row in one bulk upsert on (user_id, achievement_id).
func (c *Client) UpsertAchievements(ctx context.Context, userID string, achievements []domain.Achievement) error {
	if len(achievements) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]achievementRow, 0, len(achievements))
	for _, a := range achievements {
		rows = append(rows, newAchievementRow(userID, a, now))
	}

	q := url.Values{}
	q.Set("on_conflict", "user_id,achievement_id")
	_, _, err := c.do(ctx, request{
		op:     "upsert achievements",
		method: http.MethodPost,
		table:  tableAchievements,
		query:  q,
		prefer: preferMerge,
		body:   rows,
	})
	return err
}

// CreateEpisode inserts an episode row.
func (c *Client) CreateEpisode(ctx context.Context, e *domain.Episode) error {
	_, _, err := c.do(ctx, request{
		op:     "create episode",
		method: http.MethodPost,
		table:  tableEpisodes,
		prefer: preferInsert,
		body:   newEpisodeRow(e),
	})
	return err
}

// ListEpisodes returns a user's episodes, newest first.
func (c *Client) ListEpisodes(ctx context.Context, userID string, limit int) ([]*domain.Episode, error) {
	q := byUser(userID)
	q.Set("select", "*")
	q.Set("order", "occurred_at.desc,id.desc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	data, _, err := c.do(ctx, request{op: "list episodes", method: http.MethodGet, table: tableEpisodes, query: q})
	if err != nil {
		return nil, err
	}

	rows, err := decode[[]episodeRow]("list episodes", data)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Episode, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// CountEpisodesByCause fetches only the cause column and aggregates client-side,
// since plain PostgREST exposes no GROUP BY.
func (c *Client) CountEpisodesByCause(ctx context.Context, userID string) ([]domain.CauseCount, error) {
	q := byUser(userID)
	q.Set("select", "cause")
	data, _, err := c.do(ctx, request{op: "count episodes", method: http.MethodGet, table: tableEpisodes, query: q})
	if err != nil {
		return nil, err
	}

	rows, err := decode[[]causeRow]("count episodes", data)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Cause]++
	}
	out := make([]domain.CauseCount, 0, len(counts))
	for cause, n := range counts {
		out = append(out, domain.CauseCount{Cause: cause, Count: n})
	}
	slices.SortFunc(out, func(a, b domain.CauseCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return strings.Compare(a.Cause, b.Cause)
	})
	return out, nil
}

// MarkArticleRead inserts the read, ignoring duplicates. The representation
// returned by the server is empty when the row already existed.
func (c *Client) MarkArticleRead(ctx context.Context, userID, articleID string, at time.Time) (bool, error) {
	q := url.Values{}
	q.Set("on_conflict", "user_id,article_id")
	data, _, err := c.do(ctx, request{
		op:     "mark article read",
		method: http.MethodPost,
		table:  tableArticlesRead,
		query:  q,
		prefer: []string{"resolution=ignore-duplicates", "return=representation"},
		body:   []articleReadRow{{UserID: userID, ArticleID: articleID, ReadAt: at.UTC()}},
	})
	if err != nil {
		return false, err
	}

	rows, err := decode[[]articleReadRow]("mark article read", data)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// CountArticlesRead asks the server for an exact count via Content-Range.
func (c *Client) CountArticlesRead(ctx context.Context, userID string) (int, error) {
	q := byUser(userID)
	q.Set("select", "article_id")
	data, header, err := c.do(ctx, request{
		op:     "count articles read",
		method: http.MethodGet,
		table:  tableArticlesRead,
		query:  q,
		prefer: []string{"count=exact"},
	})
	if err != nil {
		return 0, err
	}

	if n, ok := parseContentRangeTotal(header.Get("Content-Range")); ok {
		return n, nil
	}

	rows, err := decode[[]articleReadRow]("count articles read", data)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// parseContentRangeTotal extracts N from "0-24/N" or "*/N".
func parseContentRangeTotal(v string) (int, bool) {
	_, total, found := strings.Cut(v, "/")
	if !found || total == "*" {
		return 0, false
	}
	n, err := strconv.Atoi(total)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
