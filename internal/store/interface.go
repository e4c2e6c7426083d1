// Package store defines the persistence interfaces for the Rewire streak engine.
package store

import (
	"context"
	"time"

	"github.com/rewireapp/rewire-server/internal/domain"
)

// Point reads return (nil, nil) when the row does not exist. Any transport or
// driver failure is reported as an error matching ErrUnavailable.

// SessionStore persists UserSession rows, keyed by user id.
type SessionStore interface {
	GetSession(ctx context.Context, userID string) (*domain.UserSession, error)
	UpsertSession(ctx context.Context, session *domain.UserSession) error
}

// StatsStore persists UserStats rows, keyed by user id.
type StatsStore interface {
	GetStats(ctx context.Context, userID string) (*domain.UserStats, error)
	UpsertStats(ctx context.Context, stats *domain.UserStats) error
}

// AchievementStore persists per-user achievement state, keyed by (user id, achievement id).
type AchievementStore interface {
	ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error)
	UpsertAchievements(ctx context.Context, userID string, achievements []domain.Achievement) error
}

// EpisodeStore records streak-breaking episodes.
type EpisodeStore interface {
	CreateEpisode(ctx context.Context, episode *domain.Episode) error
	// ListEpisodes returns the most recent episodes first. limit <= 0 means no limit.
	ListEpisodes(ctx context.Context, userID string, limit int) ([]*domain.Episode, error)
	// CountEpisodesByCause returns counts ordered by count descending, then cause.
	CountEpisodesByCause(ctx context.Context, userID string) ([]domain.CauseCount, error)
}

// ArticleStore tracks which articles a user has read.
type ArticleStore interface {
	// MarkArticleRead records the read once. Returns true if this call inserted the row.
	MarkArticleRead(ctx context.Context, userID, articleID string, at time.Time) (bool, error)
	CountArticlesRead(ctx context.Context, userID string) (int, error)
}

// RemoteStore is the table-oriented backend the engine reconciles against.
// It may be unavailable at any time; callers are expected to degrade rather than fail.
type RemoteStore interface {
	SessionStore
	StatsStore
	AchievementStore
	EpisodeStore
	ArticleStore

	Ping(ctx context.Context) error
	Close() error
}

// LocalCache is durable device-local storage that survives remote outages.
type LocalCache interface {
	// GetDeviceID returns "" when no id has been stored yet.
	GetDeviceID(ctx context.Context) (string, error)
	SetDeviceID(ctx context.Context, id string) error

	// GetAchievements returns nil when no snapshot exists for the user.
	GetAchievements(ctx context.Context, userID string) ([]domain.Achievement, error)
	SetAchievements(ctx context.Context, userID string, achievements []domain.Achievement) error

	Ping(ctx context.Context) error
	Close() error
}
