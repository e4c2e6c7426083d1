package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/domain"
	domainerrors "github.com/rewireapp/rewire-server/internal/errors"
	"github.com/rewireapp/rewire-server/internal/store"
	"github.com/rewireapp/rewire-server/internal/validation"
)

// DefaultRewiringTargetDays is the streak length that counts as 100% brain rewiring.
const DefaultRewiringTargetDays = 90

const secondsPerDay = 86400

// ProfileSummary is everything the profile screen shows.
type ProfileSummary struct {
	UserID            string                  `json:"user_id"`
	Session           *domain.UserSession     `json:"session,omitempty"`
	Stats             *domain.UserStats       `json:"stats"`
	ElapsedSeconds    int64                   `json:"elapsed_seconds"`
	Breakdown         domain.StreakBreakdown  `json:"breakdown"`
	Progress          domain.ProgressSnapshot `json:"progress"`
	UnlockedCount     int                     `json:"unlocked_count"`
	TotalAchievements int                     `json:"total_achievements"`
}

// ProfileService tracks articles read and assembles the progress snapshot achievements are checked against.
type ProfileService struct {
	sessions     *SessionService
	achievements *AchievementService
	articles     store.ArticleStore
	validator    *validation.Validator
	clock        clock.Clock
	logger       *slog.Logger
	targetDays   int

	mu             sync.Mutex
	articlesRead   int
	articlesLoaded bool
}

// NewProfileService creates a new profile service.
// A non-positive targetDays falls back to DefaultRewiringTargetDays.
func NewProfileService(
	sessions *SessionService,
	achievements *AchievementService,
	articles store.ArticleStore,
	validator *validation.Validator,
	clk clock.Clock,
	targetDays int,
	logger *slog.Logger,
) *ProfileService {
	if targetDays <= 0 {
		targetDays = DefaultRewiringTargetDays
	}
	return &ProfileService{
		sessions:     sessions,
		achievements: achievements,
		articles:     articles,
		validator:    validator,
		clock:        clk,
		logger:       logger,
		targetDays:   targetDays,
	}
}

// MarkArticleRead records that the user finished an article and re-checks achievements.
// Marking the same article twice is not an error; inserted reports whether it was new.
func (s *ProfileService) MarkArticleRead(ctx context.Context, articleID string) (inserted bool, err error) {
	if err := s.validator.Var("article_id", articleID, "required,max=128,slug"); err != nil {
		return false, err
	}
	userID := s.sessions.CurrentUserID(ctx)

	inserted, err = s.articles.MarkArticleRead(ctx, userID, articleID, s.clock.Now())
	if err != nil {
		logRemoteFailure(s.logger, "mark article read", userID, err)
		return false, domainerrors.Unavailable("article read could not be saved").WithCause(err)
	}

	if inserted {
		s.mu.Lock()
		if s.articlesLoaded {
			s.articlesRead++
		}
		s.mu.Unlock()
		s.logger.Debug("article marked read", "user_id", userID, "article_id", articleID)
	}

	s.achievements.CheckAndUnlockAchievements(ctx, s.Snapshot(ctx))
	return inserted, nil
}

// TotalArticlesRead counts distinct articles read. On failure the last known count is returned.
func (s *ProfileService) TotalArticlesRead(ctx context.Context) int {
	userID := s.sessions.CurrentUserID(ctx)

	n, err := s.articles.CountArticlesRead(ctx, userID)
	if err != nil {
		logRemoteFailure(s.logger, "count articles read", userID, err)
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.articlesRead
	}

	s.mu.Lock()
	s.articlesRead = n
	s.articlesLoaded = true
	s.mu.Unlock()
	return n
}

// Snapshot builds the progress snapshot for the current elapsed streak.
func (s *ProfileService) Snapshot(ctx context.Context) domain.ProgressSnapshot {
	return s.SnapshotAt(ctx, s.sessions.GetCurrentStreakSeconds(ctx))
}

// SnapshotAt builds the progress snapshot for a known elapsed streak.
// Only the article count may touch the store, and only the first time.
func (s *ProfileService) SnapshotAt(ctx context.Context, elapsed int64) domain.ProgressSnapshot {
	stats := s.sessions.CachedStats()
	days := int(domain.ClampSeconds(elapsed) / secondsPerDay)
	longest := int(max(stats.LongestStreakSeconds, domain.ClampSeconds(elapsed)) / secondsPerDay)

	return domain.ProgressSnapshot{
		CurrentStreak:         days,
		TotalArticlesRead:     s.cachedArticlesRead(ctx),
		BrainRewiringProgress: RewiringProgress(days, s.targetDays),
		LongestStreak:         longest,
		ConsecutiveDays:       stats.ConsecutiveDays,
	}
}

// Profile assembles the profile summary.
func (s *ProfileService) Profile(ctx context.Context) ProfileSummary {
	session := s.sessions.GetCurrentSession(ctx)
	if session == nil {
		session = s.sessions.CachedSession()
	}
	stats := s.sessions.GetStats(ctx)
	elapsed := s.sessions.GetCurrentStreakSeconds(ctx)
	all := s.achievements.Achievements(ctx)

	unlocked := 0
	for _, a := range all {
		if a.IsUnlocked {
			unlocked++
		}
	}

	return ProfileSummary{
		UserID:            s.sessions.CurrentUserID(ctx),
		Session:           session,
		Stats:             stats,
		ElapsedSeconds:    elapsed,
		Breakdown:         domain.BreakdownSeconds(elapsed),
		Progress:          s.SnapshotAt(ctx, elapsed),
		UnlockedCount:     unlocked,
		TotalAchievements: len(all),
	}
}

func (s *ProfileService) cachedArticlesRead(ctx context.Context) int {
	s.mu.Lock()
	loaded, n := s.articlesLoaded, s.articlesRead
	s.mu.Unlock()
	if loaded {
		return n
	}
	return s.TotalArticlesRead(ctx)
}

// RewiringProgress maps a streak in days onto 0-100 against targetDays.
func RewiringProgress(days, targetDays int) int {
	if targetDays <= 0 {
		targetDays = DefaultRewiringTargetDays
	}
	if days <= 0 {
		return 0
	}
	return min(100, days*100/targetDays)
}
