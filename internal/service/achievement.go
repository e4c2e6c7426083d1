package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/domain"
	domainerrors "github.com/rewireapp/rewire-server/internal/errors"
	"github.com/rewireapp/rewire-server/internal/sse"
	"github.com/rewireapp/rewire-server/internal/store"
)

// DefaultUnlockDisplayDelay is how long an unlock waits before its overlay is shown.
const DefaultUnlockDisplayDelay = 1500 * time.Millisecond

// UserIdentity resolves the device user the catalog belongs to.
type UserIdentity interface {
	CurrentUserID(ctx context.Context) string
}

// AchievementService runs the threshold unlock state machine over the achievement catalog.
//
// The in-memory catalog is authoritative. After every pass that changes it,
// the whole catalog is written to the remote store and the local cache;
// failures there are logged and retried by the next pass.
type AchievementService struct {
	remote       store.AchievementStore
	cache        store.LocalCache
	users        UserIdentity
	presenter    OverlayPresenter
	clock        clock.Clock
	events       sse.Emitter
	logger       *slog.Logger
	displayDelay time.Duration

	loadMu sync.Mutex

	mu           sync.Mutex
	loaded       bool
	userID       string
	achievements []domain.Achievement
	version      uint64
	pending      map[*time.Timer]struct{}

	persistMu sync.Mutex
	persisted uint64
}

// NewAchievementService creates a new achievement service.
func NewAchievementService(
	remote store.AchievementStore,
	cache store.LocalCache,
	users UserIdentity,
	presenter OverlayPresenter,
	clk clock.Clock,
	events sse.Emitter,
	displayDelay time.Duration,
	logger *slog.Logger,
) *AchievementService {
	if events == nil {
		events = sse.NoopEmitter{}
	}
	return &AchievementService{
		remote:       remote,
		cache:        cache,
		users:        users,
		presenter:    presenter,
		clock:        clk,
		events:       events,
		logger:       logger,
		displayDelay: displayDelay,
		pending:      make(map[*time.Timer]struct{}),
	}
}

// Load reads the persisted catalog and merges it over the built-in one.
// The remote store is tried first, then the local cache. An empty remote
// catalog is seeded. Calling Load again is a no-op.
func (s *AchievementService) Load(ctx context.Context) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return
	}

	userID := s.users.CurrentUserID(ctx)

	persisted, err := s.remote.ListAchievements(ctx, userID)
	seed := err == nil && len(persisted) == 0
	if err != nil {
		s.warn("list achievements", userID, err)
		persisted, err = s.cache.GetAchievements(ctx, userID)
		if err != nil {
			s.logger.Warn("failed to read cached achievements", "user_id", userID, "error", err)
		}
	}

	merged := domain.MergeCatalog(domain.DefaultCatalog(), persisted)

	s.mu.Lock()
	s.userID = userID
	s.achievements = merged
	s.loaded = true
	var snapshot []domain.Achievement
	var version uint64
	if seed {
		s.version++
		version = s.version
		snapshot = cloneAchievements(merged)
	}
	s.mu.Unlock()

	if seed {
		s.logger.Info("seeding achievement catalog", "user_id", userID, "count", len(snapshot))
		s.persist(ctx, userID, version, snapshot)
	}
}

// CheckAndUnlockAchievements applies a progress snapshot to every locked achievement.
//
// Progress becomes min(metric, MaxProgress). An achievement whose metric
// reaches MaxProgress unlocks exactly once, gets UnlockedAt set and has its
// overlay scheduled after the display delay. Returns the achievements
// unlocked by this pass.
func (s *AchievementService) CheckAndUnlockAchievements(ctx context.Context, snapshot domain.ProgressSnapshot) []domain.Achievement {
	s.Load(ctx)
	now := s.clock.Now()

	s.mu.Lock()
	var changed bool
	var unlocked []domain.Achievement
	for i := range s.achievements {
		a := &s.achievements[i]
		c, u := a.Apply(snapshot.Value(a.Metric), now)
		changed = changed || c
		if u {
			unlocked = append(unlocked, *a)
		}
	}
	userID, version, catalog := s.bumpLocked(changed)
	s.mu.Unlock()

	if changed {
		s.persist(ctx, userID, version, catalog)
	}

	for _, a := range unlocked {
		s.announce(a)
	}
	return unlocked
}

// UnlockNextAchievement unlocks the first locked achievement in catalog order.
// Returns NOT_FOUND when everything is already unlocked.
func (s *AchievementService) UnlockNextAchievement(ctx context.Context) (domain.Achievement, error) {
	s.Load(ctx)
	now := s.clock.Now()

	s.mu.Lock()
	var next *domain.Achievement
	for i := range s.achievements {
		if !s.achievements[i].IsUnlocked {
			next = &s.achievements[i]
			break
		}
	}
	if next == nil {
		s.mu.Unlock()
		return domain.Achievement{}, domainerrors.NotFound("all achievements are unlocked")
	}
	next.ForceUnlock(now)
	unlocked := *next
	userID, version, catalog := s.bumpLocked(true)
	s.mu.Unlock()

	s.persist(ctx, userID, version, catalog)
	s.announce(unlocked)
	return unlocked, nil
}

// ResetAllAchievements locks the whole catalog again and dismisses the overlay.
func (s *AchievementService) ResetAllAchievements(ctx context.Context) {
	s.Load(ctx)

	s.mu.Lock()
	for i := range s.achievements {
		s.achievements[i].Lock()
	}
	s.cancelPendingLocked()
	userID, version, catalog := s.bumpLocked(true)
	s.mu.Unlock()

	s.persist(ctx, userID, version, catalog)
	s.presenter.Dismiss()
	s.logger.Info("achievements reset", "user_id", userID)
}

// Achievements returns the whole catalog in display order.
func (s *AchievementService) Achievements(ctx context.Context) []domain.Achievement {
	s.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAchievements(s.achievements)
}

// UnlockedAchievements returns the unlocked subset in catalog order.
func (s *AchievementService) UnlockedAchievements(ctx context.Context) []domain.Achievement {
	s.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Achievement, 0, len(s.achievements))
	for _, a := range s.achievements {
		if a.IsUnlocked {
			out = append(out, a)
		}
	}
	return out
}

// ShowAchievementOverlay shows the overlay for id right away.
func (s *AchievementService) ShowAchievementOverlay(ctx context.Context, achievementID string) error {
	s.Load(ctx)

	s.mu.Lock()
	var found *domain.Achievement
	for i := range s.achievements {
		if s.achievements[i].ID == achievementID {
			a := s.achievements[i]
			found = &a
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return domainerrors.NotFoundf("achievement %q not found", achievementID)
	}
	s.presenter.Present(*found)
	return nil
}

// HideAchievementOverlay dismisses the overlay.
func (s *AchievementService) HideAchievementOverlay() {
	s.presenter.Dismiss()
}

// Stop cancels overlays that are still waiting for their display delay.
func (s *AchievementService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
}

// bumpLocked advances the catalog version when changed and returns what persist needs.
func (s *AchievementService) bumpLocked(changed bool) (string, uint64, []domain.Achievement) {
	if !changed {
		return s.userID, 0, nil
	}
	s.version++
	return s.userID, s.version, cloneAchievements(s.achievements)
}

// persist writes a catalog snapshot unless a newer one has already been written.
func (s *AchievementService) persist(ctx context.Context, userID string, version uint64, catalog []domain.Achievement) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.persisted {
		return
	}

	if err := s.remote.UpsertAchievements(ctx, userID, catalog); err != nil {
		s.warn("upsert achievements", userID, err)
	}
	if err := s.cache.SetAchievements(ctx, userID, catalog); err != nil {
		s.logger.Warn("failed to cache achievements", "user_id", userID, "error", err)
	}
	s.persisted = version
}

func (s *AchievementService) announce(a domain.Achievement) {
	s.logger.Info("achievement unlocked",
		slog.String("achievement_id", a.ID),
		slog.String("rarity", string(a.Rarity)))
	s.events.Emit(sse.NewAchievementUnlockedEvent(a))
	s.scheduleOverlay(a)
}

func (s *AchievementService) scheduleOverlay(a domain.Achievement) {
	if s.displayDelay <= 0 {
		s.presenter.Present(a)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(s.displayDelay, func() {
		s.mu.Lock()
		_, ok := s.pending[timer]
		delete(s.pending, timer)
		s.mu.Unlock()

		if ok {
			s.presenter.Present(a)
		}
	})
	s.pending[timer] = struct{}{}
}

func (s *AchievementService) cancelPendingLocked() {
	for t := range s.pending {
		t.Stop()
	}
	clear(s.pending)
}

func (s *AchievementService) warn(op, userID string, err error) {
	logRemoteFailure(s.logger, op, userID, err)
}

func cloneAchievements(in []domain.Achievement) []domain.Achievement {
	out := make([]domain.Achievement, len(in))
	copy(out, in)
	return out
}
