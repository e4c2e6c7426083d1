package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewireapp/rewire-server/internal/domain"
	domainerrors "github.com/rewireapp/rewire-server/internal/errors"
	"github.com/rewireapp/rewire-server/internal/sse"
)

func findAchievement(t *testing.T, list []domain.Achievement, id string) domain.Achievement {
	t.Helper()
	for _, a := range list {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("achievement %q not in list", id)
	return domain.Achievement{}
}

func TestAchievements_SeededCatalog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	all := env.achievements.Achievements(ctx)
	require.Len(t, all, len(domain.DefaultCatalog()))
	assert.Equal(t, "sprout", all[0].ID)
	assert.Empty(t, env.achievements.UnlockedAchievements(ctx))

	stored, err := env.db.ListAchievements(ctx, env.sessions.CurrentUserID(ctx))
	require.NoError(t, err)
	assert.Len(t, stored, len(all))
}

func TestCheckAndUnlock_SunKissedUnlocksOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unlocked := env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 7})
	ids := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"sprout", "sun-kissed"}, ids)

	all := env.achievements.Achievements(ctx)
	sunKissed := findAchievement(t, all, "sun-kissed")
	assert.True(t, sunKissed.IsUnlocked)
	require.NotNil(t, sunKissed.UnlockedAt)
	assert.True(t, sunKissed.UnlockedAt.Equal(testStart))
	assert.Equal(t, 7, sunKissed.Progress)

	deepRoots := findAchievement(t, all, "deep-roots")
	assert.False(t, deepRoots.IsUnlocked)
	assert.Equal(t, 7, deepRoots.Progress)

	// The same snapshot later changes nothing.
	env.clock.Advance(time.Hour)
	assert.Empty(t, env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 7}))
	again := findAchievement(t, env.achievements.Achievements(ctx), "sun-kissed")
	assert.True(t, again.UnlockedAt.Equal(testStart))

	assert.Equal(t, []string{"sprout", "sun-kissed"}, env.presenter.ids())
}

func TestCheckAndUnlock_LatchSurvivesLowerMetric(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 14})
	env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 0})

	all := env.achievements.Achievements(ctx)
	assert.True(t, findAchievement(t, all, "deep-roots").IsUnlocked)
	assert.Equal(t, 14, findAchievement(t, all, "deep-roots").Progress)
	assert.Equal(t, 0, findAchievement(t, all, "full-bloom").Progress)
}

func TestCheckAndUnlock_Persists(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.sessions.CurrentUserID(ctx)

	env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{TotalArticlesRead: 1, ConsecutiveDays: 3})

	stored, err := env.db.ListAchievements(ctx, userID)
	require.NoError(t, err)
	assert.True(t, findAchievement(t, stored, "curious-mind").IsUnlocked)
	assert.True(t, findAchievement(t, stored, "steady-start").IsUnlocked)
	assert.Equal(t, 3, findAchievement(t, stored, "creature-of-habit").Progress)

	cached, err := env.cache.GetAchievements(ctx, userID)
	require.NoError(t, err)
	assert.True(t, findAchievement(t, cached, "curious-mind").IsUnlocked)

	// A restarted process sees the same state.
	env.build(t, 0)
	assert.Len(t, env.achievements.UnlockedAchievements(ctx), 2)
}

func TestCheckAndUnlock_RemoteDownKeepsMemoryAndCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := env.sessions.CurrentUserID(ctx)
	env.achievements.Load(ctx)

	env.remote.down.Store(true)
	unlocked := env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 1})
	require.Len(t, unlocked, 1)
	assert.Len(t, env.achievements.UnlockedAchievements(ctx), 1)

	stored, err := env.db.ListAchievements(ctx, userID)
	require.NoError(t, err)
	assert.False(t, findAchievement(t, stored, "sprout").IsUnlocked)

	// Restart while still offline: the local cache is the fallback.
	env.build(t, 0)
	assert.True(t, findAchievement(t, env.achievements.Achievements(ctx), "sprout").IsUnlocked)
}

func TestCheckAndUnlock_ConcurrentPassesUnlockOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.achievements.Load(ctx)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for range 16 {
		wg.Go(func() {
			n := len(env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 7}))
			mu.Lock()
			total += n
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, 2, total)
	assert.Len(t, env.presenter.ids(), 2)
}

func TestCheckAndUnlock_OverlayWaitsForDelay(t *testing.T) {
	env := newTestEnvWithDelay(t, 30*time.Millisecond)
	ctx := context.Background()

	env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 1})
	assert.Empty(t, env.presenter.ids())
	assert.Contains(t, env.events.types(), sse.EventAchievementUnlocked)

	require.Eventually(t, func() bool {
		return len(env.presenter.ids()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"sprout"}, env.presenter.ids())
}

func TestResetAll_CancelsPendingOverlay(t *testing.T) {
	env := newTestEnvWithDelay(t, 50*time.Millisecond)
	ctx := context.Background()

	env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 1})
	env.achievements.ResetAllAchievements(ctx)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, env.presenter.ids())
	assert.Equal(t, 1, env.presenter.dismissed)
}

func TestUnlockNextAchievement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.achievements.UnlockNextAchievement(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sprout", first.ID)
	assert.Equal(t, first.MaxProgress, first.Progress)

	second, err := env.achievements.UnlockNextAchievement(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sun-kissed", second.ID)

	for range len(domain.DefaultCatalog()) - 2 {
		_, err := env.achievements.UnlockNextAchievement(ctx)
		require.NoError(t, err)
	}
	_, err = env.achievements.UnlockNextAchievement(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestResetAllAchievements(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.achievements.CheckAndUnlockAchievements(ctx, domain.ProgressSnapshot{CurrentStreak: 30, TotalArticlesRead: 5})
	require.NotEmpty(t, env.achievements.UnlockedAchievements(ctx))

	env.achievements.ResetAllAchievements(ctx)
	for _, a := range env.achievements.Achievements(ctx) {
		assert.False(t, a.IsUnlocked, a.ID)
		assert.Zero(t, a.Progress, a.ID)
		assert.Nil(t, a.UnlockedAt, a.ID)
	}

	stored, err := env.db.ListAchievements(ctx, env.sessions.CurrentUserID(ctx))
	require.NoError(t, err)
	for _, a := range stored {
		assert.False(t, a.IsUnlocked, a.ID)
	}
}

func TestShowAndHideOverlay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.achievements.ShowAchievementOverlay(ctx, "rewired"))
	assert.Equal(t, []string{"rewired"}, env.presenter.ids())

	err := env.achievements.ShowAchievementOverlay(ctx, "nope")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	env.achievements.HideAchievementOverlay()
	assert.Equal(t, 1, env.presenter.dismissed)
}
