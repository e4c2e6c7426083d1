package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rewireapp/rewire-server/internal/domain"
)

func TestListAchievements_Empty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ListAchievements(context.Background(), "device-1")
	if err != nil {
		t.Fatalf("ListAchievements: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}

func TestUpsertAchievements_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	catalog := domain.DefaultCatalog()
	unlockedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	catalog[0].ForceUnlock(unlockedAt)
	catalog[1].Apply(3, unlockedAt)

	if err := s.UpsertAchievements(ctx, "device-1", catalog); err != nil {
		t.Fatalf("UpsertAchievements: %v", err)
	}

	got, err := s.ListAchievements(ctx, "device-1")
	if err != nil {
		t.Fatalf("ListAchievements: %v", err)
	}
	if len(got) != len(catalog) {
		t.Fatalf("expected %d rows, got %d", len(catalog), len(got))
	}

	byID := make(map[string]domain.Achievement, len(got))
	for _, a := range got {
		byID[a.ID] = a
	}

	sprout := byID["sprout"]
	if !sprout.IsUnlocked {
		t.Error("sprout should be unlocked")
	}
	if sprout.UnlockedAt == nil || !sprout.UnlockedAt.Equal(unlockedAt) {
		t.Errorf("sprout UnlockedAt: got %v, want %v", sprout.UnlockedAt, unlockedAt)
	}
	if sprout.Category != domain.CategoryStreak {
		t.Errorf("sprout Category: got %q", sprout.Category)
	}

	sunKissed := byID["sun-kissed"]
	if sunKissed.IsUnlocked {
		t.Error("sun-kissed should still be locked")
	}
	if sunKissed.Progress != 3 || sunKissed.MaxProgress != 7 {
		t.Errorf("sun-kissed progress: got %d/%d, want 3/7", sunKissed.Progress, sunKissed.MaxProgress)
	}
	if sunKissed.UnlockedAt != nil {
		t.Errorf("sun-kissed UnlockedAt should be nil, got %v", sunKissed.UnlockedAt)
	}
}

func TestUpsertAchievements_IsolatedPerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := domain.DefaultCatalog()
	a[0].ForceUnlock(time.Now())
	if err := s.UpsertAchievements(ctx, "device-a", a); err != nil {
		t.Fatalf("UpsertAchievements: %v", err)
	}
	if err := s.UpsertAchievements(ctx, "device-b", domain.DefaultCatalog()); err != nil {
		t.Fatalf("UpsertAchievements: %v", err)
	}

	got, err := s.ListAchievements(ctx, "device-b")
	if err != nil {
		t.Fatalf("ListAchievements: %v", err)
	}
	for _, ach := range got {
		if ach.IsUnlocked {
			t.Errorf("device-b achievement %s should be locked", ach.ID)
		}
	}
}
