package domain

import "time"

// AchievementCategory groups achievements for display.
type AchievementCategory string

// AchievementCategory constants.
const (
	CategoryStreak    AchievementCategory = "streak"
	CategoryMilestone AchievementCategory = "milestone"
	CategorySpecial   AchievementCategory = "special"
	CategoryDaily     AchievementCategory = "daily"
)

// AchievementRarity describes how hard an achievement is to earn.
type AchievementRarity string

// AchievementRarity constants.
const (
	RarityCommon    AchievementRarity = "common"
	RarityRare      AchievementRarity = "rare"
	RarityEpic      AchievementRarity = "epic"
	RarityLegendary AchievementRarity = "legendary"
)

// Metric names the progress signal an achievement tracks.
type Metric string

// Metric constants.
const (
	MetricCurrentStreak   Metric = "current_streak"
	MetricArticlesRead    Metric = "total_articles_read"
	MetricBrainRewiring   Metric = "brain_rewiring_progress"
	MetricLongestStreak   Metric = "longest_streak"
	MetricConsecutiveDays Metric = "consecutive_days"
)

// ProgressSnapshot is the set of counters achievements are evaluated against.
// Streak values are whole days.
type ProgressSnapshot struct {
	CurrentStreak         int `json:"current_streak"`
	TotalArticlesRead     int `json:"total_articles_read"`
	BrainRewiringProgress int `json:"brain_rewiring_progress"` // 0-100
	LongestStreak         int `json:"longest_streak"`
	ConsecutiveDays       int `json:"consecutive_days"`
}

// Value returns the snapshot counter for m.
func (p ProgressSnapshot) Value(m Metric) int {
	switch m {
	case MetricCurrentStreak:
		return p.CurrentStreak
	case MetricArticlesRead:
		return p.TotalArticlesRead
	case MetricBrainRewiring:
		return p.BrainRewiringProgress
	case MetricLongestStreak:
		return p.LongestStreak
	case MetricConsecutiveDays:
		return p.ConsecutiveDays
	default:
		return 0
	}
}

// Achievement is a single unlockable milestone.
// IsUnlocked is a one-way latch; UnlockedAt is set once at the transition.
type Achievement struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    AchievementCategory `json:"category"`
	Rarity      AchievementRarity   `json:"rarity"`
	Metric      Metric              `json:"metric"`
	Progress    int                 `json:"progress"`
	MaxProgress int                 `json:"max_progress"`
	IsUnlocked  bool                `json:"is_unlocked"`
	UnlockedAt  *time.Time          `json:"unlocked_at,omitempty"`
}

// Apply records a new metric reading.
// Returns changed if the stored progress moved and unlocked if this call crossed the threshold.
// Unlocked achievements are never touched.
func (a *Achievement) Apply(metric int, now time.Time) (changed, unlocked bool) {
	if a.IsUnlocked {
		return false, false
	}

	progress := min(max(metric, 0), a.MaxProgress)
	changed = progress != a.Progress
	a.Progress = progress

	if metric >= a.MaxProgress {
		a.unlock(now)
		return true, true
	}
	return changed, false
}

// ForceUnlock unlocks regardless of the metric, filling progress to the threshold.
func (a *Achievement) ForceUnlock(now time.Time) bool {
	if a.IsUnlocked {
		return false
	}
	a.Progress = a.MaxProgress
	a.unlock(now)
	return true
}

// Lock reverts the achievement to its initial state.
func (a *Achievement) Lock() {
	a.IsUnlocked = false
	a.Progress = 0
	a.UnlockedAt = nil
}

func (a *Achievement) unlock(now time.Time) {
	a.IsUnlocked = true
	t := now
	a.UnlockedAt = &t
}

// catalog is the fixed, ordered achievement catalog. Order matters for UnlockNext.
var catalog = []Achievement{
	{ID: "sprout", Title: "First Sprout", Description: "Complete your first clean day.", Category: CategoryStreak, Rarity: RarityCommon, Metric: MetricCurrentStreak, MaxProgress: 1},
	{ID: "sun-kissed", Title: "Sun-Kissed", Description: "Stay clean for seven days in a row.", Category: CategoryStreak, Rarity: RarityCommon, Metric: MetricCurrentStreak, MaxProgress: 7},
	{ID: "deep-roots", Title: "Deep Roots", Description: "Two clean weeks.", Category: CategoryStreak, Rarity: RarityRare, Metric: MetricCurrentStreak, MaxProgress: 14},
	{ID: "full-bloom", Title: "Full Bloom", Description: "A whole clean month.", Category: CategoryStreak, Rarity: RarityEpic, Metric: MetricCurrentStreak, MaxProgress: 30},
	{ID: "evergreen", Title: "Evergreen", Description: "Ninety clean days.", Category: CategoryStreak, Rarity: RarityLegendary, Metric: MetricCurrentStreak, MaxProgress: 90},
	{ID: "curious-mind", Title: "Curious Mind", Description: "Read your first article.", Category: CategoryMilestone, Rarity: RarityCommon, Metric: MetricArticlesRead, MaxProgress: 1},
	{ID: "well-read", Title: "Well Read", Description: "Read ten articles.", Category: CategoryMilestone, Rarity: RarityRare, Metric: MetricArticlesRead, MaxProgress: 10},
	{ID: "scholar", Title: "Scholar", Description: "Read twenty-five articles.", Category: CategoryMilestone, Rarity: RarityEpic, Metric: MetricArticlesRead, MaxProgress: 25},
	{ID: "high-water-mark", Title: "High Water Mark", Description: "Reach a longest streak of thirty days.", Category: CategoryMilestone, Rarity: RarityRare, Metric: MetricLongestStreak, MaxProgress: 30},
	{ID: "blossoming", Title: "Blossoming", Description: "Reach 60% brain rewiring progress.", Category: CategorySpecial, Rarity: RarityEpic, Metric: MetricBrainRewiring, MaxProgress: 60},
	{ID: "rewired", Title: "Rewired", Description: "Reach 100% brain rewiring progress.", Category: CategorySpecial, Rarity: RarityLegendary, Metric: MetricBrainRewiring, MaxProgress: 100},
	{ID: "steady-start", Title: "Steady Start", Description: "Open the app three days in a row.", Category: CategoryDaily, Rarity: RarityCommon, Metric: MetricConsecutiveDays, MaxProgress: 3},
	{ID: "creature-of-habit", Title: "Creature of Habit", Description: "Open the app seven days in a row.", Category: CategoryDaily, Rarity: RarityRare, Metric: MetricConsecutiveDays, MaxProgress: 7},
}

// DefaultCatalog returns a fresh copy of the achievement catalog, all locked.
func DefaultCatalog() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

// MergeCatalog overlays persisted achievement state onto the catalog.
// Persisted fields win; catalog fields fill gaps. The result follows catalog
// order, and persisted entries the catalog no longer knows about are dropped.
func MergeCatalog(base, persisted []Achievement) []Achievement {
	byID := make(map[string]Achievement, len(persisted))
	for _, p := range persisted {
		byID[p.ID] = p
	}

	merged := make([]Achievement, len(base))
	for i, a := range base {
		p, ok := byID[a.ID]
		if !ok {
			merged[i] = a
			continue
		}
		if p.Title != "" {
			a.Title = p.Title
		}
		if p.Description != "" {
			a.Description = p.Description
		}
		if p.Category != "" {
			a.Category = p.Category
		}
		if p.Rarity != "" {
			a.Rarity = p.Rarity
		}
		if p.MaxProgress > 0 {
			a.MaxProgress = p.MaxProgress
		}
		a.Progress = min(max(p.Progress, 0), a.MaxProgress)
		a.IsUnlocked = p.IsUnlocked
		a.UnlockedAt = p.UnlockedAt
		merged[i] = a
	}
	return merged
}
