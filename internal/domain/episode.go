package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnspecifiedCause is recorded when an episode is logged without a cause tag.
const UnspecifiedCause = "unspecified"

var (
	// Matches any non-alphanumeric character.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	// Matches multiple hyphens.
	multipleHyphens = regexp.MustCompile(`-+`)
)

// Episode is a streak-breaking event tagged with its cause.
type Episode struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Cause         string    `json:"cause"`
	Notes         string    `json:"notes,omitempty"`
	StreakSeconds int64     `json:"streak_seconds"` // Length of the streak the episode ended
	OccurredAt    time.Time `json:"occurred_at"`
}

// CauseCount is the number of episodes recorded for one cause.
type CauseCount struct {
	Cause string `json:"cause"`
	Count int    `json:"count"`
}

// NormalizeCause converts a free-form cause into a stable tag.
// "Late-night Stress" -> "late-night-stress", "Ennui" -> "ennui".
func NormalizeCause(s string) string {
	// Strip diacritics; remaining non-ASCII runes fall to the regexp below.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if s == "" {
		return UnspecifiedCause
	}
	return s
}
