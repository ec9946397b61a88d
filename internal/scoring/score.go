// Package scoring ranks feed items by priority, recency, and engagement.
// Scores are comparable only within a single composition pass; they are
// never persisted.
package scoring

import (
	"time"

	"github.com/user/tickerd/internal/types"
)

const (
	// priorityWeight spreads the five priority levels across 20..100.
	priorityWeight = 20.0
	// decayHalfLife is the age at which the time factor halves the base.
	decayHalfLife = 24.0
	// maxBoost caps the engagement contribution so a heavily-clicked old
	// item cannot bury fresh high-priority entries forever.
	maxBoost = 25.0
)

// Score computes the relevance of an item at the given instant.
//
//	base        = (6 - priority) * 20
//	time_factor = 1 / (1 + age_hours/24)
//	score       = base * time_factor + boost
//
// Higher is more relevant. The result is deterministic for fixed inputs.
func Score(item *types.Item, now time.Time, counts types.EngagementCounts) float64 {
	base := float64(6-item.Priority) * priorityWeight

	ageHours := now.Sub(item.CreatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	timeFactor := 1 / (1 + ageHours/decayHalfLife)

	return base*timeFactor + Boost(counts)
}

// Boost converts positive engagement counts into an additive score bonus.
// It is zero for the empty signal and non-decreasing in every count.
func Boost(counts types.EngagementCounts) float64 {
	b := float64(counts.Views) + 2*float64(counts.Clicks) + 3*float64(counts.Shares)
	if b > maxBoost {
		return maxBoost
	}
	return b
}
