package model

import (
	"fmt"
	"sort"
	"time"
)

// Ratings holds the per-aspect scores of a review, each 1..5.
type Ratings struct {
	Overall     uint8
	Longevity   uint8
	Sillage     uint8
	Projection  uint8
	Versatility uint8
	Value       uint8
}

// Validate checks every rating is within 1..5.
func (r Ratings) Validate() error {
	for name, v := range map[string]uint8{
		"overall":     r.Overall,
		"longevity":   r.Longevity,
		"sillage":     r.Sillage,
		"projection":  r.Projection,
		"versatility": r.Versatility,
		"value":       r.Value,
	} {
		if v < 1 || v > 5 {
			return fmt.Errorf("%s rating must be between 1 and 5, got %d", name, v)
		}
	}
	return nil
}

// UniformRatings sets every aspect to the same score.
func UniformRatings(score uint8) Ratings {
	return Ratings{score, score, score, score, score, score}
}

// Review is a stake-backed product review.
type Review struct {
	CreatedAt        time.Time
	ReviewerTier     *StakeTier
	ID               string
	IdempotencyKey   string
	ReviewerID       string
	ProductID        string
	Text             string
	SkinType         string
	AgeGroup         string
	WearOccasion     string
	SeasonTested     string
	Ratings          Ratings
	ReviewerStake    uint64
	VerifiedPurchase bool
}

// Clone returns a copy of r that shares no pointers with it.
func (r Review) Clone() Review {
	out := r
	if r.ReviewerTier != nil {
		t := *r.ReviewerTier
		out.ReviewerTier = &t
	}
	return out
}

// PlatformStats holds named marketplace counters.
type PlatformStats map[string]uint64

// Keys returns the counter names in sorted order.
func (s PlatformStats) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
