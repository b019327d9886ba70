package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Recommendation scoring parameters.
const (
	MinMatchScore        = 0.6
	MaxRecommendations   = 10
	defaultTrendFactor   = 0.8
	confidenceMultiplier = 0.9
)

// ScoreProducts ranks products against a fragrance profile. Only products
// scoring above MinMatchScore are kept, best first, at most
// MaxRecommendations of them.
func ScoreProducts(userID string, fp FragranceProfile, products []Product, now time.Time) []Recommendation {
	recs := make([]Recommendation, 0, len(products))
	for _, p := range products {
		personality := personalityMatch(fp, p)
		budget := budgetCompatibility(fp.Budget, p.PriceIDR)
		occasion := overlapScore(fp.OccasionPreferences, p.Occasions, true)
		season := overlapScore(fp.SeasonPreferences, p.Seasons, false)

		overall := (personality + budget + occasion + season) / 4
		if overall <= MinMatchScore {
			continue
		}
		recs = append(recs, Recommendation{
			ID:                   fmt.Sprintf("rec_%s_%s", userID, p.ID),
			UserID:               userID,
			ProductID:            p.ID,
			MatchScore:           overall,
			PersonalityAlignment: personality,
			LifestyleFit:         lifestyleFit(fp.Lifestyle, p),
			OccasionMatch:        occasion,
			BudgetCompatibility:  budget,
			SeasonalRelevance:    season,
			TrendFactor:          defaultTrendFactor,
			Confidence:           overall * confidenceMultiplier,
			Reasoning:            fmt.Sprintf("Based on your %s personality and %s lifestyle", fp.PersonalityType, fp.Lifestyle),
			GeneratedAt:          now,
		})
	}

	SortRecommendations(recs)
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

// SortRecommendations orders recommendations by descending match score,
// breaking ties by product id so the order is stable across refreshes.
func SortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].MatchScore != recs[j].MatchScore {
			return recs[i].MatchScore > recs[j].MatchScore
		}
		return recs[i].ProductID < recs[j].ProductID
	})
}

func personalityMatch(fp FragranceProfile, p Product) float64 {
	score, factors := 0.0, 0
	for _, fam := range fp.PreferredFamilies {
		if containsFold(p.FragranceFamily, fam) {
			score++
		}
		factors++
	}
	for _, m := range p.PersonalityMatches {
		if m == fp.PersonalityType {
			score++
			factors++
			break
		}
	}
	if factors == 0 {
		return 0.5
	}
	return score / float64(factors)
}

func budgetCompatibility(r BudgetRange, price uint64) float64 {
	switch r {
	case BudgetLow:
		switch {
		case price < 50_000:
			return 1.0
		case price < 100_000:
			return 0.7
		}
	case BudgetModerate:
		switch {
		case price >= 50_000 && price < 200_000:
			return 1.0
		case price < 50_000 || price < 300_000:
			return 0.7
		}
	case BudgetPremium:
		switch {
		case price >= 200_000 && price < 500_000:
			return 1.0
		case price >= 100_000 && price < 700_000:
			return 0.7
		}
	case BudgetLuxury:
		switch {
		case price >= 500_000:
			return 1.0
		case price >= 300_000:
			return 0.7
		}
	default:
		return 0.5
	}
	return 0.3
}

// overlapScore is the share of wanted entries found in have. With
// bidirectional set, either string may contain the other.
func overlapScore(wanted, have []string, bidirectional bool) float64 {
	if len(wanted) == 0 || len(have) == 0 {
		return 0.5
	}
	hits := 0
	for _, w := range wanted {
		for _, h := range have {
			if containsFold(h, w) || (bidirectional && containsFold(w, h)) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(wanted))
}

func lifestyleFit(lifestyle string, p Product) float64 {
	occasionHas := func(subs ...string) bool {
		for _, o := range p.Occasions {
			for _, s := range subs {
				if strings.Contains(o, s) {
					return true
				}
			}
		}
		return false
	}

	switch strings.ToLower(lifestyle) {
	case "professional":
		if occasionHas("office", "formal") {
			return 0.9
		}
		if p.VersatilityScore > 0.7 {
			return 0.8
		}
		return 0.5
	case "casual":
		if occasionHas("daily", "casual") {
			return 0.9
		}
		return 0.6
	case "evening":
		if occasionHas("night", "date") {
			return 0.9
		}
		return 0.5
	default:
		return 0.7
	}
}
