package model

import (
	"strings"
	"time"
)

// Product is read-only catalog reference data.
type Product struct {
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ID                 string
	SellerID           string
	Name               string
	Brand              string
	Description        string
	FragranceFamily    string
	Longevity          string
	Sillage            string
	Projection         string
	TopNotes           []string
	MiddleNotes        []string
	BaseNotes          []string
	Occasions          []string
	Seasons            []string
	PersonalityMatches []string
	Images             []string
	PriceIDR           uint64
	VersatilityScore   float64
	Stock              uint32
	HalalCertified     bool
	Verified           bool
	AIAnalyzed         bool
}

// ProductFilter narrows a catalog search. Zero values mean "any".
type ProductFilter struct {
	Family       string
	Occasion     string
	Season       string
	MinPrice     uint64
	MaxPrice     uint64
	VerifiedOnly bool
	HalalOnly    bool
}

// Matches reports whether p satisfies the filter. Text criteria match
// case-insensitively on substrings.
func (f ProductFilter) Matches(p Product) bool {
	if f.Family != "" && !containsFold(p.FragranceFamily, f.Family) {
		return false
	}
	if f.MinPrice > 0 && p.PriceIDR < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.PriceIDR > f.MaxPrice {
		return false
	}
	if f.Occasion != "" && !anyContainsFold(p.Occasions, f.Occasion) {
		return false
	}
	if f.Season != "" && !anyContainsFold(p.Seasons, f.Season) {
		return false
	}
	if f.VerifiedOnly && !p.Verified {
		return false
	}
	if f.HalalOnly && !p.HalalCertified {
		return false
	}
	return true
}

// MatchesPersonality reports whether one of p's personality matches
// contains query, ignoring case. A blank query matches nothing.
func (p Product) MatchesPersonality(query string) bool {
	query = strings.TrimSpace(query)
	return query != "" && anyContainsFold(p.PersonalityMatches, query)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func anyContainsFold(list []string, sub string) bool {
	for _, v := range list {
		if containsFold(v, sub) {
			return true
		}
	}
	return false
}

// Recommendation is an AI-generated product match for a user.
type Recommendation struct {
	GeneratedAt          time.Time
	ID                   string
	UserID               string
	ProductID            string
	Reasoning            string
	MatchScore           float64
	PersonalityAlignment float64
	LifestyleFit         float64
	OccasionMatch        float64
	BudgetCompatibility  float64
	SeasonalRelevance    float64
	TrendFactor          float64
	Confidence           float64
}

// Clone returns a copy of p that shares no slices with it.
func (p Product) Clone() Product {
	out := p
	out.TopNotes = cloneStrings(p.TopNotes)
	out.MiddleNotes = cloneStrings(p.MiddleNotes)
	out.BaseNotes = cloneStrings(p.BaseNotes)
	out.Occasions = cloneStrings(p.Occasions)
	out.Seasons = cloneStrings(p.Seasons)
	out.PersonalityMatches = cloneStrings(p.PersonalityMatches)
	out.Images = cloneStrings(p.Images)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
