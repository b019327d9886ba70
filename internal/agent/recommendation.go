package agent

import (
	"context"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// RecommendationClient asks the recommendation agent to refresh a
// user's matches. The agent writes its results to the service of record;
// the reply body is ignored.
type RecommendationClient struct {
	c *caller
}

var _ service.RecommendationAgent = (*RecommendationClient)(nil)

type profileWire struct {
	PersonalityType     string   `json:"personality_type"`
	Lifestyle           string   `json:"lifestyle"`
	SensitivityLevel    string   `json:"sensitivity_level"`
	BudgetRange         string   `json:"budget_range"`
	PreferredFamilies   []string `json:"preferred_families"`
	OccasionPreferences []string `json:"occasion_preferences"`
	SeasonPreferences   []string `json:"season_preferences"`
}

type recommendBody struct {
	Profile *profileWire `json:"fragrance_profile,omitempty"`
	UserID  string       `json:"user_id"`
}

// Recommend requests fresh recommendations for userID. fp may be nil when
// no consultation has completed yet.
func (a *RecommendationClient) Recommend(ctx context.Context, userID string, fp *model.FragranceProfile) error {
	body := recommendBody{UserID: userID}
	if fp != nil {
		body.Profile = &profileWire{
			PersonalityType:     fp.PersonalityType,
			Lifestyle:           fp.Lifestyle,
			SensitivityLevel:    fp.SensitivityLevel,
			BudgetRange:         string(fp.Budget),
			PreferredFamilies:   fp.PreferredFamilies,
			OccasionPreferences: fp.OccasionPreferences,
			SeasonPreferences:   fp.SeasonPreferences,
		}
	}
	return a.c.post(ctx, "/recommend", body, nil)
}
