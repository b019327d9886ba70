package agent

import (
	"context"
	"strings"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// ConsultationClient talks to the consultation agent.
type ConsultationClient struct {
	c *caller
}

var _ service.ConsultationAgent = (*ConsultationClient)(nil)

type startBody struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

type messageBody struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatReply struct {
	DataCollected     map[string]any `json:"data_collected"`
	Response          string         `json:"response"`
	NextStep          string         `json:"next_step"`
	FollowUpQuestions []string       `json:"follow_up_questions"`
	Progress          float64        `json:"consultation_progress"`
}

// Start opens a consultation session.
func (a *ConsultationClient) Start(ctx context.Context, userID, sessionID string) (service.ConsultationReply, error) {
	var reply chatReply
	if err := a.c.post(ctx, "/consultation/start", startBody{UserID: userID, SessionID: sessionID}, &reply); err != nil {
		return service.ConsultationReply{}, err
	}
	return reply.toService(), nil
}

// Send posts one user message and returns the agent's turn.
func (a *ConsultationClient) Send(ctx context.Context, userID, sessionID, message string) (service.ConsultationReply, error) {
	var reply chatReply
	body := messageBody{UserID: userID, SessionID: sessionID, Message: message}
	if err := a.c.post(ctx, "/consultation/message", body, &reply); err != nil {
		return service.ConsultationReply{}, err
	}
	return reply.toService(), nil
}

func (r chatReply) toService() service.ConsultationReply {
	out := service.ConsultationReply{
		Response:          r.Response,
		NextStep:          r.NextStep,
		FollowUpQuestions: r.FollowUpQuestions,
		DataCollected:     r.DataCollected,
		Progress:          r.Progress,
	}
	if r.Progress >= 1.0 {
		fp := ProfileFromData(r.DataCollected)
		out.Profile = &fp
	}
	return out
}

// ProfileFromData builds a fragrance profile from the fields the
// consultation agent collected. Missing fields stay empty.
func ProfileFromData(data map[string]any) model.FragranceProfile {
	return model.FragranceProfile{
		PersonalityType:     stringField(data, "personality_type"),
		Lifestyle:           stringField(data, "lifestyle"),
		PreferredFamilies:   listField(data, "preferred_families"),
		OccasionPreferences: listField(data, "occasion_preferences"),
		SeasonPreferences:   listField(data, "season_preferences"),
		SensitivityLevel:    stringField(data, "sensitivity_level"),
		Budget:              ParseBudget(stringField(data, "budget_range")),
	}
}

// ParseBudget maps the agent's budget label to a BudgetRange. Unknown
// labels fall back to Moderate.
func ParseBudget(s string) model.BudgetRange {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "budget", "low":
		return model.BudgetLow
	case "premium":
		return model.BudgetPremium
	case "luxury":
		return model.BudgetLuxury
	default:
		return model.BudgetModerate
	}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func listField(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}
