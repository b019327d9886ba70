package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// interviewStep is one question of the offline consultation.
type interviewStep struct {
	key      string
	question string
	options  []string
	keywords map[string][]string
	list     bool
	fallback string
	progress float64
}

var interview = []interviewStep{
	{
		key:      "preferred_families",
		question: "Which scents do you enjoy most? Fresh citrus, soft florals, warm woods, or something sweet?",
		options:  []string{"Fresh and citrusy", "Floral and romantic", "Woody and warm", "Sweet gourmand"},
		keywords: map[string][]string{
			"Citrus":   {"citrus", "lemon", "orange", "jeruk", "fresh"},
			"Floral":   {"floral", "flower", "rose", "jasmine", "melati", "mawar"},
			"Woody":    {"wood", "oud", "sandal", "cendana"},
			"Gourmand": {"sweet", "vanilla", "coffee", "gourmand", "kopi"},
			"Oriental": {"spice", "amber", "oriental", "rempah"},
			"Aquatic":  {"sea", "ocean", "aquatic", "marine"},
		},
		list:     true,
		progress: 0.3,
	},
	{
		key:      "occasion_preferences",
		question: "When would you wear it? Work, evenings out, formal events, or relaxed weekends?",
		options:  []string{"Daily work", "Formal events", "Evening dates", "Casual weekends"},
		keywords: map[string][]string{
			"office":  {"work", "office", "school", "daily"},
			"formal":  {"formal", "meeting", "business", "wedding"},
			"evening": {"evening", "night", "date", "romantic"},
			"casual":  {"casual", "weekend", "relaxed", "hangout"},
		},
		list:     true,
		progress: 0.5,
	},
	{
		key:      "personality_type",
		question: "How would your closest friends describe you?",
		options:  []string{"Bold and confident", "Romantic and gentle", "Elegant and polished", "Fun and playful"},
		keywords: map[string][]string{
			"bold":     {"bold", "confident", "strong", "stand out"},
			"romantic": {"romantic", "gentle", "sweet", "soft"},
			"elegant":  {"elegant", "polished", "professional", "sophisticated"},
			"playful":  {"fun", "playful", "energetic", "cheerful"},
		},
		fallback: "calm",
		progress: 0.7,
	},
	{
		key:      "budget_range",
		question: "What is a comfortable price range for a fragrance you would love?",
		options:  []string{"Under 100K", "100K-300K", "300K-500K", "500K+"},
		keywords: map[string][]string{
			"budget":  {"under 100k", "cheap", "affordable"},
			"premium": {"500k", "quality", "invest", "premium"},
			"luxury":  {"best", "luxury", "expensive", "high-end"},
		},
		fallback: "moderate",
		progress: 0.9,
	},
	{
		key:      "sensitivity_level",
		question: "Any sensitivities to strong scents or specific ingredients?",
		options:  []string{"No sensitivities", "Sensitive to strong scents", "Allergic to some florals"},
		keywords: map[string][]string{
			"sensitive": {"sensitive", "strong", "overpowering"},
			"allergic":  {"allergic", "allergy", "reaction"},
		},
		fallback: "normal",
		progress: 1.0,
	},
}

// OfflineConsultation runs a fixed keyword interview locally. The dev
// shell uses it when no consultation agent is running.
type OfflineConsultation struct {
	sessions map[string]*offlineSession
	mu       sync.Mutex
}

type offlineSession struct {
	data map[string]any
	step int
}

// NewOfflineConsultation creates an empty offline interviewer.
func NewOfflineConsultation() *OfflineConsultation {
	return &OfflineConsultation{sessions: make(map[string]*offlineSession)}
}

var _ service.ConsultationAgent = (*OfflineConsultation)(nil)

// Start implements service.ConsultationAgent.
func (o *OfflineConsultation) Start(_ context.Context, _, sessionID string) (service.ConsultationReply, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[sessionID] = &offlineSession{data: map[string]any{"lifestyle": "casual"}}

	first := interview[0]
	return service.ConsultationReply{
		Response:          "Selamat datang! Let's find your signature scent. " + first.question,
		FollowUpQuestions: first.options,
		NextStep:          first.key,
	}, nil
}

// Send implements service.ConsultationAgent.
func (o *OfflineConsultation) Send(_ context.Context, _, sessionID, message string) (service.ConsultationReply, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.sessions[sessionID]
	if !ok {
		return service.ConsultationReply{}, fmt.Errorf("unknown consultation session %q", sessionID)
	}
	if s.step >= len(interview) {
		return completed(s.data), nil
	}

	step := interview[s.step]
	s.data[step.key] = step.detect(strings.ToLower(message))
	if step.key == "occasion_preferences" {
		s.data["lifestyle"] = lifestyleFor(s.data[step.key].([]string))
	}
	s.step++

	if s.step == len(interview) {
		return completed(s.data), nil
	}
	next := interview[s.step]
	return service.ConsultationReply{
		Response:          "Got it. " + next.question,
		FollowUpQuestions: next.options,
		DataCollected:     map[string]any{step.key: s.data[step.key]},
		Progress:          step.progress,
		NextStep:          next.key,
	}, nil
}

func (st interviewStep) detect(message string) any {
	var hits []string
	for label, words := range st.keywords {
		for _, w := range words {
			if strings.Contains(message, w) {
				hits = append(hits, label)
				break
			}
		}
	}
	sort.Strings(hits)
	if st.list {
		return hits
	}
	if len(hits) == 0 {
		return st.fallback
	}
	return hits[0]
}

func lifestyleFor(occasions []string) string {
	for _, o := range occasions {
		switch o {
		case "office", "formal":
			return "professional"
		case "evening":
			return "evening"
		}
	}
	return "casual"
}

func completed(data map[string]any) service.ConsultationReply {
	snapshot := make(map[string]any, len(data))
	for k, v := range data {
		snapshot[k] = v
	}
	fp := ProfileFromData(snapshot)
	return service.ConsultationReply{
		Response:      fmt.Sprintf("Your profile is ready: %s with a taste for %s.", fp.PersonalityType, strings.Join(fp.PreferredFamilies, ", ")),
		DataCollected: snapshot,
		Progress:      1.0,
		NextStep:      "complete",
		Profile:       &fp,
	}
}

// Generator is the part of the service of record that scores
// recommendations.
type Generator interface {
	GenerateRecommendations(ctx context.Context, userID string) ([]model.Recommendation, error)
}

// LedgerRecommender stands in for the recommendation agent by asking the
// service of record to score recommendations itself.
type LedgerRecommender struct {
	Ledger Generator
}

var _ service.RecommendationAgent = LedgerRecommender{}

// Recommend implements service.RecommendationAgent.
func (r LedgerRecommender) Recommend(ctx context.Context, userID string, _ *model.FragranceProfile) error {
	_, err := r.Ledger.GenerateRecommendations(ctx, userID)
	return err
}
