package view

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/session"
)

var (
	oud   = model.Product{ID: "prod_oud", Name: "Oud Malam", Brand: "Rumah Parfum", FragranceFamily: "Woody", PriceIDR: 650_000, Verified: true, HalalCertified: true}
	mawar = model.Product{ID: "prod_mawar", Name: "Mawar Sutra", Brand: "Rumah Parfum", FragranceFamily: "Floral", PriceIDR: 320_000, Verified: true}
)

func recs(n int) []model.Recommendation {
	out := make([]model.Recommendation, n)
	for i := range out {
		out[i] = model.Recommendation{ProductID: fmt.Sprintf("p%02d", i), MatchScore: 1 - float64(i)/100}
	}
	return out
}

func cardIDs(s Section) []string {
	ids := make([]string, len(s.Cards))
	for i, c := range s.Cards {
		ids[i] = c.ID
	}
	return ids
}

func TestProjectBeforeConsultation(t *testing.T) {
	snap := session.Snapshot{
		Identity:        model.Identity{WalletAddress: "wallet-aurora-7x"},
		Consultation:    session.Consultation{State: session.ConsultationNotStarted},
		Cart:            []model.CartLine{{Product: oud, Quantity: 2}, {Product: mawar, Quantity: 1}},
		CartTotal:       1_620_000,
		Loading:         map[string]bool{"orders": true, "products": true},
		Recommendations: recs(3),
	}

	got := Project(snap, Options{})
	want := Model{
		Identity: IdentityBanner{Connected: true, Wallet: "walle...-7x", Tier: "Unverified"},
		Consultation: ConsultationView{
			State:    "NotStarted",
			Progress: ProgressView{Total: 100},
		},
		Cart: CartSummary{
			Total: "Rp 1.620.000",
			Lines: 2,
			Units: 3,
			Items: []CartItem{
				{ProductID: "prod_oud", Name: "Oud Malam", Quantity: 2, Subtotal: "Rp 1.300.000"},
				{ProductID: "prod_mawar", Name: "Mawar Sutra", Quantity: 1, Subtotal: "Rp 320.000"},
			},
		},
		Loading:     []string{"orders", "products"},
		ShowConsult: true,
		ShowCart:    true,
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Project() mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectDisconnected(t *testing.T) {
	got := Project(session.Snapshot{}, Options{})
	assert.False(t, got.ShowConsult)
	assert.False(t, got.ShowCart)
	assert.False(t, got.Identity.Connected)
	assert.Empty(t, got.Identity.Tier)
	assert.True(t, got.IsEmpty())
}

func TestProjectSections(t *testing.T) {
	tests := []struct {
		name      string
		recs      int
		page      int
		wantSizes []int
		wantPage  int
		wantPages int
		firstDisc string
	}{
		{name: "few matches", recs: 4, wantSizes: []int{4}},
		{name: "top and might like", recs: 18, wantSizes: []int{6, 12}},
		{name: "first discover page", recs: 30, wantSizes: []int{6, 12, 8}, wantPages: 2, firstDisc: "p18"},
		{name: "last discover page", recs: 30, page: 1, wantSizes: []int{6, 12, 4}, wantPage: 1, wantPages: 2, firstDisc: "p26"},
		{name: "page past end clamps", recs: 30, page: 9, wantSizes: []int{6, 12, 4}, wantPage: 1, wantPages: 2, firstDisc: "p26"},
		{name: "negative page clamps", recs: 27, page: -1, wantSizes: []int{6, 12, 8}, wantPages: 2, firstDisc: "p18"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := session.Snapshot{
				Identity:        model.Identity{WalletAddress: "w", DID: model.DIDFor("w"), Tier: model.Premium},
				Consultation:    session.Consultation{State: session.ConsultationCompleted, Progress: 1},
				Recommendations: recs(tt.recs),
			}
			got := Project(snap, Options{Page: tt.page})

			assert.False(t, got.ShowConsult)
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantPages, got.Pages)
			sizes := make([]int, len(got.Sections))
			for i, s := range got.Sections {
				sizes[i] = len(s.Cards)
			}
			assert.Equal(t, tt.wantSizes, sizes)
			assert.Equal(t, "AI Recommended For You", got.Sections[0].Title)
			if tt.firstDisc != "" {
				disc := got.Sections[2]
				assert.Equal(t, SectionDiscover, disc.Kind)
				assert.Equal(t, tt.firstDisc, cardIDs(disc)[0])
			}
		})
	}
}

func TestProjectBadges(t *testing.T) {
	snap := session.Snapshot{
		Identity:        model.Identity{WalletAddress: "w", Tier: model.Basic},
		Consultation:    session.Consultation{State: session.ConsultationCompleted, Progress: 1},
		Products:        []model.Product{oud, mawar},
		Recommendations: append([]model.Recommendation{
			{ProductID: "prod_oud", MatchScore: 0.95},
		}, append(recs(6), model.Recommendation{ProductID: "prod_mawar", MatchScore: 0.1})...),
	}

	got := Project(snap, Options{})
	want := []Section{
		{
			Kind:  SectionAIRecommended,
			Title: "AI Recommended For You",
			Cards: []ProductCard{
				{ID: "prod_oud", Name: "Oud Malam", Brand: "Rumah Parfum", Family: "Woody", Price: "Rp 650.000", MatchScore: 0.95, Badges: []Badge{BadgeVerified, BadgeHalal, BadgeAI}},
			},
		},
		{
			Kind:  SectionMightLike,
			Title: "You Might Also Like",
			Cards: []ProductCard{
				{ID: "prod_mawar", Name: "Mawar Sutra", Brand: "Rumah Parfum", Family: "Floral", Price: "Rp 320.000", MatchScore: 0.1, Badges: []Badge{BadgeVerified}},
			},
		},
	}
	// Only the named products matter here.
	filtered := make([]Section, len(got.Sections))
	for i, s := range got.Sections {
		filtered[i] = Section{Kind: s.Kind, Title: s.Title}
		for _, c := range s.Cards {
			if c.ID == "prod_oud" || c.ID == "prod_mawar" {
				filtered[i].Cards = append(filtered[i].Cards, c)
			}
		}
	}
	if diff := cmp.Diff(want, filtered); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}

	unknown := got.Sections[0].Cards[1]
	assert.Equal(t, "p00", unknown.Name)
	assert.Equal(t, []Badge{BadgeAI}, unknown.Badges)
	assert.True(t, got.Identity.Verified)
	assert.Equal(t, "Basic", got.Identity.Tier)
}

func TestProjectConsultationProgress(t *testing.T) {
	snap := session.Snapshot{
		Identity: model.Identity{WalletAddress: "w"},
		Consultation: session.Consultation{
			State:     session.ConsultationInProgress,
			Progress:  0.7,
			NextStep:  "budget",
			FollowUps: []string{"What is your budget?"},
			Transcript: []session.Turn{
				{Role: session.RoleAgent, Content: "Welcome"},
				{Role: session.RoleUser, Content: "I like woody scents"},
				{Role: session.RoleAgent, Content: "Great choice. What is your budget?"},
				{Role: session.RoleUser, Content: "hmm"},
			},
		},
	}

	got := Project(snap, Options{}).Consultation
	assert.Equal(t, ProgressView{Current: 70, Total: 100}, got.Progress)
	assert.Equal(t, "Great choice. What is your budget?", got.LastReply)
	assert.Equal(t, "InProgress", got.State)
	assert.False(t, got.Progress.IsComplete())
	assert.Equal(t, "███████░░░", got.Progress.Bar(10))
}

func TestFormatIDR(t *testing.T) {
	tests := []struct {
		amount uint64
		want   string
	}{
		{0, "Rp 0"},
		{85_000, "Rp 85.000"},
		{1_250_000, "Rp 1.250.000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatIDR(tt.amount))
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "Oud Malam", TruncateString("Oud Malam", 20))
	assert.Equal(t, "Amber K...", TruncateString("Amber Keraton", 10))
	assert.Equal(t, "Am", TruncateString("Amber", 2))
}
