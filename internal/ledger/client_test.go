package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

func newTestStack(t *testing.T) (*Client, *Memory) {
	t.Helper()
	mem := NewMemory()
	mem.SetClock(func() time.Time { return time.Unix(1_700_000_000, 0).UTC() })
	srv := httptest.NewServer(NewServer(mem, nil).Router())
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client, mem
}

func TestClientProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestStack(t)

	p, err := client.GetProfile(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, p, "missing profile is absence, not an error")

	id, err := client.CreateProfile(ctx, model.NewUserProfile("w1", time.Unix(1_700_000_000, 0)))
	require.NoError(t, err)
	assert.Equal(t, "w1", id)

	ident, err := client.CreateIdentity(ctx, "w1", model.FragranceProfile{PersonalityType: "bold", Budget: model.BudgetPremium})
	require.NoError(t, err)
	assert.Equal(t, "did:icp:aromance:w1", ident.DID)
	assert.Equal(t, model.BudgetPremium, ident.Profile.Budget)

	msg, err := client.Stake(ctx, service.StakeRequest{
		UserID:         "w1",
		Amount:         300_000,
		Tier:           model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic},
		PaymentReceipt: "rcpt-1",
	})
	require.NoError(t, err)
	assert.Contains(t, msg, "300000")

	p, err = client.GetProfile(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "did:icp:aromance:w1", p.DID)
	assert.Equal(t, model.Basic, p.Verification)
	require.NotNil(t, p.Stake)
	assert.Equal(t, uint64(300_000), p.Stake.Amount)
	assert.True(t, p.AIConsent)
}

func TestClientRejectionCarriesServiceMessage(t *testing.T) {
	client, _ := newTestStack(t)

	_, err := client.Stake(context.Background(), service.StakeRequest{
		UserID: "nobody",
		Amount: 100,
		Tier:   model.StakeTier{Role: model.RoleSeller, Level: model.LevelBasic},
	})

	var rej *service.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Insufficient stake amount. Required: 500000 IDR", rej.Message)
}

func TestClientCatalogAndTransactions(t *testing.T) {
	ctx := context.Background()
	client, mem := newTestStack(t)

	mem.AddProduct(model.Product{ID: "p1", SellerID: "s1", Name: "Oud Malam", FragranceFamily: "Woody", PriceIDR: 450_000, HalalCertified: true, Verified: true, Occasions: []string{"evening"}, PersonalityMatches: []string{"Bold", "mysterious"}})
	mem.AddProduct(model.Product{ID: "p2", SellerID: "s1", Name: "Citrus Pagi", FragranceFamily: "Citrus", PriceIDR: 90_000})

	all, err := client.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	woody, err := client.SearchProducts(ctx, model.ProductFilter{Family: "wood", MaxPrice: 500_000})
	require.NoError(t, err)
	require.Len(t, woody, 1)
	assert.Equal(t, "p1", woody[0].ID)
	assert.Equal(t, []string{"evening"}, woody[0].Occasions)

	halal, err := client.HalalProducts(ctx)
	require.NoError(t, err)
	require.Len(t, halal, 1)

	bold, err := client.SearchByPersonality(ctx, "bold")
	require.NoError(t, err)
	require.Len(t, bold, 1)
	assert.Equal(t, "p1", bold[0].ID)
	assert.Equal(t, []string{"Bold", "mysterious"}, bold[0].PersonalityMatches)
	assert.Equal(t, 1, mem.Calls(MethodSearchPersonality))

	none, err := client.SearchByPersonality(ctx, "shy")
	require.NoError(t, err)
	assert.Empty(t, none)

	draft, err := model.NewTransactionDraft("w1", model.CartLine{Product: all[0], Quantity: 1}, "key-1", time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	id, err := client.CreateTransaction(ctx, draft)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := client.CreateTransaction(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, id, again, "same idempotency key yields the same transaction")

	txs, err := client.Transactions(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, model.StatusPending, txs[0].Status)
	assert.Equal(t, model.TierStandard, txs[0].Tier)
	assert.Equal(t, uint64(9_000), txs[0].CommissionAmount)

	sellerView, err := client.Transactions(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, sellerView, 1)

	stats, err := client.PlatformStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats["total_products"])
	assert.Equal(t, uint64(450_000), stats["total_gmv_idr"])
}

func TestClientReviews(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestStack(t)

	_, err := client.CreateProfile(ctx, model.NewUserProfile("w1", time.Now()))
	require.NoError(t, err)

	review := model.Review{ReviewerID: "w1", ProductID: "p1", Ratings: model.UniformRatings(4), IdempotencyKey: "r-1"}
	_, err = client.CreateReview(ctx, review)
	var rej *service.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "User must be verified to create reviews", rej.Message)

	_, err = client.Stake(ctx, service.StakeRequest{UserID: "w1", Amount: 300_000, Tier: model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic}})
	require.NoError(t, err)

	tier := model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic}
	review.ReviewerTier = &tier
	review.ReviewerStake = 300_000
	id, err := client.CreateReview(ctx, review)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	reviews, err := client.Reviews(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.NotNil(t, reviews[0].ReviewerTier)
	assert.Equal(t, tier, *reviews[0].ReviewerTier)
	assert.Equal(t, uint8(4), reviews[0].Ratings.Value)
}

func TestClientRecommendations(t *testing.T) {
	ctx := context.Background()
	client, mem := newTestStack(t)

	_, err := client.GenerateRecommendations(ctx, "w1")
	var rej *service.RejectionError
	require.ErrorAs(t, err, &rej)

	mem.AddProduct(model.Product{ID: "p1", FragranceFamily: "floral", PriceIDR: 100_000, PersonalityMatches: []string{"romantic"}})
	_, err = client.CreateProfile(ctx, model.NewUserProfile("w1", time.Now()))
	require.NoError(t, err)
	_, err = client.CreateIdentity(ctx, "w1", model.FragranceProfile{
		PersonalityType:   "romantic",
		PreferredFamilies: []string{"floral"},
		Budget:            model.BudgetModerate,
	})
	require.NoError(t, err)

	recs, err := client.GenerateRecommendations(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	stored, err := client.Recommendations(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "p1", stored[0].ProductID)
}

func TestClientTransportFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"garbage body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"bad envelope", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"Maybe":"x"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			client, err := NewClient(Config{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = client.CreateTransaction(context.Background(), model.Transaction{
				BuyerID: "w", ProductID: "p", Quantity: 1, Status: model.StatusPending, Tier: model.TierBudget,
			})
			require.Error(t, err)
			var rej *service.RejectionError
			assert.False(t, errors.As(err, &rej), "transport failures are not rejections")
		})
	}
}

func TestServerUnknownMethod(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewMemory(), nil).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/rpc/drop_tables", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerInjectedTransportFailure(t *testing.T) {
	client, mem := newTestStack(t)
	mem.FailNext(MethodProducts, errors.New("disk on fire"))

	_, err := client.Products(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	_, err = client.Products(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, mem.Calls(MethodProducts))
}
