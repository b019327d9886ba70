package gateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/ledger"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/testutil"
	"github.com/Veraticus/aromance/internal/testutil/catalog"
)

var fastRetry = Config{Retry: service.RetryOptions{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}}

func newTestGateway(t *testing.T) (*Gateway, *ledger.Memory) {
	t.Helper()
	mem, _ := testutil.NewMemoryLedger(t, catalog.NewBuilder(t).WithBasicCatalog().Build())
	return New(mem, fastRetry, nil), mem
}

func newWireClient(t *testing.T, l service.Ledger) *ledger.Client {
	t.Helper()
	srv := httptest.NewServer(ledger.NewServer(l, nil).Router())
	t.Cleanup(srv.Close)
	client, err := ledger.NewClient(ledger.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func TestReadsRetryTransportFailures(t *testing.T) {
	g, mem := newTestGateway(t)
	mem.FailNext(ledger.MethodProducts, errors.New("connection reset"))
	mem.FailNext(ledger.MethodProducts, errors.New("connection reset"))

	products, err := g.Products(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 4)
	assert.Equal(t, 3, mem.Calls(ledger.MethodProducts))
}

func TestReadsGiveUpAfterBound(t *testing.T) {
	g, mem := newTestGateway(t)
	for i := 0; i < 5; i++ {
		mem.FailNext(ledger.MethodUserTransactions, errors.New("timeout"))
	}

	_, err := g.Transactions(context.Background(), "wallet-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, DefaultReadAttempts, mem.Calls(ledger.MethodUserTransactions))
}

func TestWritesAreNeverRetried(t *testing.T) {
	g, mem := newTestGateway(t)
	mem.FailNext(ledger.MethodCreateTransaction, errors.New("connection reset"))

	_, err := g.CreateTransaction(context.Background(), model.Transaction{
		BuyerID: "wallet-1", ProductID: string(catalog.CitrusPagi), Quantity: 1, IdempotencyKey: "k1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, 1, mem.Calls(ledger.MethodCreateTransaction))
}

func TestRejectionsKeepServiceMessage(t *testing.T) {
	g, mem := newTestGateway(t)
	mem.FailNext(ledger.MethodRecommendations, &service.RejectionError{Message: "Service paused"})

	_, err := g.Recommendations(context.Background(), "wallet-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRemoteRejected)
	assert.Equal(t, "Service paused", common.MessageOf(err))
	assert.Equal(t, 1, mem.Calls(ledger.MethodRecommendations), "rejections are final")

	_, err = g.Stake(context.Background(), service.StakeRequest{
		UserID: "ghost", PaymentReceipt: "r1", Amount: 300_000,
		Tier: model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic},
	})
	assert.ErrorIs(t, err, common.ErrRemoteRejected)
	assert.Equal(t, "User not found", common.MessageOf(err))
}

func TestValidationHappensBeforeDispatch(t *testing.T) {
	basic := model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic}

	tests := []struct {
		name   string
		method string
		call   func(g *Gateway) error
	}{
		{"profile without wallet", ledger.MethodGetProfile, func(g *Gateway) error {
			_, err := g.GetProfile(context.Background(), " ")
			return err
		}},
		{"create profile without wallet", ledger.MethodCreateProfile, func(g *Gateway) error {
			_, err := g.CreateProfile(context.Background(), model.UserProfile{Verification: model.Unverified})
			return err
		}},
		{"tier without stake record", ledger.MethodCreateProfile, func(g *Gateway) error {
			p := model.NewUserProfile("wallet-1", testutil.Epoch)
			p.Stake = &model.StakeRecord{Tier: basic, Amount: 300_000}
			p.Verification = model.Elite
			_, err := g.UpdateProfile(context.Background(), p)
			return err
		}},
		{"stake without receipt", ledger.MethodStake, func(g *Gateway) error {
			_, err := g.Stake(context.Background(), service.StakeRequest{UserID: "wallet-1", Amount: 300_000, Tier: basic})
			return err
		}},
		{"stake with unknown tier", ledger.MethodStake, func(g *Gateway) error {
			_, err := g.Stake(context.Background(), service.StakeRequest{UserID: "wallet-1", PaymentReceipt: "r", Amount: 1, Tier: model.StakeTier{}})
			return err
		}},
		{"transaction without idempotency key", ledger.MethodCreateTransaction, func(g *Gateway) error {
			_, err := g.CreateTransaction(context.Background(), model.Transaction{BuyerID: "wallet-1", ProductID: "p", Quantity: 1})
			return err
		}},
		{"transaction without quantity", ledger.MethodCreateTransaction, func(g *Gateway) error {
			_, err := g.CreateTransaction(context.Background(), model.Transaction{BuyerID: "wallet-1", ProductID: "p", IdempotencyKey: "k"})
			return err
		}},
		{"review with bad rating", ledger.MethodCreateReview, func(g *Gateway) error {
			_, err := g.CreateReview(context.Background(), model.Review{ReviewerID: "wallet-1", ProductID: "p", IdempotencyKey: "k", Ratings: model.UniformRatings(6)})
			return err
		}},
		{"search with inverted price range", ledger.MethodSearchProducts, func(g *Gateway) error {
			_, err := g.SearchProducts(context.Background(), model.ProductFilter{MinPrice: 500, MaxPrice: 100})
			return err
		}},
		{"personality search without text", ledger.MethodSearchPersonality, func(g *Gateway) error {
			_, err := g.SearchByPersonality(context.Background(), "  ")
			return err
		}},
		{"reviews without product", ledger.MethodProductReviews, func(g *Gateway) error {
			_, err := g.Reviews(context.Background(), "")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, mem := newTestGateway(t)
			err := tt.call(g)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Zero(t, mem.Calls(tt.method))
		})
	}
}

func TestProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGateway(t)

	p, err := g.GetProfile(ctx, "wallet-1")
	require.NoError(t, err)
	assert.Nil(t, p, "absence is not an error")

	_, err = g.CreateProfile(ctx, model.NewUserProfile("wallet-1", testutil.Epoch))
	require.NoError(t, err)

	p, err = g.GetProfile(ctx, "wallet-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "wallet-1", p.WalletAddress)
}

func TestRateLimiterRespectsContext(t *testing.T) {
	mem, _ := testutil.NewMemoryLedger(t, nil)
	g := New(mem, Config{RateLimit: 0.001, Burst: 1}, nil)

	_, err := g.PlatformStats(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.PlatformStats(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, 1, mem.Calls(ledger.MethodPlatformStatistics))
}

func TestGatewayOverWire(t *testing.T) {
	mem, _ := testutil.NewMemoryLedger(t, catalog.NewBuilder(t).WithFullCatalog().Build())
	client := newWireClient(t, mem)
	g := New(client, fastRetry, nil)

	halal, err := g.HalalProducts(context.Background())
	require.NoError(t, err)
	for _, p := range halal {
		assert.True(t, p.HalalCertified)
	}

	elegant, err := g.SearchByPersonality(context.Background(), " elegant ")
	require.NoError(t, err)
	assert.NotEmpty(t, elegant)
	for _, p := range elegant {
		assert.Contains(t, p.PersonalityMatches, "elegant")
	}

	_, err = g.CreateReview(context.Background(), model.Review{
		ReviewerID: "ghost", ProductID: string(catalog.OudMalam), IdempotencyKey: "rv", Ratings: model.UniformRatings(4),
	})
	assert.ErrorIs(t, err, common.ErrRemoteRejected)
	assert.Equal(t, "User not found", common.MessageOf(err))
}

func TestGatewayOverSQLite(t *testing.T) {
	db := testutil.SetupTestDB(t, catalog.NewBuilder(t).WithBasicCatalog().Build())
	created := db.MustCreateUser("wallet-1")
	g := New(db.Storage, fastRetry, nil)
	ctx := context.Background()

	products, err := g.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(db.Products))

	p, err := g.GetProfile(ctx, "wallet-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, created.WalletAddress, p.WalletAddress)
	assert.True(t, created.CreatedAt.Equal(p.CreatedAt))

	missing, err := g.GetProfile(ctx, "wallet-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
