package session

import (
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	citrus = model.Product{ID: "prod_citrus", Name: "Citrus Pagi", PriceIDR: 85_000, Occasions: []string{"daily"}}
	oud    = model.Product{ID: "prod_oud", Name: "Oud Malam", PriceIDR: 650_000}
)

func connected(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.SetWallet("wallet-1"))
	return s
}

func stakedProfile(tier model.StakeTier) model.UserProfile {
	p := model.NewUserProfile("wallet-1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	rec, _ := model.NewStakeRecord(300_000, tier, p.CreatedAt)
	p.Stake = &rec
	p.Verification = tier.Verification()
	return p
}

func TestCartOperations(t *testing.T) {
	s := connected(t)

	require.NoError(t, s.AddToCart(citrus, 1))
	require.NoError(t, s.AddToCart(oud, 2))
	require.NoError(t, s.AddToCart(citrus, 2))

	lines := s.CartLines()
	require.Len(t, lines, 2)
	assert.Equal(t, citrus.ID, lines[0].Product.ID, "insertion order is kept")
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, uint64(3*85_000+2*650_000), s.CartTotal())

	require.NoError(t, s.SetQuantity(oud.ID, 1))
	assert.Equal(t, uint64(3*85_000+650_000), s.CartTotal())

	require.NoError(t, s.SetQuantity(oud.ID, 0))
	assert.Len(t, s.CartLines(), 1)

	require.NoError(t, s.AddToCart(citrus, -3))
	assert.Empty(t, s.CartLines(), "dropping to zero removes the line")

	err := s.AddToCart(citrus, 0)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.ErrorIs(t, s.AddToCart(model.Product{}, 1), common.ErrValidation)
	assert.ErrorIs(t, s.SetQuantity("prod_missing", 2), common.ErrValidation)

	require.NoError(t, s.AddToCart(oud, 1))
	s.RemoveFromCart("prod_missing")
	s.RemoveFromCart(oud.ID)
	assert.Zero(t, s.CartTotal())
}

func TestCartTotalUsesCatalogPrice(t *testing.T) {
	s := connected(t)
	require.NoError(t, s.AddToCart(citrus, 2))

	repriced := citrus
	repriced.PriceIDR = 90_000
	s.SetProducts([]model.Product{repriced, oud})

	assert.Equal(t, uint64(180_000), s.CartTotal())
	assert.Equal(t, uint64(90_000), s.CartLines()[0].Product.PriceIDR)

	s.Invalidate(EntryProducts)
	assert.Equal(t, uint64(170_000), s.CartTotal(), "captured price is the fallback")
}

func TestCartQuantityBounds(t *testing.T) {
	pricey := model.Product{ID: "prod_pricey", Name: "Pricey", PriceIDR: math.MaxUint64 / 2}

	tests := []struct {
		name    string
		run     func(s *Store) error
		wantMsg string
	}{
		{
			name:    "add above max quantity",
			run:     func(s *Store) error { return s.AddToCart(citrus, model.MaxQuantity+1) },
			wantMsg: "quantity must be between 1 and 4294967295",
		},
		{
			name: "accumulated add above max quantity",
			run: func(s *Store) error {
				if err := s.AddToCart(citrus, model.MaxQuantity); err != nil {
					return err
				}
				return s.AddToCart(citrus, 1)
			},
			wantMsg: "quantity must be between 1 and 4294967295",
		},
		{
			name: "set above max quantity",
			run: func(s *Store) error {
				if err := s.AddToCart(citrus, 1); err != nil {
					return err
				}
				return s.SetQuantity(citrus.ID, model.MaxQuantity+1)
			},
			wantMsg: "quantity must be between 1 and 4294967295",
		},
		{
			name:    "line total overflows",
			run:     func(s *Store) error { return s.AddToCart(pricey, 3) },
			wantMsg: "line total is too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := connected(t)
			err := tt.run(s)
			require.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, tt.wantMsg, common.MessageOf(err))
			for _, l := range s.CartLines() {
				assert.LessOrEqual(t, uint64(l.Quantity), uint64(model.MaxQuantity))
			}
		})
	}
}

func TestCartTotalSaturates(t *testing.T) {
	s := connected(t)
	half := model.Product{ID: "prod_a", PriceIDR: math.MaxUint64 / 2}
	other := model.Product{ID: "prod_b", PriceIDR: math.MaxUint64 / 2}
	require.NoError(t, s.AddToCart(half, 1))
	require.NoError(t, s.AddToCart(other, 1))
	require.NoError(t, s.AddToCart(citrus, 5))

	assert.Equal(t, uint64(math.MaxUint64), s.CartTotal(), "sums clamp instead of wrapping")
	assert.Equal(t, uint64(math.MaxUint64), s.Snapshot().CartTotal)
}

func TestRandomCartSequence(t *testing.T) {
	products := []model.Product{
		citrus,
		oud,
		{ID: "prod_mawar", Name: "Mawar Sutra", PriceIDR: 320_000},
	}
	prices := make(map[string]uint64, len(products))
	for _, p := range products {
		prices[p.ID] = p.PriceIDR
	}

	s := connected(t)
	rng := rand.New(rand.NewSource(20240601))
	want := map[string]int{}
	for step := 0; step < 500; step++ {
		p := products[rng.Intn(len(products))]
		switch rng.Intn(3) {
		case 0:
			qty := rng.Intn(7) - 2
			err := s.AddToCart(p, qty)
			_, inCart := want[p.ID]
			if !inCart && qty <= 0 {
				require.ErrorIs(t, err, common.ErrValidation, "step %d", step)
				continue
			}
			require.NoError(t, err, "step %d", step)
			want[p.ID] += qty
			if want[p.ID] <= 0 {
				delete(want, p.ID)
			}
		case 1:
			s.RemoveFromCart(p.ID)
			delete(want, p.ID)
		default:
			qty := rng.Intn(6) - 1
			err := s.SetQuantity(p.ID, qty)
			if _, inCart := want[p.ID]; !inCart {
				require.ErrorIs(t, err, common.ErrValidation, "step %d", step)
				continue
			}
			require.NoError(t, err, "step %d", step)
			if qty <= 0 {
				delete(want, p.ID)
			} else {
				want[p.ID] = qty
			}
		}

		var total uint64
		for id, qty := range want {
			total += prices[id] * uint64(qty)
		}
		require.Equal(t, total, s.CartTotal(), "step %d", step)
		require.Len(t, s.CartLines(), len(want), "step %d", step)
	}
}

func TestValuesAreCopied(t *testing.T) {
	s := connected(t)
	in := citrus.Clone()
	s.SetProducts([]model.Product{in})

	in.Occasions[0] = "changed"
	out := s.Products()
	assert.Equal(t, "daily", out[0].Occasions[0])

	out[0].Occasions[0] = "changed again"
	assert.Equal(t, "daily", s.Products()[0].Occasions[0])

	p := stakedProfile(model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic})
	require.True(t, s.SetProfile(p))
	got := s.Profile()
	got.Stake.Amount = 1
	assert.Equal(t, uint64(300_000), s.Profile().Stake.Amount)
}

func TestSetIdentity(t *testing.T) {
	basic := model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic}

	tests := []struct {
		name    string
		setup   func(s *Store)
		patch   IdentityPatch
		wantErr bool
		want    model.Identity
	}{
		{
			name:  "sets did once",
			patch: IdentityPatch{DID: model.DIDFor("wallet-1")},
			want:  model.Identity{WalletAddress: "wallet-1", DID: model.DIDFor("wallet-1"), Tier: model.Unverified},
		},
		{
			name:  "same did again is a no-op",
			setup: func(s *Store) { require.NoError(t, s.SetIdentity(IdentityPatch{DID: model.DIDFor("wallet-1")})) },
			patch: IdentityPatch{DID: model.DIDFor("wallet-1")},
			want:  model.Identity{WalletAddress: "wallet-1", DID: model.DIDFor("wallet-1"), Tier: model.Unverified},
		},
		{
			name:    "different did is refused",
			setup:   func(s *Store) { require.NoError(t, s.SetIdentity(IdentityPatch{DID: model.DIDFor("wallet-1")})) },
			patch:   IdentityPatch{DID: model.DIDFor("other")},
			wantErr: true,
			want:    model.Identity{WalletAddress: "wallet-1", DID: model.DIDFor("wallet-1"), Tier: model.Unverified},
		},
		{
			name:    "malformed did is refused",
			patch:   IdentityPatch{DID: "abc"},
			wantErr: true,
			want:    model.Identity{WalletAddress: "wallet-1", Tier: model.Unverified},
		},
		{
			name:    "tier without stake is refused",
			patch:   IdentityPatch{Tier: model.Basic},
			wantErr: true,
			want:    model.Identity{WalletAddress: "wallet-1", Tier: model.Unverified},
		},
		{
			name:    "tier must match the stake",
			setup:   func(s *Store) { s.SetProfile(stakedProfile(basic)) },
			patch:   IdentityPatch{Tier: model.Elite},
			wantErr: true,
			want:    model.Identity{WalletAddress: "wallet-1", Tier: model.Unverified},
		},
		{
			name:  "did and tier apply together",
			setup: func(s *Store) { s.SetProfile(stakedProfile(basic)) },
			patch: IdentityPatch{DID: model.DIDFor("wallet-1"), Tier: model.Basic},
			want:  model.Identity{WalletAddress: "wallet-1", DID: model.DIDFor("wallet-1"), Tier: model.Basic},
		},
		{
			name:    "bad tier rejects the whole patch",
			patch:   IdentityPatch{DID: model.DIDFor("wallet-1"), Tier: model.Premium},
			wantErr: true,
			want:    model.Identity{WalletAddress: "wallet-1", Tier: model.Unverified},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := connected(t)
			if tt.setup != nil {
				tt.setup(s)
			}
			err := s.SetIdentity(tt.patch)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, s.Identity())
		})
	}

	assert.ErrorIs(t, NewStore().SetIdentity(IdentityPatch{DID: model.DIDFor("x")}), common.ErrValidation)
}

func TestIdentityChangesResetUserState(t *testing.T) {
	s := connected(t)
	gen := s.Generation()
	require.NoError(t, s.AddToCart(citrus, 1))
	s.SetProducts([]model.Product{citrus})
	require.True(t, s.SetProfile(model.NewUserProfile("wallet-1", time.Now())))
	s.SetTransactions([]model.Transaction{{ID: "tx1", BuyerID: "wallet-1"}})

	require.NoError(t, s.SetWallet("wallet-1"))
	assert.Equal(t, gen, s.Generation(), "same wallet keeps the session")

	s.ClearIdentity()
	assert.False(t, s.Identity().Connected())
	assert.Greater(t, s.Generation(), gen)
	assert.Empty(t, s.CartLines())
	assert.Nil(t, s.Profile())
	assert.Empty(t, s.Transactions())
	assert.Len(t, s.Products(), 1, "catalog is not user data")

	assert.False(t, s.SetProfile(model.NewUserProfile("wallet-1", time.Now())), "profile for a signed-out wallet is dropped")
	assert.ErrorIs(t, s.SetWallet(""), common.ErrValidation)
}

func TestStaleResultsAreDropped(t *testing.T) {
	s := connected(t)
	gen := s.Generation()

	require.NoError(t, s.SetWallet("wallet-2"))
	assert.False(t, s.Current(gen))
	assert.False(t, s.SetRecommendationsAt(gen, []model.Recommendation{{ID: "r1"}}))
	assert.False(t, s.SetTransactionsAt(gen, []model.Transaction{{ID: "tx1"}}))
	assert.False(t, s.UpdateConsultation(gen, func(c *Consultation) { c.State = ConsultationCompleted }))
	assert.Empty(t, s.Recommendations())
	assert.Empty(t, s.Transactions())
	assert.Equal(t, ConsultationNotStarted, s.Consultation().State)

	now := s.Generation()
	assert.True(t, s.SetRecommendationsAt(now, []model.Recommendation{
		{ID: "low", ProductID: "b", MatchScore: 0.7},
		{ID: "high", ProductID: "a", MatchScore: 0.9},
	}))
	assert.Equal(t, "high", s.Recommendations()[0].ID)
}

func TestBeginGuardsPerKey(t *testing.T) {
	s := connected(t)

	release, err := s.Begin("stake")
	require.NoError(t, err)
	assert.True(t, s.Loading()["stake"])

	_, err = s.Begin("stake")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "operation already in progress", common.MessageOf(err))

	other, err := s.Begin("cart")
	require.NoError(t, err, "keys are independent")
	other()

	release()
	release()
	assert.False(t, s.Loading()["stake"])

	again, err := s.Begin("stake")
	require.NoError(t, err)
	again()
}

func TestSubscribersRunOutsideLock(t *testing.T) {
	s := NewStore()
	var seen []Change
	var totals []uint64
	unsubscribe := s.Subscribe(func(c Change) {
		seen = append(seen, c)
		if c == ChangeCart {
			totals = append(totals, s.CartTotal())
		}
	})

	require.NoError(t, s.SetWallet("wallet-1"))
	require.NoError(t, s.AddToCart(citrus, 2))
	assert.Contains(t, seen, ChangeIdentity)
	assert.Equal(t, uint64(170_000), totals[len(totals)-1])

	unsubscribe()
	unsubscribe()
	n := len(seen)
	s.ClearCart()
	assert.Len(t, seen, n)
}

func TestConcurrentMutations(t *testing.T) {
	s := connected(t)
	var notified sync.WaitGroup
	var mu sync.Mutex
	count := 0
	unsubscribe := s.Subscribe(func(c Change) {
		if c == ChangeCart {
			mu.Lock()
			count++
			mu.Unlock()
		}
	})
	defer unsubscribe()

	for i := 0; i < 50; i++ {
		notified.Add(1)
		go func() {
			defer notified.Done()
			_ = s.AddToCart(citrus, 1)
			_ = s.Snapshot()
		}()
	}
	notified.Wait()

	assert.Equal(t, 50, s.CartLines()[0].Quantity)
	mu.Lock()
	assert.Equal(t, 50, count)
	mu.Unlock()
}

func TestSnapshot(t *testing.T) {
	s := connected(t)
	s.SetProducts([]model.Product{citrus, oud})
	require.NoError(t, s.AddToCart(oud, 2))
	s.SetLoading("recommendations", true)
	require.True(t, s.UpdateConsultation(s.Generation(), func(c *Consultation) {
		c.State = ConsultationInProgress
		c.SessionID = "session-1"
		c.Transcript = append(c.Transcript, Turn{Role: RoleAgent, Content: "Hi"})
	}))

	snap := s.Snapshot()
	assert.Equal(t, "wallet-1", snap.Identity.WalletAddress)
	assert.Len(t, snap.Products, 2)
	assert.Equal(t, uint64(1_300_000), snap.CartTotal)
	assert.True(t, snap.Loading["recommendations"])
	assert.Equal(t, ConsultationInProgress, snap.Consultation.State)
	assert.Len(t, snap.Consultation.Transcript, 1)

	s.SetLoading("recommendations", false)
	assert.True(t, snap.Loading["recommendations"], "snapshot is detached")
}

func TestReviewsAndPurchaseGate(t *testing.T) {
	s := connected(t)
	s.SetTransactions([]model.Transaction{
		{ID: "tx1", BuyerID: "wallet-1", ProductID: oud.ID, Status: model.StatusPending},
		{ID: "tx2", BuyerID: "wallet-1", ProductID: citrus.ID, Status: model.StatusCompleted},
	})
	assert.True(t, s.HasCompletedPurchase("wallet-1", citrus.ID))
	assert.False(t, s.HasCompletedPurchase("wallet-1", oud.ID))
	assert.False(t, s.HasCompletedPurchase("wallet-2", citrus.ID))

	tier := model.StakeTier{Role: model.RoleReviewer, Level: model.LevelBasic}
	s.SetReviews(citrus.ID, []model.Review{{ID: "rv1", ReviewerTier: &tier}})
	got := s.Reviews(citrus.ID)
	require.Len(t, got, 1)
	got[0].ReviewerTier.Level = model.LevelElite
	assert.Equal(t, model.LevelBasic, s.Reviews(citrus.ID)[0].ReviewerTier.Level)

	s.Invalidate(EntryReviews)
	assert.Empty(t, s.Reviews(citrus.ID))
}
