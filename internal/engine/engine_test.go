package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Veraticus/aromance/internal/agent"
	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/gateway"
	"github.com/Veraticus/aromance/internal/ledger"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/session"
	"github.com/Veraticus/aromance/internal/testutil"
	"github.com/Veraticus/aromance/internal/testutil/catalog"
	"github.com/Veraticus/aromance/internal/wallet"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	testWallet   = "wallet-aurora-7x"
	testTreasury = "treasury-principal"
)

var woody = model.FragranceProfile{
	PersonalityType:     "bold",
	Lifestyle:           "professional",
	PreferredFamilies:   []string{"Woody"},
	OccasionPreferences: []string{"formal"},
	SeasonPreferences:   []string{"tropical_wet"},
	SensitivityLevel:    "normal",
	Budget:              model.BudgetLuxury,
}

// callLog records remote calls across collaborators in order.
type callLog struct {
	calls []string
	mu    sync.Mutex
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// recordingGateway logs selected gateway calls and can fail the n-th
// transaction submission.
type recordingGateway struct {
	*gateway.Gateway
	log    *callLog
	txFail map[int]error
	txKeys []string
	txN    int
	mu     sync.Mutex
}

func (g *recordingGateway) CreateIdentity(ctx context.Context, userID string, fp model.FragranceProfile) (model.DecentralizedIdentity, error) {
	g.log.add("create_identity")
	return g.Gateway.CreateIdentity(ctx, userID, fp)
}

func (g *recordingGateway) UpdateProfile(ctx context.Context, profile model.UserProfile) (string, error) {
	g.log.add("update_profile")
	return g.Gateway.UpdateProfile(ctx, profile)
}

func (g *recordingGateway) Recommendations(ctx context.Context, userID string) ([]model.Recommendation, error) {
	g.log.add("recommendations")
	return g.Gateway.Recommendations(ctx, userID)
}

func (g *recordingGateway) Stake(ctx context.Context, req service.StakeRequest) (string, error) {
	g.log.add("stake")
	return g.Gateway.Stake(ctx, req)
}

func (g *recordingGateway) CreateTransaction(ctx context.Context, tx model.Transaction) (string, error) {
	g.mu.Lock()
	g.txN++
	n := g.txN
	g.txKeys = append(g.txKeys, tx.IdempotencyKey)
	err := g.txFail[n]
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	return g.Gateway.CreateTransaction(ctx, tx)
}

func (g *recordingGateway) keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.txKeys...)
}

type noticeLog struct {
	notices []Notice
	mu      sync.Mutex
}

func (n *noticeLog) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeLog) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return Notice{}
	}
	return n.notices[len(n.notices)-1]
}

type harness struct {
	o         *Orchestrator
	store     *session.Store
	mem       *ledger.Memory
	gw        *recordingGateway
	wallet    *wallet.Mock
	consult   *agent.MockConsultation
	recs      *agent.MockRecommender
	inventory *agent.MockInventory
	analytics *agent.MockAnalytics
	journal   *MemoryJournal
	notices   *noticeLog
	log       *callLog
	clock     *testutil.Clock
	products  catalog.Products
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	products := catalog.NewBuilder(t).WithBasicCatalog().Build()
	mem, clock := testutil.NewMemoryLedger(t, products)

	log := &callLog{}
	gw := &recordingGateway{
		Gateway: gateway.New(mem, gateway.Config{
			Retry: service.RetryOptions{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		}, nil),
		log:    log,
		txFail: make(map[int]error),
	}
	h := &harness{
		store:     session.NewStore(),
		mem:       mem,
		gw:        gw,
		wallet:    wallet.NewMock(testWallet),
		consult:   &agent.MockConsultation{},
		inventory: &agent.MockInventory{},
		analytics: &agent.MockAnalytics{},
		journal:   NewMemoryJournal(clock.Now),
		notices:   &noticeLog{},
		log:       log,
		clock:     clock,
		products:  products,
	}
	h.recs = &agent.MockRecommender{RecommendFn: func(ctx context.Context, userID string, _ *model.FragranceProfile) error {
		log.add("recommend")
		_, err := mem.GenerateRecommendations(ctx, userID)
		return err
	}}

	var seq int
	var seqMu sync.Mutex
	o, err := NewWithConfig(Deps{
		Gateway:      gw,
		Store:        h.store,
		Wallet:       h.wallet,
		Consultation: h.consult,
		Recommender:  h.recs,
		Inventory:    h.inventory,
		Analytics:    h.analytics,
		Journal:      h.journal,
		Notifier:     h.notices,
	}, Config{
		Now: clock.Now,
		NewKey: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("key-%d", seq)
		},
		Treasury:     testTreasury,
		AgentTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(o.Close)
	h.o = o
	return h
}

func (h *harness) onboard(t *testing.T) {
	t.Helper()
	require.NoError(t, h.o.Onboard(context.Background()))
}

func (h *harness) consultDone(t *testing.T) {
	t.Helper()
	h.consult.Replies = []service.ConsultationReply{agent.CompletedReply(woody)}
	ctx := context.Background()
	require.NoError(t, h.o.StartConsultation(ctx))
	require.NoError(t, h.o.SendMessage(ctx, "I love oud at formal dinners"))
}

func (h *harness) product(t *testing.T, id catalog.ProductID) model.Product {
	t.Helper()
	return h.products.MustFind(t, id)
}

func TestNewRequiresCoreDeps(t *testing.T) {
	_, err := New(Deps{Store: session.NewStore()})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestOnboardCreatesDefaultProfile(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	remote, err := h.mem.GetProfile(context.Background(), testWallet)
	require.NoError(t, err)
	require.NotNil(t, remote)
	assert.True(t, remote.AIConsent)
	assert.True(t, remote.DataMonetizationConsent)
	assert.Zero(t, remote.ReputationScore)
	assert.Zero(t, remote.TotalTransactions)
	assert.Equal(t, model.Unverified, remote.Verification)

	cached := h.store.Profile()
	require.NotNil(t, cached)
	assert.Equal(t, testWallet, cached.WalletAddress)
	assert.Equal(t, testWallet, h.store.Identity().WalletAddress)
	assert.Equal(t, session.ConsultationNotStarted, h.store.Consultation().State)
}

func TestOnboardTwiceAdoptsExistingProfile(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)
	h.onboard(t)

	assert.Equal(t, 1, h.mem.Calls(ledger.MethodCreateProfile))
	assert.Equal(t, 2, h.mem.Calls(ledger.MethodGetProfile))
	require.NotNil(t, h.store.Profile())
}

func TestOnboardAdoptsCompletedConsultation(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)
	h.consultDone(t)

	h.o.Disconnect()
	require.Nil(t, h.store.Profile())
	h.onboard(t)

	assert.Equal(t, session.ConsultationCompleted, h.store.Consultation().State)
	assert.Equal(t, model.DIDFor(testWallet), h.store.Identity().DID)
	assert.NotEmpty(t, h.store.Recommendations())
}

func TestConnectWalletDeclined(t *testing.T) {
	tests := []struct {
		name       string
		connect    func(context.Context, service.ConnectRequest) (bool, error)
		wantAction bool
	}{
		{
			name: "user cancels",
			connect: func(context.Context, service.ConnectRequest) (bool, error) {
				return false, nil
			},
		},
		{
			name: "no extension",
			connect: func(context.Context, service.ConnectRequest) (bool, error) {
				return false, &common.Error{Kind: common.ErrDeclined, Op: "wallet_connect", Message: "Install a wallet extension to continue", Err: wallet.ErrWalletUnavailable}
			},
			wantAction: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.wallet.ConnectFn = tt.connect

			err := h.o.Onboard(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrDeclined)
			assert.False(t, h.store.Identity().Connected())
			assert.Zero(t, h.mem.Calls(ledger.MethodGetProfile))

			n := h.notices.last()
			assert.Equal(t, LevelWarning, n.Level)
			if tt.wantAction {
				assert.Contains(t, n.Action, "Install")
			}
		})
	}
}

func TestConnectWalletSendsHostAndServices(t *testing.T) {
	h := newHarness(t)
	h.o.cfg.ServiceIDs = []string{"ledger-canister"}
	h.onboard(t)

	require.Len(t, h.wallet.ConnectCalls, 1)
	assert.Equal(t, "https://aromance.app", h.wallet.ConnectCalls[0].Host)
	assert.Equal(t, []string{"ledger-canister"}, h.wallet.ConnectCalls[0].AllowedServiceIDs)
}

func TestBootstrapFailureIsReportedNotRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mem.FailNext(ledger.MethodCreateProfile, errors.New("connection reset"))

	err := h.o.Onboard(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Equal(t, 1, h.mem.Calls(ledger.MethodCreateProfile))
	assert.True(t, h.store.Identity().Connected())
	assert.Nil(t, h.store.Profile())
	assert.Equal(t, LevelError, h.notices.last().Level)

	require.NoError(t, h.o.Bootstrap(ctx))
	assert.NotNil(t, h.store.Profile())
}

func TestBootstrapLoadsOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.mem.CreateProfile(ctx, model.NewUserProfile(testWallet, testutil.Epoch))
	require.NoError(t, err)
	seed, err := model.NewTransactionDraft(testWallet,
		model.CartLine{Product: h.product(t, catalog.CitrusPagi), Quantity: 1}, "seed", testutil.Epoch)
	require.NoError(t, err)
	_, err = h.mem.CreateTransaction(ctx, seed)
	require.NoError(t, err)

	h.onboard(t)
	assert.Len(t, h.store.Transactions(), 1)
	assert.Zero(t, h.mem.Calls(ledger.MethodCreateProfile))
}

func TestDisconnectClearsSession(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)
	require.NoError(t, h.store.AddToCart(h.product(t, catalog.CitrusPagi), 2))
	gen := h.store.Generation()

	h.o.Disconnect()

	assert.False(t, h.store.Identity().Connected())
	assert.Empty(t, h.store.CartLines())
	assert.Nil(t, h.store.Profile())
	assert.Greater(t, h.store.Generation(), gen)
}

func TestConsultationCompletionOrder(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)

	var didAtRecommend string
	h.recs.RecommendFn = func(ctx context.Context, userID string, fp *model.FragranceProfile) error {
		h.log.add("recommend")
		didAtRecommend = h.store.Identity().DID
		require.NotNil(t, fp)
		assert.Equal(t, "bold", fp.PersonalityType)
		_, err := h.mem.GenerateRecommendations(ctx, userID)
		return err
	}
	h.consultDone(t)

	assert.Equal(t, []string{"create_identity", "update_profile", "recommend", "recommendations"}, h.log.list())
	assert.Equal(t, model.DIDFor(testWallet), didAtRecommend)
	assert.Equal(t, session.ConsultationCompleted, h.store.Consultation().State)
	assert.NotEmpty(t, h.store.Recommendations())

	remote, err := h.mem.GetProfile(context.Background(), testWallet)
	require.NoError(t, err)
	assert.True(t, remote.ConsultationCompleted)
	assert.Equal(t, model.DIDFor(testWallet), remote.DID)

	c := h.store.Consultation()
	require.Len(t, c.Transcript, 3)
	assert.Equal(t, session.RoleUser, c.Transcript[1].Role)
	assert.Equal(t, LevelSuccess, h.notices.last().Level)

	h.o.Close()
	assert.Equal(t, []string{EventRecsLoaded}, h.analytics.EventTypes())
	props := h.analytics.Events()[0].Properties
	assert.Equal(t, "bold", props["personality_type"])
}

func TestConsultationStepFailureKeepsInProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.onboard(t)
	h.mem.FailNext(ledger.MethodCreateIdentity, &service.RejectionError{Message: "Identity registry paused"})
	h.consult.Replies = []service.ConsultationReply{agent.CompletedReply(woody)}

	require.NoError(t, h.o.StartConsultation(ctx))
	err := h.o.SendMessage(ctx, "formal evenings")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRemoteRejected)
	assert.Equal(t, "Identity registry paused", h.notices.last().Message)
	assert.Equal(t, session.ConsultationInProgress, h.store.Consultation().State)
	assert.Empty(t, h.store.Identity().DID)

	require.NoError(t, h.o.SendMessage(ctx, "formal evenings"))
	assert.Equal(t, session.ConsultationCompleted, h.store.Consultation().State)
	assert.Equal(t, 2, h.mem.Calls(ledger.MethodCreateIdentity))
}

func TestCompleteConsultationResumes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.onboard(t)
	h.mem.FailNext(ledger.MethodRecommendations, &service.RejectionError{Message: "Recommendations paused"})
	h.consult.Replies = []service.ConsultationReply{agent.CompletedReply(woody)}

	require.NoError(t, h.o.StartConsultation(ctx))
	require.Error(t, h.o.SendMessage(ctx, "hi"))
	assert.Equal(t, model.DIDFor(testWallet), h.store.Identity().DID)

	require.NoError(t, h.o.CompleteConsultation(ctx))
	assert.Equal(t, session.ConsultationCompleted, h.store.Consultation().State)
	assert.Equal(t, 1, h.mem.Calls(ledger.MethodCreateIdentity))
}

func TestConsultationAgentTimeout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.onboard(t)
	require.NoError(t, h.o.StartConsultation(ctx))

	h.consult.SendFn = func(ctx context.Context, _, _, _ string) (service.ConsultationReply, error) {
		<-ctx.Done()
		return service.ConsultationReply{}, ctx.Err()
	}
	err := h.o.SendMessage(ctx, "hello?")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFeatureUnavailable)
	assert.Equal(t, "The AI assistant is temporarily unavailable", h.notices.last().Message)
	assert.Equal(t, session.ConsultationInProgress, h.store.Consultation().State)
}

func TestConsultationValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.o.StartConsultation(ctx), common.ErrValidation)

	h.onboard(t)
	assert.ErrorIs(t, h.o.SendMessage(ctx, "hi"), common.ErrValidation)
	assert.ErrorIs(t, h.o.SendMessage(ctx, "   "), common.ErrValidation)
	assert.Empty(t, h.consult.Messages)
}

func TestDisconnectDuringCallDiscardsResult(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)
	h.consult.StartFn = func(context.Context, string, string) (service.ConsultationReply, error) {
		h.o.Disconnect()
		return service.ConsultationReply{Response: "Welcome"}, nil
	}

	err := h.o.StartConsultation(context.Background())
	assert.ErrorIs(t, err, ErrSessionChanged)
	assert.Equal(t, session.ConsultationNotStarted, h.store.Consultation().State)
	assert.NotEqual(t, LevelError, h.notices.last().Level)
}

func TestRefreshRecommendationsDegradesWithoutAgent(t *testing.T) {
	h := newHarness(t)
	h.onboard(t)
	h.mem.SetRecommendations(testWallet, []model.Recommendation{
		{ProductID: string(catalog.CitrusPagi), UserID: testWallet, MatchScore: 0.4},
		{ProductID: string(catalog.OudMalam), UserID: testWallet, MatchScore: 0.9},
	})
	h.recs.RecommendFn = func(context.Context, string, *model.FragranceProfile) error {
		return errors.New("agent down")
	}

	require.NoError(t, h.o.RefreshRecommendations(context.Background()))
	recs := h.store.Recommendations()
	require.Len(t, recs, 2)
	assert.Equal(t, string(catalog.OudMalam), recs[0].ProductID)
}
