// Package engine implements the workflow orchestrator: the multi-step
// user workflows that combine the wallet, the AI agents, the gateway to
// the service of record, and the session store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/metrics"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/session"
	"github.com/Veraticus/aromance/internal/wallet"
)

// ErrSessionChanged is returned when the signed-in identity changed while
// a workflow was waiting on a remote call. The result was discarded.
var ErrSessionChanged = errors.New("session changed during operation")

// Guard keys for in-flight operations.
const (
	keyWallet       = "wallet"
	keyProfile      = "profile"
	keyConsultation = "consultation"
	keyRecs         = "refresh_recommendations"
	keyCart         = "cart"
	keyStake        = "stake"
	keyRewards      = "rewards"
	keyCatalog      = "catalog"
	keyDashboard    = "dashboard"
)

// Deps are the collaborators of the orchestrator. Gateway, Store, and
// Wallet are required; missing agents disable their features.
type Deps struct {
	Gateway      Gateway
	Store        *session.Store
	Wallet       service.Wallet
	Consultation service.ConsultationAgent
	Recommender  service.RecommendationAgent
	Inventory    service.InventoryChecker
	Analytics    service.AnalyticsSink
	Journal      service.PaymentJournal
	Notifier     Notifier
	Logger       *slog.Logger
}

// Config holds orchestrator settings.
type Config struct {
	Now          func() time.Time
	NewKey       func() string
	Treasury     string
	Host         string
	ServiceIDs   []string
	AgentTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Now:          time.Now,
		NewKey:       uuid.NewString,
		Host:         "https://aromance.app",
		AgentTimeout: 8 * time.Second,
	}
}

// Orchestrator runs user workflows against a session store.
type Orchestrator struct {
	gateway      Gateway
	store        *session.Store
	wallet       service.Wallet
	consultation service.ConsultationAgent
	recommender  service.RecommendationAgent
	inventory    service.InventoryChecker
	analytics    service.AnalyticsSink
	journal      service.PaymentJournal
	notifier     Notifier
	logger       *slog.Logger
	pendingKeys  map[string]string
	cfg          Config
	background   sync.WaitGroup
	keysMu       sync.Mutex
}

// New creates an orchestrator with the default configuration.
func New(deps Deps) (*Orchestrator, error) {
	return NewWithConfig(deps, DefaultConfig())
}

// NewWithConfig creates an orchestrator with custom configuration.
func NewWithConfig(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Gateway == nil || deps.Store == nil || deps.Wallet == nil {
		return nil, fmt.Errorf("%w: orchestrator needs a gateway, a session store, and a wallet", common.ErrMissingConfig)
	}
	def := DefaultConfig()
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	if cfg.NewKey == nil {
		cfg.NewKey = def.NewKey
	}
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = def.AgentTimeout
	}
	if deps.Journal == nil {
		deps.Journal = NewMemoryJournal(cfg.Now)
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(Notice) {})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Orchestrator{
		gateway:      deps.Gateway,
		store:        deps.Store,
		wallet:       deps.Wallet,
		consultation: deps.Consultation,
		recommender:  deps.Recommender,
		inventory:    deps.Inventory,
		analytics:    deps.Analytics,
		journal:      deps.Journal,
		notifier:     deps.Notifier,
		logger:       deps.Logger,
		pendingKeys:  make(map[string]string),
		cfg:          cfg,
	}, nil
}

// Store returns the session store the orchestrator writes to.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// Close waits for background analytics deliveries to finish.
func (o *Orchestrator) Close() {
	o.background.Wait()
}

// finish records the outcome of a workflow and publishes failures to the
// notifier. It returns err unchanged.
func (o *Orchestrator) finish(workflow string, err error) error {
	metrics.RecordWorkflow(workflow, outcomeOf(err))
	if err == nil {
		return nil
	}

	n := Notice{Level: LevelError, Op: workflow, Message: common.MessageOf(err)}
	switch {
	case errors.Is(err, wallet.ErrWalletUnavailable):
		n.Level = LevelWarning
		n.Action = "Install a wallet extension, then connect again"
	case errors.Is(err, common.ErrDeclined):
		n.Level = LevelWarning
	case errors.Is(err, wallet.ErrPaymentUnconfirmed):
		n.Action = "Do not pay again; resolve the reference with 'aromance verify resolve' once the wallet receipt is known"
	case errors.Is(err, common.ErrReconciliationNeeded):
		n.Action = "Run verify-retry to finish without paying again"
	case errors.Is(err, common.ErrFeatureUnavailable):
		n.Level = LevelWarning
		n.Message = "The AI assistant is temporarily unavailable"
	case errors.Is(err, ErrSessionChanged), errors.Is(err, context.Canceled):
		return err
	}
	o.logger.Warn("Workflow failed", "workflow", workflow, "error", err)
	o.notifier.Notify(n)
	return err
}

func (o *Orchestrator) succeed(workflow, msg string) {
	o.notifier.Notify(Notice{Level: LevelSuccess, Op: workflow, Message: msg})
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrDeclined):
		return "declined"
	case errors.Is(err, common.ErrValidation):
		return "validation"
	case errors.Is(err, common.ErrReconciliationNeeded):
		return "reconciliation"
	case errors.Is(err, common.ErrRemoteRejected):
		return "rejected"
	case errors.Is(err, common.ErrFeatureUnavailable):
		return "unavailable"
	case errors.Is(err, ErrSessionChanged):
		return "stale"
	default:
		return "transport"
	}
}

// requireConnected returns the signed-in identity.
func (o *Orchestrator) requireConnected(op string) (model.Identity, error) {
	id := o.store.Identity()
	if !id.Connected() {
		return id, common.Validation(op, "Connect your wallet first")
	}
	return id, nil
}

// requireProfile returns the signed-in identity and its cached profile.
func (o *Orchestrator) requireProfile(op string) (model.Identity, model.UserProfile, error) {
	id, err := o.requireConnected(op)
	if err != nil {
		return id, model.UserProfile{}, err
	}
	p := o.store.Profile()
	if p == nil {
		return id, model.UserProfile{}, common.Validation(op, "Your profile is still loading")
	}
	return id, *p, nil
}

// agentCall bounds fn by the agent timeout and maps every failure to
// common.ErrFeatureUnavailable.
func (o *Orchestrator) agentCall(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
	defer cancel()
	err := fn(actx)
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrFeatureUnavailable) {
		return err
	}
	return common.Unavailable(op, err)
}

// track delivers an analytics event in the background. Failures are
// logged at debug level and never reach the user.
func (o *Orchestrator) track(userID, eventType string, props map[string]any) {
	if o.analytics == nil {
		return
	}
	event := service.AnalyticsEvent{UserID: userID, Type: eventType, Properties: props}
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.AgentTimeout)
		defer cancel()
		if err := o.analytics.Track(ctx, event); err != nil {
			o.logger.Debug("Analytics event dropped", "event", eventType, "error", err)
		}
	}()
}
