package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/aromance/internal/agent"
	"github.com/Veraticus/aromance/internal/config"
	"github.com/Veraticus/aromance/internal/engine"
	"github.com/Veraticus/aromance/internal/gateway"
	"github.com/Veraticus/aromance/internal/ledger"
	"github.com/Veraticus/aromance/internal/metrics"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/session"
	"github.com/Veraticus/aromance/internal/storage"
	"github.com/Veraticus/aromance/internal/wallet"
)

const (
	devPrincipal = "aurora-dev-principal-7x"
	devTreasury  = "aromance-dev-treasury"
)

// runtime bundles the wired components of one client process.
type runtime struct {
	cfg          *config.Config
	gateway      *gateway.Gateway
	orchestrator *engine.Orchestrator
	closers      []func() error
}

type runtimeOptions struct {
	notifier engine.Notifier
	dev      bool
	journal  bool
}

// newGateway builds the gateway over the remote ledger, or over a demo
// in-memory ledger in dev mode.
func newGateway(cfg *config.Config, dev bool) (*gateway.Gateway, error) {
	var l service.Ledger
	if dev {
		l = ledger.NewDemoMemory()
	} else {
		client, err := ledger.NewClient(ledger.Config{BaseURL: cfg.Ledger.URL, Timeout: cfg.Ledger.Timeout})
		if err != nil {
			return nil, err
		}
		l = client
	}
	return gateway.New(l, gateway.Config{
		Retry: service.RetryOptions{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
		RateLimit: cfg.Ledger.RateLimit,
		Burst:     cfg.Ledger.Burst,
	}, slog.Default()), nil
}

func newRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	gw, err := newGateway(cfg, opts.dev)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, gateway: gw}

	deps := engine.Deps{
		Gateway:  gw,
		Store:    session.NewStore(),
		Notifier: opts.notifier,
		Logger:   slog.Default(),
	}
	ecfg := engine.DefaultConfig()
	ecfg.Treasury = cfg.Treasury
	ecfg.Host = cfg.Wallet.Host
	ecfg.AgentTimeout = cfg.Agents.Timeout
	if cfg.Wallet.ServiceID != "" {
		ecfg.ServiceIDs = []string{cfg.Wallet.ServiceID}
	}

	if opts.dev {
		deps.Wallet = wallet.NewMock(devPrincipal)
		deps.Consultation = agent.NewOfflineConsultation()
		deps.Recommender = agent.LedgerRecommender{Ledger: gw}
		deps.Inventory = &agent.MockInventory{}
		deps.Analytics = &agent.MockAnalytics{}
		if ecfg.Treasury == "" {
			ecfg.Treasury = devTreasury
		}
	} else {
		bridge, err := wallet.NewBridge(wallet.Config{URL: cfg.Wallet.BridgeURL, Timeout: cfg.Wallet.Timeout}, slog.Default())
		if err != nil {
			return nil, err
		}
		agents, err := agent.New(agent.Config{
			Consultation:   cfg.Agents.Consultation,
			Recommendation: cfg.Agents.Recommendation,
			Inventory:      cfg.Agents.Inventory,
			Analytics:      cfg.Agents.Analytics,
			Timeout:        cfg.Agents.Timeout,
		}, slog.Default())
		if err != nil {
			return nil, err
		}
		deps.Wallet = bridge
		deps.Consultation = agents.Consultation
		deps.Recommender = agents.Recommendation
		deps.Inventory = agents.Inventory
		deps.Analytics = agents.Analytics
	}

	if opts.journal && cfg.Storage.JournalPath != "" {
		db, err := storage.NewSQLiteStorage(cfg.Storage.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open payment journal: %w", err)
		}
		rt.closers = append(rt.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("failed to migrate payment journal: %w", err)
		}
		deps.Journal = db.Journal()
	}

	o, err := engine.NewWithConfig(deps, ecfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.orchestrator = o
	return rt, nil
}

// serveMetrics starts the metrics listener when an address is configured.
func (rt *runtime) serveMetrics() {
	if rt.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: rt.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Metrics listener stopped", "addr", rt.cfg.Metrics.Addr, "error", err)
		}
	}()
	rt.closers = append(rt.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	slog.Info("Serving metrics", "addr", rt.cfg.Metrics.Addr)
}

// Close waits for background work and releases resources in reverse
// order of acquisition.
func (rt *runtime) Close() error {
	if rt.orchestrator != nil {
		rt.orchestrator.Close()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
