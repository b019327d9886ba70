package engine

import (
	"context"
	"errors"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/metrics"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/session"
)

// ConnectWallet asks the wallet for permission and records the principal.
// A missing extension or a cancelled prompt is a Declined error and
// leaves the identity unset.
func (o *Orchestrator) ConnectWallet(ctx context.Context) (err error) {
	const op = "connect_wallet"
	defer func() { err = o.finish(op, err) }()

	release, err := o.store.Begin(keyWallet)
	if err != nil {
		return err
	}
	defer release()

	ok, err := o.wallet.RequestConnect(ctx, service.ConnectRequest{
		Host:              o.cfg.Host,
		AllowedServiceIDs: o.cfg.ServiceIDs,
	})
	if err != nil {
		return err
	}
	if !ok {
		return common.Declined(op, "Wallet connection was cancelled")
	}

	principal, err := o.wallet.Principal(ctx)
	if err != nil {
		return err
	}
	if err := o.store.SetWallet(principal); err != nil {
		return err
	}
	o.logger.Info("Wallet connected", "wallet", principal)
	return nil
}

// Bootstrap loads the profile of the connected wallet, creating the
// default profile on first sign-in. A failure leaves the session
// connected without a profile; it is reported, not retried. Orders and
// recommendations are loaded afterwards on a best-effort basis.
func (o *Orchestrator) Bootstrap(ctx context.Context) (err error) {
	const op = "bootstrap"
	defer func() { err = o.finish(op, err) }()

	id, err := o.requireConnected(op)
	if err != nil {
		return err
	}
	release, err := o.store.Begin(keyProfile)
	if err != nil {
		return err
	}
	defer release()

	gen := o.store.Generation()
	profile, err := o.gateway.GetProfile(ctx, id.WalletAddress)
	if err != nil {
		return err
	}
	if profile == nil {
		fresh := model.NewUserProfile(id.WalletAddress, o.cfg.Now().UTC())
		if _, err := o.gateway.CreateProfile(ctx, fresh); err != nil {
			return err
		}
		o.logger.Info("Created profile", "wallet", id.WalletAddress)
		profile = &fresh
	}

	if !o.adoptProfile(gen, *profile) {
		return ErrSessionChanged
	}
	release()

	if err := o.loadTransactions(ctx, gen, id.WalletAddress); err != nil {
		o.logger.Warn("Failed to load orders", "wallet", id.WalletAddress, "error", err)
	}
	if profile.ConsultationCompleted {
		if err := o.loadRecommendations(ctx, gen, id.WalletAddress); err != nil {
			o.logger.Warn("Failed to load recommendations", "wallet", id.WalletAddress, "error", err)
		}
	}
	return nil
}

// Onboard connects the wallet and bootstraps its profile.
func (o *Orchestrator) Onboard(ctx context.Context) error {
	if err := o.ConnectWallet(ctx); err != nil {
		return err
	}
	return o.Bootstrap(ctx)
}

// Disconnect signs the user out, dropping the cart and user caches.
func (o *Orchestrator) Disconnect() {
	wallet := o.store.Identity().WalletAddress
	o.store.ClearIdentity()
	o.keysMu.Lock()
	o.pendingKeys = make(map[string]string)
	o.keysMu.Unlock()
	metrics.RecordWorkflow("disconnect", "ok")
	o.logger.Info("Wallet disconnected", "wallet", wallet)
}

// adoptProfile caches profile and mirrors its DID, tier, and
// consultation flag into the session. It reports false when gen is stale.
func (o *Orchestrator) adoptProfile(gen uint64, profile model.UserProfile) bool {
	if !o.store.Current(gen) || !o.store.SetProfile(profile) {
		return false
	}

	patch := session.IdentityPatch{DID: profile.DID, Tier: profile.Verification}
	if err := o.store.SetIdentity(patch); err != nil {
		o.logger.Warn("Profile identity does not apply", "wallet", profile.WalletAddress, "error", err)
		if errors.Is(err, common.ErrValidation) {
			_ = o.store.SetIdentity(session.IdentityPatch{DID: profile.DID})
		}
	}

	if profile.ConsultationCompleted {
		o.store.UpdateConsultation(gen, func(c *session.Consultation) {
			c.State = session.ConsultationCompleted
			c.Progress = 1.0
		})
	}
	return true
}

// refreshProfile re-reads the profile after a write changed it remotely.
func (o *Orchestrator) refreshProfile(ctx context.Context, gen uint64, wallet string) error {
	profile, err := o.gateway.GetProfile(ctx, wallet)
	if err != nil {
		return err
	}
	if profile == nil {
		return common.Rejected("get_profile", "User not found")
	}
	if !o.adoptProfile(gen, *profile) {
		return ErrSessionChanged
	}
	return nil
}

func (o *Orchestrator) loadTransactions(ctx context.Context, gen uint64, wallet string) error {
	o.store.SetLoading("orders", true)
	defer o.store.SetLoading("orders", false)

	txs, err := o.gateway.Transactions(ctx, wallet)
	if err != nil {
		return err
	}
	if !o.store.SetTransactionsAt(gen, txs) {
		return ErrSessionChanged
	}
	return nil
}
