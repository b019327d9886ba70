package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/wallet"
)

// SubscribeToTier pays the stake for the named tier from the wallet and
// registers it with the service of record.
//
// The wallet transfer and the stake registration are two separate
// writes. The payment is journaled before registration, so if
// registration fails the user is told a payment is awaiting verification
// (ErrReconciliationNeeded) and RetryVerification settles it later with
// the same receipt.
func (o *Orchestrator) SubscribeToTier(ctx context.Context, name string) (err error) {
	const op = "stake"
	defer func() { err = o.finish(op, err) }()

	offering, err := model.ResolveStakeTier(name)
	if err != nil {
		return common.Validation(op, fmt.Sprintf("Unknown stake tier %q", name))
	}
	id, _, err := o.requireProfile(op)
	if err != nil {
		return err
	}
	if o.cfg.Treasury == "" {
		return fmt.Errorf("%w: treasury address", common.ErrMissingConfig)
	}
	release, err := o.store.Begin(keyStake)
	if err != nil {
		return err
	}
	defer release()

	pending, err := o.journal.Pending(ctx, id.WalletAddress)
	if err != nil {
		return fmt.Errorf("failed to read payment journal: %w", err)
	}
	if len(pending) > 0 {
		return common.Validation(op, "A previous stake payment is awaiting verification; retry verification before paying again")
	}

	gen := o.store.Generation()
	receipt, err := o.wallet.RequestTransfer(ctx, service.TransferRequest{
		To:     o.cfg.Treasury,
		Amount: offering.Amount,
	})
	if errors.Is(err, wallet.ErrPaymentUnconfirmed) {
		return o.recordUnconfirmed(ctx, id.WalletAddress, offering, err)
	}
	if err != nil {
		return err
	}
	o.logger.Info("Stake payment sent", "wallet", id.WalletAddress, "tier", offering.Tier.Name(), "receipt", receipt.ID)

	rec := service.PaymentRecord{
		ReceiptID:  receipt.ID,
		UserID:     id.WalletAddress,
		Tier:       offering.Tier,
		Amount:     offering.Amount,
		RecordedAt: o.cfg.Now().UTC(),
	}
	if err := o.journal.RecordPayment(ctx, rec); err != nil {
		return common.Reconciliation(op,
			fmt.Sprintf("Payment %s was sent but could not be recorded; keep this receipt", receipt.ID), err)
	}
	return o.settle(ctx, gen, rec)
}

// recordUnconfirmed journals a transfer the wallet may have completed
// without returning a receipt. The marker blocks further stake payments
// until ResolvePayment closes it.
func (o *Orchestrator) recordUnconfirmed(ctx context.Context, userID string, offering model.StakeOffering, cause error) error {
	const op = "stake"
	ref := "unconfirmed-" + o.cfg.NewKey()
	o.logger.Error("Stake payment unconfirmed", "wallet", userID, "tier", offering.Tier.Name(), "ref", ref, "error", cause)

	rec := service.PaymentRecord{
		ReceiptID:   ref,
		UserID:      userID,
		Tier:        offering.Tier,
		Amount:      offering.Amount,
		RecordedAt:  o.cfg.Now().UTC(),
		LastError:   common.MessageOf(cause),
		Unconfirmed: true,
	}
	if err := o.journal.RecordPayment(ctx, rec); err != nil {
		return common.Reconciliation(op,
			fmt.Sprintf("The wallet may have paid for %s but did not confirm it, and the attempt could not be recorded; do not pay again",
				offering.Tier.DisplayName()), errors.Join(cause, err))
	}
	return common.Reconciliation(op,
		fmt.Sprintf("The wallet may have paid for %s but did not confirm it (reference %s); do not pay again",
			offering.Tier.DisplayName(), ref), cause)
}

// ResolvePayment closes an unconfirmed stake payment once its outcome is
// known. With a receipt id the payment is registered like any other
// journaled payment; with an empty one the marker is voided.
func (o *Orchestrator) ResolvePayment(ctx context.Context, ref, receiptID string) (err error) {
	const op = "resolve_payment"
	defer func() { err = o.finish(op, err) }()

	if ref == "" {
		return common.Validation(op, "A payment reference is required")
	}
	id, _, err := o.requireProfile(op)
	if err != nil {
		return err
	}
	release, err := o.store.Begin(keyStake)
	if err != nil {
		return err
	}
	defer release()

	pending, err := o.journal.Pending(ctx, id.WalletAddress)
	if err != nil {
		return fmt.Errorf("failed to read payment journal: %w", err)
	}
	var rec *service.PaymentRecord
	for i := range pending {
		if pending[i].ReceiptID == ref && pending[i].Unconfirmed {
			rec = &pending[i]
		}
	}
	if rec == nil {
		return common.Validation(op, fmt.Sprintf("No unconfirmed payment %s", ref))
	}

	if err := o.journal.Resolve(ctx, ref, receiptID); err != nil {
		return fmt.Errorf("failed to resolve payment %s: %w", ref, err)
	}
	if receiptID == "" {
		o.succeed(op, fmt.Sprintf("Payment %s voided", ref))
		return nil
	}
	rec.ReceiptID = receiptID
	rec.Unconfirmed = false
	return o.settle(ctx, o.store.Generation(), *rec)
}

// RetryVerification re-registers every journaled payment whose stake
// registration has not succeeded. No new payment is made. It returns the
// number of payments settled. Unconfirmed payments are skipped and
// reported; they need ResolvePayment first.
func (o *Orchestrator) RetryVerification(ctx context.Context) (settled int, err error) {
	const op = "verify_retry"
	defer func() { err = o.finish(op, err) }()

	id, _, err := o.requireProfile(op)
	if err != nil {
		return 0, err
	}
	release, err := o.store.Begin(keyStake)
	if err != nil {
		return 0, err
	}
	defer release()

	pending, err := o.journal.Pending(ctx, id.WalletAddress)
	if err != nil {
		return 0, fmt.Errorf("failed to read payment journal: %w", err)
	}
	if len(pending) == 0 {
		o.notifier.Notify(Notice{Level: LevelInfo, Op: op, Message: "No payments are awaiting verification"})
		return 0, nil
	}

	gen := o.store.Generation()
	var unresolved []string
	for _, rec := range pending {
		if rec.Unconfirmed {
			unresolved = append(unresolved, rec.ReceiptID)
			continue
		}
		if err := o.settle(ctx, gen, rec); err != nil {
			return settled, err
		}
		settled++
	}
	if len(unresolved) > 0 {
		msg := fmt.Sprintf("Payment %s was never confirmed by the wallet; resolve it with its receipt before verifying",
			strings.Join(unresolved, ", "))
		return settled, &common.Error{Kind: common.ErrReconciliationNeeded, Op: op, Message: msg, Err: wallet.ErrPaymentUnconfirmed}
	}
	return settled, nil
}

// settle registers a journaled payment's stake and refreshes the profile
// so the new tier reaches the identity.
func (o *Orchestrator) settle(ctx context.Context, gen uint64, rec service.PaymentRecord) error {
	msg, err := o.gateway.Stake(ctx, service.StakeRequest{
		UserID:         rec.UserID,
		PaymentReceipt: rec.ReceiptID,
		Tier:           rec.Tier,
		Amount:         rec.Amount,
	})
	if err != nil {
		if jerr := o.journal.MarkFailed(ctx, rec.ReceiptID, common.MessageOf(err)); jerr != nil {
			o.logger.Error("Failed to update payment journal", "receipt", rec.ReceiptID, "error", jerr)
		}
		return common.Reconciliation("stake",
			fmt.Sprintf("Payment %s was received but verification as %s failed: %s",
				rec.ReceiptID, rec.Tier.DisplayName(), common.MessageOf(err)), err)
	}
	if err := o.journal.MarkSettled(ctx, rec.ReceiptID); err != nil {
		o.logger.Error("Failed to settle payment journal entry", "receipt", rec.ReceiptID, "error", err)
	}
	o.logger.Info("Stake registered", "wallet", rec.UserID, "tier", rec.Tier.Name(), "receipt", rec.ReceiptID)

	if err := o.refreshProfile(ctx, gen, rec.UserID); err != nil {
		return err
	}
	o.succeed("stake", fmt.Sprintf("%s. You are now a %s", msg, rec.Tier.DisplayName()))
	return nil
}

// ClaimRewards asks the service of record to credit accrued stake rewards
// and reloads the profile to show them.
func (o *Orchestrator) ClaimRewards(ctx context.Context) (err error) {
	const op = "claim_rewards"
	defer func() { err = o.finish(op, err) }()

	id, _, err := o.requireProfile(op)
	if err != nil {
		return err
	}
	release, err := o.store.Begin(keyRewards)
	if err != nil {
		return err
	}
	defer release()

	gen := o.store.Generation()
	msg, err := o.gateway.ClaimRewards(ctx)
	if err != nil {
		return err
	}
	if err := o.refreshProfile(ctx, gen, id.WalletAddress); err != nil {
		return err
	}
	o.succeed(op, msg)
	return nil
}
