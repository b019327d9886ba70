package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
	"github.com/Veraticus/aromance/internal/session"
)

// CheckoutResult reports how far a checkout got. Remaining holds the
// cart lines left after the run, including the one that failed.
type CheckoutResult struct {
	Submitted []model.Transaction
	Remaining []model.CartLine
	Failed    string
}

// Checkout submits one transaction per cart line, in cart order. Stock is
// checked first and a failed check blocks the whole purchase. Lines are
// removed from the cart as they succeed; the first failure stops the run
// and leaves that line and every later line in the cart. A line that
// failed in transit keeps its idempotency key, so checking out again
// cannot create a duplicate purchase.
func (o *Orchestrator) Checkout(ctx context.Context) (result CheckoutResult, err error) {
	const op = "checkout"
	defer func() { err = o.finish(op, err) }()

	id, _, err := o.requireProfile(op)
	if err != nil {
		return result, err
	}
	lines := o.store.CartLines()
	if len(lines) == 0 {
		return result, common.Validation(op, "Your cart is empty")
	}
	release, err := o.store.Begin(keyCart)
	if err != nil {
		return result, err
	}
	defer release()

	for _, line := range lines {
		if err := line.Validate(); err != nil {
			result.Remaining = lines
			return result, common.Validation(op, fmt.Sprintf("%d x %s cannot be purchased in one order", line.Quantity, line.Product.Name))
		}
	}

	gen := o.store.Generation()
	if err := o.checkStock(ctx, id.WalletAddress, lines); err != nil {
		result.Remaining = lines
		return result, err
	}

	var failure error
	for _, line := range lines {
		scope := checkoutScope(line)
		draft, err := model.NewTransactionDraft(id.WalletAddress, line, o.keyFor(scope), o.cfg.Now().UTC())
		if err != nil {
			o.dropKey(scope)
			result.Failed = line.Product.ID
			failure = common.Validation(op, fmt.Sprintf("%d x %s cannot be purchased in one order", line.Quantity, line.Product.Name))
			break
		}
		txID, err := o.gateway.CreateTransaction(ctx, draft)
		if err != nil {
			if !errors.Is(err, common.ErrTransport) {
				o.dropKey(scope)
			}
			result.Failed = line.Product.ID
			o.logger.Warn("Checkout halted", "product", line.Product.ID, "submitted", len(result.Submitted), "error", err)
			failure = fmt.Errorf("purchase of %s failed: %w", line.Product.Name, err)
			break
		}
		o.dropKey(scope)
		if !o.store.Current(gen) {
			return result, ErrSessionChanged
		}
		o.store.RemoveFromCart(line.Product.ID)
		draft.ID = txID
		result.Submitted = append(result.Submitted, draft)
	}
	result.Remaining = o.store.CartLines()

	if len(result.Submitted) > 0 {
		if lerr := o.loadTransactions(ctx, gen, id.WalletAddress); lerr != nil {
			o.logger.Warn("Failed to reload orders", "wallet", id.WalletAddress, "error", lerr)
			if o.store.Current(gen) {
				o.store.Invalidate(session.EntryTransactions)
			}
		}
		// The service counts purchases on the profile.
		if perr := o.refreshProfile(ctx, gen, id.WalletAddress); perr != nil {
			o.logger.Warn("Failed to refresh profile after checkout", "wallet", id.WalletAddress, "error", perr)
		}
		var total uint64
		for _, tx := range result.Submitted {
			sum, err := model.AddIDR(total, tx.TotalAmount)
			if err != nil {
				total = math.MaxUint64
				break
			}
			total = sum
		}
		o.track(id.WalletAddress, EventCheckoutSuccess, map[string]any{
			"transaction_count": len(result.Submitted),
			"total_amount":      total,
		})
	}
	if failure != nil {
		return result, failure
	}

	o.logger.Info("Checkout complete", "wallet", id.WalletAddress, "transactions", len(result.Submitted))
	o.succeed(op, fmt.Sprintf("Order placed: %d item(s)", len(result.Submitted)))
	return result, nil
}

// checkStock asks the inventory agent about every line. Checkout is not
// attempted without a successful answer.
func (o *Orchestrator) checkStock(ctx context.Context, wallet string, lines []model.CartLine) error {
	const op = "check_inventory"
	if o.inventory == nil {
		return common.Unavailable(op, nil)
	}
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.Product.ID
	}

	var avail map[string]service.Availability
	err := o.agentCall(ctx, op, func(ctx context.Context) error {
		var err error
		avail, err = o.inventory.CheckAvailability(ctx, wallet, ids)
		return err
	})
	if err != nil {
		return err
	}

	for _, l := range lines {
		a, ok := avail[l.Product.ID]
		switch {
		case !ok || !a.Available:
			return common.Validation(op, l.Product.Name+" is out of stock")
		case a.Quantity > 0 && int(a.Quantity) < l.Quantity:
			return common.Validation(op, fmt.Sprintf("Only %d of %s left in stock", a.Quantity, l.Product.Name))
		}
	}
	return nil
}

func checkoutScope(line model.CartLine) string {
	return fmt.Sprintf("tx:%s:%d", line.Product.ID, line.Quantity)
}

// keyFor returns the idempotency key for a write scope, minting one the
// first time. The key survives until dropKey, so a retry after a transport
// failure replays the same write.
func (o *Orchestrator) keyFor(scope string) string {
	o.keysMu.Lock()
	defer o.keysMu.Unlock()
	if k, ok := o.pendingKeys[scope]; ok {
		return k
	}
	k := o.cfg.NewKey()
	o.pendingKeys[scope] = k
	return k
}

func (o *Orchestrator) dropKey(scope string) {
	o.keysMu.Lock()
	defer o.keysMu.Unlock()
	delete(o.pendingKeys, scope)
}
