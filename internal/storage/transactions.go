package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/aromance/internal/model"
)

// CreateTransaction implements service.Ledger. Repeating an idempotency
// key returns the id of the first submission.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, t model.Transaction) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if t.IdempotencyKey != "" {
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM transactions WHERE idempotency_key = ?`, t.IdempotencyKey,
			).Scan(&id)
			if err == nil {
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check idempotency key: %w", err)
			}
		}

		if err := checkTransaction(t); err != nil {
			return err
		}
		p, err := s.product(ctx, tx, t.ProductID)
		if err != nil {
			return err
		}
		if p != nil && p.Stock > 0 && t.Quantity > p.Stock {
			return reject("Insufficient stock for %s", p.Name)
		}

		t = model.FinalizeTransaction(t, "tx_"+s.newID(), s.now())
		var completedAt any
		if t.CompletedAt != nil {
			completedAt = nanos(*t.CompletedAt)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (
				id, idempotency_key, buyer_id, seller_id, product_id, quantity,
				unit_price, total_amount, commission_rate, commission_amount, tier,
				status, escrow_locked, payment_method, shipping_address, created_at, completed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, nullString(t.IdempotencyKey), t.BuyerID, t.SellerID, t.ProductID, t.Quantity,
			int64(t.UnitPrice), int64(t.TotalAmount), t.CommissionRate, int64(t.CommissionAmount), string(t.Tier),
			string(t.Status), t.EscrowLocked, t.PaymentMethod, t.ShippingAddress, nanos(t.CreatedAt), completedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET total_transactions = total_transactions + 1 WHERE user_id = ?`, t.BuyerID,
		); err != nil {
			return fmt.Errorf("failed to update buyer: %w", err)
		}
		id = t.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Transactions implements service.Ledger. It returns purchases where the
// user is either the buyer or the seller, oldest first.
func (s *SQLiteStorage) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idempotency_key, buyer_id, seller_id, product_id, quantity,
			unit_price, total_amount, commission_rate, commission_amount, tier,
			status, escrow_locked, payment_method, shipping_address, created_at, completed_at
		FROM transactions
		WHERE buyer_id = ? OR seller_id = ?
		ORDER BY created_at, id`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Transaction{}
	for rows.Next() {
		var (
			t                     model.Transaction
			key                   sql.NullString
			tier, status          string
			unitPrice, total, fee int64
			createdAt             int64
			completedAt           sql.NullInt64
		)
		if err := rows.Scan(
			&t.ID, &key, &t.BuyerID, &t.SellerID, &t.ProductID, &t.Quantity,
			&unitPrice, &total, &t.CommissionRate, &fee, &tier,
			&status, &t.EscrowLocked, &t.PaymentMethod, &t.ShippingAddress, &createdAt, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.IdempotencyKey = key.String
		t.Tier = model.TransactionTier(tier)
		t.Status = model.TransactionStatus(status)
		t.UnitPrice = uint64(unitPrice)
		t.TotalAmount = uint64(total)
		t.CommissionAmount = uint64(fee)
		t.CreatedAt = fromNanos(createdAt)
		if completedAt.Valid {
			at := fromNanos(completedAt.Int64)
			t.CompletedAt = &at
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTransactionStatus moves a purchase through its lifecycle. It is
// the operator hook sellers and couriers use; completing a purchase
// releases escrow and stamps the completion time.
func (s *SQLiteStorage) UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("unknown transaction status %q", status)
	}

	var (
		res sql.Result
		err error
	)
	if status == model.StatusCompleted {
		res, err = s.db.ExecContext(ctx,
			`UPDATE transactions SET status = ?, escrow_locked = 0, completed_at = ? WHERE id = ?`,
			string(status), nanos(s.now()), id)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE transactions SET status = ? WHERE id = ?`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s not found", id)
	}
	return nil
}
