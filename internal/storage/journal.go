package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// PaymentJournal is a durable service.PaymentJournal backed by the same
// database as the development ledger.
type PaymentJournal struct {
	store *SQLiteStorage
}

var _ service.PaymentJournal = (*PaymentJournal)(nil)

// Journal returns the payment journal stored alongside the ledger.
func (s *SQLiteStorage) Journal() *PaymentJournal {
	return &PaymentJournal{store: s}
}

// RecordPayment stores a completed wallet payment. Recording the same
// receipt twice keeps the first entry.
func (j *PaymentJournal) RecordPayment(ctx context.Context, rec service.PaymentRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rec.ReceiptID == "" || rec.UserID == "" {
		return ErrInvalidReceipt
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = j.store.now()
	}
	_, err := j.store.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO payment_journal (receipt_id, user_id, tier, amount, recorded_at, last_error, unconfirmed)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ReceiptID, rec.UserID, rec.Tier.Name(), int64(rec.Amount), nanos(rec.RecordedAt), rec.LastError, rec.Unconfirmed,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment %s: %w", rec.ReceiptID, err)
	}
	return nil
}

// MarkSettled records that the follow-up call for a receipt succeeded.
func (j *PaymentJournal) MarkSettled(ctx context.Context, receiptID string) error {
	return j.update(ctx, receiptID,
		`UPDATE payment_journal SET settled_at = ?, last_error = '' WHERE receipt_id = ?`,
		nanos(j.store.now()), receiptID)
}

// MarkFailed records why the follow-up call for a receipt failed.
func (j *PaymentJournal) MarkFailed(ctx context.Context, receiptID, reason string) error {
	return j.update(ctx, receiptID,
		`UPDATE payment_journal SET last_error = ? WHERE receipt_id = ?`,
		reason, receiptID)
}

// Resolve implements service.PaymentJournal. Only unconfirmed, unsettled
// records can be resolved.
func (j *PaymentJournal) Resolve(ctx context.Context, ref, receiptID string) error {
	if receiptID == "" {
		return j.update(ctx, ref,
			`UPDATE payment_journal SET settled_at = ?, last_error = 'voided: no payment made'
			WHERE receipt_id = ? AND unconfirmed = 1 AND settled_at IS NULL`,
			nanos(j.store.now()), ref)
	}
	return j.update(ctx, ref,
		`UPDATE payment_journal SET receipt_id = ?, unconfirmed = 0, last_error = ''
		WHERE receipt_id = ? AND unconfirmed = 1 AND settled_at IS NULL`,
		receiptID, ref)
}

func (j *PaymentJournal) update(ctx context.Context, receiptID, query string, args ...any) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := j.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update payment %s: %w", receiptID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
	}
	return nil
}

// Pending lists a user's unsettled payments, oldest first.
func (j *PaymentJournal) Pending(ctx context.Context, userID string) ([]service.PaymentRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := j.store.db.QueryContext(ctx, `
		SELECT receipt_id, user_id, tier, amount, recorded_at, last_error, unconfirmed
		FROM payment_journal
		WHERE user_id = ? AND settled_at IS NULL
		ORDER BY recorded_at, receipt_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []service.PaymentRecord
	for rows.Next() {
		var (
			rec        service.PaymentRecord
			tier       string
			amount     int64
			recordedAt int64
		)
		if err := rows.Scan(&rec.ReceiptID, &rec.UserID, &tier, &amount, &recordedAt, &rec.LastError, &rec.Unconfirmed); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		offering, err := model.ResolveStakeTier(tier)
		if err != nil {
			return nil, err
		}
		rec.Tier = offering.Tier
		rec.Amount = uint64(amount)
		rec.RecordedAt = fromNanos(recordedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
