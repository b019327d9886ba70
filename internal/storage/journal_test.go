package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/aromance/internal/service"
)

func TestPaymentJournal(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStorage(t, nil)
	j := s.Journal()

	rec := service.PaymentRecord{ReceiptID: "rcpt-1", UserID: "wallet-1", Tier: basicReviewer(), Amount: 300_000}
	require.NoError(t, j.RecordPayment(ctx, rec))

	clock.Advance(time.Minute)
	later := rec
	later.ReceiptID = "rcpt-2"
	require.NoError(t, j.RecordPayment(ctx, later))

	dup := rec
	dup.Amount = 1
	require.NoError(t, j.RecordPayment(ctx, dup), "recording a receipt twice is harmless")

	pending, err := j.Pending(ctx, "wallet-1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "rcpt-1", pending[0].ReceiptID)
	assert.Equal(t, uint64(300_000), pending[0].Amount, "first entry wins")
	assert.Equal(t, basicReviewer(), pending[0].Tier)
	assert.True(t, pending[0].RecordedAt.Equal(testEpoch))
	assert.False(t, pending[0].Settled())

	require.NoError(t, j.MarkFailed(ctx, "rcpt-1", "ledger unreachable"))
	pending, err = j.Pending(ctx, "wallet-1")
	require.NoError(t, err)
	assert.Equal(t, "ledger unreachable", pending[0].LastError)

	require.NoError(t, j.MarkSettled(ctx, "rcpt-1"))
	pending, err = j.Pending(ctx, "wallet-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rcpt-2", pending[0].ReceiptID)

	other, err := j.Pending(ctx, "wallet-9")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPaymentJournalErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t, nil)
	j := s.Journal()

	assert.ErrorIs(t, j.RecordPayment(ctx, service.PaymentRecord{UserID: "wallet-1"}), ErrInvalidReceipt)
	assert.ErrorIs(t, j.MarkSettled(ctx, "nope"), ErrReceiptNotFound)
	assert.ErrorIs(t, j.MarkFailed(ctx, "nope", "x"), ErrReceiptNotFound)
}

func TestPaymentJournalResolve(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t, nil)
	j := s.Journal()

	marker := service.PaymentRecord{ReceiptID: "unconfirmed-1", UserID: "wallet-1", Tier: basicReviewer(), Amount: 300_000, Unconfirmed: true}
	require.NoError(t, j.RecordPayment(ctx, marker))

	pending, err := j.Pending(ctx, "wallet-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Unconfirmed)

	require.NoError(t, j.Resolve(ctx, "unconfirmed-1", "rcpt-77"))
	pending, err = j.Pending(ctx, "wallet-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "rcpt-77", pending[0].ReceiptID)
	assert.False(t, pending[0].Unconfirmed)

	assert.ErrorIs(t, j.Resolve(ctx, "rcpt-77", ""), ErrReceiptNotFound, "confirmed records cannot be voided")

	require.NoError(t, j.RecordPayment(ctx, service.PaymentRecord{ReceiptID: "unconfirmed-2", UserID: "wallet-2", Tier: basicReviewer(), Amount: 300_000, Unconfirmed: true}))
	require.NoError(t, j.Resolve(ctx, "unconfirmed-2", ""))
	pending, err = j.Pending(ctx, "wallet-2")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
