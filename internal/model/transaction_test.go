package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTransactionTier(t *testing.T) {
	tests := []struct {
		name       string
		total      uint64
		wantTier   TransactionTier
		wantRate   float64
		commission uint64
	}{
		{"zero", 0, TierBudget, 0.015, 0},
		{"just below standard", 99_999, TierBudget, 0.015, 1_499},
		{"standard floor", 100_000, TierStandard, 0.020, 2_000},
		{"standard ceiling", 499_999, TierStandard, 0.020, 9_999},
		{"premium floor", 500_000, TierPremium, 0.025, 12_500},
		{"premium ceiling", 999_999, TierPremium, 0.025, 24_999},
		{"luxury floor", 1_000_000, TierLuxury, 0.030, 30_000},
		{"luxury five million", 5_000_000, TierLuxury, 0.030, 150_000},
		{"luxury large", 7_333_333, TierLuxury, 0.030, 219_999},
		{"largest total", math.MaxUint64, TierLuxury, 0.030, 553_402_322_211_286_548},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTier, ClassifyTransactionTier(tt.total))
			assert.InDelta(t, tt.wantRate, CommissionRate(tt.total), 1e-9)
			assert.Equal(t, tt.commission, Commission(tt.total))
		})
	}
}

func TestNewTransactionDraft(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	line := CartLine{
		Product:  Product{ID: "p1", SellerID: "s1", PriceIDR: 250_000},
		Quantity: 2,
	}

	tx, err := NewTransactionDraft("buyer", line, "key-1", now)
	require.NoError(t, err)

	assert.Equal(t, uint64(500_000), tx.TotalAmount)
	assert.Equal(t, TierPremium, tx.Tier)
	assert.Equal(t, uint64(12_500), tx.CommissionAmount)
	assert.Equal(t, StatusPending, tx.Status)
	assert.True(t, tx.EscrowLocked)
	assert.Equal(t, "key-1", tx.IdempotencyKey)
	assert.Equal(t, "s1", tx.SellerID)
	assert.Equal(t, uint32(2), tx.Quantity)
}

func TestNewTransactionDraftRejectsUnrepresentableLines(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		name    string
		line    CartLine
		wantErr error
	}{
		{"zero quantity", CartLine{Product: Product{PriceIDR: 1}}, ErrQuantityRange},
		{"quantity wider than uint32", CartLine{Product: Product{PriceIDR: 1}, Quantity: MaxQuantity + 1}, ErrQuantityRange},
		{"total wider than uint64", CartLine{Product: Product{PriceIDR: math.MaxUint64 / 2}, Quantity: 3}, ErrAmountOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransactionDraft("buyer", tt.line, "", now)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	tx, err := NewTransactionDraft("buyer", CartLine{Product: Product{PriceIDR: 1}, Quantity: MaxQuantity}, "", now)
	require.NoError(t, err)
	assert.Equal(t, uint32(MaxQuantity), tx.Quantity)
	assert.Equal(t, uint64(MaxQuantity), tx.TotalAmount)
}

func TestCartLineSubtotalSaturates(t *testing.T) {
	line := CartLine{Product: Product{PriceIDR: math.MaxUint64 / 2}, Quantity: 3}
	assert.Equal(t, uint64(math.MaxUint64), line.Subtotal())
	assert.Zero(t, CartLine{Product: Product{PriceIDR: 10}}.Subtotal())
}
