package model

import (
	"math/bits"
	"time"
)

// TransactionTier is the price band a purchase falls into.
type TransactionTier string

// Transaction tiers, cheapest first.
const (
	TierBudget   TransactionTier = "Budget"
	TierStandard TransactionTier = "Standard"
	TierPremium  TransactionTier = "Premium"
	TierLuxury   TransactionTier = "Luxury"
)

// Tier breakpoints in IDR.
const (
	StandardThreshold uint64 = 100_000
	PremiumThreshold  uint64 = 500_000
	LuxuryThreshold   uint64 = 1_000_000
)

// ClassifyTransactionTier maps a total amount to its tier.
func ClassifyTransactionTier(total uint64) TransactionTier {
	switch {
	case total >= LuxuryThreshold:
		return TierLuxury
	case total >= PremiumThreshold:
		return TierPremium
	case total >= StandardThreshold:
		return TierStandard
	default:
		return TierBudget
	}
}

// BasisPoints returns the tier's commission in hundredths of a percent.
func (t TransactionTier) BasisPoints() uint64 {
	switch t {
	case TierStandard:
		return 200
	case TierPremium:
		return 250
	case TierLuxury:
		return 300
	default:
		return 150
	}
}

// Rate returns the platform commission rate for the tier as a fraction.
func (t TransactionTier) Rate() float64 {
	return float64(t.BasisPoints()) / 10_000
}

// CommissionOn returns floor(total * rate) using integer arithmetic. The
// intermediate product is 128 bits wide so large totals do not wrap.
func (t TransactionTier) CommissionOn(total uint64) uint64 {
	hi, lo := bits.Mul64(total, t.BasisPoints())
	q, _ := bits.Div64(hi, lo, 10_000)
	return q
}

// CommissionRate returns the commission rate that applies to total.
func CommissionRate(total uint64) float64 {
	return ClassifyTransactionTier(total).Rate()
}

// Commission returns floor(total * rate).
func Commission(total uint64) uint64 {
	return ClassifyTransactionTier(total).CommissionOn(total)
}

// TransactionStatus is the lifecycle state of a purchase.
type TransactionStatus string

// Transaction statuses.
const (
	StatusPending    TransactionStatus = "Pending"
	StatusProcessing TransactionStatus = "Processing"
	StatusConfirmed  TransactionStatus = "Confirmed"
	StatusShipped    TransactionStatus = "Shipped"
	StatusDelivered  TransactionStatus = "Delivered"
	StatusCompleted  TransactionStatus = "Completed"
	StatusDisputed   TransactionStatus = "Disputed"
	StatusCancelled  TransactionStatus = "Cancelled"
	StatusRefunded   TransactionStatus = "Refunded"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusConfirmed, StatusShipped, StatusDelivered,
		StatusCompleted, StatusDisputed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Transaction is a purchase record. Once submitted it is owned by the
// service of record and cached read-only on the client.
type Transaction struct {
	CreatedAt        time.Time
	CompletedAt      *time.Time
	ID               string
	IdempotencyKey   string
	BuyerID          string
	SellerID         string
	ProductID        string
	PaymentMethod    string
	ShippingAddress  string
	Tier             TransactionTier
	Status           TransactionStatus
	Quantity         uint32
	UnitPrice        uint64
	TotalAmount      uint64
	CommissionRate   float64
	CommissionAmount uint64
	EscrowLocked     bool
}

// NewTransactionDraft prices a single cart line as a pending, escrowed
// purchase.
func NewTransactionDraft(buyer string, line CartLine, key string, now time.Time) (Transaction, error) {
	if err := line.Validate(); err != nil {
		return Transaction{}, err
	}
	total := line.Subtotal()
	tier := ClassifyTransactionTier(total)
	return Transaction{
		IdempotencyKey:   key,
		BuyerID:          buyer,
		SellerID:         line.Product.SellerID,
		ProductID:        line.Product.ID,
		Quantity:         uint32(line.Quantity),
		UnitPrice:        line.Product.PriceIDR,
		TotalAmount:      total,
		Tier:             tier,
		CommissionRate:   tier.Rate(),
		CommissionAmount: tier.CommissionOn(total),
		Status:           StatusPending,
		EscrowLocked:     true,
		PaymentMethod:    "wallet",
		CreatedAt:        now,
	}, nil
}

// FinalizeTransaction fills the fields the service of record owns: id
// (when absent), total, tier, commission, status, and creation time.
// Commission is always recomputed from the tier.
func FinalizeTransaction(tx Transaction, id string, now time.Time) Transaction {
	if tx.ID == "" {
		tx.ID = id
	}
	if tx.TotalAmount == 0 {
		tx.TotalAmount, _ = MulIDR(tx.UnitPrice, uint64(tx.Quantity))
	}
	if tx.Tier == "" {
		tx.Tier = ClassifyTransactionTier(tx.TotalAmount)
	}
	tx.CommissionRate = tx.Tier.Rate()
	tx.CommissionAmount = tx.Tier.CommissionOn(tx.TotalAmount)
	if tx.Status == "" {
		tx.Status = StatusPending
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	return tx
}

// Clone returns a copy of tx that shares no pointers with it.
func (tx Transaction) Clone() Transaction {
	out := tx
	if tx.CompletedAt != nil {
		at := *tx.CompletedAt
		out.CompletedAt = &at
	}
	return out
}
