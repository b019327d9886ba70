// Package service defines the interfaces for all external collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/aromance/internal/model"
)

// Ledger is the contract of the remote service of record. It owns
// profiles, identities, stakes, transactions, reviews, and the product
// catalog. Absence is reported as a nil pointer, never as an error.
type Ledger interface {
	// Profile operations
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	CreateProfile(ctx context.Context, profile model.UserProfile) (string, error)
	CreateIdentity(ctx context.Context, userID string, fp model.FragranceProfile) (model.DecentralizedIdentity, error)
	Stake(ctx context.Context, req StakeRequest) (string, error)
	ProcessStakeRewards(ctx context.Context) (string, error)

	// Catalog operations
	Products(ctx context.Context) ([]model.Product, error)
	SearchProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	SearchByPersonality(ctx context.Context, query string) ([]model.Product, error)
	HalalProducts(ctx context.Context) ([]model.Product, error)

	// Recommendation operations
	Recommendations(ctx context.Context, userID string) ([]model.Recommendation, error)
	GenerateRecommendations(ctx context.Context, userID string) ([]model.Recommendation, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, tx model.Transaction) (string, error)
	Transactions(ctx context.Context, userID string) ([]model.Transaction, error)

	// Review operations
	CreateReview(ctx context.Context, review model.Review) (string, error)
	Reviews(ctx context.Context, productID string) ([]model.Review, error)

	PlatformStats(ctx context.Context) (model.PlatformStats, error)
}

// StakeRequest asks the service of record to register a stake. The
// payment receipt ties the stake to the wallet transfer that funded it.
type StakeRequest struct {
	UserID         string
	PaymentReceipt string
	Tier           model.StakeTier
	Amount         uint64
}

// RejectionError is returned by Ledger implementations when the service
// of record refuses a request. Message is the service's own text.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

// ConnectRequest is sent to the wallet when asking for permission.
type ConnectRequest struct {
	Host              string
	AllowedServiceIDs []string
}

// TransferRequest moves funds from the connected wallet.
type TransferRequest struct {
	To     string
	Amount uint64
}

// Receipt identifies a completed wallet transfer.
type Receipt struct {
	At     time.Time
	ID     string
	To     string
	Amount uint64
}

// Wallet is the browser wallet extension bridge. Implementations return
// common.ErrDeclined kinds for user refusals and missing extensions.
type Wallet interface {
	RequestConnect(ctx context.Context, req ConnectRequest) (bool, error)
	Principal(ctx context.Context) (string, error)
	RequestTransfer(ctx context.Context, req TransferRequest) (Receipt, error)
}

// ConsultationReply is one turn of the consultation agent.
type ConsultationReply struct {
	DataCollected     map[string]any
	Response          string
	NextStep          string
	FollowUpQuestions []string
	Progress          float64
	Profile           *model.FragranceProfile
}

// ConsultationAgent runs the conversational preference interview.
type ConsultationAgent interface {
	Start(ctx context.Context, userID, sessionID string) (ConsultationReply, error)
	Send(ctx context.Context, userID, sessionID, message string) (ConsultationReply, error)
}

// RecommendationAgent asks the AI recommender to refresh a user's matches.
type RecommendationAgent interface {
	Recommend(ctx context.Context, userID string, fp *model.FragranceProfile) error
}

// Availability is the inventory state of one product.
type Availability struct {
	StockLevel       string
	EstimatedRestock string
	Quantity         uint32
	Available        bool
}

// InventoryChecker verifies stock before purchase.
type InventoryChecker interface {
	CheckAvailability(ctx context.Context, userID string, productIDs []string) (map[string]Availability, error)
}

// AnalyticsEvent is a fire-and-forget usage event.
type AnalyticsEvent struct {
	Properties map[string]any
	UserID     string
	Type       string
}

// AnalyticsSink receives usage events.
type AnalyticsSink interface {
	Track(ctx context.Context, event AnalyticsEvent) error
}

// RetryOptions configures retry behavior.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// PaymentRecord is a wallet payment whose follow-up service call may
// still be outstanding. An Unconfirmed record is a transfer the wallet
// never acknowledged; its ReceiptID is a local reference until Resolve
// supplies the real receipt.
type PaymentRecord struct {
	RecordedAt  time.Time
	SettledAt   *time.Time
	ReceiptID   string
	UserID      string
	LastError   string
	Tier        model.StakeTier
	Amount      uint64
	Unconfirmed bool
}

// Settled reports whether the follow-up call has succeeded.
func (r PaymentRecord) Settled() bool {
	return r.SettledAt != nil
}

// PaymentJournal durably tracks payments so a failed follow-up can be
// retried with the original receipt instead of paying twice.
type PaymentJournal interface {
	RecordPayment(ctx context.Context, rec PaymentRecord) error
	MarkSettled(ctx context.Context, receiptID string) error
	MarkFailed(ctx context.Context, receiptID, reason string) error
	Pending(ctx context.Context, userID string) ([]PaymentRecord, error)
	// Resolve closes out an unconfirmed record. A non-empty receiptID
	// replaces the reference and makes the record settleable; an empty
	// one voids it because no payment was made.
	Resolve(ctx context.Context, ref, receiptID string) error
}
