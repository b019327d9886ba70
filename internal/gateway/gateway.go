// Package gateway is the only component that calls the service of record.
// It validates inputs locally, applies a per-operation retry policy, and
// normalizes every failure into a *common.Error.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/metrics"
	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// Policy says whether an operation may be retried automatically.
type Policy string

// Call policies.
const (
	// Read operations are idempotent and retried on transport failure.
	Read Policy = "read"
	// Write operations are attempted exactly once.
	Write Policy = "write"
)

// Operation names used for errors, logs, and metrics.
const (
	OpGetProfile      = "get_profile"
	OpCreateProfile   = "create_profile"
	OpUpdateProfile   = "update_profile"
	OpCreateIdentity  = "create_identity"
	OpStake           = "stake"
	OpClaimRewards    = "claim_rewards"
	OpProducts        = "products"
	OpSearchProducts  = "search_products"
	OpSearchByTrait   = "search_by_personality"
	OpHalalProducts   = "halal_products"
	OpRecommendations = "recommendations"
	OpGenerateRecs    = "generate_recommendations"
	OpCreateTx        = "create_transaction"
	OpTransactions    = "transactions"
	OpCreateReview    = "create_review"
	OpReviews         = "reviews"
	OpPlatformStats   = "platform_stats"
)

// DefaultReadAttempts is one initial try plus two retries.
const DefaultReadAttempts = 3

// Config holds gateway tuning.
type Config struct {
	Retry     service.RetryOptions
	RateLimit float64 // requests per second; 0 disables limiting
	Burst     int
}

// Gateway wraps a service.Ledger with validation, retry policy, rate
// limiting, and error normalization.
type Gateway struct {
	ledger  service.Ledger
	logger  *slog.Logger
	limiter *rate.Limiter
	retry   service.RetryOptions
}

// New creates a gateway over l.
func New(l service.Ledger, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = DefaultReadAttempts
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 200 * time.Millisecond
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 2 * time.Second
	}
	if retry.Multiplier == 0 {
		retry.Multiplier = 2.0
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Gateway{
		ledger:  l,
		logger:  logger,
		limiter: limiter,
		retry:   retry,
	}
}

// do runs fn under the policy for op and records the outcome.
func do[T any](ctx context.Context, g *Gateway, op string, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	var result T
	start := time.Now()

	err := g.limiter.Wait(ctx)
	if err != nil {
		err = common.Transport(op, fmt.Errorf("rate limiter: %w", err))
	} else {
		attempt := func() error {
			v, callErr := fn(ctx)
			if callErr != nil {
				return normalize(op, callErr)
			}
			result = v
			return nil
		}
		if policy == Read {
			err = common.WithRetry(ctx, attempt, g.retry)
		} else {
			err = attempt()
		}
		if err != nil && common.KindOf(err) == nil {
			err = common.Transport(op, err)
		}
	}

	outcome := outcomeOf(err)
	metrics.RecordGatewayCall(op, string(policy), outcome, time.Since(start))
	if err != nil {
		g.logger.Warn("gateway call failed",
			"op", op,
			"policy", policy,
			"outcome", outcome,
			"error", err)
		var zero T
		return zero, err
	}
	g.logger.Debug("gateway call succeeded", "op", op, "duration", time.Since(start))
	return result, nil
}

// normalize maps a ledger failure onto the error taxonomy.
func normalize(op string, err error) error {
	var rej *service.RejectionError
	if errors.As(err, &rej) {
		return common.Rejected(op, rej.Message)
	}
	if common.KindOf(err) != nil {
		return err
	}
	return common.Transport(op, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrValidation):
		return "validation"
	case errors.Is(err, common.ErrRemoteRejected):
		return "rejected"
	default:
		return "transport"
	}
}

func requireField(op, value, what string) error {
	if strings.TrimSpace(value) == "" {
		return common.Validation(op, what+" is required")
	}
	return nil
}

// GetProfile fetches a profile. A missing profile is (nil, nil).
func (g *Gateway) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if err := requireField(OpGetProfile, userID, "wallet address"); err != nil {
		return nil, err
	}
	return do(ctx, g, OpGetProfile, Read, func(ctx context.Context) (*model.UserProfile, error) {
		return g.ledger.GetProfile(ctx, userID)
	})
}

// CreateProfile writes a complete profile.
func (g *Gateway) CreateProfile(ctx context.Context, profile model.UserProfile) (string, error) {
	return g.writeProfile(ctx, OpCreateProfile, profile)
}

// UpdateProfile replaces an existing profile with a complete new value.
func (g *Gateway) UpdateProfile(ctx context.Context, profile model.UserProfile) (string, error) {
	return g.writeProfile(ctx, OpUpdateProfile, profile)
}

func (g *Gateway) writeProfile(ctx context.Context, op string, profile model.UserProfile) (string, error) {
	if err := requireField(op, profile.UserID, "wallet address"); err != nil {
		return "", err
	}
	if !profile.Verification.Valid() {
		return "", common.Validation(op, fmt.Sprintf("unknown verification status %q", profile.Verification))
	}
	if profile.Stake != nil && profile.Stake.Tier.Verification() != profile.Verification {
		return "", common.Validation(op, "verification status does not match stake tier")
	}
	return do(ctx, g, op, Write, func(ctx context.Context) (string, error) {
		return g.ledger.CreateProfile(ctx, profile.Clone())
	})
}

// CreateIdentity mints the decentralized identity for a user.
func (g *Gateway) CreateIdentity(ctx context.Context, userID string, fp model.FragranceProfile) (model.DecentralizedIdentity, error) {
	if err := requireField(OpCreateIdentity, userID, "wallet address"); err != nil {
		return model.DecentralizedIdentity{}, err
	}
	return do(ctx, g, OpCreateIdentity, Write, func(ctx context.Context) (model.DecentralizedIdentity, error) {
		return g.ledger.CreateIdentity(ctx, userID, fp)
	})
}

// Stake registers a paid stake. The payment receipt doubles as the
// idempotency key.
func (g *Gateway) Stake(ctx context.Context, req service.StakeRequest) (string, error) {
	if err := requireField(OpStake, req.UserID, "wallet address"); err != nil {
		return "", err
	}
	if err := requireField(OpStake, req.PaymentReceipt, "payment receipt"); err != nil {
		return "", err
	}
	if _, ok := model.OfferingFor(req.Tier); !ok {
		return "", common.Validation(OpStake, "unknown stake tier "+req.Tier.Name())
	}
	if req.Amount == 0 {
		return "", common.Validation(OpStake, "stake amount must be positive")
	}
	return do(ctx, g, OpStake, Write, func(ctx context.Context) (string, error) {
		return g.ledger.Stake(ctx, req)
	})
}

// ClaimRewards asks the service to credit accrued stake rewards.
func (g *Gateway) ClaimRewards(ctx context.Context) (string, error) {
	return do(ctx, g, OpClaimRewards, Write, func(ctx context.Context) (string, error) {
		return g.ledger.ProcessStakeRewards(ctx)
	})
}

// Products lists the catalog.
func (g *Gateway) Products(ctx context.Context) ([]model.Product, error) {
	return do(ctx, g, OpProducts, Read, g.ledger.Products)
}

// SearchProducts lists catalog entries matching filter.
func (g *Gateway) SearchProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	if filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice {
		return nil, common.Validation(OpSearchProducts, "minimum price exceeds maximum price")
	}
	return do(ctx, g, OpSearchProducts, Read, func(ctx context.Context) ([]model.Product, error) {
		return g.ledger.SearchProducts(ctx, filter)
	})
}

// SearchByPersonality lists catalog entries whose personality matches
// contain query.
func (g *Gateway) SearchByPersonality(ctx context.Context, query string) ([]model.Product, error) {
	query = strings.TrimSpace(query)
	if err := requireField(OpSearchByTrait, query, "search text"); err != nil {
		return nil, err
	}
	return do(ctx, g, OpSearchByTrait, Read, func(ctx context.Context) ([]model.Product, error) {
		return g.ledger.SearchByPersonality(ctx, query)
	})
}

// HalalProducts lists halal-certified catalog entries.
func (g *Gateway) HalalProducts(ctx context.Context) ([]model.Product, error) {
	return do(ctx, g, OpHalalProducts, Read, g.ledger.HalalProducts)
}

// Recommendations reads a user's stored recommendations.
func (g *Gateway) Recommendations(ctx context.Context, userID string) ([]model.Recommendation, error) {
	if err := requireField(OpRecommendations, userID, "wallet address"); err != nil {
		return nil, err
	}
	return do(ctx, g, OpRecommendations, Read, func(ctx context.Context) ([]model.Recommendation, error) {
		return g.ledger.Recommendations(ctx, userID)
	})
}

// GenerateRecommendations asks the service to rescore the catalog for a
// user. It replaces stored state, so it is not retried.
func (g *Gateway) GenerateRecommendations(ctx context.Context, userID string) ([]model.Recommendation, error) {
	if err := requireField(OpGenerateRecs, userID, "wallet address"); err != nil {
		return nil, err
	}
	return do(ctx, g, OpGenerateRecs, Write, func(ctx context.Context) ([]model.Recommendation, error) {
		return g.ledger.GenerateRecommendations(ctx, userID)
	})
}

// CreateTransaction submits one purchase.
func (g *Gateway) CreateTransaction(ctx context.Context, tx model.Transaction) (string, error) {
	switch {
	case strings.TrimSpace(tx.BuyerID) == "":
		return "", common.Validation(OpCreateTx, "wallet address is required")
	case tx.ProductID == "":
		return "", common.Validation(OpCreateTx, "product is required")
	case tx.Quantity == 0:
		return "", common.Validation(OpCreateTx, "quantity must be positive")
	case tx.IdempotencyKey == "":
		return "", common.Validation(OpCreateTx, "idempotency key is required")
	}
	return do(ctx, g, OpCreateTx, Write, func(ctx context.Context) (string, error) {
		return g.ledger.CreateTransaction(ctx, tx)
	})
}

// Transactions lists purchases where the user is buyer or seller.
func (g *Gateway) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	if err := requireField(OpTransactions, userID, "wallet address"); err != nil {
		return nil, err
	}
	return do(ctx, g, OpTransactions, Read, func(ctx context.Context) ([]model.Transaction, error) {
		return g.ledger.Transactions(ctx, userID)
	})
}

// CreateReview submits a review.
func (g *Gateway) CreateReview(ctx context.Context, review model.Review) (string, error) {
	if err := requireField(OpCreateReview, review.ReviewerID, "wallet address"); err != nil {
		return "", err
	}
	if err := requireField(OpCreateReview, review.ProductID, "product"); err != nil {
		return "", err
	}
	if err := requireField(OpCreateReview, review.IdempotencyKey, "idempotency key"); err != nil {
		return "", err
	}
	if err := review.Ratings.Validate(); err != nil {
		return "", common.Validation(OpCreateReview, err.Error())
	}
	return do(ctx, g, OpCreateReview, Write, func(ctx context.Context) (string, error) {
		return g.ledger.CreateReview(ctx, review)
	})
}

// Reviews lists a product's reviews, newest first.
func (g *Gateway) Reviews(ctx context.Context, productID string) ([]model.Review, error) {
	if err := requireField(OpReviews, productID, "product"); err != nil {
		return nil, err
	}
	return do(ctx, g, OpReviews, Read, func(ctx context.Context) ([]model.Review, error) {
		return g.ledger.Reviews(ctx, productID)
	})
}

// PlatformStats reads marketplace counters.
func (g *Gateway) PlatformStats(ctx context.Context) (model.PlatformStats, error) {
	return do(ctx, g, OpPlatformStats, Read, g.ledger.PlatformStats)
}
