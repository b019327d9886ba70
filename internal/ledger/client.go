// Package ledger implements the wire contract of the marketplace service
// of record: an HTTP client, an HTTP server exposing any service.Ledger,
// and an in-memory ledger for tests and offline sessions.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// Method names of the service of record.
const (
	MethodGetProfile         = "get_user_profile"
	MethodCreateProfile      = "create_user_profile"
	MethodCreateIdentity     = "create_decentralized_identity"
	MethodStake              = "stake_for_verification"
	MethodProcessRewards     = "process_stake_rewards"
	MethodProducts           = "get_products"
	MethodSearchProducts     = "search_products_advanced"
	MethodSearchPersonality  = "search_products_by_personality"
	MethodHalalProducts      = "get_halal_products"
	MethodRecommendations    = "get_recommendations_for_user"
	MethodGenerateRecs       = "generate_ai_recommendations"
	MethodCreateTransaction  = "create_transaction"
	MethodUserTransactions   = "get_user_transactions"
	MethodCreateReview       = "create_verified_review"
	MethodProductReviews     = "get_product_reviews"
	MethodPlatformStatistics = "get_platform_statistics"
)

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the service of record over HTTP.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient creates a ledger client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ledger base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}, nil
}

var _ service.Ledger = (*Client)(nil)

// call posts args to a method and decodes the response body into out.
func (c *Client) call(ctx context.Context, method string, args any, out any) error {
	if args == nil {
		args = struct{}{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("ledger call", "method", method, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// callResult posts a write call and unwraps its Ok/Err envelope. An Err
// variant becomes a *service.RejectionError carrying the service's text.
func (c *Client) callResult(ctx context.Context, method string, args any, out any) error {
	var res result
	if err := c.call(ctx, method, args, &res); err != nil {
		return err
	}
	switch res.Tag {
	case "Ok":
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.Payload, out); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", method, err)
		}
		return nil
	case "Err":
		var msg string
		if err := json.Unmarshal(res.Payload, &msg); err != nil {
			return fmt.Errorf("failed to parse %s error: %w", method, err)
		}
		return &service.RejectionError{Message: msg}
	default:
		return fmt.Errorf("%w: unexpected result tag %q", ErrMalformedVariant, res.Tag)
	}
}

type userArgs struct {
	UserID string `json:"user_id"`
}

type profileArgs struct {
	Profile wireProfile `json:"profile"`
}

type identityArgs struct {
	UserID          string                `json:"user_id"`
	PersonalityData wireFragranceIdentity `json:"personality_data"`
}

type stakeArgs struct {
	Tier           Variant `json:"tier"`
	UserID         string  `json:"user_id"`
	PaymentReceipt string  `json:"payment_receipt"`
	Amount         uint64  `json:"amount"`
}

type searchArgs struct {
	FragranceFamily Opt[string] `json:"fragrance_family"`
	BudgetMin       Opt[uint64] `json:"budget_min"`
	BudgetMax       Opt[uint64] `json:"budget_max"`
	Occasion        Opt[string] `json:"occasion"`
	Season          Opt[string] `json:"season"`
	VerifiedOnly    Opt[bool]   `json:"verified_only"`
	HalalOnly       Opt[bool]   `json:"halal_only"`
}

func (a searchArgs) filter() model.ProductFilter {
	return model.ProductFilter{
		Family:       a.FragranceFamily.Value,
		MinPrice:     a.BudgetMin.Value,
		MaxPrice:     a.BudgetMax.Value,
		Occasion:     a.Occasion.Value,
		Season:       a.Season.Value,
		VerifiedOnly: a.VerifiedOnly.Value,
		HalalOnly:    a.HalalOnly.Value,
	}
}

type transactionArgs struct {
	Transaction wireTransaction `json:"transaction"`
}

type reviewArgs struct {
	Review wireReview `json:"review"`
}

type productArgs struct {
	ProductID string `json:"product_id"`
}

type personalityArgs struct {
	PersonalityType string `json:"personality_type"`
}

// GetProfile fetches a profile; a missing profile is (nil, nil).
func (c *Client) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var out Opt[wireProfile]
	if err := c.call(ctx, MethodGetProfile, userArgs{UserID: userID}, &out); err != nil {
		return nil, err
	}
	w := out.Ptr()
	if w == nil {
		return nil, nil
	}
	p, err := fromWireProfile(*w)
	if err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &p, nil
}

// CreateProfile stores a profile, replacing any existing one for the user.
func (c *Client) CreateProfile(ctx context.Context, profile model.UserProfile) (string, error) {
	w, err := toWireProfile(profile)
	if err != nil {
		return "", err
	}
	var id string
	if err := c.callResult(ctx, MethodCreateProfile, profileArgs{Profile: w}, &id); err != nil {
		return "", err
	}
	return id, nil
}

// CreateIdentity creates the user's decentralized identity.
func (c *Client) CreateIdentity(ctx context.Context, userID string, fp model.FragranceProfile) (model.DecentralizedIdentity, error) {
	var w wireIdentity
	args := identityArgs{UserID: userID, PersonalityData: toWireFragrance(fp)}
	if err := c.callResult(ctx, MethodCreateIdentity, args, &w); err != nil {
		return model.DecentralizedIdentity{}, err
	}
	return fromWireIdentity(userID, w)
}

// Stake registers a verification stake.
func (c *Client) Stake(ctx context.Context, req service.StakeRequest) (string, error) {
	tier, err := encodeStakeTier(req.Tier, req.Amount)
	if err != nil {
		return "", err
	}
	var msg string
	args := stakeArgs{UserID: req.UserID, Amount: req.Amount, Tier: tier, PaymentReceipt: req.PaymentReceipt}
	if err := c.callResult(ctx, MethodStake, args, &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// ProcessStakeRewards accrues rewards for every active stake.
func (c *Client) ProcessStakeRewards(ctx context.Context) (string, error) {
	var msg string
	if err := c.callResult(ctx, MethodProcessRewards, nil, &msg); err != nil {
		return "", err
	}
	return msg, nil
}

// Products lists the whole catalog.
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	return c.products(ctx, MethodProducts, nil)
}

// SearchProducts lists products matching filter.
func (c *Client) SearchProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	args := searchArgs{
		FragranceFamily: OptString(filter.Family),
		Occasion:        OptString(filter.Occasion),
		Season:          OptString(filter.Season),
	}
	if filter.MinPrice > 0 {
		args.BudgetMin = Some(filter.MinPrice)
	}
	if filter.MaxPrice > 0 {
		args.BudgetMax = Some(filter.MaxPrice)
	}
	if filter.VerifiedOnly {
		args.VerifiedOnly = Some(true)
	}
	if filter.HalalOnly {
		args.HalalOnly = Some(true)
	}
	return c.products(ctx, MethodSearchProducts, args)
}

// SearchByPersonality lists products whose personality matches contain
// query.
func (c *Client) SearchByPersonality(ctx context.Context, query string) ([]model.Product, error) {
	return c.products(ctx, MethodSearchPersonality, personalityArgs{PersonalityType: query})
}

// HalalProducts lists halal-certified products.
func (c *Client) HalalProducts(ctx context.Context) ([]model.Product, error) {
	return c.products(ctx, MethodHalalProducts, nil)
}

func (c *Client) products(ctx context.Context, method string, args any) ([]model.Product, error) {
	var out []wireProduct
	if err := c.call(ctx, method, args, &out); err != nil {
		return nil, err
	}
	return decodeList(out, infallible(fromWireProduct))
}

// Recommendations returns the stored recommendations for a user.
func (c *Client) Recommendations(ctx context.Context, userID string) ([]model.Recommendation, error) {
	var out []wireRecommendation
	if err := c.call(ctx, MethodRecommendations, userArgs{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return decodeList(out, infallible(fromWireRecommendation))
}

// GenerateRecommendations asks the service to rescore the catalog for a user.
func (c *Client) GenerateRecommendations(ctx context.Context, userID string) ([]model.Recommendation, error) {
	var out []wireRecommendation
	if err := c.callResult(ctx, MethodGenerateRecs, userArgs{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return decodeList(out, infallible(fromWireRecommendation))
}

// CreateTransaction submits a purchase and returns its id.
func (c *Client) CreateTransaction(ctx context.Context, tx model.Transaction) (string, error) {
	var id string
	if err := c.callResult(ctx, MethodCreateTransaction, transactionArgs{Transaction: toWireTransaction(tx)}, &id); err != nil {
		return "", err
	}
	return id, nil
}

// Transactions lists purchases where the user is buyer or seller.
func (c *Client) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	var out []wireTransaction
	if err := c.call(ctx, MethodUserTransactions, userArgs{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return decodeList(out, fromWireTransaction)
}

// CreateReview submits a review and returns its id.
func (c *Client) CreateReview(ctx context.Context, review model.Review) (string, error) {
	w, err := toWireReview(review)
	if err != nil {
		return "", err
	}
	var id string
	if err := c.callResult(ctx, MethodCreateReview, reviewArgs{Review: w}, &id); err != nil {
		return "", err
	}
	return id, nil
}

// Reviews lists the reviews of a product.
func (c *Client) Reviews(ctx context.Context, productID string) ([]model.Review, error) {
	var out []wireReview
	if err := c.call(ctx, MethodProductReviews, productArgs{ProductID: productID}, &out); err != nil {
		return nil, err
	}
	return decodeList(out, fromWireReview)
}

// PlatformStats returns the marketplace counters.
func (c *Client) PlatformStats(ctx context.Context) (model.PlatformStats, error) {
	var out map[string]uint64
	if err := c.call(ctx, MethodPlatformStatistics, nil, &out); err != nil {
		return nil, err
	}
	return model.PlatformStats(out), nil
}
