package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

// Memory is an in-process service of record. It applies the same rules
// as the SQLite development ledger and supports scripted failures so
// workflows can be exercised without a network.
type Memory struct {
	now        func() time.Time
	profiles   map[string]model.UserProfile
	identities map[string]model.DecentralizedIdentity
	products   map[string]model.Product
	recs       map[string][]model.Recommendation
	txKeys     map[string]string
	reviewKeys map[string]string
	receipts   map[string]string
	failures   map[string][]error
	calls      map[string]int
	txs        []model.Transaction
	reviews    []model.Review
	productSeq []string
	stakePool  uint64
	mu         sync.Mutex
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		now:        time.Now,
		profiles:   make(map[string]model.UserProfile),
		identities: make(map[string]model.DecentralizedIdentity),
		products:   make(map[string]model.Product),
		recs:       make(map[string][]model.Recommendation),
		txKeys:     make(map[string]string),
		reviewKeys: make(map[string]string),
		receipts:   make(map[string]string),
		failures:   make(map[string][]error),
		calls:      make(map[string]int),
	}
}

var _ service.Ledger = (*Memory)(nil)

// SetClock replaces the time source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FailNext queues err to be returned by the next call to method. Queued
// errors are consumed in order.
func (m *Memory) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = append(m.failures[method], err)
}

// Calls returns how many times method was invoked.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// AddProduct inserts or replaces a catalog entry.
func (m *Memory) AddProduct(p model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		m.productSeq = append(m.productSeq, p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	p.UpdatedAt = m.now()
	m.products[p.ID] = p
}

// SetTransactionStatus moves a transaction through its lifecycle.
func (m *Memory) SetTransactionStatus(id string, status model.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.txs {
		if m.txs[i].ID == id {
			m.txs[i].Status = status
			if status == model.StatusCompleted {
				at := m.now()
				m.txs[i].CompletedAt = &at
			}
			return nil
		}
	}
	return fmt.Errorf("transaction %s not found", id)
}

// enter records a call and returns any scripted failure. Callers hold mu.
func (m *Memory) enter(method string) error {
	m.calls[method]++
	if q := m.failures[method]; len(q) > 0 {
		m.failures[method] = q[1:]
		return q[0]
	}
	return nil
}

func reject(format string, args ...any) error {
	return &service.RejectionError{Message: fmt.Sprintf(format, args...)}
}

// GetProfile implements service.Ledger.
func (m *Memory) GetProfile(_ context.Context, userID string) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodGetProfile); err != nil {
		return nil, err
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := p.Clone()
	return &c, nil
}

// CreateProfile implements service.Ledger. Existing profiles are replaced.
func (m *Memory) CreateProfile(_ context.Context, profile model.UserProfile) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodCreateProfile); err != nil {
		return "", err
	}
	if profile.UserID == "" {
		return "", reject("User id is required")
	}
	if profile.Verification == "" {
		profile.Verification = model.Unverified
	}
	m.profiles[profile.UserID] = profile.Clone()
	return profile.UserID, nil
}

// CreateIdentity implements service.Ledger.
func (m *Memory) CreateIdentity(_ context.Context, userID string, fp model.FragranceProfile) (model.DecentralizedIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodCreateIdentity); err != nil {
		return model.DecentralizedIdentity{}, err
	}
	if userID == "" {
		return model.DecentralizedIdentity{}, reject("User id is required")
	}
	now := m.now()
	id := model.DecentralizedIdentity{
		DID:       model.DIDFor(userID),
		UserID:    userID,
		PublicKey: fmt.Sprintf("pub_key_%d", now.UnixNano()),
		Profile:   fp,
		CreatedAt: now,
	}
	m.identities[id.DID] = id
	if p, ok := m.profiles[userID]; ok {
		p.DID = id.DID
		m.profiles[userID] = p
	}
	return id, nil
}

// Stake implements service.Ledger. A payment receipt can fund at most
// one stake; replaying it returns the original confirmation.
func (m *Memory) Stake(_ context.Context, req service.StakeRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodStake); err != nil {
		return "", err
	}
	if msg, ok := m.receipts[req.PaymentReceipt]; ok && req.PaymentReceipt != "" {
		return msg, nil
	}
	o, ok := model.OfferingFor(req.Tier)
	if !ok {
		return "", reject("Unknown verification tier")
	}
	if req.Amount < o.Amount {
		return "", reject("Insufficient stake amount. Required: %d IDR", o.Amount)
	}
	p, ok := m.profiles[req.UserID]
	if !ok {
		return "", reject("User not found")
	}
	rec, err := model.NewStakeRecord(req.Amount, req.Tier, m.now())
	if err != nil {
		return "", reject("%s", err.Error())
	}
	p.Stake = &rec
	p.Verification = req.Tier.Verification()
	m.profiles[req.UserID] = p
	m.stakePool += req.Amount

	msg := fmt.Sprintf("Staked %d IDR for verification tier", req.Amount)
	if req.PaymentReceipt != "" {
		m.receipts[req.PaymentReceipt] = msg
	}
	return msg, nil
}

// ProcessStakeRewards implements service.Ledger.
func (m *Memory) ProcessStakeRewards(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodProcessRewards); err != nil {
		return "", err
	}
	now := m.now()
	var total uint64
	for id, p := range m.profiles {
		if p.Stake == nil {
			continue
		}
		current := p.Stake.AccruedReward(now.Sub(p.CreatedAt))
		if current > p.Stake.RewardEarned {
			total += current - p.Stake.RewardEarned
			s := *p.Stake
			s.RewardEarned = current
			p.Stake = &s
			m.profiles[id] = p
		}
	}
	return fmt.Sprintf("Processed stake rewards: %d IDR total", total), nil
}

// Products implements service.Ledger.
func (m *Memory) Products(_ context.Context) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodProducts); err != nil {
		return nil, err
	}
	return m.filterProducts(model.ProductFilter{}), nil
}

// SearchProducts implements service.Ledger.
func (m *Memory) SearchProducts(_ context.Context, filter model.ProductFilter) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodSearchProducts); err != nil {
		return nil, err
	}
	return m.filterProducts(filter), nil
}

// SearchByPersonality implements service.Ledger.
func (m *Memory) SearchByPersonality(_ context.Context, query string) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodSearchPersonality); err != nil {
		return nil, err
	}
	out := make([]model.Product, 0)
	for _, id := range m.productSeq {
		if p := m.products[id]; p.MatchesPersonality(query) {
			out = append(out, p)
		}
	}
	return out, nil
}

// HalalProducts implements service.Ledger.
func (m *Memory) HalalProducts(_ context.Context) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodHalalProducts); err != nil {
		return nil, err
	}
	return m.filterProducts(model.ProductFilter{HalalOnly: true}), nil
}

func (m *Memory) filterProducts(f model.ProductFilter) []model.Product {
	out := make([]model.Product, 0, len(m.productSeq))
	for _, id := range m.productSeq {
		if p := m.products[id]; f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// Recommendations implements service.Ledger.
func (m *Memory) Recommendations(_ context.Context, userID string) ([]model.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodRecommendations); err != nil {
		return nil, err
	}
	return append([]model.Recommendation(nil), m.recs[userID]...), nil
}

// SetRecommendations stores recommendations for a user directly.
func (m *Memory) SetRecommendations(userID string, recs []model.Recommendation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[userID] = append([]model.Recommendation(nil), recs...)
}

// GenerateRecommendations implements service.Ledger.
func (m *Memory) GenerateRecommendations(_ context.Context, userID string) ([]model.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodGenerateRecs); err != nil {
		return nil, err
	}
	p, ok := m.profiles[userID]
	if !ok || p.DID == "" {
		return nil, reject("User profile or DID not found")
	}
	ident, ok := m.identities[p.DID]
	if !ok {
		return nil, reject("User profile or DID not found")
	}
	recs := model.ScoreProducts(userID, ident.Profile, m.filterProducts(model.ProductFilter{}), m.now())
	m.recs[userID] = recs
	return append([]model.Recommendation(nil), recs...), nil
}

// CreateTransaction implements service.Ledger. Repeating an idempotency
// key returns the id of the first submission.
func (m *Memory) CreateTransaction(_ context.Context, tx model.Transaction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodCreateTransaction); err != nil {
		return "", err
	}
	if id, ok := m.txKeys[tx.IdempotencyKey]; ok && tx.IdempotencyKey != "" {
		return id, nil
	}
	if err := checkTransaction(tx); err != nil {
		return "", err
	}
	if p, ok := m.products[tx.ProductID]; ok && p.Stock > 0 && tx.Quantity > p.Stock {
		return "", reject("Insufficient stock for %s", p.Name)
	}

	tx = model.FinalizeTransaction(tx, "tx_"+uuid.New().String(), m.now())
	m.txs = append(m.txs, tx)
	if tx.IdempotencyKey != "" {
		m.txKeys[tx.IdempotencyKey] = tx.ID
	}
	if p, ok := m.profiles[tx.BuyerID]; ok {
		p.TotalTransactions++
		m.profiles[tx.BuyerID] = p
	}
	return tx.ID, nil
}

// Transactions implements service.Ledger.
func (m *Memory) Transactions(_ context.Context, userID string) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodUserTransactions); err != nil {
		return nil, err
	}
	var out []model.Transaction
	for _, tx := range m.txs {
		if tx.BuyerID == userID || tx.SellerID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// CreateReview implements service.Ledger.
func (m *Memory) CreateReview(_ context.Context, review model.Review) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodCreateReview); err != nil {
		return "", err
	}
	if id, ok := m.reviewKeys[review.IdempotencyKey]; ok && review.IdempotencyKey != "" {
		return id, nil
	}
	p, ok := m.profiles[review.ReviewerID]
	if !ok {
		return "", reject("User not found")
	}
	if p.Verification == model.Unverified {
		return "", reject("User must be verified to create reviews")
	}
	if err := review.Ratings.Validate(); err != nil {
		return "", reject("%s", err.Error())
	}
	if review.ID == "" {
		review.ID = "review_" + uuid.New().String()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = m.now()
	}
	m.reviews = append(m.reviews, review)
	if review.IdempotencyKey != "" {
		m.reviewKeys[review.IdempotencyKey] = review.ID
	}
	return review.ID, nil
}

// Reviews implements service.Ledger.
func (m *Memory) Reviews(_ context.Context, productID string) ([]model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodProductReviews); err != nil {
		return nil, err
	}
	var out []model.Review
	for _, r := range m.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// PlatformStats implements service.Ledger.
func (m *Memory) PlatformStats(_ context.Context) (model.PlatformStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(MethodPlatformStatistics); err != nil {
		return nil, err
	}
	stats := model.PlatformStats{
		"total_users":        uint64(len(m.profiles)),
		"total_products":     uint64(len(m.products)),
		"total_transactions": uint64(len(m.txs)),
		"total_reviews":      uint64(len(m.reviews)),
		"total_staked_idr":   m.stakePool,
	}
	for _, p := range m.profiles {
		if p.Verification != model.Unverified {
			stats["verified_users"]++
		}
	}
	for _, p := range m.products {
		if p.Verified {
			stats["verified_products"]++
		}
	}
	for _, tx := range m.txs {
		stats["total_gmv_idr"] += tx.TotalAmount
	}
	return stats, nil
}

func checkTransaction(tx model.Transaction) error {
	switch {
	case tx.BuyerID == "":
		return reject("Buyer is required")
	case tx.ProductID == "":
		return reject("Product is required")
	case tx.Quantity == 0:
		return reject("Quantity must be positive")
	}
	if _, err := model.MulIDR(tx.UnitPrice, uint64(tx.Quantity)); err != nil {
		return reject("Total exceeds the supported amount")
	}
	return nil
}
