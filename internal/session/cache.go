package session

import "github.com/Veraticus/aromance/internal/model"

// Entry names a cache entry for Invalidate.
type Entry string

// Cache entries.
const (
	EntryProfile         Entry = "profile"
	EntryProducts        Entry = "products"
	EntryRecommendations Entry = "recommendations"
	EntryTransactions    Entry = "transactions"
	EntryReviews         Entry = "reviews"
)

// Profile returns the cached profile or nil.
func (s *Store) Profile() *model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil
	}
	p := s.profile.Clone()
	return &p
}

// SetProfile replaces the cached profile. A profile for a wallet other
// than the signed-in one is ignored and reported as false.
func (s *Store) SetProfile(p model.UserProfile) bool {
	s.mu.Lock()
	if p.WalletAddress != s.identity.WalletAddress {
		s.mu.Unlock()
		return false
	}
	cp := p.Clone()
	s.profile = &cp
	s.mu.Unlock()

	s.notify(ChangeProfile)
	return true
}

// Products returns the cached catalog.
func (s *Store) Products() []model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProducts(s.products)
}

// Product returns one cached product.
func (s *Store) Product(id string) (model.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return model.Product{}, false
}

// SetProducts replaces the cached catalog.
func (s *Store) SetProducts(products []model.Product) {
	s.mu.Lock()
	s.products = cloneProducts(products)
	s.mu.Unlock()
	s.notify(ChangeProducts, ChangeCart)
}

// Recommendations returns the cached recommendations, best match first.
func (s *Store) Recommendations() []model.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Recommendation(nil), s.recommendations...)
}

// SetRecommendations replaces the cached recommendations, sorting them
// by match score.
func (s *Store) SetRecommendations(recs []model.Recommendation) {
	sorted := append([]model.Recommendation(nil), recs...)
	model.SortRecommendations(sorted)

	s.mu.Lock()
	s.recommendations = sorted
	s.mu.Unlock()
	s.notify(ChangeRecommendations)
}

// SetRecommendationsAt is SetRecommendations for a result fetched under
// generation gen. Stale results are dropped and reported as false.
func (s *Store) SetRecommendationsAt(gen uint64, recs []model.Recommendation) bool {
	sorted := append([]model.Recommendation(nil), recs...)
	model.SortRecommendations(sorted)
	return s.setAt(gen, ChangeRecommendations, func() { s.recommendations = sorted })
}

// Transactions returns the cached orders.
func (s *Store) Transactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTransactions(s.transactions)
}

// SetTransactions replaces the cached orders.
func (s *Store) SetTransactions(txs []model.Transaction) {
	s.mu.Lock()
	s.transactions = cloneTransactions(txs)
	s.mu.Unlock()
	s.notify(ChangeTransactions)
}

// SetTransactionsAt is SetTransactions for a result fetched under
// generation gen. Stale results are dropped and reported as false.
func (s *Store) SetTransactionsAt(gen uint64, txs []model.Transaction) bool {
	cp := cloneTransactions(txs)
	return s.setAt(gen, ChangeTransactions, func() { s.transactions = cp })
}

// HasCompletedPurchase reports whether the cached orders hold a
// completed purchase of productID by buyer.
func (s *Store) HasCompletedPurchase(buyer, productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.BuyerID == buyer && tx.ProductID == productID && tx.Status == model.StatusCompleted {
			return true
		}
	}
	return false
}

// Reviews returns the cached reviews of productID.
func (s *Store) Reviews(productID string) []model.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneReviews(s.reviews[productID])
}

// SetReviews replaces the cached reviews of productID.
func (s *Store) SetReviews(productID string, reviews []model.Review) {
	s.mu.Lock()
	s.reviews[productID] = cloneReviews(reviews)
	s.mu.Unlock()
	s.notify(ChangeReviews)
}

// Invalidate drops a cache entry so the next read goes remote.
func (s *Store) Invalidate(e Entry) {
	var c Change
	s.mu.Lock()
	switch e {
	case EntryProfile:
		s.profile, c = nil, ChangeProfile
	case EntryProducts:
		s.products, c = nil, ChangeProducts
	case EntryRecommendations:
		s.recommendations, c = nil, ChangeRecommendations
	case EntryTransactions:
		s.transactions, c = nil, ChangeTransactions
	case EntryReviews:
		s.reviews, c = make(map[string][]model.Review), ChangeReviews
	}
	s.mu.Unlock()

	if c != "" {
		s.notify(c)
	}
}

func (s *Store) setAt(gen uint64, c Change, apply func()) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	apply()
	s.mu.Unlock()
	s.notify(c)
	return true
}

func cloneProducts(in []model.Product) []model.Product {
	if in == nil {
		return nil
	}
	out := make([]model.Product, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}

func cloneTransactions(in []model.Transaction) []model.Transaction {
	if in == nil {
		return nil
	}
	out := make([]model.Transaction, len(in))
	for i, tx := range in {
		out[i] = tx.Clone()
	}
	return out
}

func cloneReviews(in []model.Review) []model.Review {
	if in == nil {
		return nil
	}
	out := make([]model.Review, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
