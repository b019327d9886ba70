package ledger

import (
	"fmt"

	"github.com/Veraticus/aromance/internal/model"
)

// Wire records mirror the service of record's schema. Conversions to and
// from the model happen only in this file so the rest of the code never
// sees tags or optionals.

type wireStake struct {
	Tier             Variant `json:"tier"`
	AmountIDR        uint64  `json:"amount_idr"`
	LockedUntil      uint64  `json:"locked_until"`
	PenaltyCount     uint32  `json:"penalty_count"`
	RewardEarned     uint64  `json:"reward_earned"`
	AnnualReturnRate float64 `json:"annual_return_rate"`
}

type wireProfile struct {
	Preferences             map[string]string `json:"preferences"`
	VerificationStatus      Variant           `json:"verification_status"`
	UserID                  string            `json:"user_id"`
	WalletAddress           Opt[string]       `json:"wallet_address"`
	DID                     Opt[string]       `json:"did"`
	StakeInfo               Opt[wireStake]    `json:"stake_info"`
	ReputationScore         float64           `json:"reputation_score"`
	CreatedAt               uint64            `json:"created_at"`
	LastActive              uint64            `json:"last_active"`
	TotalTransactions       uint32            `json:"total_transactions"`
	ConsultationCompleted   bool              `json:"consultation_completed"`
	AIConsent               bool              `json:"ai_consent"`
	DataMonetizationConsent bool              `json:"data_monetization_consent"`
}

type wireFragranceIdentity struct {
	BudgetRange         Variant  `json:"budget_range"`
	PersonalityType     string   `json:"personality_type"`
	Lifestyle           string   `json:"lifestyle"`
	SensitivityLevel    string   `json:"sensitivity_level"`
	PreferredFamilies   []string `json:"preferred_families"`
	OccasionPreferences []string `json:"occasion_preferences"`
	SeasonPreferences   []string `json:"season_preferences"`
}

type wireIdentity struct {
	DID               string                `json:"did"`
	PublicKey         string                `json:"public_key"`
	FragranceIdentity wireFragranceIdentity `json:"fragrance_identity"`
	CreatedAt         uint64                `json:"created_at"`
}

type wireProduct struct {
	ID                 string   `json:"id"`
	SellerID           string   `json:"seller_id"`
	Name               string   `json:"name"`
	Brand              string   `json:"brand"`
	Description        string   `json:"description"`
	FragranceFamily    string   `json:"fragrance_family"`
	Longevity          string   `json:"longevity"`
	Sillage            string   `json:"sillage"`
	Projection         string   `json:"projection"`
	TopNotes           []string `json:"top_notes"`
	MiddleNotes        []string `json:"middle_notes"`
	BaseNotes          []string `json:"base_notes"`
	Occasion           []string `json:"occasion"`
	Season             []string `json:"season"`
	PersonalityMatches []string `json:"personality_matches"`
	Images             []string `json:"images"`
	PriceIDR           uint64   `json:"price_idr"`
	VersatilityScore   float64  `json:"versatility_score"`
	CreatedAt          uint64   `json:"created_at"`
	UpdatedAt          uint64   `json:"updated_at"`
	Stock              uint32   `json:"stock"`
	HalalCertified     bool     `json:"halal_certified"`
	Verified           bool     `json:"verified"`
	AIAnalyzed         bool     `json:"ai_analyzed"`
}

type wireRecommendation struct {
	RecommendationID     string  `json:"recommendation_id"`
	UserID               string  `json:"user_id"`
	ProductID            string  `json:"product_id"`
	Reasoning            string  `json:"reasoning"`
	MatchScore           float64 `json:"match_score"`
	PersonalityAlignment float64 `json:"personality_alignment"`
	LifestyleFit         float64 `json:"lifestyle_fit"`
	OccasionMatch        float64 `json:"occasion_match"`
	BudgetCompatibility  float64 `json:"budget_compatibility"`
	SeasonalRelevance    float64 `json:"seasonal_relevance"`
	TrendFactor          float64 `json:"trend_factor"`
	ConfidenceLevel      float64 `json:"confidence_level"`
	GeneratedAt          uint64  `json:"generated_at"`
}

type wireTransaction struct {
	TransactionTier  Variant     `json:"transaction_tier"`
	Status           Variant     `json:"status"`
	TransactionID    string      `json:"transaction_id"`
	IdempotencyKey   string      `json:"idempotency_key"`
	BuyerID          string      `json:"buyer_id"`
	SellerID         string      `json:"seller_id"`
	ProductID        string      `json:"product_id"`
	PaymentMethod    string      `json:"payment_method"`
	ShippingAddress  string      `json:"shipping_address"`
	CompletedAt      Opt[uint64] `json:"completed_at"`
	Quantity         uint32      `json:"quantity"`
	UnitPriceIDR     uint64      `json:"unit_price_idr"`
	TotalAmountIDR   uint64      `json:"total_amount_idr"`
	CommissionRate   float64     `json:"commission_rate"`
	CommissionAmount uint64      `json:"commission_amount"`
	CreatedAt        uint64      `json:"created_at"`
	EscrowLocked     bool        `json:"escrow_locked"`
}

type wireReview struct {
	ReviewerTier      Opt[Variant] `json:"reviewer_tier"`
	ReviewID          string       `json:"review_id"`
	IdempotencyKey    string       `json:"idempotency_key"`
	ReviewerID        string       `json:"reviewer_id"`
	ProductID         string       `json:"product_id"`
	ReviewText        string       `json:"review_text"`
	SkinType          string       `json:"skin_type"`
	AgeGroup          string       `json:"age_group"`
	WearOccasion      string       `json:"wear_occasion"`
	SeasonTested      string       `json:"season_tested"`
	ReviewerStake     uint64       `json:"reviewer_stake"`
	CreatedAt         uint64       `json:"created_at"`
	OverallRating     uint8        `json:"overall_rating"`
	LongevityRating   uint8        `json:"longevity_rating"`
	SillageRating     uint8        `json:"sillage_rating"`
	ProjectionRating  uint8        `json:"projection_rating"`
	VersatilityRating uint8        `json:"versatility_rating"`
	ValueRating       uint8        `json:"value_rating"`
	VerifiedPurchase  bool         `json:"verified_purchase"`
}

type stakePayload struct {
	Stake uint64 `json:"stake"`
}

func encodeStakeTier(t model.StakeTier, amount uint64) (Variant, error) {
	return TaggedWith(t.Name(), stakePayload{Stake: amount})
}

func decodeStakeTier(v Variant) (model.StakeTier, error) {
	for _, o := range model.StakeTiers {
		if o.Tier.Name() == v.Tag {
			return o.Tier, nil
		}
	}
	return model.StakeTier{}, fmt.Errorf("%w: %q", model.ErrUnknownStakeTier, v.Tag)
}

func decodeVerification(v Variant) (model.VerificationStatus, error) {
	s := model.VerificationStatus(v.Tag)
	if !s.Valid() {
		return "", fmt.Errorf("unknown verification status %q", v.Tag)
	}
	return s, nil
}

func decodeTransactionStatus(v Variant) (model.TransactionStatus, error) {
	s := model.TransactionStatus(v.Tag)
	if !s.Valid() {
		return "", fmt.Errorf("unknown transaction status %q", v.Tag)
	}
	return s, nil
}

func decodeTransactionTier(v Variant) (model.TransactionTier, error) {
	switch t := model.TransactionTier(v.Tag); t {
	case model.TierBudget, model.TierStandard, model.TierPremium, model.TierLuxury:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction tier %q", v.Tag)
}

func decodeBudgetRange(v Variant) (model.BudgetRange, error) {
	switch r := model.BudgetRange(v.Tag); r {
	case model.BudgetLow, model.BudgetModerate, model.BudgetPremium, model.BudgetLuxury:
		return r, nil
	}
	return "", fmt.Errorf("unknown budget range %q", v.Tag)
}

func toWireProfile(p model.UserProfile) (wireProfile, error) {
	status := p.Verification
	if status == "" {
		status = model.Unverified
	}
	w := wireProfile{
		UserID:                  p.UserID,
		WalletAddress:           OptString(p.WalletAddress),
		DID:                     OptString(p.DID),
		VerificationStatus:      Tagged(string(status)),
		Preferences:             p.Preferences,
		ConsultationCompleted:   p.ConsultationCompleted,
		AIConsent:               p.AIConsent,
		DataMonetizationConsent: p.DataMonetizationConsent,
		ReputationScore:         p.ReputationScore,
		TotalTransactions:       p.TotalTransactions,
		CreatedAt:               Nanos(p.CreatedAt),
		LastActive:              Nanos(p.LastActive),
	}
	if w.Preferences == nil {
		w.Preferences = map[string]string{}
	}
	if p.Stake != nil {
		tier, err := encodeStakeTier(p.Stake.Tier, p.Stake.Amount)
		if err != nil {
			return wireProfile{}, err
		}
		w.StakeInfo = Some(wireStake{
			AmountIDR:        p.Stake.Amount,
			Tier:             tier,
			LockedUntil:      Nanos(p.Stake.LockedUntil),
			PenaltyCount:     p.Stake.PenaltyCount,
			RewardEarned:     p.Stake.RewardEarned,
			AnnualReturnRate: p.Stake.AnnualReturnRate,
		})
	}
	return w, nil
}

func fromWireProfile(w wireProfile) (model.UserProfile, error) {
	status, err := decodeVerification(w.VerificationStatus)
	if err != nil {
		return model.UserProfile{}, err
	}
	p := model.UserProfile{
		UserID:                  w.UserID,
		WalletAddress:           w.WalletAddress.Value,
		DID:                     w.DID.Value,
		Verification:            status,
		Preferences:             w.Preferences,
		ConsultationCompleted:   w.ConsultationCompleted,
		AIConsent:               w.AIConsent,
		DataMonetizationConsent: w.DataMonetizationConsent,
		ReputationScore:         w.ReputationScore,
		TotalTransactions:       w.TotalTransactions,
		CreatedAt:               FromNanos(w.CreatedAt),
		LastActive:              FromNanos(w.LastActive),
	}
	if p.Preferences == nil {
		p.Preferences = map[string]string{}
	}
	if s := w.StakeInfo.Ptr(); s != nil {
		tier, err := decodeStakeTier(s.Tier)
		if err != nil {
			return model.UserProfile{}, err
		}
		p.Stake = &model.StakeRecord{
			Amount:           s.AmountIDR,
			Tier:             tier,
			LockedUntil:      FromNanos(s.LockedUntil),
			PenaltyCount:     s.PenaltyCount,
			RewardEarned:     s.RewardEarned,
			AnnualReturnRate: s.AnnualReturnRate,
		}
	}
	return p, nil
}

func toWireFragrance(fp model.FragranceProfile) wireFragranceIdentity {
	budget := fp.Budget
	if budget == "" {
		budget = model.BudgetModerate
	}
	return wireFragranceIdentity{
		PersonalityType:     fp.PersonalityType,
		Lifestyle:           fp.Lifestyle,
		PreferredFamilies:   nonNil(fp.PreferredFamilies),
		OccasionPreferences: nonNil(fp.OccasionPreferences),
		SeasonPreferences:   nonNil(fp.SeasonPreferences),
		SensitivityLevel:    fp.SensitivityLevel,
		BudgetRange:         Tagged(string(budget)),
	}
}

func fromWireFragrance(w wireFragranceIdentity) (model.FragranceProfile, error) {
	budget, err := decodeBudgetRange(w.BudgetRange)
	if err != nil {
		return model.FragranceProfile{}, err
	}
	return model.FragranceProfile{
		PersonalityType:     w.PersonalityType,
		Lifestyle:           w.Lifestyle,
		PreferredFamilies:   w.PreferredFamilies,
		OccasionPreferences: w.OccasionPreferences,
		SeasonPreferences:   w.SeasonPreferences,
		SensitivityLevel:    w.SensitivityLevel,
		Budget:              budget,
	}, nil
}

func toWireIdentity(id model.DecentralizedIdentity) wireIdentity {
	return wireIdentity{
		DID:               id.DID,
		PublicKey:         id.PublicKey,
		FragranceIdentity: toWireFragrance(id.Profile),
		CreatedAt:         Nanos(id.CreatedAt),
	}
}

func fromWireIdentity(userID string, w wireIdentity) (model.DecentralizedIdentity, error) {
	fp, err := fromWireFragrance(w.FragranceIdentity)
	if err != nil {
		return model.DecentralizedIdentity{}, err
	}
	return model.DecentralizedIdentity{
		DID:       w.DID,
		UserID:    userID,
		PublicKey: w.PublicKey,
		Profile:   fp,
		CreatedAt: FromNanos(w.CreatedAt),
	}, nil
}

func toWireProduct(p model.Product) wireProduct {
	return wireProduct{
		ID:                 p.ID,
		SellerID:           p.SellerID,
		Name:               p.Name,
		Brand:              p.Brand,
		Description:        p.Description,
		FragranceFamily:    p.FragranceFamily,
		Longevity:          p.Longevity,
		Sillage:            p.Sillage,
		Projection:         p.Projection,
		TopNotes:           nonNil(p.TopNotes),
		MiddleNotes:        nonNil(p.MiddleNotes),
		BaseNotes:          nonNil(p.BaseNotes),
		Occasion:           nonNil(p.Occasions),
		Season:             nonNil(p.Seasons),
		PersonalityMatches: nonNil(p.PersonalityMatches),
		Images:             nonNil(p.Images),
		PriceIDR:           p.PriceIDR,
		VersatilityScore:   p.VersatilityScore,
		Stock:              p.Stock,
		HalalCertified:     p.HalalCertified,
		Verified:           p.Verified,
		AIAnalyzed:         p.AIAnalyzed,
		CreatedAt:          Nanos(p.CreatedAt),
		UpdatedAt:          Nanos(p.UpdatedAt),
	}
}

func fromWireProduct(w wireProduct) model.Product {
	return model.Product{
		ID:                 w.ID,
		SellerID:           w.SellerID,
		Name:               w.Name,
		Brand:              w.Brand,
		Description:        w.Description,
		FragranceFamily:    w.FragranceFamily,
		Longevity:          w.Longevity,
		Sillage:            w.Sillage,
		Projection:         w.Projection,
		TopNotes:           w.TopNotes,
		MiddleNotes:        w.MiddleNotes,
		BaseNotes:          w.BaseNotes,
		Occasions:          w.Occasion,
		Seasons:            w.Season,
		PersonalityMatches: w.PersonalityMatches,
		Images:             w.Images,
		PriceIDR:           w.PriceIDR,
		VersatilityScore:   w.VersatilityScore,
		Stock:              w.Stock,
		HalalCertified:     w.HalalCertified,
		Verified:           w.Verified,
		AIAnalyzed:         w.AIAnalyzed,
		CreatedAt:          FromNanos(w.CreatedAt),
		UpdatedAt:          FromNanos(w.UpdatedAt),
	}
}

func toWireRecommendation(r model.Recommendation) wireRecommendation {
	return wireRecommendation{
		RecommendationID:     r.ID,
		UserID:               r.UserID,
		ProductID:            r.ProductID,
		Reasoning:            r.Reasoning,
		MatchScore:           r.MatchScore,
		PersonalityAlignment: r.PersonalityAlignment,
		LifestyleFit:         r.LifestyleFit,
		OccasionMatch:        r.OccasionMatch,
		BudgetCompatibility:  r.BudgetCompatibility,
		SeasonalRelevance:    r.SeasonalRelevance,
		TrendFactor:          r.TrendFactor,
		ConfidenceLevel:      r.Confidence,
		GeneratedAt:          Nanos(r.GeneratedAt),
	}
}

func fromWireRecommendation(w wireRecommendation) model.Recommendation {
	return model.Recommendation{
		ID:                   w.RecommendationID,
		UserID:               w.UserID,
		ProductID:            w.ProductID,
		Reasoning:            w.Reasoning,
		MatchScore:           w.MatchScore,
		PersonalityAlignment: w.PersonalityAlignment,
		LifestyleFit:         w.LifestyleFit,
		OccasionMatch:        w.OccasionMatch,
		BudgetCompatibility:  w.BudgetCompatibility,
		SeasonalRelevance:    w.SeasonalRelevance,
		TrendFactor:          w.TrendFactor,
		Confidence:           w.ConfidenceLevel,
		GeneratedAt:          FromNanos(w.GeneratedAt),
	}
}

func toWireTransaction(t model.Transaction) wireTransaction {
	w := wireTransaction{
		TransactionID:    t.ID,
		IdempotencyKey:   t.IdempotencyKey,
		BuyerID:          t.BuyerID,
		SellerID:         t.SellerID,
		ProductID:        t.ProductID,
		Quantity:         t.Quantity,
		UnitPriceIDR:     t.UnitPrice,
		TotalAmountIDR:   t.TotalAmount,
		CommissionRate:   t.CommissionRate,
		CommissionAmount: t.CommissionAmount,
		TransactionTier:  Tagged(string(t.Tier)),
		Status:           Tagged(string(t.Status)),
		EscrowLocked:     t.EscrowLocked,
		PaymentMethod:    t.PaymentMethod,
		ShippingAddress:  t.ShippingAddress,
		CreatedAt:        Nanos(t.CreatedAt),
	}
	if t.CompletedAt != nil {
		w.CompletedAt = Some(Nanos(*t.CompletedAt))
	}
	return w
}

func fromWireTransaction(w wireTransaction) (model.Transaction, error) {
	tier, err := decodeTransactionTier(w.TransactionTier)
	if err != nil {
		return model.Transaction{}, err
	}
	status, err := decodeTransactionStatus(w.Status)
	if err != nil {
		return model.Transaction{}, err
	}
	t := model.Transaction{
		ID:               w.TransactionID,
		IdempotencyKey:   w.IdempotencyKey,
		BuyerID:          w.BuyerID,
		SellerID:         w.SellerID,
		ProductID:        w.ProductID,
		Quantity:         w.Quantity,
		UnitPrice:        w.UnitPriceIDR,
		TotalAmount:      w.TotalAmountIDR,
		CommissionRate:   w.CommissionRate,
		CommissionAmount: w.CommissionAmount,
		Tier:             tier,
		Status:           status,
		EscrowLocked:     w.EscrowLocked,
		PaymentMethod:    w.PaymentMethod,
		ShippingAddress:  w.ShippingAddress,
		CreatedAt:        FromNanos(w.CreatedAt),
	}
	if ns := w.CompletedAt.Ptr(); ns != nil {
		at := FromNanos(*ns)
		t.CompletedAt = &at
	}
	return t, nil
}

func toWireReview(r model.Review) (wireReview, error) {
	w := wireReview{
		ReviewID:          r.ID,
		IdempotencyKey:    r.IdempotencyKey,
		ReviewerID:        r.ReviewerID,
		ProductID:         r.ProductID,
		ReviewText:        r.Text,
		SkinType:          r.SkinType,
		AgeGroup:          r.AgeGroup,
		WearOccasion:      r.WearOccasion,
		SeasonTested:      r.SeasonTested,
		ReviewerStake:     r.ReviewerStake,
		OverallRating:     r.Ratings.Overall,
		LongevityRating:   r.Ratings.Longevity,
		SillageRating:     r.Ratings.Sillage,
		ProjectionRating:  r.Ratings.Projection,
		VersatilityRating: r.Ratings.Versatility,
		ValueRating:       r.Ratings.Value,
		VerifiedPurchase:  r.VerifiedPurchase,
		CreatedAt:         Nanos(r.CreatedAt),
	}
	if r.ReviewerTier != nil {
		tier, err := encodeStakeTier(*r.ReviewerTier, r.ReviewerStake)
		if err != nil {
			return wireReview{}, err
		}
		w.ReviewerTier = Some(tier)
	}
	return w, nil
}

func fromWireReview(w wireReview) (model.Review, error) {
	r := model.Review{
		ID:             w.ReviewID,
		IdempotencyKey: w.IdempotencyKey,
		ReviewerID:     w.ReviewerID,
		ProductID:      w.ProductID,
		Text:           w.ReviewText,
		SkinType:       w.SkinType,
		AgeGroup:       w.AgeGroup,
		WearOccasion:   w.WearOccasion,
		SeasonTested:   w.SeasonTested,
		ReviewerStake:  w.ReviewerStake,
		Ratings: model.Ratings{
			Overall:     w.OverallRating,
			Longevity:   w.LongevityRating,
			Sillage:     w.SillageRating,
			Projection:  w.ProjectionRating,
			Versatility: w.VersatilityRating,
			Value:       w.ValueRating,
		},
		VerifiedPurchase: w.VerifiedPurchase,
		CreatedAt:        FromNanos(w.CreatedAt),
	}
	if v := w.ReviewerTier.Ptr(); v != nil {
		tier, err := decodeStakeTier(*v)
		if err != nil {
			return model.Review{}, err
		}
		r.ReviewerTier = &tier
	}
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// decodeList converts a slice of wire records with fn, stopping at the
// first conversion error.
func decodeList[W, M any](items []W, fn func(W) (M, error)) ([]M, error) {
	out := make([]M, 0, len(items))
	for _, w := range items {
		m, err := fn(w)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func infallible[W, M any](fn func(W) M) func(W) (M, error) {
	return func(w W) (M, error) { return fn(w), nil }
}
