package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
)

// ReviewDraft is what the user writes. Reviewer, stake, and purchase
// fields are filled in by SubmitReview.
type ReviewDraft struct {
	ProductID    string
	Text         string
	SkinType     string
	AgeGroup     string
	WearOccasion string
	SeasonTested string
	Ratings      model.Ratings
}

// SubmitReview publishes a review for a product the user has bought. The
// purchase gate is checked against the cached orders before anything is
// sent.
func (o *Orchestrator) SubmitReview(ctx context.Context, draft ReviewDraft) (reviewID string, err error) {
	const op = "submit_review"
	defer func() { err = o.finish(op, err) }()

	id, profile, err := o.requireProfile(op)
	if err != nil {
		return "", err
	}
	if draft.ProductID == "" {
		return "", common.Validation(op, "Choose a product to review")
	}
	if strings.TrimSpace(draft.Text) == "" {
		return "", common.Validation(op, "Review text is empty")
	}
	if err := draft.Ratings.Validate(); err != nil {
		return "", common.Validation(op, err.Error())
	}
	if !o.store.HasCompletedPurchase(id.WalletAddress, draft.ProductID) {
		return "", common.Validation(op, "Only buyers with a completed purchase can review this product")
	}
	release, err := o.store.Begin("review:" + draft.ProductID)
	if err != nil {
		return "", err
	}
	defer release()

	scope := "review:" + draft.ProductID
	review := model.Review{
		IdempotencyKey:   o.keyFor(scope),
		ReviewerID:       id.WalletAddress,
		ProductID:        draft.ProductID,
		Text:             strings.TrimSpace(draft.Text),
		SkinType:         draft.SkinType,
		AgeGroup:         draft.AgeGroup,
		WearOccasion:     draft.WearOccasion,
		SeasonTested:     draft.SeasonTested,
		Ratings:          draft.Ratings,
		VerifiedPurchase: true,
	}
	if profile.Stake != nil {
		tier := profile.Stake.Tier
		review.ReviewerTier = &tier
		review.ReviewerStake = profile.Stake.Amount
	}

	reviewID, err = o.gateway.CreateReview(ctx, review)
	if err != nil {
		if !errors.Is(err, common.ErrTransport) {
			o.dropKey(scope)
		}
		return "", err
	}
	o.dropKey(scope)

	if _, err := o.loadReviews(ctx, draft.ProductID); err != nil {
		o.logger.Warn("Failed to reload reviews", "product", draft.ProductID, "error", err)
	}
	o.succeed(op, "Thanks, your review is live")
	return reviewID, nil
}

// LoadReviews reads a product's reviews, newest first, into the cache.
func (o *Orchestrator) LoadReviews(ctx context.Context, productID string) (reviews []model.Review, err error) {
	defer func() { err = o.finish("load_reviews", err) }()
	return o.loadReviews(ctx, productID)
}

func (o *Orchestrator) loadReviews(ctx context.Context, productID string) ([]model.Review, error) {
	reviews, err := o.gateway.Reviews(ctx, productID)
	if err != nil {
		return nil, err
	}
	o.store.SetReviews(productID, reviews)
	return reviews, nil
}
