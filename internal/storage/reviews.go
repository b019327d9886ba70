package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/aromance/internal/model"
)

// CreateReview implements service.Ledger. Only verified reviewers may
// post, and every rating must be within 1..5.
func (s *SQLiteStorage) CreateReview(ctx context.Context, review model.Review) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if review.IdempotencyKey != "" {
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM reviews WHERE idempotency_key = ?`, review.IdempotencyKey,
			).Scan(&id)
			if err == nil {
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check idempotency key: %w", err)
			}
		}

		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT verification_status FROM profiles WHERE user_id = ?`, review.ReviewerID,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return reject("User not found")
		}
		if err != nil {
			return fmt.Errorf("failed to look up reviewer: %w", err)
		}
		if model.VerificationStatus(status) == model.Unverified {
			return reject("User must be verified to create reviews")
		}
		if err := review.Ratings.Validate(); err != nil {
			return reject("%s", err.Error())
		}

		if review.ID == "" {
			review.ID = "review_" + s.newID()
		}
		if review.CreatedAt.IsZero() {
			review.CreatedAt = s.now()
		}
		var tier sql.NullString
		if review.ReviewerTier != nil {
			tier = sql.NullString{String: review.ReviewerTier.Name(), Valid: true}
		}
		r := review.Ratings
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reviews (
				id, idempotency_key, reviewer_id, product_id, reviewer_stake, reviewer_tier,
				overall, longevity, sillage, projection, versatility, value,
				review_text, verified_purchase, skin_type, age_group, wear_occasion,
				season_tested, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			review.ID, nullString(review.IdempotencyKey), review.ReviewerID, review.ProductID,
			int64(review.ReviewerStake), tier,
			r.Overall, r.Longevity, r.Sillage, r.Projection, r.Versatility, r.Value,
			review.Text, review.VerifiedPurchase, review.SkinType, review.AgeGroup, review.WearOccasion,
			review.SeasonTested, nanos(review.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert review: %w", err)
		}
		id = review.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Reviews implements service.Ledger. Newest reviews come first.
func (s *SQLiteStorage) Reviews(ctx context.Context, productID string) ([]model.Review, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idempotency_key, reviewer_id, product_id, reviewer_stake, reviewer_tier,
			overall, longevity, sillage, projection, versatility, value,
			review_text, verified_purchase, skin_type, age_group, wear_occasion,
			season_tested, created_at
		FROM reviews
		WHERE product_id = ?
		ORDER BY created_at DESC, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Review{}
	for rows.Next() {
		var (
			rv        model.Review
			key, tier sql.NullString
			stake     int64
			createdAt int64
		)
		r := &rv.Ratings
		if err := rows.Scan(
			&rv.ID, &key, &rv.ReviewerID, &rv.ProductID, &stake, &tier,
			&r.Overall, &r.Longevity, &r.Sillage, &r.Projection, &r.Versatility, &r.Value,
			&rv.Text, &rv.VerifiedPurchase, &rv.SkinType, &rv.AgeGroup, &rv.WearOccasion,
			&rv.SeasonTested, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		rv.IdempotencyKey = key.String
		rv.ReviewerStake = uint64(stake)
		rv.CreatedAt = fromNanos(createdAt)
		if tier.Valid {
			offering, err := model.ResolveStakeTier(tier.String)
			if err != nil {
				return nil, err
			}
			rv.ReviewerTier = &offering.Tier
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// PlatformStats implements service.Ledger.
func (s *SQLiteStorage) PlatformStats(ctx context.Context) (model.PlatformStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	queries := []struct {
		key   string
		query string
	}{
		{"total_users", `SELECT COUNT(*) FROM profiles`},
		{"verified_users", `SELECT COUNT(*) FROM profiles WHERE verification_status != 'Unverified'`},
		{"total_products", `SELECT COUNT(*) FROM products`},
		{"verified_products", `SELECT COUNT(*) FROM products WHERE verified = 1`},
		{"total_transactions", `SELECT COUNT(*) FROM transactions`},
		{"total_gmv_idr", `SELECT COALESCE(SUM(total_amount), 0) FROM transactions`},
		{"total_reviews", `SELECT COUNT(*) FROM reviews`},
		{"total_staked_idr", `SELECT total FROM stake_pool WHERE id = 1`},
	}

	stats := make(model.PlatformStats, len(queries))
	for _, q := range queries {
		var n int64
		if err := s.db.QueryRowContext(ctx, q.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to compute %s: %w", q.key, err)
		}
		stats[q.key] = uint64(n)
	}
	return stats, nil
}
