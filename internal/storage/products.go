package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/aromance/internal/model"
)

const productColumns = `
	id, seller_id, name, brand, description, fragrance_family,
	longevity, sillage, projection, top_notes, middle_notes, base_notes,
	occasions, seasons, personality_matches, images, price_idr,
	versatility_score, stock, halal_certified, verified, ai_analyzed,
	created_at, updated_at`

// SaveProduct inserts or replaces a catalog entry. The catalog is seeded
// by operators; clients only read it.
func (s *SQLiteStorage) SaveProduct(ctx context.Context, p model.Product) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProduct(p); err != nil {
		return err
	}

	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	lists := make([]string, 0, 7)
	for _, l := range [][]string{p.TopNotes, p.MiddleNotes, p.BaseNotes, p.Occasions, p.Seasons, p.PersonalityMatches, p.Images} {
		raw, err := encodeList(l)
		if err != nil {
			return err
		}
		lists = append(lists, raw)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seller_id = excluded.seller_id,
			name = excluded.name,
			brand = excluded.brand,
			description = excluded.description,
			fragrance_family = excluded.fragrance_family,
			longevity = excluded.longevity,
			sillage = excluded.sillage,
			projection = excluded.projection,
			top_notes = excluded.top_notes,
			middle_notes = excluded.middle_notes,
			base_notes = excluded.base_notes,
			occasions = excluded.occasions,
			seasons = excluded.seasons,
			personality_matches = excluded.personality_matches,
			images = excluded.images,
			price_idr = excluded.price_idr,
			versatility_score = excluded.versatility_score,
			stock = excluded.stock,
			halal_certified = excluded.halal_certified,
			verified = excluded.verified,
			ai_analyzed = excluded.ai_analyzed,
			updated_at = excluded.updated_at`,
		p.ID, p.SellerID, p.Name, p.Brand, p.Description, p.FragranceFamily,
		p.Longevity, p.Sillage, p.Projection, lists[0], lists[1], lists[2],
		lists[3], lists[4], lists[5], lists[6], int64(p.PriceIDR),
		p.VersatilityScore, p.Stock, p.HalalCertified, p.Verified, p.AIAnalyzed,
		nanos(p.CreatedAt), nanos(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row scanner) (model.Product, error) {
	var (
		p                                     model.Product
		top, middle, base, occasions, seasons string
		personalities, images                 string
		price, createdAt, updatedAt           int64
		stock                                 int64
	)
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Brand, &p.Description, &p.FragranceFamily,
		&p.Longevity, &p.Sillage, &p.Projection, &top, &middle, &base,
		&occasions, &seasons, &personalities, &images, &price,
		&p.VersatilityScore, &stock, &p.HalalCertified, &p.Verified, &p.AIAnalyzed,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return model.Product{}, err
	}

	targets := []*[]string{&p.TopNotes, &p.MiddleNotes, &p.BaseNotes, &p.Occasions, &p.Seasons, &p.PersonalityMatches, &p.Images}
	for i, raw := range []string{top, middle, base, occasions, seasons, personalities, images} {
		list, err := decodeList(raw)
		if err != nil {
			return model.Product{}, err
		}
		*targets[i] = list
	}
	p.PriceIDR = uint64(price)
	p.Stock = uint32(stock)
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)
	return p, nil
}

// product loads a single catalog entry, or nil when it does not exist.
func (s *SQLiteStorage) product(ctx context.Context, q queryable, id string) (*model.Product, error) {
	p, err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStorage) listProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	// Text criteria are substring matches and are applied after the scan.
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []any
	if filter.MinPrice > 0 {
		query += ` AND price_idr >= ?`
		args = append(args, int64(filter.MinPrice))
	}
	if filter.MaxPrice > 0 {
		query += ` AND price_idr <= ?`
		args = append(args, int64(filter.MaxPrice))
	}
	if filter.VerifiedOnly {
		query += ` AND verified = 1`
	}
	if filter.HalalOnly {
		query += ` AND halal_certified = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

// Products implements service.Ledger.
func (s *SQLiteStorage) Products(ctx context.Context) ([]model.Product, error) {
	return s.listProducts(ctx, model.ProductFilter{})
}

// SearchProducts implements service.Ledger.
func (s *SQLiteStorage) SearchProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, error) {
	return s.listProducts(ctx, filter)
}

// SearchByPersonality implements service.Ledger. Personality matches are
// stored as a list column, so matching happens after the scan.
func (s *SQLiteStorage) SearchByPersonality(ctx context.Context, query string) ([]model.Product, error) {
	all, err := s.listProducts(ctx, model.ProductFilter{})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.MatchesPersonality(query) {
			out = append(out, p)
		}
	}
	return out, nil
}

// HalalProducts implements service.Ledger.
func (s *SQLiteStorage) HalalProducts(ctx context.Context) ([]model.Product, error) {
	return s.listProducts(ctx, model.ProductFilter{HalalOnly: true})
}

// Recommendations implements service.Ledger.
func (s *SQLiteStorage) Recommendations(ctx context.Context, userID string) ([]model.Recommendation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, match_score, personality_alignment,
			lifestyle_fit, occasion_match, budget_compatibility, seasonal_relevance,
			trend_factor, confidence, reasoning, generated_at
		FROM recommendations
		WHERE user_id = ?
		ORDER BY match_score DESC, product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Recommendation{}
	for rows.Next() {
		var (
			r           model.Recommendation
			generatedAt int64
		)
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.ProductID, &r.MatchScore, &r.PersonalityAlignment,
			&r.LifestyleFit, &r.OccasionMatch, &r.BudgetCompatibility, &r.SeasonalRelevance,
			&r.TrendFactor, &r.Confidence, &r.Reasoning, &generatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		r.GeneratedAt = fromNanos(generatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GenerateRecommendations implements service.Ledger. It scores the
// catalog against the user's fragrance identity and replaces their
// stored recommendations.
func (s *SQLiteStorage) GenerateRecommendations(ctx context.Context, userID string) ([]model.Recommendation, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.DID == "" {
		return nil, reject("User profile or DID not found")
	}
	fp, err := s.identityProfile(ctx, profile.DID)
	if err != nil {
		return nil, err
	}
	if fp == nil {
		return nil, reject("User profile or DID not found")
	}

	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	recs := model.ScoreProducts(userID, *fp, products, s.now())

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recommendations WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear recommendations: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recommendations (
				id, user_id, product_id, match_score, personality_alignment,
				lifestyle_fit, occasion_match, budget_compatibility, seasonal_relevance,
				trend_factor, confidence, reasoning, generated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx,
				r.ID, r.UserID, r.ProductID, r.MatchScore, r.PersonalityAlignment,
				r.LifestyleFit, r.OccasionMatch, r.BudgetCompatibility, r.SeasonalRelevance,
				r.TrendFactor, r.Confidence, r.Reasoning, nanos(r.GeneratedAt),
			); err != nil {
				return fmt.Errorf("failed to store recommendation %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}
