package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/aromance/internal/model"
	"github.com/Veraticus/aromance/internal/service"
)

const profileColumns = `
	p.user_id, p.wallet_address, p.did, p.verification_status, p.preferences,
	p.consultation_completed, p.ai_consent, p.data_monetization_consent,
	p.reputation_score, p.total_transactions, p.created_at, p.last_active,
	s.amount, s.tier, s.locked_until, s.penalty_count, s.reward_earned, s.annual_return_rate`

// GetProfile implements service.Ledger. A missing profile is (nil, nil).
func (s *SQLiteStorage) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles p
		LEFT JOIN stakes s ON s.user_id = p.user_id
		WHERE p.user_id = ?`, userID)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (model.UserProfile, error) {
	var (
		p                            model.UserProfile
		wallet, did                  sql.NullString
		status, prefs                string
		consulted, aiConsent, dataOK bool
		createdAt, lastActive        int64
		stakeAmount, lockedUntil     sql.NullInt64
		penalties, reward            sql.NullInt64
		stakeTier                    sql.NullString
		annualRate                   sql.NullFloat64
		reputation                   float64
		totalTx                      int64
	)
	err := row.Scan(
		&p.UserID, &wallet, &did, &status, &prefs,
		&consulted, &aiConsent, &dataOK,
		&reputation, &totalTx, &createdAt, &lastActive,
		&stakeAmount, &stakeTier, &lockedUntil, &penalties, &reward, &annualRate,
	)
	if err != nil {
		return model.UserProfile{}, err
	}

	p.WalletAddress = wallet.String
	p.DID = did.String
	p.Verification = model.VerificationStatus(status)
	p.ConsultationCompleted = consulted
	p.AIConsent = aiConsent
	p.DataMonetizationConsent = dataOK
	p.ReputationScore = reputation
	p.TotalTransactions = uint32(totalTx)
	p.CreatedAt = fromNanos(createdAt)
	p.LastActive = fromNanos(lastActive)

	p.Preferences = map[string]string{}
	if prefs != "" {
		if err := json.Unmarshal([]byte(prefs), &p.Preferences); err != nil {
			return model.UserProfile{}, fmt.Errorf("failed to decode preferences: %w", err)
		}
	}

	if stakeAmount.Valid {
		offering, err := model.ResolveStakeTier(stakeTier.String)
		if err != nil {
			return model.UserProfile{}, err
		}
		p.Stake = &model.StakeRecord{
			Amount:           uint64(stakeAmount.Int64),
			Tier:             offering.Tier,
			LockedUntil:      fromNanos(lockedUntil.Int64),
			PenaltyCount:     uint32(penalties.Int64),
			RewardEarned:     uint64(reward.Int64),
			AnnualReturnRate: annualRate.Float64,
		}
	}
	return p, nil
}

// CreateProfile implements service.Ledger. An existing profile with the
// same user id is replaced.
func (s *SQLiteStorage) CreateProfile(ctx context.Context, profile model.UserProfile) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if profile.UserID == "" {
		return "", reject("User id is required")
	}
	if profile.Verification == "" {
		profile.Verification = model.Unverified
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = s.now()
	}
	if profile.LastActive.IsZero() {
		profile.LastActive = profile.CreatedAt
	}
	prefs := profile.Preferences
	if prefs == nil {
		prefs = map[string]string{}
	}
	rawPrefs, err := json.Marshal(prefs)
	if err != nil {
		return "", fmt.Errorf("failed to encode preferences: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (
				user_id, wallet_address, did, verification_status, preferences,
				consultation_completed, ai_consent, data_monetization_consent,
				reputation_score, total_transactions, created_at, last_active
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				wallet_address = excluded.wallet_address,
				did = excluded.did,
				verification_status = excluded.verification_status,
				preferences = excluded.preferences,
				consultation_completed = excluded.consultation_completed,
				ai_consent = excluded.ai_consent,
				data_monetization_consent = excluded.data_monetization_consent,
				reputation_score = excluded.reputation_score,
				total_transactions = excluded.total_transactions,
				last_active = excluded.last_active`,
			profile.UserID, nullString(profile.WalletAddress), nullString(profile.DID),
			string(profile.Verification), string(rawPrefs),
			profile.ConsultationCompleted, profile.AIConsent, profile.DataMonetizationConsent,
			profile.ReputationScore, profile.TotalTransactions,
			nanos(profile.CreatedAt), nanos(profile.LastActive),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert profile: %w", err)
		}

		if profile.Stake == nil {
			return nil
		}
		return upsertStake(ctx, tx, profile.UserID, *profile.Stake, "")
	})
	if err != nil {
		return "", err
	}
	return profile.UserID, nil
}

func upsertStake(ctx context.Context, q queryable, userID string, rec model.StakeRecord, receipt string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO stakes (
			user_id, amount, tier, locked_until, penalty_count,
			reward_earned, annual_return_rate, payment_receipt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			amount = excluded.amount,
			tier = excluded.tier,
			locked_until = excluded.locked_until,
			penalty_count = excluded.penalty_count,
			reward_earned = excluded.reward_earned,
			annual_return_rate = excluded.annual_return_rate,
			payment_receipt = COALESCE(excluded.payment_receipt, stakes.payment_receipt)`,
		userID, int64(rec.Amount), rec.Tier.Name(), nanos(rec.LockedUntil), rec.PenaltyCount,
		int64(rec.RewardEarned), rec.AnnualReturnRate, nullString(receipt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stake: %w", err)
	}
	return nil
}

// CreateIdentity implements service.Ledger.
func (s *SQLiteStorage) CreateIdentity(ctx context.Context, userID string, fp model.FragranceProfile) (model.DecentralizedIdentity, error) {
	if err := validateContext(ctx); err != nil {
		return model.DecentralizedIdentity{}, err
	}
	if userID == "" {
		return model.DecentralizedIdentity{}, reject("User id is required")
	}

	now := s.now()
	ident := model.DecentralizedIdentity{
		DID:       model.DIDFor(userID),
		UserID:    userID,
		PublicKey: fmt.Sprintf("pub_key_%d", now.UnixNano()),
		Profile:   fp,
		CreatedAt: now,
	}
	rawProfile, err := json.Marshal(fp)
	if err != nil {
		return model.DecentralizedIdentity{}, fmt.Errorf("failed to encode fragrance profile: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO identities (did, user_id, public_key, fragrance_identity, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(did) DO UPDATE SET
				public_key = excluded.public_key,
				fragrance_identity = excluded.fragrance_identity,
				created_at = excluded.created_at`,
			ident.DID, userID, ident.PublicKey, string(rawProfile), nanos(now),
		); err != nil {
			return fmt.Errorf("failed to save identity: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET did = ? WHERE user_id = ?`, ident.DID, userID,
		); err != nil {
			return fmt.Errorf("failed to link identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.DecentralizedIdentity{}, err
	}
	return ident, nil
}

// identityProfile loads the fragrance profile bound to a DID.
func (s *SQLiteStorage) identityProfile(ctx context.Context, did string) (*model.FragranceProfile, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT fragrance_identity FROM identities WHERE did = ?`, did,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity %s: %w", did, err)
	}
	var fp model.FragranceProfile
	if err := json.Unmarshal([]byte(raw), &fp); err != nil {
		return nil, fmt.Errorf("failed to decode fragrance profile: %w", err)
	}
	return &fp, nil
}

// Stake implements service.Ledger. A payment receipt funds at most one
// stake; replaying it returns the original confirmation.
func (s *SQLiteStorage) Stake(ctx context.Context, req service.StakeRequest) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var msg string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if req.PaymentReceipt != "" {
			var amount int64
			err := tx.QueryRowContext(ctx,
				`SELECT amount FROM stakes WHERE payment_receipt = ?`, req.PaymentReceipt,
			).Scan(&amount)
			if err == nil {
				msg = stakeConfirmation(uint64(amount))
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check receipt: %w", err)
			}
		}

		offering, ok := model.OfferingFor(req.Tier)
		if !ok {
			return reject("Unknown verification tier")
		}
		if req.Amount < offering.Amount {
			return reject("Insufficient stake amount. Required: %d IDR", offering.Amount)
		}

		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM profiles WHERE user_id = ?`, req.UserID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to look up user: %w", err)
		}
		if exists == 0 {
			return reject("User not found")
		}

		rec, err := model.NewStakeRecord(req.Amount, req.Tier, s.now())
		if err != nil {
			return reject("%s", err.Error())
		}
		if err := upsertStake(ctx, tx, req.UserID, rec, req.PaymentReceipt); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET verification_status = ? WHERE user_id = ?`,
			string(req.Tier.Verification()), req.UserID,
		); err != nil {
			return fmt.Errorf("failed to update verification: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE stake_pool SET total = total + ? WHERE id = 1`, int64(req.Amount),
		); err != nil {
			return fmt.Errorf("failed to update stake pool: %w", err)
		}
		msg = stakeConfirmation(req.Amount)
		return nil
	})
	if err != nil {
		return "", err
	}
	return msg, nil
}

func stakeConfirmation(amount uint64) string {
	return fmt.Sprintf("Staked %d IDR for verification tier", amount)
}

// ProcessStakeRewards implements service.Ledger. Rewards accrue from the
// profile's creation time at the stake's annual rate.
func (s *SQLiteStorage) ProcessStakeRewards(ctx context.Context) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	now := s.now()
	var total uint64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+profileColumns+`
			FROM profiles p
			JOIN stakes s ON s.user_id = p.user_id`)
		if err != nil {
			return fmt.Errorf("failed to query stakes: %w", err)
		}
		var staked []model.UserProfile
		for rows.Next() {
			p, err := scanProfile(rows)
			if err != nil {
				_ = rows.Close()
				return fmt.Errorf("failed to scan stake: %w", err)
			}
			staked = append(staked, p)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, p := range staked {
			current := p.Stake.AccruedReward(now.Sub(p.CreatedAt))
			if current <= p.Stake.RewardEarned {
				continue
			}
			total += current - p.Stake.RewardEarned
			if _, err := tx.ExecContext(ctx,
				`UPDATE stakes SET reward_earned = ? WHERE user_id = ?`, int64(current), p.UserID,
			); err != nil {
				return fmt.Errorf("failed to credit reward: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Processed stake rewards: %d IDR total", total), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
