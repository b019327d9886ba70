package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial marketplace schema",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS profiles (
				user_id TEXT PRIMARY KEY,
				wallet_address TEXT,
				did TEXT,
				verification_status TEXT NOT NULL DEFAULT 'Unverified',
				preferences TEXT NOT NULL DEFAULT '{}',
				consultation_completed INTEGER NOT NULL DEFAULT 0,
				ai_consent INTEGER NOT NULL DEFAULT 0,
				data_monetization_consent INTEGER NOT NULL DEFAULT 0,
				reputation_score REAL NOT NULL DEFAULT 0,
				total_transactions INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				last_active INTEGER NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS stakes (
				user_id TEXT PRIMARY KEY,
				amount INTEGER NOT NULL,
				tier TEXT NOT NULL,
				locked_until INTEGER NOT NULL,
				penalty_count INTEGER NOT NULL DEFAULT 0,
				reward_earned INTEGER NOT NULL DEFAULT 0,
				annual_return_rate REAL NOT NULL,
				payment_receipt TEXT
			)`,
			`CREATE UNIQUE INDEX idx_stakes_receipt ON stakes(payment_receipt) WHERE payment_receipt IS NOT NULL`,

			`CREATE TABLE IF NOT EXISTS identities (
				did TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				public_key TEXT NOT NULL,
				fragrance_identity TEXT NOT NULL,
				created_at INTEGER NOT NULL
			)`,
			`CREATE INDEX idx_identities_user ON identities(user_id)`,

			`CREATE TABLE IF NOT EXISTS products (
				id TEXT PRIMARY KEY,
				seller_id TEXT NOT NULL,
				name TEXT NOT NULL,
				brand TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				fragrance_family TEXT NOT NULL DEFAULT '',
				longevity TEXT NOT NULL DEFAULT '',
				sillage TEXT NOT NULL DEFAULT '',
				projection TEXT NOT NULL DEFAULT '',
				top_notes TEXT NOT NULL DEFAULT '[]',
				middle_notes TEXT NOT NULL DEFAULT '[]',
				base_notes TEXT NOT NULL DEFAULT '[]',
				occasions TEXT NOT NULL DEFAULT '[]',
				seasons TEXT NOT NULL DEFAULT '[]',
				personality_matches TEXT NOT NULL DEFAULT '[]',
				images TEXT NOT NULL DEFAULT '[]',
				price_idr INTEGER NOT NULL,
				versatility_score REAL NOT NULL DEFAULT 0,
				stock INTEGER NOT NULL DEFAULT 0,
				halal_certified INTEGER NOT NULL DEFAULT 0,
				verified INTEGER NOT NULL DEFAULT 0,
				ai_analyzed INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX idx_products_family ON products(fragrance_family)`,

			`CREATE TABLE IF NOT EXISTS recommendations (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				product_id TEXT NOT NULL,
				match_score REAL NOT NULL,
				personality_alignment REAL NOT NULL,
				lifestyle_fit REAL NOT NULL,
				occasion_match REAL NOT NULL,
				budget_compatibility REAL NOT NULL,
				seasonal_relevance REAL NOT NULL,
				trend_factor REAL NOT NULL,
				confidence REAL NOT NULL,
				reasoning TEXT NOT NULL,
				generated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX idx_recommendations_user ON recommendations(user_id)`,

			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				idempotency_key TEXT,
				buyer_id TEXT NOT NULL,
				seller_id TEXT NOT NULL,
				product_id TEXT NOT NULL,
				quantity INTEGER NOT NULL,
				unit_price INTEGER NOT NULL,
				total_amount INTEGER NOT NULL,
				commission_rate REAL NOT NULL,
				commission_amount INTEGER NOT NULL,
				tier TEXT NOT NULL,
				status TEXT NOT NULL,
				escrow_locked INTEGER NOT NULL DEFAULT 1,
				payment_method TEXT NOT NULL DEFAULT '',
				shipping_address TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				completed_at INTEGER
			)`,
			`CREATE UNIQUE INDEX idx_transactions_key ON transactions(idempotency_key) WHERE idempotency_key IS NOT NULL`,
			`CREATE INDEX idx_transactions_buyer ON transactions(buyer_id)`,
			`CREATE INDEX idx_transactions_seller ON transactions(seller_id)`,

			`CREATE TABLE IF NOT EXISTS reviews (
				id TEXT PRIMARY KEY,
				idempotency_key TEXT,
				reviewer_id TEXT NOT NULL,
				product_id TEXT NOT NULL,
				reviewer_stake INTEGER NOT NULL DEFAULT 0,
				reviewer_tier TEXT,
				overall INTEGER NOT NULL,
				longevity INTEGER NOT NULL,
				sillage INTEGER NOT NULL,
				projection INTEGER NOT NULL,
				versatility INTEGER NOT NULL,
				value INTEGER NOT NULL,
				review_text TEXT NOT NULL DEFAULT '',
				verified_purchase INTEGER NOT NULL DEFAULT 0,
				skin_type TEXT NOT NULL DEFAULT '',
				age_group TEXT NOT NULL DEFAULT '',
				wear_occasion TEXT NOT NULL DEFAULT '',
				season_tested TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL
			)`,
			`CREATE UNIQUE INDEX idx_reviews_key ON reviews(idempotency_key) WHERE idempotency_key IS NOT NULL`,
			`CREATE INDEX idx_reviews_product ON reviews(product_id)`,
		),
	},
	{
		Version:     2,
		Description: "Track total staked funds",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS stake_pool (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				total INTEGER NOT NULL DEFAULT 0
			)`,
			`INSERT OR IGNORE INTO stake_pool (id, total) VALUES (1, 0)`,
		),
	},
	{
		Version:     3,
		Description: "Add payment journal for stake reconciliation",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS payment_journal (
				receipt_id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				tier TEXT NOT NULL,
				amount INTEGER NOT NULL,
				recorded_at INTEGER NOT NULL,
				settled_at INTEGER,
				last_error TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX idx_payment_journal_user ON payment_journal(user_id)`,
		),
	},
	{
		Version:     4,
		Description: "Track wallet transfers that were never confirmed",
		Up: execAll(
			`ALTER TABLE payment_journal ADD COLUMN unconfirmed INTEGER NOT NULL DEFAULT 0`,
		),
	},
}

func execAll(queries ...string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, query := range queries {
			if _, err := tx.Exec(query); err != nil {
				return fmt.Errorf("failed to execute query: %w", err)
			}
		}
		return nil
	}
}

// Migrate brings the schema up to ExpectedSchemaVersion.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
