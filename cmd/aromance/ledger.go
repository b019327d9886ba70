package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/aromance/internal/ledger"
	"github.com/Veraticus/aromance/internal/metrics"
	"github.com/Veraticus/aromance/internal/storage"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Run the development service of record",
		Long: `Run and manage a local SQLite-backed service of record that speaks the
same wire contract as the production ledger.`,
	}
	cmd.PersistentFlags().String("db", "", "database path (default: storage.ledger_path)")
	_ = viper.BindPFlag("storage.ledger_path", cmd.PersistentFlags().Lookup("db"))

	cmd.AddCommand(ledgerServeCmd())
	cmd.AddCommand(ledgerMigrateCmd())
	cmd.AddCommand(ledgerSeedCmd())
	return cmd
}

// openLedger opens and migrates the development database.
func openLedger(ctx context.Context) (*storage.SQLiteStorage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := storage.NewSQLiteStorage(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return db, nil
}

func ledgerServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the development ledger over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			mux := http.NewServeMux()
			mux.Handle("/", metrics.InstrumentLedger(ledger.NewServer(db, slog.Default()).Router()))
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			slog.Info("Ledger listening", "addr", addr)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("ledger server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			slog.Info("Shutting down ledger")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:4943", "listen address")
	return cmd
}

func ledgerMigrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if status {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				db, err := storage.NewSQLiteStorage(cfg.Storage.LedgerPath)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer func() { _ = db.Close() }()

				version, err := db.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				slog.Info("Database migration status",
					"database", cfg.Storage.LedgerPath,
					"current", version,
					"latest", storage.ExpectedSchemaVersion)
				return nil
			}

			db, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			slog.Info("Database migrations completed", "version", storage.ExpectedSchemaVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "show the current schema version without migrating")
	return cmd
}

func ledgerSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog into the development ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := openLedger(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			products := ledger.DemoCatalog()
			for _, p := range products {
				if err := db.SaveProduct(ctx, p); err != nil {
					return fmt.Errorf("failed to seed product %q: %w", p.ID, err)
				}
			}
			slog.Info("Seeded demo catalog", "products", len(products))
			return nil
		},
	}
}
