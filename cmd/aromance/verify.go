package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/aromance/internal/cli"
	"github.com/Veraticus/aromance/internal/common"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Manage stake verification",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "retry",
		Short: "Settle stake payments awaiting verification",
		Long: `Re-issue verification for stake payments that were taken by the wallet
but not confirmed by the service of record. The recorded payment receipt
is reused; no new payment is requested.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			rt, err := newRuntime(cmd.Context(), runtimeOptions{journal: true, notifier: cli.NewToaster(out)})
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					slog.Warn("Failed to shut down cleanly", "error", err)
				}
			}()

			if err := rt.orchestrator.Onboard(cmd.Context()); err != nil {
				return err
			}
			settled, err := rt.orchestrator.RetryVerification(cmd.Context())
			if err != nil {
				return err
			}
			if settled > 0 {
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Settled %d payment(s)", settled)))
			}
			return nil
		},
	})
	cmd.AddCommand(resolveCmd())
	return cmd
}

func resolveCmd() *cobra.Command {
	var (
		receipt string
		void    bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <ref>",
		Short: "Close a stake payment the wallet never confirmed",
		Long: `Close a journaled stake payment whose wallet transfer was never
confirmed. Pass --receipt with the wallet's receipt id to register the
stake, or --void when the wallet shows no payment was made.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if void == (receipt != "") {
				return common.Validation("verify_resolve", "Pass exactly one of --receipt or --void")
			}
			out := cmd.OutOrStdout()
			rt, err := newRuntime(cmd.Context(), runtimeOptions{journal: true, notifier: cli.NewToaster(out)})
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					slog.Warn("Failed to shut down cleanly", "error", err)
				}
			}()

			if err := rt.orchestrator.Onboard(cmd.Context()); err != nil {
				return err
			}
			return rt.orchestrator.ResolvePayment(cmd.Context(), args[0], receipt)
		},
	}
	cmd.Flags().StringVar(&receipt, "receipt", "", "Wallet receipt id of the payment")
	cmd.Flags().BoolVar(&void, "void", false, "Discard the payment because none was made")
	return cmd
}
