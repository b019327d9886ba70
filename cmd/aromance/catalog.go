package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/aromance/internal/cli"
	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
)

func productsCmd() *cobra.Command {
	var (
		filter      model.ProductFilter
		personality string
		dev         bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List or search the catalog",
		Long: `List the catalog. Any filter flag switches to a search; --halal alone
uses the halal listing. --personality searches personality matches and
cannot be combined with filters.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gw, err := newGateway(cfg, dev)
			if err != nil {
				return err
			}

			var products []model.Product
			switch {
			case personality != "" && filter != model.ProductFilter{}:
				return common.Validation("products", "--personality cannot be combined with filters")
			case personality != "":
				products, err = gw.SearchByPersonality(cmd.Context(), personality)
			case filter == model.ProductFilter{}:
				products, err = gw.Products(cmd.Context())
			case filter == model.ProductFilter{HalalOnly: true}:
				products, err = gw.HalalProducts(cmd.Context())
			default:
				products, err = gw.SearchProducts(cmd.Context(), filter)
			}
			if err != nil {
				return err
			}
			return cli.WriteProducts(cmd.OutOrStdout(), products)
		},
	}
	cmd.Flags().StringVar(&filter.Family, "family", "", "fragrance family, e.g. woody")
	cmd.Flags().StringVar(&filter.Occasion, "occasion", "", "occasion, e.g. wedding")
	cmd.Flags().StringVar(&filter.Season, "season", "", "season, e.g. tropical_wet")
	cmd.Flags().Uint64Var(&filter.MinPrice, "min", 0, "minimum price in IDR")
	cmd.Flags().Uint64Var(&filter.MaxPrice, "max", 0, "maximum price in IDR")
	cmd.Flags().StringVar(&personality, "personality", "", "personality match, e.g. bold")
	cmd.Flags().BoolVar(&filter.HalalOnly, "halal", false, "only halal-certified products")
	cmd.Flags().BoolVar(&filter.VerifiedOnly, "verified", false, "only verified products")
	cmd.Flags().BoolVar(&dev, "dev", false, "read the demo catalog instead of the ledger")
	return cmd
}

func statsCmd() *cobra.Command {
	var dev bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show marketplace statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gw, err := newGateway(cfg, dev)
			if err != nil {
				return err
			}
			stats, err := gw.PlatformStats(cmd.Context())
			if err != nil {
				return err
			}
			return cli.WriteStats(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "read the demo ledger instead of the remote one")
	return cmd
}

func tiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "List stake tiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.WriteStakeTiers(cmd.OutOrStdout())
		},
	}
}
