package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/grocery_shop/internal/seed"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.repo.Migrate(a.withLogger(cmd.Context())); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the starter products to an empty catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := a.withLogger(cmd.Context())
		if err := a.repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		n, err := seed.Run(ctx, a.repo, a.catalog, seed.Products)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", n)
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the Elasticsearch product index from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		if a.elastic == nil {
			return fmt.Errorf("reindex needs a reachable ES_URL")
		}

		ctx := a.withLogger(cmd.Context())
		products, err := a.repo.AllProducts(ctx)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		n, err := a.elastic.Reindex(ctx, products)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d of %d products\n", n, len(products))
		return nil
	},
}
