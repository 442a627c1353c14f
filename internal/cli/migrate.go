package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgsynclabs/syncengine/config"
	"github.com/pgsynclabs/syncengine/internal/infrastructure/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or tear down the metadata-store schema",
	}
	cmd.AddCommand(newMigrateUpgradeCmd(), newMigrateDowngradeCmd())
	return cmd
}

func newMigrateUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Create every metadata table if absent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
				return m.Upgrade(ctx)
			})
		},
	}
}

func newMigrateDowngradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "downgrade",
		Short: "Drop every metadata table (destructive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
				return m.Downgrade(ctx)
			})
		},
	}
}

func withMigrator(ctx context.Context, fn func(context.Context, *postgres.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect metadata store: %w", err)
	}
	defer pool.Close()

	return fn(ctx, postgres.NewMigrator(pool))
}
