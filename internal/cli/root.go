package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the pgsyncd command tree: serve and migrate.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pgsyncd",
		Short: "Scheduled PostgreSQL-to-PostgreSQL synchronization engine",
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}
