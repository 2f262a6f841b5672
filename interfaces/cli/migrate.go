package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftdev/drift/infrastructure/storage/filesystem"
)

// migrateOptions holds options for the migrate command.
type migrateOptions struct {
	keepLegacy bool
	dryRun     bool
}

// newMigrateCmd creates the migrate command.
func (a *App) newMigrateCmd() *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate pattern storage to the unified layout",
		Long: `Migrate a legacy status-partitioned pattern tree
(patterns/<status>/<category>.json) to the unified per-category layout
(patterns/<category>.json). Migration is idempotent: running it against
an already-unified tree is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.driftDir()
			format := filesystem.DetectFormat(root)

			switch format {
			case filesystem.FormatUnified:
				fmt.Fprintln(a.stdout, "Storage already uses the unified layout; nothing to do.")
				return nil
			case filesystem.FormatNone:
				fmt.Fprintln(a.stdout, "No pattern storage found; nothing to migrate.")
				return nil
			}

			if opts.dryRun {
				fmt.Fprintln(a.stdout, "Legacy layout detected; migration would convert it to the unified layout.")
				return nil
			}

			store := filesystem.NewUnifiedStore(root, filesystem.UnifiedOptions{
				AutoMigrate:     true,
				KeepLegacyFiles: opts.keepLegacy,
			})
			if err := store.Initialize(cmd.Context()); err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Migrated %d patterns into %d category files.\n",
				stats.TotalPatterns, stats.FileCount)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.keepLegacy, "keep-legacy", false, "Leave the legacy files in place")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Report what would happen without migrating")

	return cmd
}
