package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftdev/drift/application"
)

// newApproveCmd creates the approve command.
func (a *App) newApproveCmd() *cobra.Command {
	var approvedBy string

	cmd := &cobra.Command{
		Use:   "approve <id>...",
		Short: "Approve patterns as enforced conventions",
		Long: `Approve one or more discovered (or previously ignored) patterns. The
operation is best-effort: every ID is attempted and failures are
reported individually.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			results := svc.ApproveMany(cmd.Context(), args, approvedBy)
			if err := svc.Save(cmd.Context()); err != nil {
				return err
			}
			return a.reportBatch("approved", results)
		},
	}

	cmd.Flags().StringVar(&approvedBy, "by", "", "Reviewer recorded on the approval")
	return cmd
}

// newIgnoreCmd creates the ignore command.
func (a *App) newIgnoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ignore <id>...",
		Short: "Ignore patterns so they stop surfacing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			results := svc.IgnoreMany(cmd.Context(), args)
			if err := svc.Save(cmd.Context()); err != nil {
				return err
			}
			return a.reportBatch("ignored", results)
		},
	}
}

// reportBatch prints per-ID outcomes and returns an error when every
// ID failed.
func (a *App) reportBatch(verb string, results []application.BatchResult) error {
	var failed int
	for _, result := range results {
		if result.Err != nil {
			failed++
			fmt.Fprintf(a.stderr, "%s: %v\n", result.ID, result.Err)
			continue
		}
		fmt.Fprintf(a.stdout, "%s %s\n", verb, result.ID)
	}

	if failed == len(results) {
		return fmt.Errorf("no patterns %s", verb)
	}
	return nil
}
