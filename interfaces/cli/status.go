package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/driftdev/drift/domain/pattern"
)

// statusOptions holds options for the status command.
type statusOptions struct {
	jsonOutput bool
}

// newStatusCmd creates the status command.
func (a *App) newStatusCmd() *cobra.Command {
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the aggregate state of the knowledge base",
		Long: `Show how many patterns the knowledge base holds per lifecycle state
and per category, plus a 0-100 health score derived from the approval
ratio and average confidence.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			status, err := svc.GetStatus(cmd.Context())
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return a.printJSON(status)
			}

			fmt.Fprintf(a.stdout, "Patterns: %d\n", status.TotalPatterns)
			fmt.Fprintf(a.stdout, "Health:   %d/100\n", status.HealthScore)
			fmt.Fprintln(a.stdout)

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, s := range pattern.Statuses() {
				fmt.Fprintf(w, "  %s\t%d\n", s, status.ByStatus[s])
			}
			w.Flush()

			if len(status.ByCategory) > 0 {
				fmt.Fprintln(a.stdout)
				w = tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
				for _, c := range sortedCategories(status.ByCategory) {
					fmt.Fprintf(w, "  %s\t%d\n", c, status.ByCategory[c])
				}
				w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// newCategoriesCmd creates the categories command.
func (a *App) newCategoriesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Show per-category summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			categories, err := svc.GetCategories(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return a.printJSON(categories)
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tTOTAL\tAPPROVED\tDISCOVERED\tIGNORED\tAVG CONF")
			for _, c := range categories {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.2f\n",
					c.Category, c.Count, c.ApprovedCount, c.DiscoveredCount, c.IgnoredCount, c.AverageConfidence)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// printJSON renders v as indented JSON on stdout.
func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedCategories(m map[pattern.Category]int) []pattern.Category {
	categories := make([]pattern.Category, 0, len(m))
	for c := range m {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}
