package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/driftdev/drift/application"
	"github.com/driftdev/drift/domain/pattern"
)

// listOptions holds options for the list command.
type listOptions struct {
	category   string
	status     string
	sortBy     string
	desc       bool
	offset     int
	limit      int
	jsonOutput bool
}

// newListCmd creates the list command.
func (a *App) newListCmd() *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patterns",
		Long: `List patterns with optional category and status filters, sorting, and
pagination.

Examples:
  # All discovered patterns
  drift list --status discovered

  # The 10 highest-confidence API patterns
  drift list --category api --sort confidence --desc --limit 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queryOpts := pattern.QueryOptions{
				Offset: opts.offset,
				Limit:  opts.limit,
			}

			if opts.category != "" {
				category := pattern.Category(opts.category)
				if !category.IsValid() {
					return fmt.Errorf("unknown category %q", opts.category)
				}
				queryOpts.Filter.Categories = []pattern.Category{category}
			}
			if opts.status != "" {
				status := pattern.Status(opts.status)
				if !status.IsValid() {
					return fmt.Errorf("unknown status %q", opts.status)
				}
				queryOpts.Filter.Statuses = []pattern.Status{status}
			}
			if opts.sortBy != "" {
				queryOpts.Sort = &pattern.Sort{
					Field:      pattern.SortField(opts.sortBy),
					Descending: opts.desc,
				}
			}

			svc, closer, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			result, err := svc.Query(cmd.Context(), queryOpts)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return a.printJSON(result)
			}
			return a.printPatternTable(result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.category, "category", "", "Filter by category")
	flags.StringVar(&opts.status, "status", "", "Filter by status (discovered, approved, ignored)")
	flags.StringVar(&opts.sortBy, "sort", "", "Sort field (name, confidence, severity, firstSeen, lastSeen, locationCount)")
	flags.BoolVar(&opts.desc, "desc", false, "Sort descending")
	flags.IntVar(&opts.offset, "offset", 0, "Skip the first N results")
	flags.IntVar(&opts.limit, "limit", 0, "Cap the number of results (0 = all)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// printPatternTable renders a query result as a table.
func (a *App) printPatternTable(result *pattern.QueryResult) error {
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tSTATUS\tCONF\tLOCATIONS")
	for _, p := range result.Patterns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%d\n",
			shortID(p.ID), p.Name, p.Category, p.Status, p.Confidence, len(p.Locations))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if result.HasMore {
		fmt.Fprintf(a.stdout, "\nShowing %d of %d patterns\n", len(result.Patterns), result.Total)
	}
	return nil
}

// shortID truncates a UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// newShowCmd creates the show command.
func (a *App) newShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one pattern with code examples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			result, err := svc.GetPatternWithExamples(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return a.printJSON(result)
			}
			return a.printPatternDetail(result)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func (a *App) printPatternDetail(result *application.PatternWithExamples) error {
	p := result.Pattern

	fmt.Fprintf(a.stdout, "%s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(a.stdout, "  Category:   %s\n", p.Category)
	if p.Subcategory != "" {
		fmt.Fprintf(a.stdout, "  Subcategory: %s\n", p.Subcategory)
	}
	fmt.Fprintf(a.stdout, "  Status:     %s\n", p.Status)
	fmt.Fprintf(a.stdout, "  Confidence: %.2f (%s)\n", p.Confidence, p.ConfidenceLevel)
	if p.Description != "" {
		fmt.Fprintf(a.stdout, "  %s\n", p.Description)
	}

	for _, example := range result.Examples {
		fmt.Fprintf(a.stdout, "\n%s:%d-%d\n", example.File, example.StartLine, example.EndLine)
		fmt.Fprintln(a.stdout, example.Snippet)
	}

	if len(result.Related) > 0 {
		fmt.Fprintln(a.stdout, "\nRelated:")
		for _, related := range result.Related {
			fmt.Fprintf(a.stdout, "  %s  %s (%s)\n", shortID(related.ID), related.Name, related.Status)
		}
	}
	return nil
}
