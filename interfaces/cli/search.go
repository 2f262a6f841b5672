package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftdev/drift/application"
	"github.com/driftdev/drift/domain/pattern"
)

// searchOptions holds options for the search command.
type searchOptions struct {
	categories []string
	limit      int
	jsonOutput bool
}

// newSearchCmd creates the search command.
func (a *App) newSearchCmd() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search patterns by name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchOpts := application.SearchOptions{Limit: opts.limit}
			for _, raw := range opts.categories {
				category := pattern.Category(raw)
				if !category.IsValid() {
					return fmt.Errorf("unknown category %q", raw)
				}
				searchOpts.Categories = append(searchOpts.Categories, category)
			}

			svc, closer, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			patterns, err := svc.Search(cmd.Context(), args[0], searchOpts)
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				return a.printJSON(patterns)
			}
			return a.printPatternTable(&pattern.QueryResult{
				Patterns: patterns,
				Total:    len(patterns),
			})
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&opts.categories, "category", nil, "Restrict to categories (repeatable)")
	flags.IntVar(&opts.limit, "limit", 0, "Cap the number of results (0 = all)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}
