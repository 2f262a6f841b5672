package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftdev/drift/infrastructure/mcp"
)

// serveOptions holds options for the serve command.
type serveOptions struct {
	transport string
	addr      string
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge base over the Model Context Protocol",
		Long: `Run an MCP server exposing the drift tool set so coding agents can
query the knowledge base and curate patterns.

Examples:
  # Serve over stdio (the usual agent transport)
  drift serve

  # Serve over HTTP with SSE
  drift serve --transport http --addr :8700`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closer, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			srv := mcp.NewServer(mcp.ServerConfig{
				Name:    "drift",
				Version: Version,
				Service: svc,
				Instructions: "Use drift_status for an overview, drift_list_patterns and " +
					"drift_search to explore, and drift_approve_pattern / drift_ignore_pattern " +
					"to curate the knowledge base.",
			})

			switch opts.transport {
			case "stdio":
				return srv.ServeStdio(cmd.Context())
			case "http":
				return srv.ServeHTTP(cmd.Context(), opts.addr)
			default:
				return fmt.Errorf("unknown transport %q (want stdio or http)", opts.transport)
			}
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "Transport (stdio or http)")
	cmd.Flags().StringVar(&opts.addr, "addr", ":8700", "Listen address for the http transport")

	return cmd
}
