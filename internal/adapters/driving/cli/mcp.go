package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/supplymatch/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search the
catalog and request allocation suggestions.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Tools:
  search_catalog        find items whose titles mean the same as a query
  suggest_allocations   propose partner allocations for an offer or items

Resources:
  supplymatch://items/{itemId}            an item with its open requests
  supplymatch://offers/{offerId}/items    the items of a donor offer

Examples:
  # Stdio mode (default)
  supplymatch mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  supplymatch mcp serve --port 8080`,
	Annotations: map[string]string{annotationBootstrap: levelEngine},
	RunE:        runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Matching:   matchingService,
		Suggestion: suggestionService,
	}
	if catalogStore != nil {
		ports.Catalog = catalogStore
		ports.Requests = catalogStore
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
