package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/shopbot/internal/adapters/driving/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the assistant as MCP tools",
	Long: `Starts an MCP server exposing the 'ask' and 'retrieve' tools plus the
shopbot://status and shopbot://products/{productId} resources.

Without --port the server speaks stdio, for use as a subprocess of an MCP
client. With --port it serves the streamable HTTP transport and reconciles
stale entities in the background.`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVar(&mcpPort, "port", 0, "serve HTTP on this port instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	server, err := mcp.NewServer(&mcp.Ports{
		Chat:      svc.Chat,
		Retriever: svc.Retriever,
		Catalog:   svc.Catalog,
		Ingest:    svc.Ingest,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if mcpPort == 0 {
		return server.Run(cmd.Context())
	}

	addr := fmt.Sprintf(":%d", mcpPort)
	cmd.PrintErrf("MCP server listening on %s\n", addr)
	return serveUntilSignal(cmd.Context(), svc, func(ctx context.Context) error {
		return server.RunHTTP(ctx, addr)
	})
}
