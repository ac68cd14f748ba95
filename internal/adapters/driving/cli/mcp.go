package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/mcp"
	"github.com/custodia-labs/cliniq/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC and can be
used with Claude Desktop and other MCP-compatible AI assistants. The server
exposes retrieval, citation validation, question answering, and read access
to chunks and artifacts.

While the server runs, maintenance tasks (artifact retention and database
compaction) run at their configured intervals. See 'cliniq tasks'.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default, for Claude Desktop)
  cliniq mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  cliniq mcp serve --port 8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "cliniq": {
        "command": "/path/to/cliniq",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
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

	if err := requireCore(cmd.Context()); err != nil {
		return err
	}

	ports := &mcp.Ports{
		Retrieval: retrievalService,
		Validator: citationValidator,
		Chunks:    chunkService,
		Answer:    answerService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if scheduler != nil {
		go func() {
			if err := scheduler.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("maintenance scheduler stopped: %v", err)
			}
		}()
		defer func() { _ = scheduler.Stop() }()
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
