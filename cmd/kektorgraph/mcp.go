package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/sanonone/kektorgraph/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve traversal tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng, _, logger, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		logger.Info("MCP server listening on stdio")
		return mcp.NewMCPServer(eng, version).Run(ctx, &sdk.StdioTransport{})
	},
}
