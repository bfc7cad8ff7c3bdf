package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/cartkeeper"
	"github.com/aretw0/cartkeeper/internal/cli"
	"github.com/aretw0/cartkeeper/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the cart operations as MCP tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		logger, err := cli.NewLogger(cfg.Log)
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		rt, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close() }()

		srv := mcp.NewServer(rt.Coordinator, cartkeeper.Version, mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			logger.Info("Starting cartkeeper MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting cartkeeper MCP server (SSE)", "port", port)
			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport %q, supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
