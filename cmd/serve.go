package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/narrativelab/dramatis/internal/app"
	"github.com/narrativelab/dramatis/internal/config"
	"github.com/narrativelab/dramatis/internal/mcp"
)

// runServe initializes the application and serves MCP on stdio until
// the client disconnects or a signal arrives.
func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting MCP server", "version", Version)

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	server, err := mcp.NewServer(mcp.Config{
		Name:    "dramatis",
		Version: Version,
	}, a.Writer, slog.Default())
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	slog.Info("MCP server ready", "name", "dramatis", "version", Version, "transport", "stdio")

	if err := server.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	slog.Info("MCP server shut down gracefully")
	return nil
}
