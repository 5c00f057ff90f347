// Package cmd provides the dramatis CLI.
//
// Commands:
//   - (root): MCP server on stdio, the primary surface
//   - backfill: embed facts that are missing vectors
//   - health: check database connectivity and schema
//   - version: show version information
//
// Logs go to stderr; stdout is reserved for the MCP JSON-RPC stream.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/narrativelab/dramatis/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "dramatis",
	Short: "dramatis - narrative knowledge graph MCP server",
	Long: `dramatis maintains a knowledge graph of story characters, their
facts, and their relations, exposed to writing tools over the Model
Context Protocol.

Running dramatis with no arguments starts the MCP server on stdio.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute is the entry point called from main.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	return rootCmd.Execute()
}
