package main

import (
	"fmt"

	"github.com/nvandessel/rendezvous/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run as an MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
rendezvous_derive, rendezvous_match, rendezvous_simulate and
rendezvous_history tools.

Every tool call is rate limited and recorded in <store.dir>/audit.jsonl
without tokens or salts.

Add to an MCP client config:
  {"command": "rendezvous", "args": ["mcp-server"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "rendezvous",
				Version:  version,
				Settings: cfg,
				Logger:   newCommandLogger(cmd, cfg),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			return server.Run(cmd.Context())
		},
	}
}
