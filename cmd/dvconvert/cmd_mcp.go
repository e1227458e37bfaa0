package main

import (
	"github.com/spf13/cobra"

	"dvmap-service/internal/mcpserver"
)

var mcpFlags struct {
	match matchFlags
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve resolve/infer/schema tools over MCP (stdio)",
	Long: `Starts an MCP server on stdin/stdout. An editor or assistant configured with
this command can resolve column headers and inspect the schema without the
HTTP service. Logs go to stderr; stdout carries only the protocol.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpFlags.match.register(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	opt, err := mcpFlags.match.options(cmd)
	if err != nil {
		return err
	}
	sc, rules, err := openSchema()
	if err != nil {
		return err
	}
	return mcpserver.NewServer(sc, rules, opt, nil, logger, version).Run(cmd.Context())
}
