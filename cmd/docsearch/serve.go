package main

import (
	"github.com/spf13/cobra"

	"github.com/RLabs-Inc/claude-mcp/internal/mcp"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol server for AI assistant integration.

The server speaks JSON-RPC on stdin/stdout; logs are written to stderr.
The index is loaded in the background; requests issued before it is ready
wait for it.

MCP client configuration:
  {
    "mcpServers": {
      "docsearch": {
        "command": "/path/to/docsearch",
        "args": ["serve"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					a.logger.Error("shutdown", "error", err)
				}
			}()

			server, err := mcp.NewServer(a.indexer, a.searcher, a.registry, a.logger.With("component", "mcp"))
			if err != nil {
				return err
			}

			a.logger.Info("MCP server ready, listening on stdio", "version", version, "data_dir", a.cfg.DataDir)
			err = server.Serve(ctx)
			a.logger.Info("server stopped")
			return err
		},
	}
}
