// Command docsearch indexes framework documentation and serves hybrid
// vector and keyword search over it, on the command line or as an MCP
// server on stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Hybrid semantic and keyword search over framework documentation",
		Long: `docsearch stores documentation pages, embeds them with the configured
provider and answers queries by merging vector similarity with keyword
scores.

Configuration is read from --config, or config.{yaml,toml,json} in the data
directory, and can be overridden with DOCSEARCH_* environment variables,
e.g. DOCSEARCH_EMBEDDING_PROVIDER=local.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// cmd.Print* writes to stderr unless an output is set.
	rootCmd.SetOut(os.Stdout)

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory (overrides data_dir)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSearchCmd(opts),
		newStatsCmd(opts),
		newAddCmd(opts),
		newGetCmd(opts),
		newDeleteCmd(opts),
		newClearCmd(opts),
		newRebuildCmd(opts),
		newFrameworksCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}
