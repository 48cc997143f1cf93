package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for politecrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "politecrawler",
		Short: "Polite multi-domain web crawler",
		Long: `politecrawler crawls registered domains while respecting robots.txt,
per-host crawl delays and a fair share of fetches between domains.

Crawled pages are stored in a SQLite database in the XDG data directory.
Content hashes detect changed pages across runs.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
