package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsagg",
		Short: "Multi-source news ingestion: discovery, scraping, and backfill",
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newCheckCmd())
	return cmd
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run discovery + scraping against configured sources",
	}
	cmd.AddCommand(newIngestFeedCmd())
	cmd.AddCommand(newIngestBackfillCmd())
	cmd.AddCommand(newIngestNIDSweepCmd())
	cmd.AddCommand(newIngestDateSweepCmd())
	cmd.AddCommand(newIngestAutoCmd())
	cmd.AddCommand(newIngestRunCmd())
	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Inspect ingestion state: stats and dead links",
	}
	cmd.AddCommand(newCheckStatsCmd())
	cmd.AddCommand(newCheckDeadLinksCmd())
	return cmd
}
