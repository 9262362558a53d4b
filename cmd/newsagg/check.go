package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print per-source article counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.articles.ArticleStatsBySource(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%-30s %-8s %-6s %8s  %s\n", "SOURCE", "SLUG", "LANG", "COUNT", "LATEST")
			for _, s := range stats {
				latest := "-"
				if s.LatestArticle != nil {
					latest = s.LatestArticle.Format("2006-01-02 15:04")
				}
				fmt.Printf("%-30s %-8s %-6s %8d  %s\n", s.SourceName, s.Slug, s.Language, s.Count, latest)
			}
			return nil
		},
	}
}

func newCheckDeadLinksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dead-links",
		Short: "Print per-source dead-link breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.deadLinks.DeadLinkStatsBySource(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%-30s %-8s %7s %10s %10s %7s %9s %7s %7s\n",
				"SOURCE", "SLUG", "TOTAL", "PERMANENT", "RETRYABLE", "404", "TIMEOUT", "EMPTY", "OTHER")
			for _, s := range stats {
				fmt.Printf("%-30s %-8s %7d %10d %10d %7d %9d %7d %7d\n",
					s.SourceName, s.Slug, s.Total, s.Permanent, s.Retryable, s.Err404, s.ErrTimeout, s.ErrEmpty, s.ErrOther)
			}
			return nil
		},
	}
}
