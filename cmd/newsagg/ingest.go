package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cha7ura/newsagg/internal/backfill"
	"github.com/cha7ura/newsagg/internal/models"
)

// runAndDrain registers sources with the scheduler, kicks off the given
// discovery function concurrently with Pool.Run, and blocks until both
// finish — discovery feeds the queues while the pool's own workers drain
// them, exactly as spec §4.9 describes. The pool is reusable across calls
// (e.g. the periodic feed loop), so this never calls Pool.Stop — ctx
// cancellation alone retires each call's autoscaler goroutine.
func runAndDrain(ctx context.Context, a *app, sources []models.Source, discover func(ctx context.Context) error) error {
	if err := a.runner.RegisterSources(ctx, sources); err != nil {
		return err
	}

	discoverErr := make(chan error, 1)
	go func() { discoverErr <- discover(ctx) }()

	a.pool.Run(ctx)

	err := <-discoverErr

	if snap, snapErr := a.metrics.Snapshot(); snapErr == nil {
		fmt.Print(snap)
	} else {
		a.log.WithError(snapErr).Warn("rendering metrics snapshot")
	}

	return err
}

func newIngestFeedCmd() *cobra.Command {
	var slug string
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Poll RSS/Atom feeds once and scrape new items",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.resolveSources(ctx, slug)
			if err != nil {
				return err
			}
			if err := runAndDrain(ctx, a, sources, func(ctx context.Context) error {
				return a.runner.RunFeed(ctx, sources)
			}); err != nil {
				return err
			}
			fmt.Println("feed ingest complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "source", "", "limit to one source slug (default: all active sources)")
	return cmd
}

func newIngestBackfillCmd() *cobra.Command {
	var slug string
	var pages int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Crawl paginated archive sections and scrape discovered articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.resolveSources(ctx, slug)
			if err != nil {
				return err
			}
			if err := runAndDrain(ctx, a, sources, func(ctx context.Context) error {
				return a.runner.RunArchive(ctx, sources, pages)
			}); err != nil {
				return err
			}
			fmt.Println("archive backfill complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "source", "", "limit to one source slug (default: all active sources)")
	cmd.Flags().IntVar(&pages, "pages", 5, "max archive pages per section")
	return cmd
}

func newIngestNIDSweepCmd() *cobra.Command {
	var slug string
	var concurrency int
	cmd := &cobra.Command{
		Use:   "nid-sweep",
		Short: "Sweep configured sequential-ID ranges for a source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.resolveSources(ctx, slug)
			if err != nil {
				return err
			}

			rateLimit := time.Duration(a.cfg.Scraper.DefaultRateLimitMS) * time.Millisecond
			sweeper := backfill.NewNIDSweepRunner(a.browser, a.extractor, a.articles, a.deadLinks, a.profiles, concurrency, rateLimit, a.log)

			var total backfill.SweepResult
			for _, src := range sources {
				res, err := sweeper.Run(ctx, src)
				if err != nil {
					a.log.WithError(err).Warnf("nid sweep failed for %s", src.Slug)
					continue
				}
				total.Inserted += res.Inserted
				total.Skipped += res.Skipped
				total.NotFound += res.NotFound
			}
			fmt.Printf("nid sweep complete: %d inserted, %d skipped, %d not found\n", total.Inserted, total.Skipped, total.NotFound)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "source", "", "limit to one source slug (default: all active sources)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 3, "concurrent fetches per sweep")
	return cmd
}

func newIngestDateSweepCmd() *cobra.Command {
	var slug string
	var days int
	cmd := &cobra.Command{
		Use:   "date-sweep",
		Short: "Walk a date-indexed archive day by day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.resolveSources(ctx, slug)
			if err != nil {
				return err
			}
			if err := runAndDrain(ctx, a, sources, func(ctx context.Context) error {
				return a.runner.RunDateSweep(ctx, sources, days)
			}); err != nil {
				return err
			}
			fmt.Println("date sweep complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "source", "", "limit to one source slug (default: all active sources)")
	cmd.Flags().IntVar(&days, "days", 0, "max days back from today (0: use the profile's configured start date)")
	return cmd
}

func newIngestAutoCmd() *cobra.Command {
	var slug string
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Run each source's configured backfill_methods plan in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.resolveSources(ctx, slug)
			if err != nil {
				return err
			}
			if err := runAndDrain(ctx, a, sources, func(ctx context.Context) error {
				return a.runner.RunAuto(ctx, sources)
			}); err != nil {
				return err
			}
			fmt.Println("auto backfill complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "source", "", "limit to one source slug (default: all active sources)")
	return cmd
}

func newIngestRunCmd() *cobra.Command {
	var intervalStr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll every source's feed on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return runScheduledFeedLoop(ctx, a, intervalStr)
		},
	}
	cmd.Flags().StringVar(&intervalStr, "interval", "15m", "polling interval (Go duration syntax)")
	return cmd
}
