package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
)

// runScheduledFeedLoop polls every active source's feed on a fixed cron
// schedule until the process receives an interrupt, grounded on the
// @every-spec pattern used elsewhere in the ecosystem for simple interval
// jobs rather than hand-rolled ticker bookkeeping.
func runScheduledFeedLoop(ctx context.Context, a *app, intervalStr string) error {
	if _, err := time.ParseDuration(intervalStr); err != nil {
		return fmt.Errorf("invalid --interval %q: %w", intervalStr, err)
	}

	c := cron.New()
	_, err := c.AddFunc("@every "+intervalStr, func() {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		sources, err := a.resolveSources(runCtx, "")
		if err != nil {
			a.log.WithError(err).Error("resolving active sources")
			return
		}
		if err := runAndDrain(runCtx, a, sources, func(runCtx context.Context) error {
			return a.runner.RunFeed(runCtx, sources)
		}); err != nil {
			a.log.WithError(err).Error("scheduled feed poll failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling feed poll: %w", err)
	}

	c.Start()
	a.log.Infof("scheduled feed polling started, interval=%s", intervalStr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	a.log.Info("shutting down scheduled feed polling")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
