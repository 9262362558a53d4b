package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cha7ura/newsagg/internal/backfill"
	"github.com/cha7ura/newsagg/internal/browser"
	"github.com/cha7ura/newsagg/internal/config"
	"github.com/cha7ura/newsagg/internal/deadlink"
	"github.com/cha7ura/newsagg/internal/dedup"
	"github.com/cha7ura/newsagg/internal/discover"
	"github.com/cha7ura/newsagg/internal/logging"
	"github.com/cha7ura/newsagg/internal/metrics"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/repository"
	"github.com/cha7ura/newsagg/internal/robots"
	"github.com/cha7ura/newsagg/internal/scheduler"
	"github.com/cha7ura/newsagg/internal/scrape"
	"github.com/cha7ura/newsagg/internal/sourceconfig"
)

// app bundles every long-lived dependency a subcommand needs. Built once per
// process invocation and torn down on exit.
type app struct {
	cfg *config.Config
	log *logging.Logger
	db  *pgxpool.Pool

	sources   *repository.SourceRepository
	articles  *repository.ArticleRepository
	deadLinks *repository.DeadLinkRepository

	browser   *browser.Pool
	extractor *scrape.Extractor
	profiles  *sourceconfig.Store
	robots    *robots.Checker

	deadLinkRegistry *deadlink.Registry
	dedupFilter      *dedup.Filter
	metrics          *metrics.Registry

	feed      *discover.FeedDiscoverer
	listing   *discover.ListingDiscoverer
	archive   *discover.ArchiveDiscoverer
	dateSweep *discover.DateSweepDiscoverer

	pool   *scheduler.Pool
	runner *backfill.Runner
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := pgxpool.New(dbCtx, cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := db.Ping(dbCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	profiles, err := sourceconfig.Load(cfg.Sources.ProfilePath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading source profiles: %w", err)
	}

	browserPool, err := browser.New(browser.Config{
		ControlURL: cfg.Browser.ControlURL,
		ProxyURL:   cfg.Browser.ProxyURL,
		UserAgent:  cfg.Browser.UserAgent,
		PoolSize:   cfg.Browser.PoolSize,
	}, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting browser pool: %w", err)
	}

	extractor := scrape.New(scrape.Config{
		NavigationTimeout:      cfg.Scraper.NavigationTimeout,
		InterstitialPollBudget: cfg.Scraper.InterstitialPollBudget,
	}, log)

	robotsChecker := robots.NewChecker(cfg.Browser.UserAgent)

	articleRepo := repository.NewArticleRepository(db)
	sourceRepo := repository.NewSourceRepository(db)
	deadLinkRepo := repository.NewDeadLinkRepository(db)

	deadLinkRegistry := deadlink.New(deadLinkRepo)
	dedupFilter := dedup.New(articleRepo, deadLinkRegistry)
	metricsRegistry := metrics.New()

	feedDiscoverer := discover.NewFeedDiscoverer(cfg.Browser.UserAgent, robotsChecker, log)
	listingDiscoverer := discover.NewListingDiscoverer(browserPool, log)
	archiveDiscoverer := discover.NewArchiveDiscoverer(browserPool, log)
	dateSweepDiscoverer := discover.NewDateSweepDiscoverer(browserPool, log)

	schedPool := scheduler.New(scheduler.Config{
		InitialConcurrency:        cfg.Scraper.InitialConcurrency,
		MaxWorkers:                cfg.Scraper.MaxWorkers,
		AutoscaleInterval:         cfg.Scraper.AutoscaleInterval,
		ErrorRateScaleDown:        cfg.Scraper.ErrorRateScaleDown,
		QueueDepthScaleUpMultiple: cfg.Scraper.QueueDepthScaleUpMult,
	}, browserPool, extractor, profiles, dedupFilter, deadLinkRegistry, articleRepo, metricsRegistry, log)

	runner := backfill.NewRunner(schedPool, dedupFilter, profiles, feedDiscoverer, listingDiscoverer, archiveDiscoverer, dateSweepDiscoverer, log)

	return &app{
		cfg:              cfg,
		log:              log,
		db:               db,
		sources:          sourceRepo,
		articles:         articleRepo,
		deadLinks:        deadLinkRepo,
		browser:          browserPool,
		extractor:        extractor,
		profiles:         profiles,
		robots:           robotsChecker,
		deadLinkRegistry: deadLinkRegistry,
		dedupFilter:      dedupFilter,
		metrics:          metricsRegistry,
		feed:             feedDiscoverer,
		listing:          listingDiscoverer,
		archive:          archiveDiscoverer,
		dateSweep:        dateSweepDiscoverer,
		pool:             schedPool,
		runner:           runner,
	}, nil
}

func (a *app) Close() {
	a.browser.Close()
	a.db.Close()
}

// resolveSources returns the one named source, or every active source when
// slug is empty.
func (a *app) resolveSources(ctx context.Context, slug string) ([]models.Source, error) {
	if slug == "" {
		return a.sources.GetActiveSources(ctx)
	}
	source, ok, err := a.sources.GetSourceBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("source not found: %s", slug)
	}
	return []models.Source{source}, nil
}
