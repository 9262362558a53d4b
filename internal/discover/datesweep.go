package discover

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"github.com/cha7ura/newsagg/internal/browser"
	"github.com/cha7ura/newsagg/internal/logging"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/sourceconfig"
)

// dayFormatLayouts maps the small set of date_format tokens sources.yaml
// authors use (Python strftime-flavored) to Go reference-time layouts.
var dayFormatLayouts = map[string]string{
	"%Y-%m-%d": "2006-01-02",
	"%Y/%m/%d": "2006/01/02",
	"%d-%m-%Y": "02-01-2006",
}

const emptyStreakLogInterval = 30

// DateSweepDiscoverer crawls one archive page per calendar day from a
// source's configured start date through today, extracting article links
// the same way ArchiveDiscoverer does per-page. Grounded on backfill.py's
// run_date_sweep phase 1 (discovery); phase 2 (scrape) happens in the
// scheduler once this package hands back candidates.
type DateSweepDiscoverer struct {
	pool   *browser.Pool
	logger *logging.Logger
}

func NewDateSweepDiscoverer(pool *browser.Pool, log *logging.Logger) *DateSweepDiscoverer {
	return &DateSweepDiscoverer{pool: pool, logger: log.WithComponent("discover-datesweep")}
}

// Discover walks every day from the profile's configured start date (or
// maxDays ago, whichever is later) through today. alreadySeen (may be nil)
// pre-seeds the sweep's own seen set with URLs to skip, such as those an
// earlier method of the same auto-backfill plan already returned.
func (d *DateSweepDiscoverer) Discover(ctx context.Context, profile sourceconfig.Profile, maxDays int, alreadySeen map[string]struct{}) ([]models.Candidate, error) {
	cfg := profile.DateSweep
	if cfg.URLPattern == "" {
		return nil, nil
	}
	layout, ok := dayFormatLayouts[cfg.DateFormat]
	if !ok {
		layout = "2006-01-02"
	}
	startDate, err := time.ParseInLocation("2006-01-02", cfg.StartDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse start_date %q: %w", cfg.StartDate, err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if maxDays > 0 {
		limit := today.AddDate(0, 0, -maxDays)
		if limit.After(startDate) {
			startDate = limit
		}
	}

	b, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}
	defer d.pool.Release(b)

	page, err := d.pool.NewPage(b, profile.FreshContextPerNav)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	seen := make(map[string]struct{}, len(alreadySeen))
	for k := range alreadySeen {
		seen[k] = struct{}{}
	}

	var out []models.Candidate
	emptyStreak := 0

	for current := startDate; !current.After(today); current = current.AddDate(0, 0, 1) {
		dateStr := current.Format(layout)
		archiveURL := fmt.Sprintf(cfg.URLPattern, dateStr)

		links, err := d.crawlDay(page, archiveURL, profile)
		if err != nil {
			d.logger.WithError(err).Warnf("date sweep day failed: %s", current.Format("2006-01-02"))
			continue
		}

		newCount := 0
		for _, it := range links {
			if _, dup := seen[it.URL]; dup {
				continue
			}
			seen[it.URL] = struct{}{}
			out = append(out, it)
			newCount++
		}

		if newCount > 0 {
			emptyStreak = 0
		} else {
			emptyStreak++
			if emptyStreak%emptyStreakLogInterval == 0 {
				d.logger.Infof("%d consecutive days with no new articles", emptyStreak)
			}
		}
	}

	return out, nil
}

func (d *DateSweepDiscoverer) crawlDay(page *rod.Page, archiveURL string, profile sourceconfig.Profile) ([]models.Candidate, error) {
	if err := page.Timeout(30 * time.Second).Navigate(archiveURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	time.Sleep(2 * time.Second)

	htmlStr, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	base, err := url.Parse(archiveURL)
	if err != nil {
		return nil, err
	}
	return extractArticleLinks(doc, base, profile), nil
}
