// Package discover implements the five ways a source's article URLs are
// found: RSS/Atom feeds, homepage link listings, paginated archive
// sections, sequential numeric-ID sweeps, and day-by-day date-path
// sweeps. Grounded on original_source's scraper/rss.py, scraper/listing.py,
// and backfill.py, and on the teacher's internal/scraper/rss/rss_scraper.go
// for the gofeed wiring.
package discover

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/cha7ura/newsagg/internal/logging"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/robots"
)

const minFeedYear = 2006

var imgInDescriptionRe = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)

// FeedDiscoverer pulls candidates from a source's RSS/Atom feed.
type FeedDiscoverer struct {
	parser  *gofeed.Parser
	robots  *robots.Checker
	logger  *logging.Logger
}

func NewFeedDiscoverer(userAgent string, robotsChecker *robots.Checker, log *logging.Logger) *FeedDiscoverer {
	p := gofeed.NewParser()
	p.UserAgent = userAgent
	return &FeedDiscoverer{parser: p, robots: robotsChecker, logger: log.WithComponent("discover-feed")}
}

// Discover parses feedURL and returns every item whose publish year is at
// least minFeedYear, skipping feeds robots.txt disallows.
func (d *FeedDiscoverer) Discover(ctx context.Context, feedURL string) ([]models.Candidate, error) {
	if !d.robots.Allowed(feedURL) {
		return nil, fmt.Errorf("robots.txt disallows %s", feedURL)
	}

	feed, err := d.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if feed == nil {
		return nil, nil
	}

	out := make([]models.Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		var pub *time.Time
		if item.PublishedParsed != nil {
			pub = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = item.UpdatedParsed
		}
		if pub != nil && pub.Year() < minFeedYear {
			continue
		}

		imageURL := ""
		if item.Image != nil {
			imageURL = item.Image.URL
		}
		if imageURL == "" && item.Description != "" {
			if m := imgInDescriptionRe.FindStringSubmatch(item.Description); m != nil {
				imageURL = m[1]
			}
		}

		out = append(out, models.Candidate{
			Title:    strings.TrimSpace(item.Title),
			URL:      item.Link,
			PubDate:  pub,
			ImageURL: imageURL,
		})
	}
	return out, nil
}
