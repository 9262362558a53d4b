package discover

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"github.com/cha7ura/newsagg/internal/browser"
	"github.com/cha7ura/newsagg/internal/logging"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/sourceconfig"
)

var (
	skipPathRe       = regexp.MustCompile(`(?i)/(category|tag|page|author|wp-content|feed|login)/`)
	staticAssetRe    = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|svg|webp|pdf)$`)
	genericLinkTextRe = regexp.MustCompile(`(?i)^(more|comments|\(\d+\)|read more)`)
	minLinkTextLen   = 10
	maxLinkTextLen   = 300
)

// ListingDiscoverer extracts article links from a rendered homepage or
// section page — the fallback path when a source has no usable feed.
type ListingDiscoverer struct {
	pool   *browser.Pool
	logger *logging.Logger
}

func NewListingDiscoverer(pool *browser.Pool, log *logging.Logger) *ListingDiscoverer {
	return &ListingDiscoverer{pool: pool, logger: log.WithComponent("discover-listing")}
}

// Discover visits every listingURL (falling back to the source's own URL if
// none are configured) and extracts same-origin article-looking links,
// applying the source's articleURLPatterns when present.
func (d *ListingDiscoverer) Discover(ctx context.Context, sourceURL string, profile sourceconfig.Profile, limit int) ([]models.Candidate, error) {
	listingURLs := profile.ListingURLs
	if len(listingURLs) == 0 {
		listingURLs = []string{sourceURL}
	}

	b, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}
	defer d.pool.Release(b)

	seen := make(map[string]struct{})
	var out []models.Candidate

	for _, listingURL := range listingURLs {
		if len(out) >= limit {
			break
		}
		items, err := d.scrapeOne(b, listingURL, profile)
		if err != nil {
			d.logger.WithError(err).Warnf("listing page failed: %s", listingURL)
			continue
		}
		for _, it := range items {
			if _, dup := seen[it.URL]; dup {
				continue
			}
			seen[it.URL] = struct{}{}
			out = append(out, it)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *ListingDiscoverer) scrapeOne(b *rod.Browser, listingURL string, profile sourceconfig.Profile) ([]models.Candidate, error) {
	page, err := d.pool.NewPage(b, profile.FreshContextPerNav)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := page.Timeout(30 * time.Second).Navigate(listingURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	time.Sleep(3 * time.Second)

	if err := waitOutInterstitialPage(page); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	var items []models.Candidate
	seenHref := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if href == "" {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Host != base.Host {
			return
		}
		if len(text) < minLinkTextLen || len(text) > maxLinkTextLen {
			return
		}
		if skipPathRe.MatchString(resolved.Path) || staticAssetRe.MatchString(resolved.Path) {
			return
		}
		if genericLinkTextRe.MatchString(text) {
			return
		}

		clean := resolved.Scheme + "://" + resolved.Host + resolved.Path
		if resolved.RawQuery != "" {
			clean += "?" + resolved.RawQuery
		}
		if _, dup := seenHref[clean]; dup {
			return
		}

		matchedByPattern := false
		if len(profile.ArticleURLPatterns) > 0 {
			fullPath := resolved.Path
			if resolved.RawQuery != "" {
				fullPath += "?" + resolved.RawQuery
			}
			for _, p := range profile.ArticleURLPatterns {
				if re, err := regexp.Compile(p); err == nil && re.MatchString(fullPath) {
					matchedByPattern = true
					break
				}
			}
			if !matchedByPattern {
				return
			}
		}
		if !matchedByPattern {
			segments := 0
			for _, seg := range strings.Split(resolved.Path, "/") {
				if seg != "" {
					segments++
				}
			}
			if segments < 3 {
				return
			}
		}

		seenHref[clean] = struct{}{}
		items = append(items, models.Candidate{Title: text, URL: clean})
	})

	return items, nil
}

func waitOutInterstitialPage(page *rod.Page) error {
	title, err := page.Eval(`() => document.title`)
	if err != nil {
		return nil
	}
	if !strings.Contains(strings.ToLower(title.Value.Str()), "just a moment") {
		return nil
	}
	for i := 0; i < 10; i++ {
		time.Sleep(1 * time.Second)
		t, err := page.Eval(`() => document.title`)
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(t.Value.Str()), "just a moment") {
			return nil
		}
	}
	return fmt.Errorf("cloudflare challenge did not resolve")
}
