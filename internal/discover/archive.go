package discover

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"github.com/cha7ura/newsagg/internal/browser"
	"github.com/cha7ura/newsagg/internal/logging"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/sourceconfig"
)

var compiledPatternCache = struct {
	mu sync.Mutex
	m  map[string]*regexp.Regexp
}{m: make(map[string]*regexp.Regexp)}

// mustMaybeCompile compiles and caches a pattern, returning nil on an
// invalid regex rather than panicking — sources.yaml patterns are
// operator-authored and may contain a typo.
func mustMaybeCompile(pattern string) *regexp.Regexp {
	compiledPatternCache.mu.Lock()
	defer compiledPatternCache.mu.Unlock()
	if re, ok := compiledPatternCache.m[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		compiledPatternCache.m[pattern] = nil
		return nil
	}
	compiledPatternCache.m[pattern] = re
	return re
}

// maxConsecutiveEmptyPages stops an archive section early once this many
// pages in a row add no new links — grounded on backfill.py's
// _crawl_archive_pages early-stop rule.
const maxConsecutiveEmptyPages = 3

// ArchiveDiscoverer paginates each configured archive section for a source.
type ArchiveDiscoverer struct {
	pool   *browser.Pool
	logger *logging.Logger
}

func NewArchiveDiscoverer(pool *browser.Pool, log *logging.Logger) *ArchiveDiscoverer {
	return &ArchiveDiscoverer{pool: pool, logger: log.WithComponent("discover-archive")}
}

// Discover crawls every configured archive section up to maxPages pages
// each (or the section's own cap, whichever is smaller). freshContextPerNav
// selects a new incognito page per navigation for Cloudflare-protected
// sources rather than reusing one page across the whole crawl.
func (d *ArchiveDiscoverer) Discover(ctx context.Context, profile sourceconfig.Profile, maxPages int) ([]models.Candidate, error) {
	if len(profile.Sections) == 0 {
		return nil, nil
	}

	b, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire browser: %w", err)
	}
	defer d.pool.Release(b)

	seen := make(map[string]struct{})
	var out []models.Candidate

	var sharedPage *rod.Page
	if !profile.FreshContextPerNav {
		sharedPage, err = d.pool.NewPage(b, false)
		if err != nil {
			return nil, err
		}
		defer sharedPage.Close()
	}

	for _, section := range profile.Sections {
		pages := section.MaxPages
		if maxPages < pages {
			pages = maxPages
		}
		pageStart := section.PageStart
		if pageStart == 0 {
			pageStart = 1
		}
		pageStep := section.PageStep
		if pageStep == 0 {
			pageStep = 1
		}

		d.logger.Infof("archive section %s: up to %d pages", section.Section, pages)
		consecutiveEmpty := 0

		for i := 0; i < pages; i++ {
			pageNum := pageStart + i*pageStep
			pageURL := fmt.Sprintf(section.Pattern, pageNum)

			links, err := d.crawlOne(b, sharedPage, pageURL, profile)
			if err != nil {
				d.logger.WithError(err).Warnf("archive page failed: %s", pageURL)
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

			if newCount == 0 {
				consecutiveEmpty++
				if consecutiveEmpty >= maxConsecutiveEmptyPages {
					break
				}
			} else {
				consecutiveEmpty = 0
			}
		}
	}

	return out, nil
}

func (d *ArchiveDiscoverer) crawlOne(b *rod.Browser, sharedPage *rod.Page, pageURL string, profile sourceconfig.Profile) ([]models.Candidate, error) {
	page := sharedPage
	ownPage := page == nil
	if ownPage {
		p, err := d.pool.NewPage(b, true)
		if err != nil {
			return nil, err
		}
		page = p
		defer page.Close()
	}

	if err := page.Timeout(30 * time.Second).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	time.Sleep(2 * time.Second)

	if err := waitOutInterstitialPage(page); err != nil {
		return nil, err
	}

	htmlStr, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	return extractArticleLinks(doc, base, profile), nil
}

// extractArticleLinks is the shared link-filter logic behind both listing
// and archive discovery — same-origin, size-bounded anchor text, category
// path rejection, and pattern/segment-count article heuristics.
func extractArticleLinks(doc *goquery.Document, base *url.URL, profile sourceconfig.Profile) []models.Candidate {
	var items []models.Candidate
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if href == "" {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil || resolved.Host != base.Host {
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
		if _, dup := seen[clean]; dup {
			return
		}

		matchedByPattern := false
		for _, p := range profile.ArticleURLPatterns {
			if re := mustMaybeCompile(p); re != nil && re.MatchString(resolved.Path) {
				matchedByPattern = true
				break
			}
		}
		if len(profile.ArticleURLPatterns) > 0 && !matchedByPattern {
			return
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

		seen[clean] = struct{}{}
		items = append(items, models.Candidate{Title: text, URL: clean})
	})

	return items
}
