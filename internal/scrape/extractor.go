// Package scrape renders a single article page with rod, runs the
// selector/meta-tag extraction cascade, falls back to readability, and
// applies the date waterfall and byline/dateline cleanup. Grounded on the
// teacher's internal/scraper/browser/extractor.go (rod page lifecycle,
// stealth, cookie-consent dismissal) and original_source's
// scraper/article.py (the exact selector cascade, Cloudflare interstitial
// poll, byline/dateline regexes, excerpt extraction).
package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/go-rod/rod"
	"github.com/microcosm-cc/bluemonday"

	"github.com/cha7ura/newsagg/internal/logging"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/sourceconfig"
	"github.com/cha7ura/newsagg/internal/textutil"
)

// Config tunes navigation and the Cloudflare interstitial poll.
type Config struct {
	NavigationTimeout     time.Duration
	InterstitialPollBudget time.Duration
}

// Extractor renders and extracts a single article page at a time; callers
// serialize access per page via the scheduler's worker pool.
type Extractor struct {
	cfg       Config
	sanitizer *bluemonday.Policy
	logger    *logging.Logger
}

func New(cfg Config, log *logging.Logger) *Extractor {
	return &Extractor{
		cfg:       cfg,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    log.WithComponent("extractor"),
	}
}

var (
	bylineRe         = regexp.MustCompile(`(?m)^By\s+([A-Za-z][A-Za-z. ]+?)(?:\s*\n|(?:\s+Colombo|\s+[A-Z]{2,}))`)
	datelineColomboRe = regexp.MustCompile(`(?i)^Colombo,?\s+.{0,60}?\((?:Daily\s?Mirror|DailyMirror|Mirror\s+Sports)\)\s*-?\s*`)
	datelineShortRe   = regexp.MustCompile(`(?i)^(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s*\d{1,2}(?:st|nd|rd|th)?(?:\s*\((?:Daily\s?Mirror|DailyMirror|Mirror\s+Sports)\))?\s*-\s*`)
	datelineNews1stRe = regexp.MustCompile(`(?i)^COLOMBO\s*\(News\s?1st\)\s*[;:–-]\s*`)
	authorByPrefixRe  = regexp.MustCompile(`(?i)^by\s+`)
	authorTrailingDateRe = regexp.MustCompile(`\s*\d{1,2}[-/]\d{1,2}[-/]\d{4}.*$`)
	excerptSkipRe     = regexp.MustCompile(`(?i)^(By\s+[A-Z]|Photo\s*:|Pic\s*:|Image\s*:|Courtesy\s*:|Colombo,?\s|COLOMBO\s*\(|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s*\d)`)
	notFoundTitleRe   = regexp.MustCompile(`(?i)\b(404|page not found|not found)\b`)
)

const minContentLength = 100

// Article navigates page to url, waits out any Cloudflare interstitial,
// and extracts title/author/date/content/image. Returns a classified
// models.ScrapeError rather than a bare error so callers can route to
// dead-link tracking.
func (e *Extractor) Article(ctx context.Context, page *rod.Page, url string, profile sourceconfig.Profile, rssPubDateHint string) *models.ScrapeResult {
	deadline := time.Now().Add(e.cfg.NavigationTimeout)
	navPage := page.Context(ctx).Timeout(e.cfg.NavigationTimeout)

	if err := navPage.Navigate(url); err != nil {
		return errResult(classifyNavError(err), url, err)
	}
	if err := navPage.WaitLoad(); err != nil {
		return errResult(models.ErrorKindTimeout, url, err)
	}

	if err := e.waitOutInterstitial(navPage); err != nil {
		return errResult(models.ErrorKindCloudflare, url, err)
	}

	info, err := navPage.Info()
	finalURL := url
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}

	title, err := navPage.Eval(`() => document.title`)
	if err == nil && notFoundTitleRe.MatchString(title.Value.Str()) {
		return errResult(models.ErrorKindNotFound, url, fmt.Errorf("page title indicates not found: %q", title.Value.Str()))
	}

	htmlStr, err := navPage.HTML()
	if err != nil {
		return errResult(models.ErrorKindServer, url, err)
	}

	if time.Now().After(deadline) {
		return errResult(models.ErrorKindTimeout, url, fmt.Errorf("navigation budget exceeded"))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return errResult(models.ErrorKindServer, url, fmt.Errorf("parse html: %w", err))
	}

	article := e.extract(doc, profile, finalURL, htmlStr, rssPubDateHint)
	if article == nil {
		return errResult(models.ErrorKindEmpty, url, fmt.Errorf("no usable content extracted"))
	}
	return &models.ScrapeResult{Article: article}
}

// waitOutInterstitial polls the page title up to InterstitialPollBudget at
// 1s intervals while a Cloudflare "Just a moment..." challenge is showing.
func (e *Extractor) waitOutInterstitial(page *rod.Page) error {
	title, err := page.Eval(`() => document.title`)
	if err != nil {
		return nil
	}
	if !strings.Contains(strings.ToLower(title.Value.Str()), "just a moment") {
		return nil
	}

	e.logger.Info("Cloudflare challenge detected, waiting for it to clear")
	deadline := time.Now().Add(e.cfg.InterstitialPollBudget)
	for time.Now().Before(deadline) {
		time.Sleep(1 * time.Second)
		t, err := page.Eval(`() => document.title`)
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(t.Value.Str()), "just a moment") {
			return nil
		}
	}
	return fmt.Errorf("cloudflare challenge did not resolve within %v", e.cfg.InterstitialPollBudget)
}

func (e *Extractor) extract(doc *goquery.Document, profile sourceconfig.Profile, finalURL, rawHTML, rssPubDateHint string) *models.ScrapedArticle {
	title := firstSelectorText(doc, profile.Selectors.Title)
	if title == "" {
		title = metaContent(doc, "og:title")
	}

	author := firstMetaTag(doc, profile.AuthorMetaTags)
	if author == "" {
		author = firstSelectorText(doc, profile.Selectors.Author)
	}
	author = cleanAuthor(author)

	dateStr := firstMetaTag(doc, profile.DateMetaTags)
	if dateStr == "" {
		dateStr = firstSelectorAttr(doc, profile.Selectors.Date, "datetime")
	}
	if dateStr == "" {
		dateStr = firstSelectorText(doc, profile.Selectors.Date)
	}

	content := e.extractContent(doc, profile.Selectors.Content)
	if len([]rune(content)) < minContentLength {
		if fallback := e.readabilityFallback(rawHTML, finalURL); fallback != "" {
			content = fallback
		}
	}
	if len([]rune(content)) < minContentLength {
		return nil
	}

	imageURL := metaContent(doc, "og:image")
	if imageURL == "" {
		imageURL = firstSelectorAttr(doc, profile.Selectors.Image, "src")
	}

	bodyText := e.bodyTextSample(doc)

	content = textutil.NormalizeText(content)
	title = textutil.NormalizeText(title)
	if author != "" {
		author = textutil.NormalizeText(author)
	}

	if m := bylineRe.FindStringSubmatchIndex(content); m != nil {
		if author == "" {
			author = strings.TrimSpace(content[m[2]:m[3]])
		}
		content = content[m[1]:]
	}
	for _, re := range []*regexp.Regexp{datelineColomboRe, datelineShortRe, datelineNews1stRe} {
		if loc := re.FindStringIndex(content); loc != nil {
			content = content[loc[1]:]
		}
	}

	publishedAt, ok := textutil.ExtractDateWaterfall(dateStr, dateStr, finalURL, bodyText, rssPubDateHint, time.Now())
	var publishedAtPtr *time.Time
	if ok {
		publishedAtPtr = &publishedAt
	}

	excerpt := extractExcerpt(content, 300)

	return &models.ScrapedArticle{
		Title:       title,
		Content:     content,
		Excerpt:     excerpt,
		ImageURL:    imageURL,
		Author:      author,
		PublishedAt: publishedAtPtr,
		FinalURL:    finalURL,
	}
}

var articleContainerSelectors = []string{".news_body_areas", ".news-content", "article", "main"}
var stripSelector = "script, style, noscript, iframe, nav, header, footer, aside, .navbar, .navigation, .menu, .adsbygoogle, .share-buttons, .comments-section"

func (e *Extractor) extractContent(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		clone := s.Clone()
		clone.Find(stripSelector).Remove()
		text := strings.TrimSpace(clone.Text())
		if len([]rune(text)) > 200 {
			return e.sanitizer.Sanitize(text)
		}
	}
	body := doc.Find("body").Clone()
	body.Find(stripSelector).Remove()
	return e.sanitizer.Sanitize(strings.TrimSpace(body.Text()))
}

func (e *Extractor) bodyTextSample(doc *goquery.Document) string {
	for _, sel := range articleContainerSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		clone := s.Clone()
		clone.Find("script, style, noscript, nav, header, footer, aside, .adsbygoogle").Remove()
		text := strings.TrimSpace(clone.Text())
		if text != "" {
			return truncateRunes(text, 3000)
		}
	}
	return ""
}

func (e *Extractor) readabilityFallback(rawHTML, finalURL string) string {
	parsed, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil || len([]rune(parsed.TextContent)) < minContentLength {
		return ""
	}
	return strings.TrimSpace(parsed.TextContent)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstSelectorText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

func firstSelectorAttr(doc *goquery.Document, selectors []string, attr string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstMetaTag(doc *goquery.Document, names []string) string {
	for _, name := range names {
		if v := metaContent(doc, name); v != "" {
			return v
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, name string) string {
	sel := fmt.Sprintf(`meta[property="%s"], meta[name="%s"]`, name, name)
	v, _ := doc.Find(sel).First().Attr("content")
	return strings.TrimSpace(v)
}

func cleanAuthor(author string) string {
	if author == "" {
		return ""
	}
	author = authorByPrefixRe.ReplaceAllString(author, "")
	author = authorTrailingDateRe.ReplaceAllString(author, "")
	return strings.TrimSpace(author)
}

func extractExcerpt(content string, maxLen int) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "![") || strings.HasPrefix(trimmed, "---") {
			continue
		}
		if len([]rune(trimmed)) < 40 {
			continue
		}
		if excerptSkipRe.MatchString(trimmed) {
			continue
		}
		return truncateRunes(trimmed, maxLen)
	}
	if content == "" {
		return ""
	}
	return truncateRunes(content, maxLen)
}

func classifyNavError(err error) models.ErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return models.ErrorKindTimeout
	case strings.Contains(msg, "net::err_name_not_resolved"), strings.Contains(msg, "net::err_connection"):
		return models.ErrorKindServer
	default:
		return models.ErrorKindUnknown
	}
}

func errResult(kind models.ErrorKind, url string, err error) *models.ScrapeResult {
	return &models.ScrapeResult{Err: &models.ScrapeError{Kind: kind, URL: url, Err: err}}
}
