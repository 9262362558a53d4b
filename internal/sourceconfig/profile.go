// Package sourceconfig loads per-source extraction and scheduling profiles
// from a YAML document keyed by slug, following original_source's
// source_config.py but parsed once into typed value objects instead of
// looked up per call from a raw dict.
package sourceconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Selectors is an ordered CSS-selector list per extracted field.
type Selectors struct {
	Title   []string `yaml:"title"`
	Content []string `yaml:"content"`
	Date    []string `yaml:"date"`
	Author  []string `yaml:"author"`
	Image   []string `yaml:"image"`
}

var defaultSelectors = Selectors{
	Title:   []string{"h1.entry-title", "h1.article-title", "h1"},
	Content: []string{"div.entry-content", "div.article-content", "article"},
	Date:    []string{"time.published", "span.date", "time"},
	Author:  []string{"span.author", "a.author", ".byline"},
	Image:   []string{"meta[property='og:image']", "article img"},
}

// ArchiveSection describes one paginated-archive descriptor.
type ArchiveSection struct {
	Section   string `yaml:"section"`
	Pattern   string `yaml:"pattern"`
	MaxPages  int    `yaml:"max_pages"`
	PageStart int    `yaml:"page_start"`
	PageStep  int    `yaml:"page_step"`
}

// NIDSweep describes one sequential-ID sweep descriptor.
type NIDSweep struct {
	URLPattern       string `yaml:"url_pattern"`
	Start            int    `yaml:"start"`
	End              int    `yaml:"end"`
	MaxConsecutive404 int   `yaml:"max_consecutive_404"`
}

// DateSweep describes the calendar-date sweep descriptor.
type DateSweep struct {
	URLPattern string `yaml:"url_pattern"`
	DateFormat string `yaml:"date_format"`
	StartDate  string `yaml:"start_date"`
}

// Scheduling holds the per-source scheduler hints.
type Scheduling struct {
	RateLimitMS   int `yaml:"rate_limit_ms"`
	MaxConcurrency int `yaml:"max_concurrency"`
	Priority      int `yaml:"priority"`
}

// BackfillMethod is one step of a source's config-driven auto-backfill plan.
type BackfillMethod struct {
	Type  string `yaml:"type"` // archive | nid_sweep | date_sweep
	Pages int    `yaml:"pages,omitempty"`
	Days  int    `yaml:"days,omitempty"`
}

// Profile is one source's full extraction/discovery/scheduling configuration.
type Profile struct {
	Slug               string            `yaml:"slug"`
	Selectors          Selectors         `yaml:"selectors"`
	DateMetaTags       []string          `yaml:"date_meta_tags"`
	AuthorMetaTags     []string          `yaml:"author_meta_tags"`
	ArticleURLPatterns []string          `yaml:"article_url_patterns"`
	SkipURLPatterns    []string          `yaml:"skip_url_patterns"`
	ListingURLs        []string          `yaml:"listing_urls"`
	Sections           []ArchiveSection  `yaml:"sections"`
	NIDSweeps          []NIDSweep        `yaml:"nid_sweep"`
	DateSweep          *DateSweep        `yaml:"date_sweep"`
	Scheduling         Scheduling        `yaml:"scheduling"`
	BackfillMethods    []BackfillMethod  `yaml:"backfill_methods"`
	FreshContextPerNav bool              `yaml:"fresh_context_per_nav"`
}

var defaultDateMetaTags = []string{
	"article:published_time", "og:published_time", "datePublished", "publish-date",
}

var defaultAuthorMetaTags = []string{"author", "article:author", "og:article:author"}

// Store is the immutable, process-wide set of per-source profiles, keyed by
// slug, loaded once at startup.
type Store struct {
	profiles map[string]Profile
}

// Load parses a sources.yaml document into a Store.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source profiles: %w", err)
	}

	var doc struct {
		Sources map[string]Profile `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing source profiles: %w", err)
	}

	profiles := make(map[string]Profile, len(doc.Sources))
	for slug, p := range doc.Sources {
		p.Slug = slug
		applyFallbacks(&p)
		profiles[slug] = p
	}

	return &Store{profiles: profiles}, nil
}

func applyFallbacks(p *Profile) {
	if len(p.Selectors.Title) == 0 {
		p.Selectors.Title = defaultSelectors.Title
	}
	if len(p.Selectors.Content) == 0 {
		p.Selectors.Content = defaultSelectors.Content
	}
	if len(p.Selectors.Date) == 0 {
		p.Selectors.Date = defaultSelectors.Date
	}
	if len(p.Selectors.Author) == 0 {
		p.Selectors.Author = defaultSelectors.Author
	}
	if len(p.Selectors.Image) == 0 {
		p.Selectors.Image = defaultSelectors.Image
	}
	if len(p.DateMetaTags) == 0 {
		p.DateMetaTags = defaultDateMetaTags
	}
	if len(p.AuthorMetaTags) == 0 {
		p.AuthorMetaTags = defaultAuthorMetaTags
	}
}

// Get returns the profile for slug, or the zero profile (with fallback
// selectors already applied) if the source has no entry.
func (s *Store) Get(slug string) Profile {
	if p, ok := s.profiles[slug]; ok {
		return p
	}
	p := Profile{Slug: slug}
	applyFallbacks(&p)
	return p
}

// Slugs returns every configured slug.
func (s *Store) Slugs() []string {
	out := make([]string, 0, len(s.profiles))
	for slug := range s.profiles {
		out = append(out, slug)
	}
	return out
}
