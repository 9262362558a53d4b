// Package models holds the core value types passed between discoverers,
// the scheduler, the scraper, and the persistence adapter.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Source is a configured news source: stable slug, home URL, optional feed,
// and the extraction/scheduling profile that parametrizes how it is crawled.
type Source struct {
	ID       uuid.UUID
	Slug     string
	Name     string
	URL      string
	RSSURL   string
	Language string
	IsActive bool
}

// Candidate is a (title, url, hint_date?) tuple produced by a discoverer,
// before the dedup filter and the scheduler ever see it.
type Candidate struct {
	Title    string
	URL      string
	PubDate  *time.Time
	ImageURL string
}

// ScrapedArticle is the normalized result of a successful scrape.
type ScrapedArticle struct {
	Title       string
	Content     string
	Excerpt     string
	ImageURL    string
	Author      string
	PublishedAt *time.Time
	FinalURL    string // observed after redirects; the canonical storage key
}

// ErrorKind is the closed set of dead-link error classifications.
type ErrorKind string

const (
	ErrorKindNotFound   ErrorKind = "404"
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindServer     ErrorKind = "500"
	ErrorKindCloudflare ErrorKind = "cloudflare"
	ErrorKindEmpty      ErrorKind = "empty"
	ErrorKindUnknown    ErrorKind = "unknown"
)

// ScrapeError is the failure variant of a scrape attempt.
type ScrapeError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.URL + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.URL
}

// ScrapeResult is the tagged-variant return of a scrape: exactly one of
// Article or Err is set.
type ScrapeResult struct {
	Article *ScrapedArticle
	Err     *ScrapeError
}

// ArticleCreate is the shape persisted by the repository on insert.
type ArticleCreate struct {
	SourceID         uuid.UUID
	URL              string
	Title            string
	Content          string
	Excerpt          string
	ImageURL         string
	Author           string
	PublishedAt      *time.Time
	Language         string
	OriginalLanguage string
}

// DeadLink is a persisted record of a failed scrape attempt.
type DeadLink struct {
	SourceID      uuid.UUID
	URL           string
	ErrorType     ErrorKind
	FirstFailedAt time.Time
	LastCheckedAt time.Time
	RetryCount    int
}

// Backoff schedule, indexed by retry_count: 0->7d, 1->14d, 2->30d, 3+ permanent.
var Backoff = []time.Duration{
	7 * 24 * time.Hour,
	14 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// Suppressed reports whether a dead link is still within its retry backoff
// (or permanently suppressed at retry_count >= len(Backoff)).
func (d DeadLink) Suppressed(now time.Time) bool {
	if d.RetryCount >= len(Backoff) {
		return true
	}
	return now.Before(d.FirstFailedAt.Add(Backoff[d.RetryCount]))
}

// RunCounts is the per-source (and, summed, aggregate) outcome tally for a run.
type RunCounts struct {
	Inserted          int
	SkippedNoDate     int
	SkippedDuplicate  int
	ScrapeErrorsByKind map[ErrorKind]int
}

func NewRunCounts() *RunCounts {
	return &RunCounts{ScrapeErrorsByKind: make(map[ErrorKind]int)}
}

func (r *RunCounts) Add(o *RunCounts) {
	r.Inserted += o.Inserted
	r.SkippedNoDate += o.SkippedNoDate
	r.SkippedDuplicate += o.SkippedDuplicate
	for k, v := range o.ScrapeErrorsByKind {
		r.ScrapeErrorsByKind[k] += v
	}
}
