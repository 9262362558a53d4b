// Package dedup implements the pre- and post-scrape duplicate checks: a
// candidate URL that already exists or is dead-link suppressed never gets
// enqueued, and a scraped article whose normalized title matches a recent
// title for the same source is discarded even though the URL differs.
// Grounded on original_source's backfill.py pre-filter (existing_urls /
// dead_urls sets) and db.py's title-based recent-article lookup.
package dedup

import (
	"context"

	"github.com/google/uuid"

	"github.com/cha7ura/newsagg/internal/deadlink"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/textutil"
)

// ArticleStore is the subset of the persistence layer the filter needs.
type ArticleStore interface {
	ExistingURLs(ctx context.Context, sourceID uuid.UUID, urls []string) (map[string]struct{}, error)
	RecentTitles(ctx context.Context, sourceID uuid.UUID, days int) ([]string, error)
}

// RecentTitleWindowDays bounds how far back a normalized-title collision is
// still considered a duplicate rather than a coincidentally similar
// headline about an unrelated story.
const RecentTitleWindowDays = 7

// Filter pre-screens discovered candidates against existing/dead URLs and
// post-screens scraped articles against recent normalized titles.
type Filter struct {
	articles  ArticleStore
	deadLinks *deadlink.Registry
}

func New(articles ArticleStore, deadLinks *deadlink.Registry) *Filter {
	return &Filter{articles: articles, deadLinks: deadLinks}
}

// PreEnqueue drops candidates whose URL already exists for the source or is
// currently dead-link suppressed, and any candidate matching a skip-regex.
func (f *Filter) PreEnqueue(ctx context.Context, sourceID uuid.UUID, candidates []models.Candidate, skip func(url string) bool) ([]models.Candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	urls := make([]string, len(candidates))
	for i, c := range candidates {
		urls[i] = c.URL
	}

	existing, err := f.articles.ExistingURLs(ctx, sourceID, urls)
	if err != nil {
		return nil, err
	}
	suppressed, err := f.deadLinks.SuppressedSubset(ctx, sourceID, urls)
	if err != nil {
		return nil, err
	}

	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := existing[c.URL]; ok {
			continue
		}
		if _, ok := suppressed[c.URL]; ok {
			continue
		}
		if skip != nil && skip(c.URL) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// RecentTitleIndex is a loaded snapshot of a source's recent normalized
// titles, built once per scrape run and reused across every article from
// that source rather than re-querying per article.
type RecentTitleIndex struct {
	normalized map[string]struct{}
}

// LoadRecentTitles builds a RecentTitleIndex for sourceID covering the last
// RecentTitleWindowDays days.
func (f *Filter) LoadRecentTitles(ctx context.Context, sourceID uuid.UUID) (*RecentTitleIndex, error) {
	titles, err := f.articles.RecentTitles(ctx, sourceID, RecentTitleWindowDays)
	if err != nil {
		return nil, err
	}
	idx := &RecentTitleIndex{normalized: make(map[string]struct{}, len(titles))}
	for _, t := range titles {
		n := textutil.NormalizeTitle(t)
		if textutil.UsableForDedup(n) {
			idx.normalized[n] = struct{}{}
		}
	}
	return idx, nil
}

// IsDuplicateTitle reports whether title normalizes to something already
// seen in the index. Titles too short after normalization (<=10 runes) are
// never treated as duplicates — they're too likely to collide by chance.
func (idx *RecentTitleIndex) IsDuplicateTitle(title string) bool {
	n := textutil.NormalizeTitle(title)
	if !textutil.UsableForDedup(n) {
		return false
	}
	_, dup := idx.normalized[n]
	return dup
}

// Record adds a freshly inserted article's title to the index so later
// articles in the same run see it too, without a re-query.
func (idx *RecentTitleIndex) Record(title string) {
	n := textutil.NormalizeTitle(title)
	if textutil.UsableForDedup(n) {
		idx.normalized[n] = struct{}{}
	}
}

