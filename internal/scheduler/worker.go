package scheduler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/cha7ura/newsagg/internal/models"
)

// handle runs the worker body for one item: scrape, route errors to the
// dead-link registry, and on success clear any dead-link entry for the URL
// before the dedup-check + insert under the persistence lock.
func (p *Pool) handle(ctx context.Context, st *SourceState, item Item) {
	profile := p.profiles.Get(st.Slug)

	result, breakerErr := st.Breaker.Execute(func() (interface{}, error) {
		b, err := p.browser.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		defer p.browser.Release(b)

		page, err := p.browser.NewPage(b, st.FreshContext)
		if err != nil {
			return nil, err
		}
		defer page.Close()

		rssHint := ""
		if item.PubDate != nil {
			rssHint = item.PubDate.Format("Mon, 02 Jan 2006 15:04:05 -0700")
		}

		r := p.extractor.Article(ctx, page, item.URL, profile, rssHint)
		if r.Err != nil {
			return r, errors.New(string(r.Err.Kind))
		}
		return r, nil
	})

	if breakerErr != nil && errors.Is(breakerErr, gobreaker.ErrOpenState) {
		st.recordError()
		if p.metrics != nil {
			p.metrics.ScrapeErrors.WithLabelValues(st.Slug, "circuit-open").Inc()
		}
		p.logger.Warnf("circuit open for %s, skipping %s", st.Slug, item.URL)
		return
	}

	scrapeResult, _ := result.(*models.ScrapeResult)
	if scrapeResult == nil || scrapeResult.Err != nil {
		st.recordError()
		if scrapeResult != nil && scrapeResult.Err != nil {
			p.recordDeadLink(ctx, st, scrapeResult.Err)
		}
		return
	}

	if err := p.deadLinks.Clear(ctx, item.URL); err != nil {
		p.logger.WithError(err).Debugf("clear dead link failed: %s", item.URL)
	}
	p.persistAndDedup(ctx, st, scrapeResult.Article)
	st.recordSuccess()
}

func (p *Pool) recordDeadLink(ctx context.Context, st *SourceState, scrapeErr *models.ScrapeError) {
	if err := p.deadLinks.RecordDead(ctx, st.Source, scrapeErr.URL, scrapeErr.Kind); err != nil {
		p.logger.WithError(err).Warnf("record dead link failed: %s", scrapeErr.URL)
	}
	if p.metrics != nil {
		p.metrics.ScrapeErrors.WithLabelValues(st.Slug, string(scrapeErr.Kind)).Inc()
	}
}

// persistAndDedup holds the persistence lock across exactly the critical
// section spec §5 names: "title-set check ∪ insert ∪ title-set update."
func (p *Pool) persistAndDedup(ctx context.Context, st *SourceState, article *models.ScrapedArticle) {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	p.titleIdxMu.Lock()
	idx := p.titleIdx[st.Source]
	p.titleIdxMu.Unlock()

	if idx != nil && idx.IsDuplicateTitle(article.Title) {
		if p.metrics != nil {
			p.metrics.ArticlesSkipped.WithLabelValues(st.Slug, "duplicate-title").Inc()
		}
		return
	}
	if article.PublishedAt == nil {
		if p.metrics != nil {
			p.metrics.ArticlesSkipped.WithLabelValues(st.Slug, "no-date").Inc()
		}
		return
	}

	create := &models.ArticleCreate{
		SourceID:         st.Source,
		URL:              article.FinalURL,
		Title:            article.Title,
		Content:          article.Content,
		Excerpt:          article.Excerpt,
		ImageURL:         article.ImageURL,
		Author:           article.Author,
		PublishedAt:      article.PublishedAt,
		Language:         st.Language,
		OriginalLanguage: st.Language,
	}

	id, err := p.articles.InsertArticle(ctx, create)
	if err != nil {
		p.logger.WithError(err).Warnf("insert article failed: %s", article.FinalURL)
		return
	}
	if id == uuid.Nil {
		if p.metrics != nil {
			p.metrics.ArticlesSkipped.WithLabelValues(st.Slug, "duplicate-url").Inc()
		}
		return
	}

	if err := p.deadLinks.Clear(ctx, article.FinalURL); err != nil {
		p.logger.WithError(err).Debugf("clear dead link failed: %s", article.FinalURL)
	}
	if idx != nil {
		idx.Record(article.Title)
	}
	if p.metrics != nil {
		p.metrics.ArticlesInserted.WithLabelValues(st.Slug).Inc()
	}
}
