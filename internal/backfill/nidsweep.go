package backfill

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/cha7ura/newsagg/internal/browser"
	"github.com/cha7ura/newsagg/internal/discover"
	"github.com/cha7ura/newsagg/internal/logging"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/ratelimit"
	"github.com/cha7ura/newsagg/internal/scrape"
	"github.com/cha7ura/newsagg/internal/sourceconfig"
)

// ArticleStore is the write-side persistence surface a nid sweep needs.
type ArticleStore interface {
	InsertArticle(ctx context.Context, a *models.ArticleCreate) (uuid.UUID, error)
	AllSourceURLs(ctx context.Context, sourceID uuid.UUID) (map[string]struct{}, error)
}

// DeadLinkStore is the dead-link bookkeeping surface a nid sweep needs.
type DeadLinkStore interface {
	RecordDeadLink(ctx context.Context, sourceID uuid.UUID, url string, kind models.ErrorKind) error
	RemoveDeadLink(ctx context.Context, url string) error
	AllSuppressed(ctx context.Context, sourceID uuid.UUID) (map[string]struct{}, error)
}

// NIDSweepRunner drives a sequential-ID sweep directly against the browser
// and repository, bypassing the priority scheduler: a sweep must scrape
// eagerly to tell a real article apart from a 404, so "discovery" and
// "scrape" are the same step here. Grounded on original_source's
// run_nid_sweep, which likewise runs outside the IntelligentScheduler.
type NIDSweepRunner struct {
	Browser     *browser.Pool
	Extractor   *scrape.Extractor
	Articles    ArticleStore
	DeadLinks   DeadLinkStore
	Profiles    *sourceconfig.Store
	Concurrency int
	RateLimit   time.Duration
	logger      *logging.Logger
}

func NewNIDSweepRunner(b *browser.Pool, ex *scrape.Extractor, articles ArticleStore, deadLinks DeadLinkStore, profiles *sourceconfig.Store, concurrency int, rateLimit time.Duration, log *logging.Logger) *NIDSweepRunner {
	if concurrency <= 0 {
		concurrency = 3
	}
	return &NIDSweepRunner{
		Browser:     b,
		Extractor:   ex,
		Articles:    articles,
		DeadLinks:   deadLinks,
		Profiles:    profiles,
		Concurrency: concurrency,
		RateLimit:   rateLimit,
		logger:      log.WithComponent("nidsweep"),
	}
}

// SweepResult tallies one plan's outcome.
type SweepResult struct {
	Inserted int
	Skipped  int
	NotFound int
}

// Run sweeps every discover.NIDSweepPlan configured for source, stopping a
// plan early once MaxConsecutive404 consecutive misses accumulate. The
// count carries across batches and is checked before each batch starts;
// every failed scrape counts as a miss, whatever its error kind.
func (r *NIDSweepRunner) Run(ctx context.Context, source models.Source) (SweepResult, error) {
	var total SweepResult
	profile := r.Profiles.Get(source.Slug)
	plans := discover.PlanNIDSweeps(profile)
	if len(plans) == 0 {
		return total, nil
	}

	existing, err := r.Articles.AllSourceURLs(ctx, source.ID)
	if err != nil {
		return total, err
	}
	suppressed, err := r.DeadLinks.AllSuppressed(ctx, source.ID)
	if err != nil {
		return total, err
	}

	for _, plan := range plans {
		res := r.runPlan(ctx, source, profile, plan, existing, suppressed)
		total.Inserted += res.Inserted
		total.Skipped += res.Skipped
		total.NotFound += res.NotFound
	}
	return total, nil
}

func (r *NIDSweepRunner) runPlan(ctx context.Context, source models.Source, profile sourceconfig.Profile, plan discover.NIDSweepPlan, existing, suppressed map[string]struct{}) SweepResult {
	var (
		res            SweepResult
		mu             sync.Mutex
		consecutive404 int32
		limiter        = ratelimit.New(r.RateLimit)
	)

	for _, batch := range plan.Batches(50) {
		if int(atomic.LoadInt32(&consecutive404)) >= plan.MaxConsecutive404 {
			r.logger.Infof("%s: %d consecutive 404s — stopping sweep early", source.Slug, plan.MaxConsecutive404)
			break
		}

		toCheck := make([]int, 0, len(batch))
		for _, nid := range batch {
			url := plan.URLForNID(nid)
			mu.Lock()
			_, inDB := existing[url]
			_, dead := suppressed[url]
			mu.Unlock()
			if inDB || dead {
				res.Skipped++
				continue
			}
			toCheck = append(toCheck, nid)
		}
		if len(toCheck) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.Concurrency)
		for _, nid := range toCheck {
			nid := nid
			g.Go(func() error {
				if int(atomic.LoadInt32(&consecutive404)) >= plan.MaxConsecutive404 {
					return nil
				}
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				r.sweepOne(gctx, source, profile, plan.URLForNID(nid), &res, &mu, existing, &consecutive404)
				return nil
			})
		}
		_ = g.Wait()
	}

	r.logger.Infof("%s: sweep done — %d inserted, %d skipped, %d not found", source.Slug, res.Inserted, res.Skipped, res.NotFound)
	return res
}

func (r *NIDSweepRunner) sweepOne(ctx context.Context, source models.Source, profile sourceconfig.Profile, url string, res *SweepResult, mu *sync.Mutex, existing map[string]struct{}, consecutive404 *int32) {
	b, err := r.Browser.Acquire(ctx)
	if err != nil {
		return
	}
	defer r.Browser.Release(b)

	page, err := r.Browser.NewPage(b, true)
	if err != nil {
		return
	}
	defer page.Close()

	result := r.Extractor.Article(ctx, page, url, profile, "")
	if result.Err != nil {
		atomic.AddInt32(consecutive404, 1)
		mu.Lock()
		res.NotFound++
		mu.Unlock()
		_ = r.DeadLinks.RecordDeadLink(ctx, source.ID, result.Err.URL, result.Err.Kind)
		return
	}

	atomic.StoreInt32(consecutive404, 0)
	_ = r.DeadLinks.RemoveDeadLink(ctx, url)

	article := result.Article
	canonical := article.FinalURL
	if canonical == "" {
		canonical = url
	}

	mu.Lock()
	_, dup := existing[canonical]
	mu.Unlock()
	if dup {
		mu.Lock()
		res.Skipped++
		mu.Unlock()
		return
	}
	if article.PublishedAt == nil {
		mu.Lock()
		res.Skipped++
		mu.Unlock()
		return
	}

	create := &models.ArticleCreate{
		SourceID:         source.ID,
		URL:              canonical,
		Title:            article.Title,
		Content:          article.Content,
		Excerpt:          article.Excerpt,
		ImageURL:         article.ImageURL,
		Author:           article.Author,
		PublishedAt:      article.PublishedAt,
		Language:         source.Language,
		OriginalLanguage: source.Language,
	}

	id, err := r.Articles.InsertArticle(ctx, create)
	if err != nil {
		return
	}
	if id == uuid.Nil {
		mu.Lock()
		res.Skipped++
		mu.Unlock()
		return
	}

	mu.Lock()
	existing[canonical] = struct{}{}
	res.Inserted++
	mu.Unlock()
}
