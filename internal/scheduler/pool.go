package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cha7ura/newsagg/internal/browser"
	"github.com/cha7ura/newsagg/internal/deadlink"
	"github.com/cha7ura/newsagg/internal/dedup"
	"github.com/cha7ura/newsagg/internal/logging"
	"github.com/cha7ura/newsagg/internal/metrics"
	"github.com/cha7ura/newsagg/internal/models"
	"github.com/cha7ura/newsagg/internal/scrape"
	"github.com/cha7ura/newsagg/internal/sourceconfig"
)

// ArticleStore is the write-side persistence surface the scheduler needs;
// implemented by internal/repository.ArticleRepository.
type ArticleStore interface {
	InsertArticle(ctx context.Context, a *models.ArticleCreate) (uuid.UUID, error)
	dedup.ArticleStore
}

// Config bounds the pool and the autoscaler's behavior.
type Config struct {
	InitialConcurrency        int
	MaxWorkers                int // hard cap, spec default 25
	AutoscaleInterval         time.Duration
	ErrorRateScaleDown        float64 // 0.30
	QueueDepthScaleUpMultiple int
}

// Pool is the scheduler: a map of per-source state, a bounded worker pool,
// and an autoscaler supervisor, all driven off one pick loop.
type Pool struct {
	cfg       Config
	browser   *browser.Pool
	extractor *scrape.Extractor
	profiles  *sourceconfig.Store
	dedupF    *dedup.Filter
	deadLinks *deadlink.Registry
	articles  ArticleStore
	metrics   *metrics.Registry
	logger    *logging.Logger

	statesMu sync.RWMutex
	states   map[uuid.UUID]*SourceState

	titleIdxMu sync.Mutex
	titleIdx   map[uuid.UUID]*dedup.RecentTitleIndex

	persistMu sync.Mutex // the single "persistence lock" from spec §4.9/§5

	stop        chan struct{}
	stopOnce    sync.Once
	workersWG   sync.WaitGroup
	workerN     int
	workerNMu   sync.Mutex
	scaleDownCh chan struct{} // one token per worker the autoscaler wants retired
}

func New(cfg Config, b *browser.Pool, ex *scrape.Extractor, profiles *sourceconfig.Store, df *dedup.Filter, dl *deadlink.Registry, articles ArticleStore, m *metrics.Registry, log *logging.Logger) *Pool {
	if cfg.MaxWorkers <= 0 || cfg.MaxWorkers > 25 {
		cfg.MaxWorkers = 25
	}
	if cfg.InitialConcurrency <= 0 {
		cfg.InitialConcurrency = 2
	}
	if cfg.AutoscaleInterval <= 0 {
		cfg.AutoscaleInterval = 3 * time.Second
	}
	if cfg.ErrorRateScaleDown <= 0 {
		cfg.ErrorRateScaleDown = 0.30
	}
	if cfg.QueueDepthScaleUpMultiple <= 0 {
		cfg.QueueDepthScaleUpMultiple = 2
	}

	return &Pool{
		cfg:       cfg,
		browser:   b,
		extractor: ex,
		profiles:  profiles,
		dedupF:    df,
		deadLinks: dl,
		articles:  articles,
		metrics:   m,
		logger:    log.WithComponent("scheduler"),
		states:      make(map[uuid.UUID]*SourceState),
		titleIdx:    make(map[uuid.UUID]*dedup.RecentTitleIndex),
		stop:        make(chan struct{}),
		scaleDownCh: make(chan struct{}, 25),
	}
}

// RegisterSource installs a SourceState for sourceID, preloading its recent
// title index. Must be called before Enqueue for that source.
func (p *Pool) RegisterSource(ctx context.Context, sourceID uuid.UUID, slug, language string, minInterval time.Duration, concurrencyCap, priority int, freshContext bool, breakerMaxFails uint32, breakerTimeout time.Duration) error {
	st := NewSourceState(sourceID, slug, language, minInterval, concurrencyCap, priority, freshContext, breakerMaxFails, breakerTimeout)

	p.statesMu.Lock()
	p.states[sourceID] = st
	p.statesMu.Unlock()

	idx, err := p.dedupF.LoadRecentTitles(ctx, sourceID)
	if err != nil {
		return err
	}
	p.titleIdxMu.Lock()
	p.titleIdx[sourceID] = idx
	p.titleIdxMu.Unlock()
	return nil
}

// Enqueue adds items to a registered source's queue.
func (p *Pool) Enqueue(sourceID uuid.UUID, items ...Item) {
	p.statesMu.RLock()
	st := p.states[sourceID]
	p.statesMu.RUnlock()
	if st == nil {
		return
	}
	st.Enqueue(items...)
	if p.metrics != nil {
		p.metrics.QueueDepth.Add(float64(len(items)))
	}
}

// MarkDiscoveryDone records that sourceID will receive no more items.
func (p *Pool) MarkDiscoveryDone(sourceID uuid.UUID) {
	p.statesMu.RLock()
	st := p.states[sourceID]
	p.statesMu.RUnlock()
	if st != nil {
		st.MarkDiscoveryDone()
	}
}

// Run starts the initial worker pool and the autoscaler, and blocks until
// every source's queue drains and discovery has finished everywhere, or
// ctx is canceled.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.cfg.InitialConcurrency; i++ {
		p.spawnWorker(ctx)
	}

	go p.superviseAutoscale(ctx)

	p.workersWG.Wait()
}

// Stop signals every worker to finish its in-flight scrape and exit; it
// never cancels a scrape mid-flight (REDESIGN: a stop is cooperative, not
// a cancellation).
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Pool) spawnWorker(ctx context.Context) {
	p.workerNMu.Lock()
	p.workerN++
	p.workerNMu.Unlock()
	if p.metrics != nil {
		p.metrics.ActiveWorkers.Inc()
	}

	p.workersWG.Add(1)
	go func() {
		defer p.workersWG.Done()
		defer func() {
			p.workerNMu.Lock()
			p.workerN--
			p.workerNMu.Unlock()
			if p.metrics != nil {
				p.metrics.ActiveWorkers.Dec()
			}
		}()
		p.workerLoop(ctx)
	}()
}

// workerLoop repeatedly picks the next ready item and scrapes it until the
// pick loop returns the "no more work" sentinel, ctx is done, or the pool
// received a Stop.
func (p *Pool) workerLoop(ctx context.Context) {
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-p.scaleDownCh:
			return
		default:
		}

		st, item, ok := p.pickNext(ctx)
		if !ok {
			return
		}
		p.handle(ctx, st, item)
	}
}

// pickNext implements spec §4.9's pick policy. Returns ok=false only on
// the sentinel "no more work", context cancellation, or Stop.
func (p *Pool) pickNext(ctx context.Context) (*SourceState, Item, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, Item{}, false
		case <-p.stop:
			return nil, Item{}, false
		default:
		}

		p.statesMu.RLock()
		states := make([]*SourceState, 0, len(p.states))
		for _, s := range p.states {
			states = append(states, s)
		}
		p.statesMu.RUnlock()

		var candidates []*SourceState
		for _, s := range states {
			if s.isCandidate() {
				candidates = append(candidates, s)
			}
		}

		var ready []*SourceState
		minWait := time.Duration(-1)
		for _, s := range candidates {
			w := s.timeUntilReady()
			if w <= 0 {
				ready = append(ready, s)
			} else if minWait < 0 || w < minWait {
				minWait = w
			}
		}

		if len(ready) > 0 {
			best := ready[0]
			_, _, bestScraped, bestPriority, _ := best.snapshot()
			for _, s := range ready[1:] {
				_, _, scraped, priority, _ := s.snapshot()
				if priority < bestPriority || (priority == bestPriority && scraped < bestScraped) {
					best, bestPriority, bestScraped = s, priority, scraped
				}
			}
			item, ok := best.dequeue()
			if !ok {
				continue // lost a race with another worker; retry the pick
			}
			if p.metrics != nil {
				p.metrics.QueueDepth.Add(-1)
			}
			_ = best.Limiter.Wait(ctx) // returns immediately: we only picked ready sources
			return best, item, true
		}

		if len(candidates) > 0 {
			time.Sleep(minWait)
			continue
		}

		allDone := true
		anyQueued := false
		for _, s := range states {
			queueLen, _, _, _, done := s.snapshot()
			if queueLen > 0 {
				anyQueued = true
			}
			if !done {
				allDone = false
			}
		}
		if !anyQueued && allDone {
			return nil, Item{}, false
		}
		time.Sleep(50 * time.Millisecond)
	}
}
