// Package scheduler is the system's heart: a bounded worker pool that
// interleaves scraping across sources subject to per-source rate limits
// and concurrency caps, autoscales on queue depth and error rate, and
// routes results to dead-link tracking, dedup, and persistence. Grounded
// on the teacher's internal/scheduler/scheduler.go for the Start/Stop/
// WaitGroup lifecycle idiom, generalized from a single ticker to a
// priority-queue worker pool per original_source's IntelligentScheduler
// (backfill.py's _run_single_method/_backfill_archive_interleaved).
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/cha7ura/newsagg/internal/ratelimit"
)

// Item is one unit of scheduler work: a discovered candidate URL plus the
// hints needed to scrape and classify it.
type Item struct {
	SourceID  uuid.UUID
	URL       string
	Title     string
	PubDate   *time.Time
	ImageHint string
}

// SourceState tracks one source's live scheduling data: its rate limiter,
// concurrency cap, priority, FIFO queue, and counters. Grounded on
// spec.md §4.9's SourceState description.
type SourceState struct {
	Source   uuid.UUID
	Slug     string
	Language string

	Limiter        *ratelimit.Limiter
	Breaker        *gobreaker.CircuitBreaker
	ConcurrencyCap int
	Priority       int
	FreshContext   bool

	mu             sync.Mutex
	queue          []Item
	activeCount    int
	itemsScraped   int
	errors         int
	scrapedWindow  int
	discoveryDone  bool
}

// NewSourceState builds a SourceState with its own rate limiter and
// circuit breaker. The breaker trips independently of the autoscaler's
// pool-wide error-rate reaction — it protects a single pathological
// source without slowing every other source sharing the pool.
func NewSourceState(sourceID uuid.UUID, slug, language string, minInterval time.Duration, concurrencyCap, priority int, freshContext bool, breakerMaxFails uint32, breakerTimeout time.Duration) *SourceState {
	return &SourceState{
		Source:         sourceID,
		Slug:           slug,
		Language:       language,
		Limiter:        ratelimit.New(minInterval),
		ConcurrencyCap: concurrencyCap,
		Priority:       priority,
		FreshContext:   freshContext,
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        slug,
			MaxRequests: 1,
			Interval:    0,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerMaxFails
			},
		}),
	}
}

// Enqueue appends items to the source's FIFO queue.
func (s *SourceState) Enqueue(items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, items...)
}

// MarkDiscoveryDone records that no more items will ever be enqueued for
// this source, letting the pick loop's sentinel check terminate.
func (s *SourceState) MarkDiscoveryDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discoveryDone = true
}

func (s *SourceState) snapshot() (queueLen, active, scraped, priority int, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), s.activeCount, s.itemsScraped, s.Priority, s.discoveryDone
}

// isCandidate reports step 1 of the pick policy: non-empty queue,
// active_count below the concurrency cap, and a circuit breaker that is not
// open (an open breaker withholds dispatch and leaves the queue in place).
func (s *SourceState) isCandidate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) > 0 && s.activeCount < s.ConcurrencyCap && s.Breaker.State() != gobreaker.StateOpen
}

func (s *SourceState) timeUntilReady() time.Duration {
	return s.Limiter.TimeUntilReady()
}

// dequeue pops the head item and increments active_count, under the same
// lock, so a concurrent pick can't double-dispatch the same head item.
func (s *SourceState) dequeue() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Item{}, false
	}
	item := s.queue[0]
	s.queue = s.queue[1:]
	s.activeCount++
	return item, true
}

func (s *SourceState) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeCount--
	s.itemsScraped++
	s.scrapedWindow++
}

func (s *SourceState) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeCount--
	s.errors++
	s.scrapedWindow++
}

// errorWindow returns errors and total attempts since the last call and
// resets both — the autoscaler reads this once per tick per source, then
// folds every source's counts into one pool-wide error rate.
func (s *SourceState) errorWindow() (errs, scraped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errs, scraped = s.errors, s.scrapedWindow
	s.errors = 0
	s.scrapedWindow = 0
	return errs, scraped
}

func (s *SourceState) queueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
